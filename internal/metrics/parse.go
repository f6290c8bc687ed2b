package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Parse pipeline Prometheus metrics.
var (
	ParseTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "drmparse",
			Name:      "parse_total",
			Help:      "Parsed texts by outcome and model",
		},
		[]string{"transport", "outcome", "model"},
	)

	ParseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "drmparse",
			Name:      "parse_duration_seconds",
			Help:      "Time spent matching and extracting one text",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"transport"},
	)

	ModelsLoaded = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "drmparse",
			Name:      "models_loaded",
			Help:      "Number of document regexp models currently loaded",
		},
	)

	ModelReloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "drmparse",
			Name:      "model_reloads_total",
			Help:      "Model directory reloads",
		},
		[]string{"result"}, // "ok" / "error"
	)
)

func init() {
	prometheus.MustRegister(ParseTotal)
	prometheus.MustRegister(ParseDuration)
	prometheus.MustRegister(ModelsLoaded)
	prometheus.MustRegister(ModelReloadsTotal)
}

// ObserveParse records one parse call.
func ObserveParse(transport, outcome, model string, elapsed time.Duration) {
	if model == "" {
		model = "none"
	}
	ParseTotal.WithLabelValues(transport, outcome, model).Inc()
	ParseDuration.WithLabelValues(transport).Observe(elapsed.Seconds())
}
