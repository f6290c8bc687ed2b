package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/v1/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/jobs/"+id, http.NoBody))
		if rr.Code != http.StatusNotFound {
			t.Fatalf("status = %d", rr.Code)
		}
	}

	got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/v1/jobs/{id}", "404"))
	if got != 2 {
		t.Errorf("http_requests_total = %v, want 2", got)
	}
	if testutil.CollectAndCount(httpRequestDuration) == 0 {
		t.Error("expected duration observations")
	}
}

func TestObserveParse(t *testing.T) {
	ObserveParse("test", "no_match", "", time.Millisecond)
	ObserveParse("test", "extracted", "receipt", time.Millisecond)

	if got := testutil.ToFloat64(ParseTotal.WithLabelValues("test", "no_match", "none")); got != 1 {
		t.Errorf("no_match count = %v", got)
	}
	if got := testutil.ToFloat64(ParseTotal.WithLabelValues("test", "extracted", "receipt")); got != 1 {
		t.Errorf("extracted count = %v", got)
	}
}
