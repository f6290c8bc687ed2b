// Package parsing serves parse requests against a model set that can be
// reloaded while requests are in flight.
package parsing

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joseph-ayodele/drmparse/internal/common"
	"github.com/joseph-ayodele/drmparse/internal/drm"
	"github.com/joseph-ayodele/drmparse/internal/metrics"
	"github.com/joseph-ayodele/drmparse/internal/parser"
)

// ModelInfo describes a loaded model.
type ModelInfo struct {
	Name             string   `json:"name"`
	Identifiers      int      `json:"identifiers"`
	Fields           []string `json:"fields"`
	HasTable         bool     `json:"has_table"`
	UniquenessFields []string `json:"uniqueness_fields"`
}

// Service holds the current model set. Reads are lock free; Reload swaps
// the whole set so a request always sees one consistent snapshot.
type Service struct {
	fsys     fs.FS
	logger   *slog.Logger
	maxBytes int

	models   atomic.Pointer[[]*drm.Model]
	reloadMu sync.Mutex
}

// NewService loads every model in dir.
func NewService(dir string, maxBytes int, logger *slog.Logger) (*Service, error) {
	return NewServiceFS(os.DirFS(dir), maxBytes, logger)
}

// NewServiceFS loads every model in fsys.
func NewServiceFS(fsys fs.FS, maxBytes int, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{fsys: fsys, logger: logger, maxBytes: maxBytes}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the model directory. On error the previous set stays active.
func (s *Service) Reload() error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	models, err := drm.NewLoader(s.fsys, s.logger).Load()
	if err != nil {
		metrics.ModelReloadsTotal.WithLabelValues("error").Inc()
		s.logger.Error("models.reload.failed", "err", err)
		return err
	}
	s.models.Store(&models)
	metrics.ModelReloadsTotal.WithLabelValues("ok").Inc()
	metrics.ModelsLoaded.Set(float64(len(models)))
	s.logger.Info("models.reload.ok", "models", len(models))
	return nil
}

// Models returns the current model set in load order.
func (s *Service) Models() []*drm.Model {
	if p := s.models.Load(); p != nil {
		return *p
	}
	return nil
}

// Describe summarizes the current model set.
func (s *Service) Describe() []ModelInfo {
	models := s.Models()
	out := make([]ModelInfo, 0, len(models))
	for _, m := range models {
		fields := make([]string, len(m.Fields))
		for i, f := range m.Fields {
			fields[i] = f.Name
		}
		out = append(out, ModelInfo{
			Name:             m.Name,
			Identifiers:      len(m.Identifiers),
			Fields:           fields,
			HasTable:         m.HasTable(),
			UniquenessFields: append([]string{}, m.UniquenessFields...),
		})
	}
	return out
}

// Parse validates text and runs the parser over the current model set.
// transport labels the metrics ("grpc", "http", "cli").
func (s *Service) Parse(ctx context.Context, transport, text string) (*parser.Result, error) {
	logger := common.LoggerFromContext(ctx, s.logger)

	v := common.NewValidator()
	v.Field("text", text, common.MaxBytes(s.maxBytes))
	if err := v.Error(); err != nil {
		logger.Warn("parse.request.invalid", "err", err)
		return nil, common.NewAppError("INVALID_TEXT", v.ErrorMessage(), common.ErrInvalidInput)
	}

	start := time.Now()
	res, err := parser.New(logger).Parse(text, s.Models())
	if err != nil {
		metrics.ObserveParse(transport, "error", "", time.Since(start))
		return nil, err
	}
	metrics.ObserveParse(transport, string(res.Outcome), res.ModelName(), time.Since(start))
	return res, nil
}
