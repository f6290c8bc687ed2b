package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joseph-ayodele/drmparse/internal/common"
	"github.com/joseph-ayodele/drmparse/internal/metrics"
	"github.com/joseph-ayodele/drmparse/internal/services/parsing"
)

// ErrorResponse is the JSON body of every failed HTTP request.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type parseRequest struct {
	Text *string `json:"text"`
}

// HTTPServer exposes the parser over a small JSON API.
type HTTPServer struct {
	svc      *parsing.Service
	logger   *slog.Logger
	maxBytes int64
}

func NewHTTPServer(svc *parsing.Service, maxBytes int, logger *slog.Logger) *HTTPServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPServer{svc: svc, logger: logger, maxBytes: int64(maxBytes)}
}

// Routes builds the chi router.
func (s *HTTPServer) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(metrics.Middleware())

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/v1", func(r chi.Router) {
		r.Post("/parse", s.handleParse)
		r.Get("/models", s.handleModels)
		r.Post("/models/reload", s.handleReload)
	})
	return r
}

// handleParse accepts {"text": "..."} as JSON or the raw text as text/plain.
func (s *HTTPServer) handleParse(w http.ResponseWriter, r *http.Request) {
	// JSON framing adds a little on top of the text limit.
	if s.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, 2*s.maxBytes+1024)
	}

	var text string
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "text/plain":
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			writeBodyError(w, err)
			return
		}
		text = string(raw)
	default:
		var req parseRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBodyError(w, err)
			return
		}
		if req.Text == nil {
			writeError(w, http.StatusBadRequest, "validation_failed", "text is required")
			return
		}
		text = *req.Text
	}

	res, err := s.svc.Parse(r.Context(), "http", text)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newParseResponse(res))
}

func (s *HTTPServer) handleModels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"models": s.svc.Describe()})
}

func (s *HTTPServer) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Reload(); err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": len(s.svc.Models())})
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "models": len(s.svc.Models())})
}

func (s *HTTPServer) handleError(w http.ResponseWriter, r *http.Request, err error) {
	logger := common.LoggerFromContext(r.Context(), s.logger)
	var appErr *common.AppError
	msg := err.Error()
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}
	switch {
	case common.IsConfigError(err):
		logger.Error("drm configuration error", "error", err)
		writeError(w, http.StatusUnprocessableEntity, "drm_config_error", msg)
	case errors.Is(err, common.ErrInvalidInput), errors.Is(err, common.ErrValidation):
		logger.Warn("invalid request", "error", err)
		writeError(w, http.StatusBadRequest, "validation_failed", msg)
	default:
		logger.Error("internal error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

// writeBodyError reports a request body that could not be read or decoded.
func writeBodyError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "request_too_large",
			fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		return
	}
	writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered", "panic", rvr, "path", r.URL.Path)
					writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// requestLogger emits one log line per request and propagates X-Request-ID.
func requestLogger(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi's RequestID middleware already placed the id in the context
			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}
			ctx := common.WithLogger(common.WithRequestID(r.Context(), requestID), logger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			common.LoggerFromContext(ctx, logger).Info("http_request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"latency_ms", time.Since(start).Milliseconds(),
				"response_bytes", ww.BytesWritten(),
			)
		})
	}
}
