package common

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestConfigErrorf(t *testing.T) {
	err := ConfigErrorf("unknown type %q", "decimal")
	if !IsConfigError(err) {
		t.Fatal("expected config error")
	}
	if err.Code != CodeDRMConfig {
		t.Errorf("code = %q", err.Code)
	}
	if !strings.Contains(err.Error(), `unknown type "decimal"`) {
		t.Errorf("message = %q", err.Error())
	}
	if IsConfigError(errors.New("other")) {
		t.Error("plain error must not be a config error")
	}
}

func TestToGRPCError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"config", ConfigErrorf("bad"), codes.FailedPrecondition},
		{"invalid", WrapError(ErrInvalidInput, "text"), codes.InvalidArgument},
		{"not found", WrapError(ErrNotFound, "job"), codes.NotFound},
		{"other", errors.New("boom"), codes.Internal},
		{"already status", NotFoundError("x"), codes.NotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := status.Code(ToGRPCError(tt.err))
			if got != tt.want {
				t.Errorf("code = %v, want %v", got, tt.want)
			}
		})
	}
	if ToGRPCError(nil) != nil {
		t.Error("nil must stay nil")
	}
}

func TestValidator(t *testing.T) {
	v := NewValidator().
		Field("text", "", Required).
		Field("text", "abcdef", MaxBytes(3))
	if !v.HasErrors() || len(v.Errors()) != 2 {
		t.Fatalf("expected 2 errors, got %v", v.Errors())
	}
	if !errors.Is(v.Error(), ErrValidation) {
		t.Error("expected ErrValidation")
	}

	ok := NewValidator().Field("text", "RECEIPT", Required, MaxBytes(0))
	if ok.HasErrors() || ok.Error() != nil {
		t.Errorf("unexpected errors: %v", ok.Errors())
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := LoadConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}

	bad := *cfg
	bad.Database.Driver = "mysql"
	if err := bad.Validate(); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}

	bad = *cfg
	bad.Batch.Workers = 0
	if err := bad.Validate(); err == nil {
		t.Error("expected error for zero workers")
	}
}

func TestConfigValidateRequired(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*Config)
		field string
	}{
		{name: "blank drm dir", edit: func(c *Config) { c.DRM.Dir = "  " }, field: "DRM_DIR"},
		{name: "empty db url", edit: func(c *Config) { c.Database.DSN = "" }, field: "DB_URL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := LoadConfig()
			tt.edit(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q does not name %s", err.Error(), tt.field)
			}
		})
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("DRM_DIR", "/etc/drms")
	t.Setenv("BATCH_WORKERS", "9")
	t.Setenv("BATCH_TIMEOUT", "5s")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("DB_MAX_CONNS", "not-a-number")

	cfg := LoadConfig()
	if cfg.DRM.Dir != "/etc/drms" {
		t.Errorf("DRM.Dir = %q", cfg.DRM.Dir)
	}
	if cfg.Batch.Workers != 9 || cfg.Batch.Timeout.Seconds() != 5 {
		t.Errorf("batch = %+v", cfg.Batch)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
	if cfg.Database.MaxConns != 10 {
		t.Errorf("invalid int must fall back to default, got %d", cfg.Database.MaxConns)
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("debug") != slog.LevelDebug || ParseLevel("bogus") != slog.LevelInfo {
		t.Error("unexpected level mapping")
	}
	var sb strings.Builder
	logger := NewLogger(LogConfig{Level: "warn", Format: "json"}, &sb)
	logger.Info("hidden")
	logger.Warn("shown")
	if strings.Contains(sb.String(), "hidden") || !strings.Contains(sb.String(), "shown") {
		t.Errorf("unexpected output %q", sb.String())
	}
}

func TestLoggerFromContext(t *testing.T) {
	var sb strings.Builder
	base := slog.New(slog.NewJSONHandler(&sb, nil))
	ctx := WithJobID(WithRequestID(context.Background(), "req-1"), "job-1")
	LoggerFromContext(ctx, base).Info("hello")
	out := sb.String()
	if !strings.Contains(out, `"request_id":"req-1"`) || !strings.Contains(out, `"job_id":"job-1"`) {
		t.Errorf("missing context attrs: %s", out)
	}
	if RequestIDFromContext(context.Background()) != "" || JobIDFromContext(context.Background()) != "" {
		t.Error("empty context must yield empty ids")
	}
}
