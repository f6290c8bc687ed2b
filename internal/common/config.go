package common

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	DRM      DRMConfig
	Database DatabaseConfig
	Server   ServerConfig
	Batch    BatchConfig
	Export   ExportConfig
	Log      LogConfig
}

// DRMConfig holds Document Regexp Model configuration
type DRMConfig struct {
	Dir string
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string // sqlite or postgres
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr        string
	HTTPAddr        string
	ShutdownTimeout time.Duration
	MaxTextBytes    int
}

// BatchConfig holds worker queue configuration
type BatchConfig struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
}

// ExportConfig holds XLSX export configuration
type ExportConfig struct {
	Dir string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json or text
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		DRM: DRMConfig{
			Dir: getEnv("DRM_DIR", "./drms"),
		},
		Database: DatabaseConfig{
			Driver:           strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
			DSN:              getEnv("DB_URL", "file:drmparse.db?_pragma=busy_timeout(5000)"),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 10),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 1),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			GRPCAddr:        getEnv("GRPC_ADDR", ":8080"),
			HTTPAddr:        getEnv("HTTP_ADDR", ":8081"),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
			MaxTextBytes:    getEnvAsInt("MAX_TEXT_BYTES", 1<<20),
		},
		Batch: BatchConfig{
			Workers:   getEnvAsInt("BATCH_WORKERS", 4),
			QueueSize: getEnvAsInt("BATCH_QUEUE_SIZE", 256),
			Timeout:   getEnvAsDuration("BATCH_TIMEOUT", 30*time.Second),
		},
		Export: ExportConfig{
			Dir: getEnv("EXPORT_DIR", ""),
		},
		Log: LogConfig{
			Level:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "json")),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	v := NewValidator().
		Field("DRM_DIR", c.DRM.Dir, Required).
		Field("DB_URL", c.Database.DSN, Required)
	if v.HasErrors() {
		return NewAppError("CONFIG_ERROR", v.ErrorMessage(), ErrInvalidInput)
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return NewAppError("CONFIG_ERROR", "DB_DRIVER must be sqlite or postgres", ErrInvalidInput)
	}
	if c.Batch.Workers <= 0 {
		return NewAppError("CONFIG_ERROR", "BATCH_WORKERS must be positive", ErrInvalidInput)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return NewAppError("CONFIG_ERROR", "LOG_LEVEL must be one of debug, info, warn, error", ErrInvalidInput)
	}
	return nil
}
