// Package config loads the scoring service configuration from the
// environment and the generation configuration from YAML plus environment
// overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"lumina/fraud-lab/internal/features"
	"lumina/fraud-lab/internal/store"
)

// History backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Service holds the scoring service configuration.
type Service struct {
	Server  ServerConfig
	History HistoryConfig
	Redis   store.RedisConfig
	Model   ModelConfig
	Alerts  AlertConfig
}

// ServerConfig holds HTTP and logging settings.
type ServerConfig struct {
	Port         int
	Environment  string
	LogLevel     string
	LogFormat    string // text or json
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// HistoryConfig selects and sizes the per-customer history store.
type HistoryConfig struct {
	Backend   string
	KeyPrefix string
	Lookback  time.Duration
	Retention time.Duration
}

// ModelConfig points at the model manifest.
type ModelConfig struct {
	ManifestPath string
}

// AlertConfig lists webhook endpoints notified about anomalous transactions.
type AlertConfig struct {
	WebhookURLs []string
	Timeout     time.Duration
}

// Load reads .env if present, then the environment.
func Load() (*Service, error) {
	_ = godotenv.Load()

	cfg := &Service{
		Server: ServerConfig{
			Port:         getEnvAsInt("PORT", 8080),
			Environment:  getEnv("ENVIRONMENT", "development"),
			LogLevel:     getEnv("LOG_LEVEL", "info"),
			LogFormat:    getEnv("LOG_FORMAT", "text"),
			ReadTimeout:  getEnvAsDuration("READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getEnvAsDuration("WRITE_TIMEOUT", 30*time.Second),
		},
		History: HistoryConfig{
			Backend:   getEnv("HISTORY_BACKEND", BackendMemory),
			KeyPrefix: getEnv("HISTORY_KEY_PREFIX", "fraudlab:"),
			Lookback:  features.Lookback,
			Retention: getEnvAsDuration("HISTORY_RETENTION", 7*24*time.Hour),
		},
		Redis: store.RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Model: ModelConfig{
			ManifestPath: getEnv("MODEL_MANIFEST", "models/model.yaml"),
		},
		Alerts: AlertConfig{
			WebhookURLs: getEnvAsList("ALERT_WEBHOOK_URLS"),
			Timeout:     getEnvAsDuration("ALERT_TIMEOUT", 5*time.Second),
		},
	}

	switch cfg.History.Backend {
	case BackendMemory, BackendRedis:
	default:
		return nil, fmt.Errorf("config: unknown HISTORY_BACKEND %q", cfg.History.Backend)
	}
	if cfg.History.Retention < cfg.History.Lookback {
		return nil, fmt.Errorf("config: HISTORY_RETENTION %s shorter than lookback %s",
			cfg.History.Retention, cfg.History.Lookback)
	}
	return cfg, nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
