// Package config loads the configuration used by the strata CLI and by
// applications embedding the library defaults.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PostgresConfig holds database connection settings.
type PostgresConfig struct {
	DSN             string `yaml:"dsn"`
	IAMAuth         bool   `yaml:"iam_auth"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// RedisConfig holds result-cache settings.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	// TTLSeconds bounds the staleness window of cached read results.
	TTLSeconds int `yaml:"ttl_seconds"`
}

// TelemetryConfig holds tracing settings.
type TelemetryConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Exporter   string  `yaml:"exporter"`
	Endpoint   string  `yaml:"endpoint"`
	SampleRate float64 `yaml:"sample_rate"`
}

// LogConfig holds operational logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig holds the Prometheus scrape endpoint settings.
type MetricsConfig struct {
	// Addr is the listen address for the metrics handler, e.g. ":9090".
	// Empty disables the endpoint.
	Addr string `yaml:"addr"`
}

// Config is the central configuration struct embedding all component configs.
type Config struct {
	Postgres  PostgresConfig  `yaml:"postgres"`
	Redis     RedisConfig     `yaml:"redis"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Postgres: PostgresConfig{
			DSN: "postgres://localhost:5432/strata",
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			TTLSeconds: 5,
		},
		Telemetry: TelemetryConfig{
			Enabled:    false,
			Exporter:   "otlp-http",
			Endpoint:   "localhost:4318",
			SampleRate: 1.0,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadFromFile loads configuration from a YAML file on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromEnv applies environment variable overrides to the config.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("STRATA_POSTGRES_DSN"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("STRATA_REDIS_ADDR"); v != "" {
		cfg.Redis.Enabled = true
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("STRATA_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("STRATA_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("STRATA_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("STRATA_OTLP_ENDPOINT"); v != "" {
		cfg.Telemetry.Enabled = true
		cfg.Telemetry.Endpoint = v
	}
	if v := os.Getenv("STRATA_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
}
