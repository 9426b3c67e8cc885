package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Postgres.DSN == "" {
		t.Fatal("missing default DSN")
	}
	if cfg.Redis.Enabled {
		t.Fatal("cache enabled by default")
	}
	if cfg.Log.Level != "info" {
		t.Fatalf("log level = %q", cfg.Log.Level)
	}
	if cfg.Metrics.Addr != "" {
		t.Fatal("metrics endpoint enabled by default")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strata.yaml")
	data := []byte(`
postgres:
  dsn: postgres://db.internal:5432/app
redis:
  enabled: true
  addr: cache.internal:6379
  ttl_seconds: 30
log:
  level: debug
metrics:
  addr: ":9090"
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Postgres.DSN != "postgres://db.internal:5432/app" {
		t.Fatalf("dsn = %q", cfg.Postgres.DSN)
	}
	if !cfg.Redis.Enabled || cfg.Redis.Addr != "cache.internal:6379" {
		t.Fatalf("redis = %+v", cfg.Redis)
	}
	if cfg.Redis.TTLSeconds != 30 {
		t.Fatalf("ttl_seconds = %d", cfg.Redis.TTLSeconds)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("level = %q", cfg.Log.Level)
	}
	if cfg.Metrics.Addr != ":9090" {
		t.Fatalf("metrics addr = %q", cfg.Metrics.Addr)
	}
	// Unset sections keep their defaults.
	if cfg.Telemetry.Exporter != "otlp-http" {
		t.Fatalf("telemetry = %+v", cfg.Telemetry)
	}
}

func TestLoadFromFileRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("postgres: ["), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Fatal("want parse error")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("STRATA_POSTGRES_DSN", "postgres://env:5432/env")
	t.Setenv("STRATA_REDIS_ADDR", "env-cache:6379")
	t.Setenv("STRATA_LOG_LEVEL", "warn")
	t.Setenv("STRATA_METRICS_ADDR", ":9091")

	cfg := DefaultConfig()
	LoadFromEnv(cfg)
	if cfg.Postgres.DSN != "postgres://env:5432/env" {
		t.Fatalf("dsn = %q", cfg.Postgres.DSN)
	}
	if !cfg.Redis.Enabled || cfg.Redis.Addr != "env-cache:6379" {
		t.Fatalf("redis = %+v", cfg.Redis)
	}
	if cfg.Log.Level != "warn" {
		t.Fatalf("level = %q", cfg.Log.Level)
	}
	if cfg.Metrics.Addr != ":9091" {
		t.Fatalf("metrics addr = %q", cfg.Metrics.Addr)
	}
}
