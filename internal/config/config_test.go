package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsAndRequired(t *testing.T) {
	t.Setenv("REDIS_URL", "")
	t.Setenv("DATABASE_URL", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error without REDIS_URL")
	}

	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("DATABASE_URL", "postgres://localhost/games")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.WSAddr != ":8081" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.MatchInterval != 5*time.Second || cfg.SessionTimeout != 30*time.Minute {
		t.Fatalf("unexpected interval defaults %+v", cfg)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("DATABASE_URL", "postgres://localhost/games")
	t.Setenv("MATCH_INTERVAL", "10")
	t.Setenv("SESSION_TIMEOUT", "1h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MatchInterval != 10*time.Second {
		t.Fatalf("integer seconds: got %v", cfg.MatchInterval)
	}
	if cfg.SessionTimeout != time.Hour {
		t.Fatalf("duration string: got %v", cfg.SessionTimeout)
	}

	t.Setenv("SWEEP_INTERVAL", "bogus")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for invalid duration")
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "http_addr: \":9090\"\nredis_url: \"redis://file:6379\"\ndatabase_url: \"postgres://file/games\"\nmatch_interval: 7s\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("REDIS_URL", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("HTTP_ADDR", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9090" || cfg.RedisURL != "redis://file:6379" {
		t.Fatalf("yaml not applied: %+v", cfg)
	}
	if cfg.MatchInterval != 7*time.Second {
		t.Fatalf("yaml duration: got %v", cfg.MatchInterval)
	}
}
