package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type AppConfig struct {
	HTTPAddr string
	WSAddr   string

	RedisURL    string
	DatabaseURL string

	MatchInterval  time.Duration
	SweepInterval  time.Duration
	SessionTimeout time.Duration
	RematchTimeout time.Duration
}

// fileConfig is the YAML shape. Durations are strings so both "90" (seconds)
// and "1h30m" work.
type fileConfig struct {
	HTTPAddr       string `yaml:"http_addr"`
	WSAddr         string `yaml:"ws_addr"`
	RedisURL       string `yaml:"redis_url"`
	DatabaseURL    string `yaml:"database_url"`
	MatchInterval  string `yaml:"match_interval"`
	SweepInterval  string `yaml:"sweep_interval"`
	SessionTimeout string `yaml:"session_timeout"`
	RematchTimeout string `yaml:"rematch_timeout"`
}

// Load builds the runtime configuration. An optional YAML file named by
// CONFIG_FILE is read first; environment variables override it.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		HTTPAddr:       ":8080",
		WSAddr:         ":8081",
		MatchInterval:  5 * time.Second,
		SweepInterval:  time.Minute,
		SessionTimeout: 30 * time.Minute,
		RematchTimeout: 2 * time.Minute,
	}

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if v := strings.TrimSpace(os.Getenv("HTTP_ADDR")); v != "" {
		cfg.HTTPAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("WS_ADDR")); v != "" {
		cfg.WSAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_URL")); v != "" {
		cfg.RedisURL = v
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		cfg.DatabaseURL = v
	}

	for _, d := range []struct {
		name string
		dst  *time.Duration
	}{
		{"MATCH_INTERVAL", &cfg.MatchInterval},
		{"SWEEP_INTERVAL", &cfg.SweepInterval},
		{"SESSION_TIMEOUT", &cfg.SessionTimeout},
		{"REMATCH_TIMEOUT", &cfg.RematchTimeout},
	} {
		if err := applyDuration(d.name, os.Getenv(d.name), d.dst); err != nil {
			return nil, err
		}
	}

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}

	return cfg, nil
}

func applyFile(cfg *AppConfig, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	if fc.HTTPAddr != "" {
		cfg.HTTPAddr = fc.HTTPAddr
	}
	if fc.WSAddr != "" {
		cfg.WSAddr = fc.WSAddr
	}
	if fc.RedisURL != "" {
		cfg.RedisURL = fc.RedisURL
	}
	if fc.DatabaseURL != "" {
		cfg.DatabaseURL = fc.DatabaseURL
	}
	for _, d := range []struct {
		name string
		v    string
		dst  *time.Duration
	}{
		{"match_interval", fc.MatchInterval, &cfg.MatchInterval},
		{"sweep_interval", fc.SweepInterval, &cfg.SweepInterval},
		{"session_timeout", fc.SessionTimeout, &cfg.SessionTimeout},
		{"rematch_timeout", fc.RematchTimeout, &cfg.RematchTimeout},
	} {
		if err := applyDuration(d.name, d.v, d.dst); err != nil {
			return err
		}
	}
	return nil
}

// applyDuration accepts plain integers as seconds or any time.ParseDuration
// string. Empty input keeps the current value.
func applyDuration(name, v string, dst *time.Duration) error {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		*dst = time.Duration(n) * time.Second
		return nil
	}
	dur, err := time.ParseDuration(v)
	if err != nil || dur <= 0 {
		return fmt.Errorf("%s: invalid duration %q", name, v)
	}
	*dst = dur
	return nil
}
