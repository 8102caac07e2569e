package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoadFrom_Valid(t *testing.T) {
	p := writeConfig(t, `server:
  host: "127.0.0.1"
  port: ":9000"
engine:
  path: "/usr/local/bin/wireviz"
  timeout_secs: 15
cache:
  redis_host: "localhost:6379"
  render_cache_enabled: true
  render_cache_ttl: 1h
rate_limiter:
  interval: 1m
  user_limit: 20
  enable_user_limiter: true
`)
	cfg := LoadFrom(p)
	if cfg.Server.Port != ":9000" {
		t.Fatalf("unexpected port: %q", cfg.Server.Port)
	}
	if cfg.Engine.Path != "/usr/local/bin/wireviz" {
		t.Fatalf("unexpected engine path: %q", cfg.Engine.Path)
	}
	if cfg.Engine.TimeoutSecs != 15 {
		t.Fatalf("unexpected timeout: %d", cfg.Engine.TimeoutSecs)
	}
	if cfg.Cache.RenderCacheTTL.Std() != time.Hour {
		t.Fatalf("unexpected ttl: %v", cfg.Cache.RenderCacheTTL.Std())
	}
	if cfg.RateLimiter.UserLimit != 20 {
		t.Fatalf("unexpected user_limit: %d", cfg.RateLimiter.UserLimit)
	}
}

func TestLoadFrom_FillsDefaults(t *testing.T) {
	p := writeConfig(t, `server:
  prefork: false
`)
	cfg := LoadFrom(p)
	if cfg.Server.Port != ":3005" {
		t.Fatalf("expected default port, got %q", cfg.Server.Port)
	}
	if cfg.Engine.Path != "wireviz" {
		t.Fatalf("expected default engine path, got %q", cfg.Engine.Path)
	}
	if cfg.Engine.TimeoutSecs != 60 {
		t.Fatalf("expected default timeout, got %d", cfg.Engine.TimeoutSecs)
	}
	if cfg.Limits.MaxYAMLBytes != 1<<20 {
		t.Fatalf("expected default yaml limit, got %d", cfg.Limits.MaxYAMLBytes)
	}
	if cfg.Logger.Level != "info" {
		t.Fatalf("expected default log level, got %q", cfg.Logger.Level)
	}
	if cfg.RateLimiter.Interval.Std() != time.Minute {
		t.Fatalf("expected default rate interval, got %v", cfg.RateLimiter.Interval.Std())
	}
}

func TestLoadFrom_PanicsOnInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		yml  string
	}{
		{name: "negative user limit", yml: "rate_limiter:\n  user_limit: -1\n"},
		{name: "auth without postgres", yml: "auth:\n  enabled: true\n"},
		{name: "broken duration", yml: "cache:\n  render_cache_ttl: nonsense\n"},
		{name: "not yaml at all", yml: "{{{"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := writeConfig(t, tc.yml)
			defer func() {
				if recover() == nil {
					t.Fatalf("expected panic")
				}
			}()
			_ = LoadFrom(p)
		})
	}
}

func TestLoad_UsesConfigPathEnv(t *testing.T) {
	p := writeConfig(t, `server:
  port: ":7777"
`)
	t.Setenv("CONFIG_PATH", p)
	cfg := Load()
	if cfg.Server.Port != ":7777" {
		t.Fatalf("expected CONFIG_PATH to be used")
	}
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	cfg := Load()
	if cfg.Server.Port != ":3005" || cfg.Engine.Path != "wireviz" {
		t.Fatalf("expected defaults, got %+v", cfg.Server)
	}
}
