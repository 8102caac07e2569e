// Package config loads the service configuration from a YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration parses YAML scalars like "30s" or "1m" into a time.Duration.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	v, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(v)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// PostgresConfig describes the connection to the API-token database.
// Host may alternatively carry a full postgres:// DSN.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// Config is the full service configuration.
type Config struct {
	Server struct {
		Host    string `yaml:"host"`
		Port    string `yaml:"port"`
		Prefork bool   `yaml:"prefork"`
	} `yaml:"server"`
	Logger struct {
		File       string `yaml:"file"`
		Level      string `yaml:"level"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"logger"`
	Engine struct {
		// Path is the wireviz binary; a bare name is resolved via PATH.
		Path        string `yaml:"path"`
		TimeoutSecs int    `yaml:"timeout_secs"`
		// WorkDir is the base for per-render scratch directories; empty
		// means the operating system's temp directory.
		WorkDir string `yaml:"work_dir"`
	} `yaml:"engine"`
	Limits struct {
		MaxBodyBytes     int `yaml:"max_body_bytes"`
		MaxYAMLBytes     int `yaml:"max_yaml_bytes"`
		MaxArtifactBytes int `yaml:"max_artifact_bytes"`
	} `yaml:"limits"`
	Cache struct {
		RedisHost          string   `yaml:"redis_host"`
		RenderCacheDB      int      `yaml:"render_cache_db"`
		RateLimitDB        int      `yaml:"rate_limit_db"`
		RenderCacheEnabled bool     `yaml:"render_cache_enabled"`
		RenderCacheTTL     Duration `yaml:"render_cache_ttl"`
	} `yaml:"cache"`
	Auth struct {
		Enabled             bool           `yaml:"enabled"`
		Postgres            PostgresConfig `yaml:"postgres"`
		TokenReloadInterval Duration       `yaml:"token_reload_interval"`
	} `yaml:"auth"`
	RateLimiter struct {
		Interval               Duration `yaml:"interval"`
		UserLimit              int      `yaml:"user_limit"`
		EnableUserLimiter      bool     `yaml:"enable_user_limiter"`
		EnableTokenRateLimiter bool     `yaml:"enable_token_rate_limiter"`
	} `yaml:"rate_limiter"`
}

// Load reads the configuration from CONFIG_PATH (default "config.yaml").
// A missing file yields the built-in defaults.
func Load() Config {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if _, err := os.Stat(path); err != nil {
		var cfg Config
		applyDefaults(&cfg)
		return cfg
	}
	return LoadFrom(path)
}

// LoadFrom reads and validates the configuration file at path. A broken
// config is a deployment mistake, so it panics rather than limping along
// with a half-applied file.
func LoadFrom(path string) Config {
	raw, err := os.ReadFile(path)
	if err != nil {
		panic(fmt.Sprintf("config: read %s: %v", path, err))
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		panic(fmt.Sprintf("config: parse %s: %v", path, err))
	}
	applyDefaults(&cfg)
	validate(&cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = ":3005"
	}
	if cfg.Logger.Level == "" {
		cfg.Logger.Level = "info"
	}
	if cfg.Engine.Path == "" {
		cfg.Engine.Path = "wireviz"
	}
	if cfg.Engine.TimeoutSecs <= 0 {
		cfg.Engine.TimeoutSecs = 60
	}
	if cfg.Limits.MaxBodyBytes <= 0 {
		cfg.Limits.MaxBodyBytes = 32 << 20
	}
	if cfg.Limits.MaxYAMLBytes <= 0 {
		cfg.Limits.MaxYAMLBytes = 1 << 20
	}
	if cfg.Limits.MaxArtifactBytes <= 0 {
		cfg.Limits.MaxArtifactBytes = 64 << 20
	}
	if cfg.Cache.RenderCacheTTL <= 0 {
		cfg.Cache.RenderCacheTTL = Duration(24 * time.Hour)
	}
	if cfg.RateLimiter.Interval <= 0 {
		cfg.RateLimiter.Interval = Duration(time.Minute)
	}
	if cfg.Auth.TokenReloadInterval <= 0 {
		cfg.Auth.TokenReloadInterval = Duration(time.Minute)
	}
}

func validate(cfg *Config) {
	if cfg.RateLimiter.UserLimit < 0 {
		panic("config: rate_limiter.user_limit must not be negative")
	}
	if cfg.Auth.Enabled && cfg.Auth.Postgres.Host == "" {
		panic("config: auth.enabled requires auth.postgres.host")
	}
}
