package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the orchestrator's ambient settings: where to store job
// state, how to reach the HTTP surface, and the per-tenant deadlines the
// Dispatcher enforces.
type Config struct {
	RedisURL       string `yaml:"redis_url"`
	HTTPAddr       string `yaml:"http_addr"`
	JSON           bool   `yaml:"json"`
	CallbackFile   string `yaml:"callback_file"`
	SoftTimeoutSec int    `yaml:"soft_timeout_sec"`
	HardTimeoutSec int    `yaml:"hard_timeout_sec"`
}

func Default() *Config {
	return &Config{
		RedisURL:       "redis://localhost:6379/0",
		HTTPAddr:       ":8000",
		SoftTimeoutSec: 3600,
		HardTimeoutSec: 3900,
	}
}

func LoadYAML(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// MergeEnv overlays environment variables on top of cfg, following the
// precedence the CLI expects: flags override env, env overrides YAML.
func MergeEnv(cfg *Config) *Config {
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
	if v := os.Getenv("MIGRATE_ORCH_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("SIMPLY_MIGRATE_CALLBACK_FILE"); v != "" {
		cfg.CallbackFile = v
	}
	return cfg
}

func (c *Config) SoftTimeout() time.Duration {
	if c.SoftTimeoutSec <= 0 {
		return 3600 * time.Second
	}
	return time.Duration(c.SoftTimeoutSec) * time.Second
}

func (c *Config) HardTimeout() time.Duration {
	if c.HardTimeoutSec <= 0 {
		return 3900 * time.Second
	}
	return time.Duration(c.HardTimeoutSec) * time.Second
}
