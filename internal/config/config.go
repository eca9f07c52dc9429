// Package config loads taskflow settings from YAML and turns them into
// engines, stores, loggers and resilience policies.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Config is the root of a taskflow YAML file.
type Config struct {
	Engine     EngineConfig               `yaml:"engine"`
	Retry      RetryConfig                `yaml:"retry"`
	RateLimits map[string]RateLimitConfig `yaml:"rate_limits"`
	Store      StoreConfig                `yaml:"store"`
	Log        LogConfig                  `yaml:"log"`
}

type EngineConfig struct {
	// StepBudget applies to flows that declare none.
	StepBudget int `yaml:"step_budget"`
	// FanOutConcurrency bounds All/MapReduce batches built from config.
	// Zero means unbounded.
	FanOutConcurrency int `yaml:"fanout_concurrency"`
}

type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	Multiplier     float64       `yaml:"multiplier"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	TokensPerMinute   int `yaml:"tokens_per_minute"`
}

type StoreConfig struct {
	Driver string `yaml:"driver"`
	// DSN is a SQLite data source name or a Redis address / redis:// URL.
	DSN    string `yaml:"dsn"`
	Prefix string `yaml:"prefix"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the settings used for anything a file leaves out.
func Default() Config {
	return Config{
		Engine: EngineConfig{
			StepBudget: 1000,
		},
		Retry: RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: 100 * time.Millisecond,
			Multiplier:     2,
			MaxBackoff:     5 * time.Second,
		},
		Store: StoreConfig{
			Driver: DriverMemory,
			Prefix: "taskflow:",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path and parses it. A missing file yields the defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML, fills unset fields from Default and validates the
// result.
func Parse(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	if err := mergo.Merge(&cfg, Default()); err != nil {
		return Config{}, err
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite, DriverRedis:
		if c.Store.DSN == "" {
			return fmt.Errorf("store: driver %q requires a dsn", c.Store.Driver)
		}
	default:
		return fmt.Errorf("store: unknown driver %q", c.Store.Driver)
	}

	if c.Engine.StepBudget < 0 {
		return fmt.Errorf("engine: step_budget must not be negative, got %d", c.Engine.StepBudget)
	}
	if c.Engine.FanOutConcurrency < 0 {
		return fmt.Errorf("engine: fanout_concurrency must not be negative, got %d", c.Engine.FanOutConcurrency)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry: max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	for provider, l := range c.RateLimits {
		if l.RequestsPerMinute < 0 || l.TokensPerMinute < 0 {
			return fmt.Errorf("rate_limits: %s: limits must not be negative", provider)
		}
	}

	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log: unknown format %q", c.Log.Format)
	}
	return nil
}
