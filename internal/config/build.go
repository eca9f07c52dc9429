package config

import (
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"

	"github.com/petrijr/taskflow/internal/persistence"
	"github.com/petrijr/taskflow/pkg/api"
	"github.com/petrijr/taskflow/pkg/resilience"
)

func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log: %w", err)
	}
	return lvl, nil
}

// Logger builds a slog.Logger writing to w in the configured format and
// level.
func (c Config) Logger(w io.Writer) *slog.Logger {
	lvl, err := parseLevel(c.Log.Level)
	if err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// RetryPolicy returns the configured retry policy.
func (c Config) RetryPolicy() resilience.RetryPolicy {
	return resilience.RetryPolicy{
		MaxAttempts:       c.Retry.MaxAttempts,
		InitialBackoff:    c.Retry.InitialBackoff,
		BackoffMultiplier: c.Retry.Multiplier,
		MaxBackoff:        c.Retry.MaxBackoff,
	}
}

// RateLimiter returns a limiter holding every configured provider.
func (c Config) RateLimiter() *resilience.RateLimiter {
	limits := make(map[string]resilience.Limits, len(c.RateLimits))
	for provider, l := range c.RateLimits {
		limits[provider] = resilience.Limits{
			RequestsPerMinute: l.RequestsPerMinute,
			TokensPerMinute:   l.TokensPerMinute,
		}
	}
	return resilience.NewRateLimiter(limits)
}

// FanOutOptions returns the options All and MapReduce should get.
func (c Config) FanOutOptions() []api.FanOutOption {
	if c.Engine.FanOutConcurrency <= 0 {
		return nil
	}
	return []api.FanOutOption{api.WithConcurrency(c.Engine.FanOutConcurrency)}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenStore opens the configured run store. The returned Closer releases
// the underlying connection.
func (c Config) OpenStore() (persistence.RunStore, io.Closer, error) {
	switch c.Store.Driver {
	case DriverMemory, "":
		return persistence.NewInMemoryStore(), nopCloser{}, nil

	case DriverSQLite:
		db, err := sql.Open("sqlite", c.Store.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("store: open sqlite: %w", err)
		}
		if strings.Contains(c.Store.DSN, ":memory:") {
			db.SetMaxOpenConns(1)
		}
		store, err := persistence.NewSQLiteRunStore(db)
		if err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("store: init sqlite: %w", err)
		}
		return store, db, nil

	case DriverRedis:
		opts, err := redisOptions(c.Store.DSN)
		if err != nil {
			return nil, nil, err
		}
		client := redis.NewClient(opts)
		return persistence.NewRedisRunStore(client, c.Store.Prefix), client, nil

	default:
		return nil, nil, fmt.Errorf("store: unknown driver %q", c.Store.Driver)
	}
}

func redisOptions(dsn string) (*redis.Options, error) {
	if strings.HasPrefix(dsn, "redis://") || strings.HasPrefix(dsn, "rediss://") {
		opts, err := redis.ParseURL(dsn)
		if err != nil {
			return nil, fmt.Errorf("store: parse redis url: %w", err)
		}
		return opts, nil
	}
	return &redis.Options{Addr: dsn}, nil
}
