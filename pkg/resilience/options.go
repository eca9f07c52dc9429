package resilience

import (
	"io"
	"log/slog"
)

// Option configures a resilience wrapper.
type Option func(*config)

type config struct {
	logger *slog.Logger
}

// WithLogger routes the wrapper's diagnostics to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func newConfig(opts []Option) config {
	c := config{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
