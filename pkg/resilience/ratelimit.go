package resilience

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/petrijr/taskflow/pkg/api"
)

// Limits are the per-provider ceilings of a RateLimiter. Zero means
// unlimited for that dimension.
type Limits struct {
	RequestsPerMinute int
	TokensPerMinute   int
}

// TokenEstimator returns the number of tokens a call over state will
// consume. A nil estimator charges no tokens.
type TokenEstimator func(state api.State) int

type buckets struct {
	requests *rate.Limiter
	tokens   *rate.Limiter
}

func newBuckets(l Limits) *buckets {
	return &buckets{
		requests: perMinute(l.RequestsPerMinute),
		tokens:   perMinute(l.TokensPerMinute),
	}
}

// perMinute builds a token bucket refilled at n per minute with a burst of
// one minute's worth.
func perMinute(n int) *rate.Limiter {
	if n <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), n)
}

// RateLimiter holds independent request and token buckets per provider.
// Callers over either limit wait for capacity instead of failing.
// It is safe for concurrent use.
type RateLimiter struct {
	mu      sync.Mutex
	limits  map[string]Limits
	buckets map[string]*buckets
}

// NewRateLimiter creates a limiter with the given per-provider limits.
// Providers without an entry are unlimited.
func NewRateLimiter(limits map[string]Limits) *RateLimiter {
	l := &RateLimiter{
		limits:  make(map[string]Limits, len(limits)),
		buckets: make(map[string]*buckets, len(limits)),
	}
	for provider, lim := range limits {
		l.limits[provider] = lim
	}
	return l
}

// SetLimits replaces the limits for provider. Its buckets restart full.
func (l *RateLimiter) SetLimits(provider string, lim Limits) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limits[provider] = lim
	delete(l.buckets, provider)
}

// Limits returns the configured limits for provider.
func (l *RateLimiter) Limits(provider string) (Limits, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limits[provider]
	return lim, ok
}

func (l *RateLimiter) bucketsFor(provider string) *buckets {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[provider]
	if !ok {
		b = newBuckets(l.limits[provider])
		l.buckets[provider] = b
	}
	return b
}

// Wait blocks until provider has capacity for one request consuming tokens
// tokens, or ctx is done. A request larger than a whole minute's token
// budget waits for a full bucket.
func (l *RateLimiter) Wait(ctx context.Context, provider string, tokens int) error {
	b := l.bucketsFor(provider)
	if err := b.requests.Wait(ctx); err != nil {
		return err
	}
	if tokens <= 0 {
		return nil
	}
	if burst := b.tokens.Burst(); burst > 0 && tokens > burst {
		tokens = burst
	}
	return b.tokens.WaitN(ctx, tokens)
}

// RateLimit returns a task that waits on limiter for provider before every
// call to task. The returned task carries the wrapped task's metadata.
func RateLimit(task api.Task, limiter *RateLimiter, provider string, estimate TokenEstimator, opts ...Option) *api.FuncTask {
	cfg := newConfig(opts)
	meta := task.Meta()

	return api.NewTask(meta.Name, func(ctx context.Context, state api.State) (api.Result, error) {
		tokens := 0
		if estimate != nil {
			tokens = estimate(state)
		}

		start := time.Now()
		if err := limiter.Wait(ctx, provider, tokens); err != nil {
			return api.Result{}, err
		}
		if waited := time.Since(start); waited > time.Millisecond {
			cfg.logger.DebugContext(ctx, "rate_limited",
				slog.String("task", meta.Name),
				slog.String("provider", provider),
				slog.Int("tokens", tokens),
				slog.Duration("waited", waited),
			)
		}
		return task.Call(ctx, state)
	}, api.WithMetadata(meta))
}
