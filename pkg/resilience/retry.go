package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/petrijr/taskflow/pkg/api"
)

// RetryPolicy controls how a task is retried when it fails.
// MaxAttempts includes the first attempt. For example:
//
//	MaxAttempts = 1 => no retries (just the initial call)
//	MaxAttempts = 3 => initial call + up to 2 retries
//
// The delay after the n-th failed attempt is
// InitialBackoff * BackoffMultiplier^(n-1), capped at MaxBackoff.
type RetryPolicy struct {
	MaxAttempts int

	// InitialBackoff is the delay before the first retry. Zero retries
	// immediately.
	InitialBackoff time.Duration

	// BackoffMultiplier grows the delay per attempt. Values <= 0 mean 2.
	BackoffMultiplier float64

	// MaxBackoff caps the delay. Zero means no cap.
	MaxBackoff time.Duration

	// ShouldRetry, if set, gates each retry. attempt is the 1-based number
	// of the attempt that just failed.
	ShouldRetry func(err error, attempt int) bool

	// Validate, if set, inspects each successful result. A non-nil error
	// counts as a failed attempt; if the last attempt is rejected the call
	// fails with api.ErrValidationFailed.
	Validate func(res api.Result) error
}

// Delay returns the wait after the given 1-based failed attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if p.InitialBackoff <= 0 || attempt < 1 {
		return 0
	}
	mult := p.BackoffMultiplier
	if mult <= 0 {
		mult = 2.0
	}
	d := float64(p.InitialBackoff) * math.Pow(mult, float64(attempt-1))
	if p.MaxBackoff > 0 && d > float64(p.MaxBackoff) {
		return p.MaxBackoff
	}
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts <= 0 {
		return 1
	}
	return p.MaxAttempts
}

// attemptResult is the outcome of one attempt. Exactly one of err and
// invalid is set when the attempt failed.
type attemptResult struct {
	res     api.Result
	err     error
	invalid error
}

func (a attemptResult) failed() bool {
	return a.err != nil || a.invalid != nil
}

func (a attemptResult) cause() error {
	if a.err != nil {
		return a.err
	}
	return a.invalid
}

func runAttempt(ctx context.Context, task api.Task, state api.State, validate func(api.Result) error) attemptResult {
	res, err := task.Call(ctx, state)
	if err != nil {
		return attemptResult{err: err}
	}
	if validate != nil {
		if verr := validate(res); verr != nil {
			return attemptResult{res: res, invalid: verr}
		}
	}
	return attemptResult{res: res}
}

// Retry returns a task that calls task according to policy.
//
// After the last attempt the underlying error is returned unchanged, so
// callers can match it with errors.Is/As. The returned task carries the
// wrapped task's metadata.
func Retry(task api.Task, policy RetryPolicy, opts ...Option) *api.FuncTask {
	cfg := newConfig(opts)
	meta := task.Meta()
	maxAttempts := policy.attempts()

	return api.NewTask(meta.Name, func(ctx context.Context, state api.State) (api.Result, error) {
		var last attemptResult
		for attempt := 1; ; attempt++ {
			if err := ctx.Err(); err != nil {
				return api.Result{}, err
			}

			last = runAttempt(ctx, task, state, policy.Validate)
			if !last.failed() {
				if attempt > 1 {
					cfg.logger.DebugContext(ctx, "retry_succeeded",
						slog.String("task", meta.Name),
						slog.Int("attempt", attempt),
					)
				}
				return last.res, nil
			}

			if attempt >= maxAttempts {
				break
			}
			if policy.ShouldRetry != nil && !policy.ShouldRetry(last.cause(), attempt) {
				break
			}

			delay := policy.Delay(attempt)
			cfg.logger.DebugContext(ctx, "retry_attempt_failed",
				slog.String("task", meta.Name),
				slog.Int("attempt", attempt),
				slog.Duration("backoff", delay),
				slog.Any("error", last.cause()),
			)
			if err := sleep(ctx, delay); err != nil {
				return api.Result{}, err
			}
		}

		cfg.logger.WarnContext(ctx, "retry_exhausted",
			slog.String("task", meta.Name),
			slog.Int("max_attempts", maxAttempts),
			slog.Any("error", last.cause()),
		)
		if last.err != nil {
			return api.Result{}, last.err
		}
		return api.Result{}, fmt.Errorf("task %q: %w: %w", meta.Name, api.ErrValidationFailed, last.invalid)
	}, api.WithMetadata(meta))
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
