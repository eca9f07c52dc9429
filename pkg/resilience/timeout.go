package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/petrijr/taskflow/pkg/api"
)

// ErrTimeout is returned by a Timeout wrapper whose deadline fired before
// the wrapped task returned.
var ErrTimeout = errors.New("task timed out")

// Timeout returns a task that races task against a deadline of d. When the
// deadline fires first the call fails with ErrTimeout, which also matches
// context.DeadlineExceeded; it is an ordinary task failure and composes with
// Retry and Recover. The wrapped task sees the deadline through its context.
func Timeout(task api.Task, d time.Duration) *api.FuncTask {
	meta := task.Meta()

	type outcome struct {
		res api.Result
		err error
	}

	return api.NewTask(meta.Name, func(ctx context.Context, state api.State) (api.Result, error) {
		if d <= 0 {
			return task.Call(ctx, state)
		}
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()

		done := make(chan outcome, 1)
		go func() {
			res, err := task.Call(ctx, state)
			done <- outcome{res: res, err: err}
		}()

		select {
		case o := <-done:
			return o.res, o.err
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return api.Result{}, fmt.Errorf("task %q: %w after %v: %w", meta.Name, ErrTimeout, d, ctx.Err())
			}
			return api.Result{}, ctx.Err()
		}
	}, api.WithMetadata(meta))
}
