package api

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
)

// FanOutOption configures All and MapReduce.
type FanOutOption func(*fanOutConfig)

type fanOutConfig struct {
	name        string
	concurrency int
}

// WithConcurrency splits the siblings into sequential batches of at most n
// tasks. n <= 0 runs every sibling in one batch.
func WithConcurrency(n int) FanOutOption {
	return func(c *fanOutConfig) { c.concurrency = n }
}

// WithFanOutName overrides the generated task name.
func WithFanOutName(name string) FanOutOption {
	return func(c *fanOutConfig) { c.name = name }
}

// ReduceFunc folds the per-item deltas of a MapReduce, in input order, into a
// single delta.
type ReduceFunc func(state State, parts []State) (State, error)

// SplitFunc produces one input State per map item.
type SplitFunc func(state State) []State

// All returns a task that runs every task concurrently over its own copy of
// the State and merges the deltas left to right in input order.
//
// The merge order is fixed regardless of completion order, so siblings that
// write disjoint keys always yield the same State. On collision the later
// sibling wins.
func All(tasks []Task, opts ...FanOutOption) *FuncTask {
	cfg := newFanOutConfig(opts)
	if cfg.name == "" {
		names := make([]string, 0, len(tasks))
		for _, t := range tasks {
			names = append(names, t.Meta().Name)
		}
		cfg.name = "all(" + strings.Join(names, ", ") + ")"
	}

	return NewTask(cfg.name, func(ctx context.Context, state State) (Result, error) {
		inputs := make([]State, len(tasks))
		for i := range tasks {
			inputs[i] = state
		}
		parts, err := fanOut(ctx, tasks, inputs, cfg.concurrency)
		if err != nil {
			return Result{}, err
		}
		acc := State{}
		for _, p := range parts {
			acc = Merge(acc, p)
		}
		return Continue(acc), nil
	})
}

// MapReduce returns a task that splits the State into items, runs mapper over
// each item concurrently and folds the deltas with reduce. Each item State is
// merged over the incoming State before mapper sees it. A nil reduce merges
// the deltas left to right.
func MapReduce(split SplitFunc, mapper Task, reduce ReduceFunc, opts ...FanOutOption) *FuncTask {
	cfg := newFanOutConfig(opts)
	if cfg.name == "" {
		cfg.name = "map-reduce(" + mapper.Meta().Name + ")"
	}
	if reduce == nil {
		reduce = mergeParts
	}

	return NewTask(cfg.name, func(ctx context.Context, state State) (Result, error) {
		items := split(state)
		tasks := make([]Task, len(items))
		inputs := make([]State, len(items))
		for i, item := range items {
			tasks[i] = mapper
			inputs[i] = Merge(state, item)
		}
		parts, err := fanOut(ctx, tasks, inputs, cfg.concurrency)
		if err != nil {
			return Result{}, err
		}
		delta, err := reduce(state.Clone(), parts)
		if err != nil {
			return Result{}, err
		}
		return Continue(delta), nil
	})
}

func newFanOutConfig(opts []FanOutOption) fanOutConfig {
	var cfg fanOutConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func mergeParts(_ State, parts []State) (State, error) {
	acc := State{}
	for _, p := range parts {
		acc = Merge(acc, p)
	}
	return acc, nil
}

// fanOut runs tasks[i] over inputs[i] in batches and returns the deltas in
// input order. When a batch fails, the error of its lowest-index failing
// sibling is returned and later batches are not started.
func fanOut(ctx context.Context, tasks []Task, inputs []State, batch int) ([]State, error) {
	if batch <= 0 || batch > len(tasks) {
		batch = len(tasks)
	}
	parts := make([]State, len(tasks))
	errs := make([]error, len(tasks))

	for lo := 0; lo < len(tasks); lo += batch {
		hi := min(lo+batch, len(tasks))

		var g errgroup.Group
		for i := lo; i < hi; i++ {
			g.Go(func() error {
				res, err := tasks[i].Call(ctx, inputs[i].Clone())
				switch {
				case err != nil:
					errs[i] = err
				case res.IsJump():
					errs[i] = fmt.Errorf("task %q: %w (target %q)", tasks[i].Meta().Name, ErrJumpInFanOut, res.Target)
				default:
					parts[i] = res.Delta
				}
				return errs[i]
			})
		}
		if g.Wait() != nil {
			for i := lo; i < hi; i++ {
				if errs[i] != nil {
					return nil, errs[i]
				}
			}
		}
	}
	return parts, nil
}
