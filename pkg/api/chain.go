package api

import (
	"context"
	"strings"
)

// ConditionFunc decides a branch based on the merged State.
type ConditionFunc func(state State) bool

// SelectorFunc selects a switch case based on the merged State.
type SelectorFunc func(state State) string

// RecoverFunc turns a task failure into a delta. It receives the exact error
// returned by the task and the State the task was called with.
type RecoverFunc func(ctx context.Context, err error, state State) (State, error)

// follow runs next over state merged with prev, and folds both deltas into
// the returned result. A jump from next is returned with the folded delta.
func follow(ctx context.Context, prev Result, state State, next Task) (Result, error) {
	res, err := next.Call(ctx, prev.Apply(state))
	if err != nil {
		return Result{}, err
	}
	combined := Merge(prev.Delta, res.Delta)
	if res.IsJump() {
		return JumpWith(res.Target, combined), nil
	}
	return Outcome(res.Outcome, combined), nil
}

// Sequence returns a task that runs tasks in order, each over the State
// produced by the ones before it.
//
// The composite's delta is the ordered merge of every task's delta, so the
// caller observes the same State as if it had merged after each task. A
// jump from any task stops the sequence and is returned with the deltas
// accumulated so far.
func Sequence(tasks ...Task) *FuncTask {
	names := make([]string, 0, len(tasks))
	for _, t := range tasks {
		names = append(names, t.Meta().Name)
	}
	return NewTask(strings.Join(names, " > "), func(ctx context.Context, state State) (Result, error) {
		res := Continue(State{})
		for _, t := range tasks {
			var err error
			res, err = follow(ctx, res, state, t)
			if err != nil {
				return Result{}, err
			}
			if res.IsJump() {
				return res, nil
			}
		}
		return res, nil
	})
}

// Branch returns a task that runs a, then onTrue if cond holds for the
// merged State and onFalse otherwise. A nil arm passes the State through.
// The untaken arm is never called.
func Branch(a Task, cond ConditionFunc, onTrue, onFalse Task) *FuncTask {
	return NewTask("branch("+a.Meta().Name+")", func(ctx context.Context, state State) (Result, error) {
		res, err := a.Call(ctx, state)
		if err != nil || res.IsJump() {
			return res, err
		}
		arm := onFalse
		if cond(res.Apply(state)) {
			arm = onTrue
		}
		if arm == nil {
			return res, nil
		}
		return follow(ctx, res, state, arm)
	})
}

// Switch returns a task that runs a, evaluates selector over the merged
// State and runs the matching case. Unknown selector values fall back to
// def; with no default either, a's result is returned unchanged.
func Switch(a Task, selector SelectorFunc, cases map[string]Task, def Task) *FuncTask {
	return NewTask("switch("+a.Meta().Name+")", func(ctx context.Context, state State) (Result, error) {
		res, err := a.Call(ctx, state)
		if err != nil || res.IsJump() {
			return res, err
		}
		next, ok := cases[selector(res.Apply(state))]
		if !ok || next == nil {
			next = def
		}
		if next == nil {
			return res, nil
		}
		return follow(ctx, res, state, next)
	})
}

// Recover returns a task that runs a and, if it fails, calls handler with
// the error and the State a was given. The handler's State becomes the
// delta; only an error from the handler itself propagates.
func Recover(a Task, handler RecoverFunc) *FuncTask {
	return NewTask("recover("+a.Meta().Name+")", func(ctx context.Context, state State) (Result, error) {
		res, err := a.Call(ctx, state)
		if err == nil {
			return res, nil
		}
		delta, herr := handler(ctx, err, state.Clone())
		if herr != nil {
			return Result{}, herr
		}
		return Continue(delta), nil
	})
}

// JumpTo returns a task that always jumps to the named segment.
func JumpTo(segment string) *FuncTask {
	return NewTask("jump:"+segment, func(ctx context.Context, state State) (Result, error) {
		return Jump(segment), nil
	})
}

// JumpIf returns a task that jumps to segment when cond holds and otherwise
// passes the State through unchanged.
func JumpIf(cond ConditionFunc, segment string) *FuncTask {
	return NewTask("jump-if:"+segment, func(ctx context.Context, state State) (Result, error) {
		if cond(state) {
			return Jump(segment), nil
		}
		return Continue(nil), nil
	})
}
