package taskflow

import (
	"time"

	"github.com/petrijr/taskflow/pkg/api"
	"github.com/petrijr/taskflow/pkg/resilience"
)

// Task constructors and result helpers.

var (
	NewTask      = api.NewTask
	NewDeltaTask = api.NewDeltaTask

	WithDescription    = api.WithDescription
	WithParam          = api.WithParam
	WithCredentials    = api.WithCredentials
	WithMaxInvocations = api.WithMaxInvocations
	WithParamCheck     = api.WithParamCheck

	Continue = api.Continue
	Outcome  = api.Outcome
	Jump     = api.Jump
	JumpWith = api.JumpWith
	Merge    = api.Merge

	WithConcurrency = api.WithConcurrency
	WithFanOutName  = api.WithFanOutName
)

// Sequence runs tasks in order, each over the State left by the ones
// before it.
func Sequence(tasks ...Task) *FuncTask {
	return api.Sequence(tasks...)
}

// Branch runs a, then onTrue or onFalse depending on cond.
func Branch(a Task, cond ConditionFunc, onTrue, onFalse Task) *FuncTask {
	return api.Branch(a, cond, onTrue, onFalse)
}

// Switch runs a, then the case picked by selector, falling back to def.
func Switch(a Task, selector SelectorFunc, cases map[string]Task, def Task) *FuncTask {
	return api.Switch(a, selector, cases, def)
}

// Recover turns a failure of a into the State returned by handler.
func Recover(a Task, handler RecoverFunc) *FuncTask {
	return api.Recover(a, handler)
}

// JumpTo always jumps to segment.
func JumpTo(segment string) *FuncTask {
	return api.JumpTo(segment)
}

// JumpIf jumps to segment when cond holds.
func JumpIf(cond ConditionFunc, segment string) *FuncTask {
	return api.JumpIf(cond, segment)
}

// All runs tasks concurrently and merges their deltas in input order.
func All(tasks []Task, opts ...FanOutOption) *FuncTask {
	return api.All(tasks, opts...)
}

// MapReduce runs mapper over every item produced by split and folds the
// deltas with reduce.
func MapReduce(split SplitFunc, mapper Task, reduce ReduceFunc, opts ...FanOutOption) *FuncTask {
	return api.MapReduce(split, mapper, reduce, opts...)
}

// Resilience wrappers.

type (
	RateLimiter    = resilience.RateLimiter
	Limits         = resilience.Limits
	TokenEstimator = resilience.TokenEstimator
)

var ErrTimeout = resilience.ErrTimeout

// WithRetry returns task retried per policy.
func WithRetry(task Task, policy RetryPolicy, opts ...resilience.Option) *FuncTask {
	return resilience.Retry(task, policy, opts...)
}

// WithTimeout fails task with ErrTimeout when it runs longer than d.
func WithTimeout(task Task, d time.Duration) *FuncTask {
	return resilience.Timeout(task, d)
}

// NewRateLimiter returns a limiter with per-provider ceilings.
func NewRateLimiter(limits map[string]Limits) *RateLimiter {
	return resilience.NewRateLimiter(limits)
}

// RateLimited suspends each call of task until limiter admits it for
// provider, charging the tokens estimated by estimate.
func RateLimited(task Task, limiter *RateLimiter, provider string, estimate TokenEstimator) *FuncTask {
	return resilience.RateLimit(task, limiter, provider, estimate)
}
