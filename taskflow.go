package taskflow

import (
	"context"
	"database/sql"
	"io"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/petrijr/taskflow/internal/config"
	"github.com/petrijr/taskflow/internal/engine"
	"github.com/petrijr/taskflow/internal/taskqueue"
	"github.com/petrijr/taskflow/pkg/api"
)

// Re-export key types so users don't need to dig into pkg/api.

type (
	State                = api.State
	Result               = api.Result
	Task                 = api.Task
	FuncTask             = api.FuncTask
	TaskFunc             = api.TaskFunc
	DeltaFunc            = api.DeltaFunc
	TaskOption           = api.TaskOption
	Metadata             = api.Metadata
	Param                = api.Param
	Stats                = api.Stats
	ConditionFunc        = api.ConditionFunc
	SelectorFunc         = api.SelectorFunc
	RecoverFunc          = api.RecoverFunc
	SplitFunc            = api.SplitFunc
	ReduceFunc           = api.ReduceFunc
	FanOutOption         = api.FanOutOption
	Node                 = api.Node
	FlowDefinition       = api.FlowDefinition
	Engine               = api.Engine
	Run                  = api.Run
	RunKind              = api.RunKind
	RunListOptions       = api.RunListOptions
	StepRecord           = api.StepRecord
	Status               = api.Status
	TaskExecutionError   = api.TaskExecutionError
	Observer             = api.Observer
	LoggingObserver      = api.LoggingObserver
	BasicMetrics         = api.BasicMetrics
	BasicMetricsSnapshot = api.BasicMetricsSnapshot
	CompositeObserver    = api.CompositeObserver
	NoopObserver         = api.NoopObserver

	Flow       = engine.Flow
	FlowOption = engine.FlowOption
	Registry   = engine.Registry

	Queue = taskqueue.Queue

	Config = config.Config
)

// Re-export common observer helpers.

var (
	NewLoggingObserver   = api.NewLoggingObserver
	NewCompositeObserver = api.NewCompositeObserver
)

// Re-export status values and sentinel errors for convenience.

const (
	StatusRunning   = api.StatusRunning
	StatusCompleted = api.StatusCompleted
	StatusFailed    = api.StatusFailed
	StatusJumped    = api.StatusJumped

	RunKindFlow    = api.RunKindFlow
	RunKindSegment = api.RunKindSegment

	DefaultEdge       = api.DefaultEdge
	DefaultStepBudget = api.DefaultStepBudget
)

var (
	ErrMaxInvocationsExceeded = api.ErrMaxInvocationsExceeded
	ErrStepBudgetExceeded     = api.ErrStepBudgetExceeded
	ErrSegmentNotFound        = api.ErrSegmentNotFound
	ErrValidationFailed       = api.ErrValidationFailed
	ErrMissingParam           = api.ErrMissingParam
	ErrJumpInFanOut           = api.ErrJumpInFanOut
	ErrFlowNotFound           = api.ErrFlowNotFound
	ErrRunNotFound            = api.ErrRunNotFound
)

// Engine constructors
// These wrap the internal/engine package so external callers
// never need to import internal packages.

// NewInMemoryEngine returns an Engine keeping run records in memory.
func NewInMemoryEngine() Engine {
	return engine.NewInMemoryEngine()
}

// NewInMemoryEngineWithObserver returns an in-memory Engine with the given Observer.
func NewInMemoryEngineWithObserver(obs Observer) Engine {
	return engine.NewEngineWithConfig(engine.Config{Observer: obs})
}

// NewSQLiteEngine returns an Engine that keeps run records in a SQLite
// database. Flows and segments are kept in memory.
func NewSQLiteEngine(db *sql.DB) (Engine, error) {
	return engine.NewSQLiteEngine(db)
}

// NewRedisEngine returns an Engine that keeps run records in Redis under
// prefix. An empty prefix means "taskflow:".
func NewRedisEngine(client *redis.Client, prefix string) Engine {
	return engine.NewRedisEngine(client, prefix)
}

// LoadConfig reads a YAML configuration file. A missing file yields the
// defaults.
func LoadConfig(path string) (Config, error) {
	return config.Load(path)
}

// NewEngineFromConfig builds an Engine from cfg: its run store, step
// budget and, when obs is nil, a LoggingObserver writing to stderr in the
// configured format. The returned Closer releases the store connection.
func NewEngineFromConfig(cfg Config, obs Observer) (Engine, io.Closer, error) {
	store, closer, err := cfg.OpenStore()
	if err != nil {
		return nil, nil, err
	}
	if obs == nil {
		obs = NewLoggingObserver(cfg.Logger(os.Stderr))
	}
	eng := engine.NewEngineWithConfig(engine.Config{
		Store:      store,
		Observer:   obs,
		StepBudget: cfg.Engine.StepBudget,
	})
	return eng, closer, nil
}

// NewRegistry returns an empty segment registry.
func NewRegistry() *Registry {
	return engine.NewRegistry()
}

// NewFlow validates def and returns a runnable Flow.
func NewFlow(def FlowDefinition, opts ...FlowOption) (*Flow, error) {
	return engine.NewFlow(def, opts...)
}

// WithRegistry lets a Flow hand unresolved jumps to reg.
func WithRegistry(reg *Registry) FlowOption {
	return engine.WithRegistry(reg)
}

// WithObserver attaches an Observer to a Flow.
func WithObserver(obs Observer) FlowOption {
	return engine.WithObserver(obs)
}

// WithDefaultStepBudget sets the budget for a Flow whose definition has none.
func WithDefaultStepBudget(n int) FlowOption {
	return engine.WithDefaultStepBudget(n)
}

// NewInMemoryQueue returns an in-process request queue.
func NewInMemoryQueue(capacity int) Queue {
	return taskqueue.NewInMemoryQueue(capacity)
}

// NewSQLiteQueue returns a request queue persisted in db.
func NewSQLiteQueue(db *sql.DB) (Queue, error) {
	return taskqueue.NewSQLiteQueue(db)
}

// NewRedisQueue returns a request queue kept in a Redis list under prefix.
// An empty prefix means "taskflow:".
func NewRedisQueue(client *redis.Client, prefix string) Queue {
	return taskqueue.NewRedisQueue(client, prefix)
}

// Convenience helpers that just forward to the underlying Engine.

// RunFlow runs a registered flow synchronously.
func RunFlow(ctx context.Context, eng Engine, name string, state State) (*Run, error) {
	return eng.Run(ctx, name, state)
}

// Execute runs a registry traversal starting at segment.
func Execute(ctx context.Context, eng Engine, segment string, state State) (*Run, error) {
	return eng.Execute(ctx, segment, state)
}

// GetRun fetches a finished run by ID.
func GetRun(ctx context.Context, eng Engine, id string) (*Run, error) {
	return eng.GetRun(ctx, id)
}

// ListRuns lists finished runs according to the given options.
func ListRuns(ctx context.Context, eng Engine, opts RunListOptions) ([]*Run, error) {
	return eng.ListRuns(ctx, opts)
}
