package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/petrijr/taskflow/internal/persistence"
	"github.com/petrijr/taskflow/pkg/api"
)

// engineImpl is a synchronous, in-process engine. Flows and segments live in
// memory; finished runs go to the configured RunStore.
type engineImpl struct {
	mu    sync.RWMutex
	flows map[string]*Flow

	registry   *Registry
	runs       persistence.RunStore
	observer   api.Observer
	stepBudget int
}

// Config describes how to construct an engineImpl.
// External callers use the helper functions in the root package.
type Config struct {
	// Store keeps finished runs. Nil means an in-memory store.
	Store persistence.RunStore

	// Observer receives run and step events. Nil means no observer.
	Observer api.Observer

	// Registry is the segment registry. Nil means a fresh registry.
	Registry *Registry

	// StepBudget applies to flows that declare no budget of their own.
	// Zero means api.DefaultStepBudget.
	StepBudget int
}

// NewEngineWithConfig creates a new Engine using the given configuration.
func NewEngineWithConfig(cfg Config) api.Engine {
	obs := cfg.Observer
	if obs == nil {
		obs = api.NoopObserver{}
	}
	store := cfg.Store
	if store == nil {
		store = persistence.NewInMemoryStore()
	}
	reg := cfg.Registry
	if reg == nil {
		reg = NewRegistry()
	}
	return &engineImpl{
		flows:      make(map[string]*Flow),
		registry:   reg,
		runs:       store,
		observer:   obs,
		stepBudget: cfg.StepBudget,
	}
}

// NewEngine returns an Engine that saves finished runs to store.
func NewEngine(store persistence.RunStore) api.Engine {
	return NewEngineWithConfig(Config{Store: store})
}

// NewInMemoryEngine returns an Engine keeping run records in memory.
func NewInMemoryEngine() api.Engine {
	return NewEngine(persistence.NewInMemoryStore())
}

// NewSQLiteEngine returns an Engine keeping run records in the given SQLite
// database. The caller imports the driver.
func NewSQLiteEngine(db *sql.DB) (api.Engine, error) {
	store, err := persistence.NewSQLiteRunStore(db)
	if err != nil {
		return nil, err
	}
	return NewEngine(store), nil
}

// NewRedisEngine returns an Engine keeping run records in Redis under
// prefix.
func NewRedisEngine(client *redis.Client, prefix string) api.Engine {
	return NewEngine(persistence.NewRedisRunStore(client, prefix))
}

func (e *engineImpl) RegisterFlow(def api.FlowDefinition) error {
	flow, err := NewFlow(def,
		WithRegistry(e.registry),
		WithObserver(e.observer),
		WithDefaultStepBudget(e.stepBudget),
	)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.flows[def.Name]; exists {
		return fmt.Errorf("flow already registered: %s", def.Name)
	}
	e.flows[def.Name] = flow
	return nil
}

func (e *engineImpl) flow(name string) (*Flow, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	flow, ok := e.flows[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", api.ErrFlowNotFound, name)
	}
	return flow, nil
}

func (e *engineImpl) Run(ctx context.Context, name string, state api.State) (*api.Run, error) {
	flow, err := e.flow(name)
	if err != nil {
		return nil, err
	}

	run, err := flow.Run(ctx, state)
	return e.save(ctx, run, err)
}

func (e *engineImpl) RegisterSegment(name string, task api.Task) {
	e.registry.Register(name, task)
}

func (e *engineImpl) Segment(name string) (api.Task, bool) {
	return e.registry.Get(name)
}

func (e *engineImpl) Execute(ctx context.Context, segment string, state api.State) (*api.Run, error) {
	run := newRun(segment, api.RunKindSegment, state)
	e.observer.OnRunStart(ctx, run)

	err := e.registry.traverse(ctx, segment, run, e.observer)
	run, err = finish(ctx, run, e.observer, err)
	return e.save(ctx, run, err)
}

// save persists a finished run. A run cancelled through ctx is still saved.
func (e *engineImpl) save(ctx context.Context, run *api.Run, runErr error) (*api.Run, error) {
	if err := e.runs.SaveRun(context.WithoutCancel(ctx), run); err != nil {
		return run, errors.Join(runErr, fmt.Errorf("save run %s: %w", run.ID, err))
	}
	return run, runErr
}

func (e *engineImpl) GetRun(ctx context.Context, id string) (*api.Run, error) {
	run, err := e.runs.GetRun(ctx, id)
	if err != nil {
		if errors.Is(err, persistence.ErrRunNotFound) {
			return nil, fmt.Errorf("%w: %s", api.ErrRunNotFound, id)
		}
		return nil, err
	}
	return run, nil
}

func (e *engineImpl) ListRuns(ctx context.Context, opts api.RunListOptions) ([]*api.Run, error) {
	filter := persistence.RunFilter{
		Name:   opts.Name,
		Kind:   opts.Kind,
		Status: opts.Status,
	}
	return e.runs.ListRuns(ctx, filter)
}
