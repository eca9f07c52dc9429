package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrijr/taskflow/pkg/api"
)

func TestRegistry_CycleTerminatesOnStateCounter(t *testing.T) {
	reg := NewRegistry()
	var aCalls, bCalls, cCalls atomic.Int64

	// A bumps "a" and loops through B until it has run three times.
	reg.Register("A", api.NewTask("A", func(ctx context.Context, s api.State) (api.Result, error) {
		aCalls.Add(1)
		a := s.Int("a") + 1
		if a >= 3 {
			return api.JumpWith("C", api.State{"a": a}), nil
		}
		return api.JumpWith("B", api.State{"a": a}), nil
	}))
	reg.Register("B", api.NewTask("B", func(ctx context.Context, s api.State) (api.Result, error) {
		bCalls.Add(1)
		return api.JumpWith("A", api.State{"b": s.Int("b") + 1}), nil
	}))
	reg.Register("C", api.NewDeltaTask("C", func(ctx context.Context, s api.State) (api.State, error) {
		cCalls.Add(1)
		return api.State{"done": true}, nil
	}))

	final, err := reg.Execute(context.Background(), "A", api.State{})
	require.NoError(t, err)

	assert.EqualValues(t, 3, aCalls.Load())
	assert.EqualValues(t, 2, bCalls.Load())
	assert.EqualValues(t, 1, cCalls.Load())
	assert.Equal(t, api.State{"a": 3, "b": 2, "done": true}, final)
}

func TestRegistry_CycleBuiltFromCombinators(t *testing.T) {
	reg := NewRegistry()
	reg.Register("draft", api.Sequence(
		api.NewDeltaTask("write", func(ctx context.Context, s api.State) (api.State, error) {
			return api.State{"revision": s.Int("revision") + 1}, nil
		}),
		api.JumpTo("review"),
	))
	reg.Register("review", api.Branch(
		setTask("score", nil),
		func(s api.State) bool { return s.Int("revision") < 4 },
		api.JumpTo("draft"),
		setTask("approve", api.State{"approved": true}),
	))

	final, err := reg.Execute(context.Background(), "draft", nil)
	require.NoError(t, err)
	assert.Equal(t, 4, final.Int("revision"))
	assert.Equal(t, true, final["approved"])
}

func TestRegistry_SegmentNotFound(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Execute(context.Background(), "missing", api.State{})
	require.ErrorIs(t, err, api.ErrSegmentNotFound)
	assert.Contains(t, err.Error(), `"missing"`)

	reg.Register("start", api.NewTask("start", func(ctx context.Context, s api.State) (api.Result, error) {
		return api.JumpWith("gone", api.State{"started": true}), nil
	}))
	final, err := reg.Execute(context.Background(), "start", api.State{})
	require.ErrorIs(t, err, api.ErrSegmentNotFound)
	assert.Equal(t, true, final["started"], "state merged before the failed hop is returned")
}

func TestRegistry_TaskFailureIsWrapped(t *testing.T) {
	reg := NewRegistry()
	boom := fmt.Errorf("quota exhausted")
	reg.Register("first", api.JumpTo("second"))
	reg.Register("second", api.NewDeltaTask("second", func(ctx context.Context, s api.State) (api.State, error) {
		return nil, boom
	}))

	_, err := reg.Execute(context.Background(), "first", nil)
	require.ErrorIs(t, err, boom)

	var te *api.TaskExecutionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "second", te.Task)
	assert.Equal(t, 2, te.Step)
}

func TestRegistry_RegisterReplacesAndNamesSorted(t *testing.T) {
	reg := NewRegistry()
	reg.Register("zeta", setTask("old", api.State{"v": "old"}))
	reg.Register("alpha", setTask("alpha", nil))
	reg.Register("zeta", setTask("new", api.State{"v": "new"}))

	assert.Equal(t, []string{"alpha", "zeta"}, reg.Names())

	task, ok := reg.Get("zeta")
	require.True(t, ok)
	assert.Equal(t, "new", task.Meta().Name)

	_, ok = reg.Get("nope")
	assert.False(t, ok)

	final, err := reg.Execute(context.Background(), "zeta", nil)
	require.NoError(t, err)
	assert.Equal(t, "new", final["v"])
}

func TestRegistry_ContextBoundsUnterminatedCycle(t *testing.T) {
	reg := NewRegistry()
	reg.Register("spin", api.JumpTo("spin"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := reg.Execute(ctx, "spin", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRegistry_SegmentTask(t *testing.T) {
	reg := NewRegistry()
	reg.Register("enrich", api.Sequence(setTask("tag", api.State{"tagged": true}), api.JumpTo("finish")))
	reg.Register("finish", setTask("finish", api.State{"finished": true}))

	pipeline := api.Sequence(setTask("load", api.State{"loaded": true}), reg.Segment("enrich"))

	res, err := pipeline.Call(context.Background(), api.State{"id": 7})
	require.NoError(t, err)
	assert.False(t, res.IsJump())
	assert.Equal(t, api.State{"id": 7, "loaded": true, "tagged": true, "finished": true}, res.Apply(api.State{"id": 7}))
}

func TestRegistry_FlowAsSegment(t *testing.T) {
	reg := NewRegistry()

	drafting, err := NewFlow(linearDef("drafting", []string{"outline", "write"}, []api.Task{
		setTask("outline", api.State{"outline": true}),
		api.Sequence(setTask("write", api.State{"text": "hello"}), api.JumpTo("publish")),
	}))
	require.NoError(t, err)

	reg.Register("drafting", drafting.AsTask())
	reg.Register("publish", api.NewDeltaTask("publish", func(ctx context.Context, s api.State) (api.State, error) {
		return api.State{"published": s.String("text")}, nil
	}))

	final, err := reg.Execute(context.Background(), "drafting", nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", final["published"])
	assert.Equal(t, true, final["outline"])
}

func TestRegistry_ConcurrentRegisterAndExecute(t *testing.T) {
	reg := NewRegistry()
	reg.Register("hop", api.JumpTo("land"))
	reg.Register("land", setTask("land", api.State{"landed": true}))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			reg.Register(fmt.Sprintf("extra-%d", i), setTask("extra", nil))
		}()
		go func() {
			defer wg.Done()
			final, err := reg.Execute(context.Background(), "hop", nil)
			assert.NoError(t, err)
			assert.Equal(t, true, final["landed"])
		}()
	}
	wg.Wait()

	assert.Len(t, reg.Names(), 10)
}
