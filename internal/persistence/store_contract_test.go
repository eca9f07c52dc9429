package persistence

import (
	"context"
	"encoding/gob"
	"errors"
	"testing"
	"time"

	"github.com/petrijr/taskflow/pkg/api"
)

type samplePayload struct {
	Msg string
	N   int
}

func init() {
	gob.Register(samplePayload{})
}

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleRun(id, name string, kind api.RunKind, status api.Status, offset time.Duration) *api.Run {
	started := baseTime.Add(offset)
	return &api.Run{
		ID:     id,
		Name:   name,
		Kind:   kind,
		Status: status,
		Input:  api.State{"query": "weather in Oslo"},
		State: api.State{
			"query":   "weather in Oslo",
			"count":   3,
			"score":   0.75,
			"done":    true,
			"payload": samplePayload{Msg: "hello", N: 42},
			"nested":  map[string]any{"tags": []any{"a", "b"}},
		},
		Steps: 2,
		History: []api.StepRecord{
			{Index: 0, Node: "search", Outcome: "found", Duration: 5 * time.Millisecond},
			{Index: 1, Node: "summarize", Duration: 7 * time.Millisecond},
		},
		StartedAt:  started,
		FinishedAt: started.Add(12 * time.Millisecond),
	}
}

// testRunStoreContract exercises the behaviour every RunStore must share.
func testRunStoreContract(t *testing.T, newStore func(t *testing.T) RunStore) {
	t.Run("SaveAndGet", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		run := sampleRun("run-1", "research", api.RunKindFlow, api.StatusCompleted, 0)
		if err := store.SaveRun(ctx, run); err != nil {
			t.Fatalf("SaveRun failed: %v", err)
		}

		got, err := store.GetRun(ctx, "run-1")
		if err != nil {
			t.Fatalf("GetRun failed: %v", err)
		}

		if got.ID != run.ID || got.Name != run.Name || got.Kind != run.Kind || got.Status != run.Status || got.Steps != 2 {
			t.Fatalf("unexpected run after Get: %+v", got)
		}
		if got.State.String("query") != "weather in Oslo" || got.State.Int("count") != 3 || !got.State.Bool("done") {
			t.Fatalf("unexpected state after Get: %v", got.State)
		}
		payload, ok := got.State["payload"].(samplePayload)
		if !ok || payload.Msg != "hello" || payload.N != 42 {
			t.Fatalf("unexpected payload: %#v", got.State["payload"])
		}
		nested, ok := got.State["nested"].(map[string]any)
		if !ok || len(nested["tags"].([]any)) != 2 {
			t.Fatalf("unexpected nested value: %#v", got.State["nested"])
		}
		if got.Input.String("query") != "weather in Oslo" {
			t.Fatalf("unexpected input: %v", got.Input)
		}
		if len(got.History) != 2 || got.History[0].Outcome != "found" || got.History[1].Duration != 7*time.Millisecond {
			t.Fatalf("unexpected history: %+v", got.History)
		}
		if !got.StartedAt.Equal(run.StartedAt) || !got.FinishedAt.Equal(run.FinishedAt) {
			t.Fatalf("unexpected timestamps: %v - %v", got.StartedAt, got.FinishedAt)
		}
		if got.Err != nil {
			t.Fatalf("expected no error, got %v", got.Err)
		}
	})

	t.Run("ErrorAndPendingJumpRoundTrip", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		failed := sampleRun("run-failed", "research", api.RunKindFlow, api.StatusFailed, 0)
		failed.Err = errors.New("task \"search\" failed at step 0: boom")
		jumped := sampleRun("run-jumped", "research", api.RunKindFlow, api.StatusJumped, time.Second)
		jumped.PendingJump = "review"

		for _, r := range []*api.Run{failed, jumped} {
			if err := store.SaveRun(ctx, r); err != nil {
				t.Fatalf("SaveRun(%s) failed: %v", r.ID, err)
			}
		}

		got, err := store.GetRun(ctx, "run-failed")
		if err != nil {
			t.Fatalf("GetRun failed: %v", err)
		}
		if got.Err == nil || got.Err.Error() != failed.Err.Error() {
			t.Fatalf("unexpected error after Get: %v", got.Err)
		}

		got, err = store.GetRun(ctx, "run-jumped")
		if err != nil {
			t.Fatalf("GetRun failed: %v", err)
		}
		if got.PendingJump != "review" {
			t.Fatalf("expected pending jump %q, got %q", "review", got.PendingJump)
		}
	})

	t.Run("SaveReplaces", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		run := sampleRun("run-1", "research", api.RunKindFlow, api.StatusFailed, 0)
		if err := store.SaveRun(ctx, run); err != nil {
			t.Fatalf("SaveRun failed: %v", err)
		}
		run.Status = api.StatusCompleted
		run.Steps = 5
		if err := store.SaveRun(ctx, run); err != nil {
			t.Fatalf("second SaveRun failed: %v", err)
		}

		got, err := store.GetRun(ctx, "run-1")
		if err != nil {
			t.Fatalf("GetRun failed: %v", err)
		}
		if got.Status != api.StatusCompleted || got.Steps != 5 {
			t.Fatalf("expected replaced record, got %+v", got)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		store := newStore(t)

		_, err := store.GetRun(context.Background(), "does-not-exist")
		if !errors.Is(err, ErrRunNotFound) {
			t.Fatalf("expected ErrRunNotFound, got %v", err)
		}
	})

	t.Run("ListFilters", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		runs := []*api.Run{
			sampleRun("r-3", "research", api.RunKindFlow, api.StatusFailed, 3*time.Second),
			sampleRun("r-1", "research", api.RunKindFlow, api.StatusCompleted, 1*time.Second),
			sampleRun("r-2", "review", api.RunKindSegment, api.StatusCompleted, 2*time.Second),
		}
		for _, r := range runs {
			if err := store.SaveRun(ctx, r); err != nil {
				t.Fatalf("SaveRun(%s) failed: %v", r.ID, err)
			}
		}

		cases := []struct {
			name   string
			filter RunFilter
			want   []string
		}{
			{"all", RunFilter{}, []string{"r-1", "r-2", "r-3"}},
			{"by name", RunFilter{Name: "research"}, []string{"r-1", "r-3"}},
			{"by kind", RunFilter{Kind: api.RunKindSegment}, []string{"r-2"}},
			{"by status", RunFilter{Status: api.StatusCompleted}, []string{"r-1", "r-2"}},
			{"combined", RunFilter{Name: "research", Status: api.StatusCompleted}, []string{"r-1"}},
			{"no match", RunFilter{Name: "unknown"}, nil},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				got, err := store.ListRuns(ctx, tc.filter)
				if err != nil {
					t.Fatalf("ListRuns failed: %v", err)
				}
				if len(got) != len(tc.want) {
					t.Fatalf("expected %d runs, got %d", len(tc.want), len(got))
				}
				for i, id := range tc.want {
					if got[i].ID != id {
						t.Fatalf("expected run %d to be %q, got %q", i, id, got[i].ID)
					}
				}
			})
		}
	})
}
