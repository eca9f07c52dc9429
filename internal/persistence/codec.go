package persistence

import (
	"bytes"
	"cmp"
	"encoding/gob"
	"errors"
	"slices"
	"time"

	"github.com/petrijr/taskflow/pkg/api"
)

func init() {
	// Nested containers commonly found in State values travel as interface
	// values and must be known to gob.
	gob.Register(map[string]any{})
	gob.Register([]any{})
	gob.Register(api.State{})
	gob.Register(time.Time{})
}

// EncodeValue serializes a value using encoding/gob. Values stored inside a
// State under interface type must be registered with gob.Register.
func EncodeValue[T any](v T) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeValue deserializes a value written by EncodeValue. Empty input
// yields the zero value.
func DecodeValue[T any](data []byte) (T, error) {
	var v T
	if len(data) == 0 {
		return v, nil
	}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&v); err != nil {
		return v, err
	}
	return v, nil
}

// runPayload is the stored form of an api.Run. The error is kept as its
// message only.
type runPayload struct {
	ID          string
	Name        string
	Kind        string
	Status      string
	Input       api.State
	State       api.State
	Steps       int
	PendingJump string
	History     []api.StepRecord
	Error       string
	StartedAt   time.Time
	FinishedAt  time.Time
}

func toPayload(run *api.Run) runPayload {
	p := runPayload{
		ID:          run.ID,
		Name:        run.Name,
		Kind:        string(run.Kind),
		Status:      string(run.Status),
		Input:       run.Input,
		State:       run.State,
		Steps:       run.Steps,
		PendingJump: run.PendingJump,
		History:     run.History,
		StartedAt:   run.StartedAt,
		FinishedAt:  run.FinishedAt,
	}
	if run.Err != nil {
		p.Error = run.Err.Error()
	}
	return p
}

func (p runPayload) toRun() *api.Run {
	run := &api.Run{
		ID:          p.ID,
		Name:        p.Name,
		Kind:        api.RunKind(p.Kind),
		Status:      api.Status(p.Status),
		Input:       p.Input,
		State:       p.State,
		Steps:       p.Steps,
		PendingJump: p.PendingJump,
		History:     p.History,
		StartedAt:   p.StartedAt,
		FinishedAt:  p.FinishedAt,
	}
	if p.Error != "" {
		run.Err = errors.New(p.Error)
	}
	return run
}

// EncodeRun serializes a run record.
func EncodeRun(run *api.Run) ([]byte, error) {
	return EncodeValue(toPayload(run))
}

// DecodeRun deserializes a run record written by EncodeRun.
func DecodeRun(data []byte) (*api.Run, error) {
	if len(data) == 0 {
		return nil, ErrRunNotFound
	}
	p, err := DecodeValue[runPayload](data)
	if err != nil {
		return nil, err
	}
	return p.toRun(), nil
}

// sortRuns orders runs by start time, then ID.
func sortRuns(runs []*api.Run) {
	slices.SortFunc(runs, func(a, b *api.Run) int {
		if c := a.StartedAt.Compare(b.StartedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
