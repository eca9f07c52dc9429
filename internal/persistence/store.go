package persistence

import (
	"context"

	"github.com/petrijr/taskflow/pkg/api"
)

// ErrRunNotFound is returned when a run record is not found.
var ErrRunNotFound = api.ErrRunNotFound

// RunFilter is used to select runs from the store.
// Empty fields mean "no filter" for that field.
type RunFilter struct {
	Name   string
	Kind   api.RunKind
	Status api.Status
}

func (f RunFilter) matches(run *api.Run) bool {
	if f.Name != "" && run.Name != f.Name {
		return false
	}
	if f.Kind != "" && run.Kind != f.Kind {
		return false
	}
	if f.Status != "" && run.Status != f.Status {
		return false
	}
	return true
}

// RunStore keeps the records of finished runs. Saving a run with an existing
// ID replaces the previous record. ListRuns returns runs ordered by start
// time.
type RunStore interface {
	SaveRun(ctx context.Context, run *api.Run) error
	GetRun(ctx context.Context, id string) (*api.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]*api.Run, error)
}
