package persistence

import (
	"context"
	"sync"

	"github.com/petrijr/taskflow/pkg/api"
)

// InMemoryStore is a simple, goroutine-safe RunStore backed by a map.
type InMemoryStore struct {
	mu   sync.RWMutex
	runs map[string]*api.Run
}

// NewInMemoryStore creates a new InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		runs: make(map[string]*api.Run),
	}
}

var _ RunStore = (*InMemoryStore)(nil)

func (s *InMemoryStore) SaveRun(ctx context.Context, run *api.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *run
	s.runs[run.ID] = &cp
	return nil
}

func (s *InMemoryStore) GetRun(ctx context.Context, id string) (*api.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}

	cp := *run
	return &cp, nil
}

func (s *InMemoryStore) ListRuns(ctx context.Context, filter RunFilter) ([]*api.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*api.Run
	for _, run := range s.runs {
		if !filter.matches(run) {
			continue
		}
		cp := *run
		result = append(result, &cp)
	}

	sortRuns(result)
	return result, nil
}
