package store

import (
	"context"
	"slices"
	"sync"
)

// MemoryStore keeps runs in process memory. It is used when no archive is
// configured and in tests.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]Run
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]Run)}
}

func (s *MemoryStore) Save(_ context.Context, run *Run) error {
	if err := validateRun(run); err != nil {
		return err
	}
	cp := *run
	cp.Rows = slices.Clone(run.Rows)
	cp.SVG = slices.Clone(run.SVG)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = cp
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, notFound(id)
	}
	return &run, nil
}

func (s *MemoryStore) List(_ context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	s.mu.RLock()
	out := make([]Summary, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, Summarize(&run))
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b Summary) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
