package store

import (
	"context"
	"slices"
	"sync"

	"github.com/depsentry/depsentry/pkg/analysis"
)

// MemoryStore keeps reports in process memory. Useful for tests and for
// serving without a database.
type MemoryStore struct {
	mu      sync.RWMutex
	reports map[string]*analysis.Report
	order   []string // insertion order, oldest first
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{reports: make(map[string]*analysis.Report)}
}

func (s *MemoryStore) Save(ctx context.Context, report *analysis.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.reports[report.ID]; !exists {
		s.order = append(s.order, report.ID)
	}
	s.reports[report.ID] = report
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*analysis.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	report, ok := s.reports[id]
	if !ok {
		return nil, ErrNotFound
	}
	return report, nil
}

func (s *MemoryStore) List(ctx context.Context, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := slices.Clone(s.order)
	slices.Reverse(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (s *MemoryStore) Close(ctx context.Context) error { return nil }
