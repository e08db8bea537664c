package breachstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/platformbuilds/mirador-sla/internal/models"
	"github.com/platformbuilds/mirador-sla/internal/monitoring"
)

// memoryStore is the default process-local backend. State is lost on restart;
// there is deliberately no durability guarantee here.
type memoryStore struct {
	mu       sync.RWMutex
	breaches map[string]*models.Breach
}

func NewMemoryStore() Store {
	return &memoryStore{breaches: make(map[string]*models.Breach)}
}

func (s *memoryStore) Put(ctx context.Context, b *models.Breach) error {
	if b.ID == "" {
		return fmt.Errorf("breach id must not be empty")
	}
	start := time.Now()
	s.mu.Lock()
	s.breaches[b.ID] = b.Clone()
	s.mu.Unlock()
	monitoring.RecordStoreOperation("put", time.Since(start), true)
	return nil
}

func (s *memoryStore) Get(ctx context.Context, id string) (*models.Breach, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.breaches[id]
	if !ok {
		return nil, fmt.Errorf("breach %s: %w", id, ErrNotFound)
	}
	return b.Clone(), nil
}

func (s *memoryStore) List(ctx context.Context, f Filter) ([]*models.Breach, error) {
	s.mu.RLock()
	out := make([]*models.Breach, 0)
	for _, b := range s.breaches {
		if f.matches(b) {
			out = append(out, b.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (s *memoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.breaches = make(map[string]*models.Breach)
	s.mu.Unlock()
	return nil
}
