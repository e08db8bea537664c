// Package breachstore provides the pluggable persistence layer behind the
// breach ledger. The default in-memory backend matches the ledger's
// process-local semantics; the postgres backend substitutes a durable store
// without touching evaluation logic.
package breachstore

import (
	"context"
	"errors"
	"time"

	"github.com/platformbuilds/mirador-sla/internal/models"
)

// ErrNotFound is returned for lookups against unknown breach ids.
var ErrNotFound = errors.New("breach not found")

// Filter narrows List results. Zero times mean unbounded; time bounds are
// inclusive and applied to the breach start time.
type Filter struct {
	SLAID    string
	Statuses []models.BreachStatus
	From     time.Time
	To       time.Time
}

func (f Filter) matches(b *models.Breach) bool {
	if f.SLAID != "" && b.SLAID != f.SLAID {
		return false
	}
	if len(f.Statuses) > 0 {
		ok := false
		for _, s := range f.Statuses {
			if b.Status == s {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if !f.From.IsZero() && b.StartTime.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && b.StartTime.After(f.To) {
		return false
	}
	return true
}

// Store persists breach records. Implementations must return defensive copies
// so callers cannot mutate stored state through returned pointers.
type Store interface {
	// Put inserts or replaces the record for b.ID.
	Put(ctx context.Context, b *models.Breach) error

	// Get returns the record for id or ErrNotFound.
	Get(ctx context.Context, id string) (*models.Breach, error)

	// List returns matching records ordered by start time ascending.
	List(ctx context.Context, f Filter) ([]*models.Breach, error)

	// Clear drops all records. Used on shutdown.
	Clear(ctx context.Context) error
}
