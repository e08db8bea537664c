package breachstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/platformbuilds/mirador-sla/internal/models"
)

func newBreach(id, slaID string, status models.BreachStatus, start time.Time) *models.Breach {
	return &models.Breach{
		ID:        id,
		SLAID:     slaID,
		Threshold: models.ThresholdCritical,
		Severity:  models.SeverityCritical,
		StartTime: start,
		Status:    status,
	}
}

func TestMemoryStore_PutGetRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	b := newBreach("b1", "sla1", models.BreachActive, now)
	if err := s.Put(ctx, b); err != nil {
		t.Fatalf("put: %v", err)
	}

	// mutating the original must not leak into the store
	b.Status = models.BreachResolved

	got, err := s.Get(ctx, "b1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != models.BreachActive {
		t.Fatalf("store leaked caller mutation: %s", got.Status)
	}

	// mutating the returned copy must not change stored state either
	got.SLAID = "other"
	again, _ := s.Get(ctx, "b1")
	if again.SLAID != "sla1" {
		t.Fatalf("store leaked returned pointer: %s", again.SLAID)
	}
}

func TestMemoryStore_GetUnknownIsNotFound(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_ListFilters(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	_ = s.Put(ctx, newBreach("b1", "sla1", models.BreachActive, base))
	_ = s.Put(ctx, newBreach("b2", "sla1", models.BreachResolved, base.Add(time.Hour)))
	_ = s.Put(ctx, newBreach("b3", "sla2", models.BreachActive, base.Add(2*time.Hour)))

	bySLA, err := s.List(ctx, Filter{SLAID: "sla1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(bySLA) != 2 {
		t.Fatalf("expected 2 breaches for sla1, got %d", len(bySLA))
	}
	if bySLA[0].ID != "b1" || bySLA[1].ID != "b2" {
		t.Fatalf("expected start-time order b1,b2; got %s,%s", bySLA[0].ID, bySLA[1].ID)
	}

	active, err := s.List(ctx, Filter{Statuses: []models.BreachStatus{models.BreachActive}})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("expected 2 active breaches, got %d", len(active))
	}

	// inclusive bounds on start time
	windowed, err := s.List(ctx, Filter{From: base.Add(time.Hour), To: base.Add(2 * time.Hour)})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(windowed) != 2 {
		t.Fatalf("expected 2 breaches in window, got %d", len(windowed))
	}
}

func TestMemoryStore_Clear(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_ = s.Put(ctx, newBreach("b1", "sla1", models.BreachActive, time.Now()))

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	all, _ := s.List(ctx, Filter{})
	if len(all) != 0 {
		t.Fatalf("expected empty store after clear, got %d", len(all))
	}
}
