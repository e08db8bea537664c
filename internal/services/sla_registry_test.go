package services

import (
	"context"
	"errors"
	"testing"

	"github.com/platformbuilds/mirador-sla/internal/models"
	"github.com/platformbuilds/mirador-sla/pkg/cache"
	"github.com/platformbuilds/mirador-sla/pkg/logger"
)

func testRegistry() *SLARegistryService {
	log := logger.New("error")
	return NewSLARegistryService(cache.NewNoopValkeyCache(log), log)
}

func registryDef() *models.SLADefinition {
	return &models.SLADefinition{
		Name:        "API availability",
		ServiceName: "payments-api",
		MetricType:  models.MetricAvailability,
		Unit:        "%",
		TargetValue: 99.9,
		Thresholds:  models.SLAThresholds{Target: 99.9, Warning: 99.5, Critical: 99.0},
	}
}

func TestRegistry_CreateAndGet(t *testing.T) {
	r := testRegistry()
	ctx := context.Background()

	created, err := r.CreateSLA(ctx, registryDef())
	if err != nil {
		t.Fatalf("CreateSLA: %v", err)
	}
	if created.ID == "" {
		t.Fatal("create must assign an id")
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Error("create must stamp timestamps")
	}

	got, err := r.GetSLA(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetSLA: %v", err)
	}
	if got.Name != "API availability" || got.ServiceName != "payments-api" {
		t.Errorf("got %+v", got)
	}

	// returned definitions are copies; mutating one must not leak back
	got.Name = "mutated"
	again, _ := r.GetSLA(ctx, created.ID)
	if again.Name != "API availability" {
		t.Error("GetSLA must return an isolated copy")
	}
}

func TestRegistry_DuplicateCreateRejected(t *testing.T) {
	r := testRegistry()
	ctx := context.Background()

	def := registryDef()
	def.ID = "fixed-id"
	if _, err := r.CreateSLA(ctx, def); err != nil {
		t.Fatalf("CreateSLA: %v", err)
	}
	if _, err := r.CreateSLA(ctx, registryDefWithID("fixed-id")); !errors.Is(err, ErrSLAExists) {
		t.Fatalf("expected ErrSLAExists, got %v", err)
	}
}

func registryDefWithID(id string) *models.SLADefinition {
	def := registryDef()
	def.ID = id
	return def
}

func TestRegistry_UpdatePreservesCreatedAt(t *testing.T) {
	r := testRegistry()
	ctx := context.Background()

	created, err := r.CreateSLA(ctx, registryDef())
	if err != nil {
		t.Fatalf("CreateSLA: %v", err)
	}

	updated := created.Clone()
	updated.Name = "API availability v2"
	got, err := r.UpdateSLA(ctx, updated)
	if err != nil {
		t.Fatalf("UpdateSLA: %v", err)
	}
	if got.Name != "API availability v2" {
		t.Errorf("name = %q", got.Name)
	}
	if !got.CreatedAt.Equal(created.CreatedAt) {
		t.Error("update must preserve the creation time")
	}
}

func TestRegistry_UnknownID(t *testing.T) {
	r := testRegistry()
	ctx := context.Background()

	if _, err := r.GetSLA(ctx, "nope"); !errors.Is(err, ErrSLANotFound) {
		t.Fatalf("GetSLA: %v", err)
	}
	if err := r.DeleteSLA(ctx, "nope"); !errors.Is(err, ErrSLANotFound) {
		t.Fatalf("DeleteSLA: %v", err)
	}
	def := registryDef()
	def.ID = "nope"
	if _, err := r.UpdateSLA(ctx, def); !errors.Is(err, ErrSLANotFound) {
		t.Fatalf("UpdateSLA: %v", err)
	}
}

func TestRegistry_ListOrderedByName(t *testing.T) {
	r := testRegistry()
	ctx := context.Background()

	for _, name := range []string{"zeta", "alpha", "mid"} {
		def := registryDef()
		def.Name = name
		if _, err := r.CreateSLA(ctx, def); err != nil {
			t.Fatalf("CreateSLA %s: %v", name, err)
		}
	}

	list := r.ListSLAs(ctx)
	if len(list) != 3 {
		t.Fatalf("list = %d entries, want 3", len(list))
	}
	if list[0].Name != "alpha" || list[1].Name != "mid" || list[2].Name != "zeta" {
		t.Errorf("order = %s, %s, %s", list[0].Name, list[1].Name, list[2].Name)
	}
}

func TestRegistry_Validation(t *testing.T) {
	r := testRegistry()
	ctx := context.Background()

	noName := registryDef()
	noName.Name = ""
	if _, err := r.CreateSLA(ctx, noName); err == nil {
		t.Error("expected validation error for missing name")
	}

	noMetric := registryDef()
	noMetric.MetricType = ""
	if _, err := r.CreateSLA(ctx, noMetric); err == nil {
		t.Error("expected validation error for missing metric type")
	}

	noTargets := registryDef()
	noTargets.TargetValue = 0
	noTargets.Thresholds = models.SLAThresholds{}
	if _, err := r.CreateSLA(ctx, noTargets); err == nil {
		t.Error("expected validation error for missing thresholds")
	}
}

func TestRegistry_DeleteSLA(t *testing.T) {
	r := testRegistry()
	ctx := context.Background()

	created, err := r.CreateSLA(ctx, registryDef())
	if err != nil {
		t.Fatalf("CreateSLA: %v", err)
	}
	if err := r.DeleteSLA(ctx, created.ID); err != nil {
		t.Fatalf("DeleteSLA: %v", err)
	}
	if _, err := r.GetSLA(ctx, created.ID); !errors.Is(err, ErrSLANotFound) {
		t.Fatalf("expected ErrSLANotFound after delete, got %v", err)
	}
}
