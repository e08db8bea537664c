package cache

import (
	"context"
	"testing"

	"github.com/platformbuilds/mirador-sla/pkg/logger"
)

func TestNoopCache_SetGetDelete(t *testing.T) {
	c := NewNoopValkeyCache(logger.New("error"))
	ctx := context.Background()

	if err := c.Set(ctx, "k1", "v1", 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	b, err := c.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(b) != "v1" {
		t.Fatalf("expected v1, got %q", string(b))
	}

	if err := c.Delete(ctx, "k1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := c.Get(ctx, "k1"); err == nil {
		t.Fatalf("expected miss after delete")
	}
}

func TestNoopCache_QueryResult(t *testing.T) {
	c := NewNoopValkeyCache(logger.New("error"))
	ctx := context.Background()

	type payload struct {
		N int `json:"n"`
	}
	if err := c.CacheQueryResult(ctx, "h1", payload{N: 7}, 0); err != nil {
		t.Fatalf("cache query result: %v", err)
	}
	b, err := c.GetCachedQueryResult(ctx, "h1")
	if err != nil {
		t.Fatalf("get cached query result: %v", err)
	}
	if string(b) != `{"n":7}` {
		t.Fatalf("unexpected cached payload: %s", string(b))
	}
}
