package cache

import (
	"context"
	"time"
)

// Valkey is the caching surface used across MIRADOR-SLA. Definitions and
// compliance snapshots are read-through cached here; statistics endpoints use
// the query-result helpers.
type Valkey interface {
	// General caching
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	// Query result caching for faster statistics/history fetches
	CacheQueryResult(ctx context.Context, queryHash string, result interface{}, ttl time.Duration) error
	GetCachedQueryResult(ctx context.Context, queryHash string) ([]byte, error)
}
