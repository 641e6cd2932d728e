// Package dedup provides inbound request deduplication using a Redis SET
// with TTL. Mail providers retry webhook deliveries, so the same email can
// arrive more than once with the same tracking number.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultTTL is how long we remember a seen tracking number. Provider
	// retry windows are measured in hours, so a day is comfortable.
	DefaultTTL = 24 * time.Hour

	// keyPrefix namespaces dedup keys in Redis.
	keyPrefix = "invoice-ingest:seen:"
)

// Filter tracks which tracking numbers have already been processed.
type Filter struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewFilter creates a dedup filter backed by Redis. A non-positive ttl
// falls back to DefaultTTL.
func NewFilter(rdb *redis.Client, ttl time.Duration) *Filter {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Filter{
		rdb: rdb,
		ttl: ttl,
	}
}

// IsNew returns true if the tracking number has NOT been seen before.
// If true, it is marked as seen atomically (SETNX).
func (f *Filter) IsNew(ctx context.Context, trackingNumber string) (bool, error) {
	key := fmt.Sprintf("%s%s", keyPrefix, trackingNumber)

	set, err := f.rdb.SetNX(ctx, key, 1, f.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup SETNX: %w", err)
	}

	return set, nil
}
