// Package cache holds recently resolved market snapshots so dashboard requests
// do not hit the store for every position. The cache is injected into the
// portfolio service; tests drive expiry with a fake Clock.
package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/aristath/assetflow/internal/domain"
)

// Cache stores market snapshots by key with a per-entry TTL.
// Implementations are safe for concurrent use. Failures are treated as misses.
type Cache interface {
	Get(ctx context.Context, key string) (domain.MarketSnapshot, bool)
	Put(ctx context.Context, key string, snap domain.MarketSnapshot, ttl time.Duration)
	Invalidate(ctx context.Context)
}

// Clock is the time source used for expiry.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now returns f().
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(time.Now)

// SnapshotKey is the cache key for an asset's market snapshot.
func SnapshotKey(assetID int64) string {
	return "snapshot:" + strconv.FormatInt(assetID, 10)
}
