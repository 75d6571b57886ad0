package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aristath/assetflow/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestMemory_TTL(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	c := NewMemory(clock)

	snap := domain.MarketSnapshot{AssetID: 7, Price: 31.5, Low6M: 28}
	c.Put(ctx, SnapshotKey(7), snap, 10*time.Minute)

	got, ok := c.Get(ctx, SnapshotKey(7))
	require.True(t, ok)
	assert.Equal(t, snap, got)

	clock.Advance(9*time.Minute + 59*time.Second)
	_, ok = c.Get(ctx, SnapshotKey(7))
	assert.True(t, ok, "entry is fresh until the TTL elapses")

	clock.Advance(time.Second)
	_, ok = c.Get(ctx, SnapshotKey(7))
	assert.False(t, ok, "entry expires exactly at the TTL")
	assert.Zero(t, c.Len(), "expired entries are evicted on read")
}

func TestMemory_PutOverwritesAndRefreshes(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(0, 0)}
	c := NewMemory(clock)

	c.Put(ctx, "k", domain.MarketSnapshot{Price: 1}, time.Minute)
	clock.Advance(50 * time.Second)
	c.Put(ctx, "k", domain.MarketSnapshot{Price: 2}, time.Minute)
	clock.Advance(50 * time.Second)

	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, 2.0, got.Price)
}

func TestMemory_NonPositiveTTLIgnored(t *testing.T) {
	c := NewMemory(nil)
	c.Put(context.Background(), "k", domain.MarketSnapshot{Price: 1}, 0)

	_, ok := c.Get(context.Background(), "k")
	assert.False(t, ok)
}

func TestMemory_Invalidate(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(SystemClock)
	c.Put(ctx, SnapshotKey(1), domain.MarketSnapshot{Price: 1}, time.Hour)
	c.Put(ctx, SnapshotKey(2), domain.MarketSnapshot{Price: 2}, time.Hour)

	c.Invalidate(ctx)

	_, ok := c.Get(ctx, SnapshotKey(1))
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}

func TestMemory_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				c.Put(ctx, SnapshotKey(id), domain.MarketSnapshot{AssetID: id, Price: float64(j)}, time.Hour)
				_, _ = c.Get(ctx, SnapshotKey(id))
				if j%50 == 0 {
					c.Invalidate(ctx)
				}
			}
		}(int64(i))
	}
	wg.Wait()
}

func TestSnapshotKey(t *testing.T) {
	assert.Equal(t, "snapshot:42", SnapshotKey(42))
}

func TestClockFunc(t *testing.T) {
	fixed := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	var c Clock = ClockFunc(func() time.Time { return fixed })
	assert.Equal(t, fixed, c.Now())
}
