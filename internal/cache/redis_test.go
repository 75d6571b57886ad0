package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/aristath/assetflow/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotCodec(t *testing.T) {
	rsi := 41.5
	snap := domain.MarketSnapshot{
		AssetID:     3,
		Price:       102.4,
		Low6M:       95.1,
		RSI:         &rsi,
		WindowStart: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		UpdatedAt:   time.Date(2024, 6, 3, 18, 30, 0, 0, time.UTC),
	}

	raw, err := encodeSnapshot(snap)
	require.NoError(t, err)

	got, err := decodeSnapshot(raw)
	require.NoError(t, err)
	assert.Equal(t, snap.AssetID, got.AssetID)
	assert.Equal(t, snap.Price, got.Price)
	assert.Equal(t, snap.Low6M, got.Low6M)
	require.NotNil(t, got.RSI)
	assert.Equal(t, rsi, *got.RSI)
	assert.Nil(t, got.SMA)
	assert.True(t, snap.WindowStart.Equal(got.WindowStart))
	assert.True(t, snap.UpdatedAt.Equal(got.UpdatedAt))
}

func TestSnapshotCodec_Garbage(t *testing.T) {
	_, err := decodeSnapshot([]byte{0xc1})
	assert.Error(t, err)
}

// TestRedis_RoundTrip runs against a live server when ASSETFLOW_TEST_REDIS_ADDR is set.
func TestRedis_RoundTrip(t *testing.T) {
	addr := os.Getenv("ASSETFLOW_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("ASSETFLOW_TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	client, err := NewRedisClient(ctx, addr, "", 0)
	require.NoError(t, err)
	defer client.Close()

	c := NewRedis(client, "assetflow-test:", zerolog.Nop())
	c.Invalidate(ctx)

	c.Put(ctx, SnapshotKey(1), domain.MarketSnapshot{AssetID: 1, Price: 10}, time.Minute)
	got, ok := c.Get(ctx, SnapshotKey(1))
	require.True(t, ok)
	assert.Equal(t, 10.0, got.Price)

	c.Invalidate(ctx)
	_, ok = c.Get(ctx, SnapshotKey(1))
	assert.False(t, ok)
}
