package clientdata

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanupJob(t *testing.T) {
	repo, db, c := newRepo(t)
	ctx := context.Background()
	job := NewCleanupJob(repo, zerolog.Nop())
	assert.Equal(t, "client_data_cleanup", job.Name())

	require.NoError(t, job.Run(), "empty tables")

	for _, tbl := range Tables {
		require.NoError(t, repo.PutWithTTL(ctx, tbl, "expiring", 1, time.Minute))
		require.NoError(t, repo.PutWithTTL(ctx, tbl, "lasting", 1, 24*time.Hour))
	}
	c.advance(time.Hour)

	require.NoError(t, job.Run())

	var n int
	require.NoError(t, db.QueryRow(
		"SELECT (SELECT COUNT(*) FROM quotes) + (SELECT COUNT(*) FROM fundamentals) + (SELECT COUNT(*) FROM exchangerate)",
	).Scan(&n))
	assert.Equal(t, len(Tables), n)
}

func TestCleanupJob_ClosedDB(t *testing.T) {
	repo, db, _ := newRepo(t)
	job := NewCleanupJob(repo, zerolog.Nop())
	require.NoError(t, db.Close())

	assert.Error(t, job.Run())
}
