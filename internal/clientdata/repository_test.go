package clientdata

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/aristath/assetflow/internal/database"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newRepo(t *testing.T) (*Repository, *sql.DB, *clock) {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.ApplySchema(db, database.NameClientData))

	c := &clock{t: epoch}
	return NewRepository(db).WithClock(c.now), db, c
}

type quote struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

func TestPut_WritesPayloadAndExpiry(t *testing.T) {
	repo, db, _ := newRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Put(ctx, Quotes, "PETR4.SA", quote{"PETR4.SA", 38.12}))

	var (
		data      string
		expiresAt int64
	)
	require.NoError(t, db.QueryRow("SELECT data, expires_at FROM quotes WHERE symbol = ?", "PETR4.SA").Scan(&data, &expiresAt))
	assert.JSONEq(t, `{"symbol":"PETR4.SA","price":38.12}`, data)
	assert.Equal(t, epoch.Add(Quotes.TTL).Unix(), expiresAt)
}

func TestPut_ReplacesExisting(t *testing.T) {
	repo, db, c := newRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Put(ctx, Fundamentals, "VALE3.SA", map[string]int{"v": 1}))
	c.advance(time.Hour)
	require.NoError(t, repo.Put(ctx, Fundamentals, "VALE3.SA", map[string]int{"v": 2}))

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM fundamentals").Scan(&n))
	assert.Equal(t, 1, n)

	e, err := repo.Lookup(ctx, Fundamentals, "VALE3.SA")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.JSONEq(t, `{"v":2}`, string(e.Data))
	assert.Equal(t, c.now().Add(Fundamentals.TTL).Unix(), e.ExpiresAt.Unix())
}

func TestUnknownTableRejected(t *testing.T) {
	repo, _, _ := newRepo(t)
	ctx := context.Background()
	bogus := Table{Name: "quotes; DROP TABLE quotes", KeyColumn: "symbol", TTL: time.Minute}

	assert.Error(t, repo.Put(ctx, bogus, "x", 1))
	_, err := repo.Lookup(ctx, bogus, "x")
	assert.Error(t, err)
	assert.Error(t, repo.Remove(ctx, bogus, "x"))
	_, err = repo.Purge(ctx, bogus)
	assert.Error(t, err)
}

func TestLookup_Missing(t *testing.T) {
	repo, _, _ := newRepo(t)

	e, err := repo.Lookup(context.Background(), ExchangeRates, "USD:BRL")
	require.NoError(t, err)
	assert.Nil(t, e)
	assert.False(t, e.FreshAt(epoch))
}

func TestFreshAndStale(t *testing.T) {
	repo, _, c := newRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Put(ctx, ExchangeRates, "USD:BRL", map[string]float64{"rate": 5.4}))

	var got map[string]float64
	assert.True(t, repo.Fresh(ctx, ExchangeRates, "USD:BRL", &got))
	assert.Equal(t, 5.4, got["rate"])

	c.advance(ExchangeRates.TTL)
	got = nil
	assert.False(t, repo.Fresh(ctx, ExchangeRates, "USD:BRL", &got), "expiry boundary is not fresh")
	assert.True(t, repo.Stale(ctx, ExchangeRates, "USD:BRL", &got))
	assert.Equal(t, 5.4, got["rate"])

	assert.False(t, repo.Stale(ctx, ExchangeRates, "EUR:BRL", &got))
}

func TestFresh_CorruptPayload(t *testing.T) {
	repo, db, _ := newRepo(t)
	_, err := db.Exec("INSERT INTO quotes (symbol, data, expires_at) VALUES (?, ?, ?)", "BAD", "{not json", epoch.Add(time.Hour).Unix())
	require.NoError(t, err)

	var q quote
	assert.False(t, repo.Fresh(context.Background(), Quotes, "BAD", &q))
	assert.False(t, repo.Stale(context.Background(), Quotes, "BAD", &q))
}

func TestPutWithTTL(t *testing.T) {
	repo, _, c := newRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.PutWithTTL(ctx, Quotes, "ITSA4.SA", quote{"ITSA4.SA", 10}, time.Second))

	c.advance(2 * time.Second)
	var q quote
	assert.False(t, repo.Fresh(ctx, Quotes, "ITSA4.SA", &q))
}

func TestRemove(t *testing.T) {
	repo, _, _ := newRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Put(ctx, Quotes, "BBAS3.SA", quote{"BBAS3.SA", 27}))

	require.NoError(t, repo.Remove(ctx, Quotes, "BBAS3.SA"))
	require.NoError(t, repo.Remove(ctx, Quotes, "BBAS3.SA"), "removing a missing key is not an error")

	e, err := repo.Lookup(ctx, Quotes, "BBAS3.SA")
	require.NoError(t, err)
	assert.Nil(t, e)
}

func TestPurgeAll(t *testing.T) {
	repo, _, c := newRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Put(ctx, Quotes, "OLD.SA", quote{"OLD.SA", 1}))
	require.NoError(t, repo.Put(ctx, ExchangeRates, "USD:BRL", 5.4))
	require.NoError(t, repo.Put(ctx, Fundamentals, "KEEP.SA", map[string]float64{"dy": 0.08}))

	c.advance(2 * time.Hour)
	require.NoError(t, repo.Put(ctx, Quotes, "NEW.SA", quote{"NEW.SA", 2}))

	report, err := repo.PurgeAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), report.Total)
	assert.Equal(t, int64(1), report.Deleted["quotes"])
	assert.Equal(t, int64(1), report.Deleted["exchangerate"])
	assert.Equal(t, int64(0), report.Deleted["fundamentals"])

	counts, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"exchangerate": 0, "quotes": 1, "fundamentals": 1}, counts)
}

func TestPurgeAll_ClosedDB(t *testing.T) {
	repo, db, _ := newRepo(t)
	require.NoError(t, db.Close())

	report, err := repo.PurgeAll(context.Background())
	assert.Error(t, err)
	assert.Zero(t, report.Total)
}
