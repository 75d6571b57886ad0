package snapshots

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aristath/assetflow/internal/database"
	"github.com/aristath/assetflow/internal/domain"
	"github.com/aristath/assetflow/internal/modules/portfolio"
	testingpkg "github.com/aristath/assetflow/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTotals struct {
	totals portfolio.Totals
	err    error
}

func (s *stubTotals) Totals(context.Context) (portfolio.Totals, error) {
	return s.totals, s.err
}

func newTestService(t *testing.T) (*Service, *Repository, *stubTotals, *testingpkg.MockEventEmitter) {
	t.Helper()
	db, cleanup := testingpkg.NewTestDB(t, database.NameHistory)
	t.Cleanup(cleanup)

	repo := NewRepository(db.Conn(), zerolog.Nop())
	totals := &stubTotals{}
	emitter := testingpkg.NewMockEventEmitter()
	return NewService(repo, totals, emitter, zerolog.Nop()), repo, totals, emitter
}

func day(s string) time.Time {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func testingSnapshot(date string, equity float64) domain.PortfolioSnapshot {
	return domain.PortfolioSnapshot{
		Date:          day(date),
		TotalEquity:   equity,
		TotalInvested: 1000,
		Profit:        equity - 1000,
	}
}

func TestTakeDailySnapshot_UpsertsByDate(t *testing.T) {
	svc, repo, totals, emitter := newTestService(t)
	ctx := context.Background()

	totals.totals = portfolio.Totals{Equity: 1000, Invested: 900, Profit: 100}
	_, err := svc.TakeDailySnapshot(ctx, time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC))
	require.NoError(t, err)

	totals.totals = portfolio.Totals{Equity: 1100, Invested: 900, Profit: 200}
	snap, err := svc.TakeDailySnapshot(ctx, time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, day("2024-05-01"), snap.Date)

	history, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1, "one row per day")
	assert.Equal(t, 1100.0, history[0].TotalEquity)
	assert.Equal(t, 200.0, history[0].Profit)

	evts := emitter.Events()
	require.Len(t, evts, 2)
	assert.Equal(t, "snapshot_taken", evts[1].Type)
	assert.Equal(t, "2024-05-01", evts[1].Data["date"])
}

func TestTakeDailySnapshot_TotalsError(t *testing.T) {
	svc, repo, totals, emitter := newTestService(t)
	totals.err = errors.New("db locked")

	_, err := svc.TakeDailySnapshot(context.Background(), day("2024-05-01"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db locked")

	history, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, history)
	assert.Empty(t, emitter.Events())
}

func TestRecordSnapshot_StoresToday(t *testing.T) {
	svc, repo, totals, _ := newTestService(t)
	ctx := context.Background()

	totals.totals = portfolio.Totals{Equity: 1500, Invested: 1000, Profit: 500}
	require.NoError(t, svc.RecordSnapshot(ctx))
	require.NoError(t, svc.RecordSnapshot(ctx))

	history, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 1500.0, history[0].TotalEquity)
	assert.WithinDuration(t, time.Now(), history[0].Date, 48*time.Hour)

	var _ portfolio.SnapshotRecorder = svc
}

func TestHistory_OrderedByDate(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	ctx := context.Background()

	for _, d := range []string{"2024-05-03", "2024-05-01", "2024-05-02"} {
		require.NoError(t, repo.Upsert(ctx, testingSnapshot(d, 100)))
	}

	history, err := svc.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, day("2024-05-01"), history[0].Date)
	assert.Equal(t, day("2024-05-03"), history[2].Date)
}

func TestRenderChart(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	ctx := context.Background()

	var buf bytes.Buffer
	require.NoError(t, repo.Upsert(ctx, testingSnapshot("2024-05-01", 1000)))
	assert.True(t, errors.Is(svc.RenderChart(ctx, &buf), ErrInsufficientHistory))

	require.NoError(t, repo.Upsert(ctx, testingSnapshot("2024-05-02", 1050)))
	require.NoError(t, repo.Upsert(ctx, testingSnapshot("2024-05-03", 1020)))

	require.NoError(t, svc.RenderChart(ctx, &buf))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))
}
