package dividends

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aristath/assetflow/internal/clients/yahoo"
	"github.com/aristath/assetflow/internal/database"
	"github.com/aristath/assetflow/internal/domain"
	"github.com/aristath/assetflow/internal/modules/portfolio"
	testingpkg "github.com/aristath/assetflow/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var today = time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC)

type fixture struct {
	assets *portfolio.AssetRepository
	repo   *Repository
	ids    map[string]int64
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db, cleanup := testingpkg.NewTestDB(t, database.NamePortfolio)
	t.Cleanup(cleanup)

	ids := testingpkg.SeedPortfolio(t, db.Conn(), testingpkg.NewCategoryTargetFixtures(), testingpkg.NewAssetFixtures())
	return fixture{
		assets: portfolio.NewAssetRepository(db.Conn(), zerolog.Nop()),
		repo:   NewRepository(db.Conn(), zerolog.Nop()),
		ids:    ids,
	}
}

func date(s string) time.Time {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestCalendar_RecordedChart(t *testing.T) {
	chart, err := os.ReadFile(filepath.Join("..", "..", "clients", "yahoo", "testdata", "chart_dividends.json"))
	require.NoError(t, err)
	calendar, err := os.ReadFile(filepath.Join("..", "..", "clients", "yahoo", "testdata", "calendar_events.json"))
	require.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v8/finance/chart/HGLG11.SA":
			_, _ = w.Write(chart)
		case "/v10/finance/quoteSummary/HGLG11.SA":
			_, _ = w.Write(calendar)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	fx := newFixture(t)
	svc := NewService(fx.assets, yahoo.NewClient(server.URL, nil, zerolog.Nop()), fx.repo, zerolog.Nop()).
		WithClock(func() time.Time { return today })

	events, err := svc.Calendar(context.Background())
	require.NoError(t, err)

	// HGLG11 holds 20 units: twelve monthly payments plus the announced one
	require.Len(t, events, 13)

	next := events[0]
	assert.Equal(t, "HGLG11", next.Symbol)
	assert.Equal(t, "2024-05-31", next.Date)
	assert.Equal(t, StatusAnnounced, next.Status)
	assert.InDelta(t, 22, next.Total, 1e-9)

	assert.Equal(t, "2024-04-30", events[1].Date)
	assert.Equal(t, StatusPaid, events[1].Status)
	assert.Equal(t, "2023-05-31", events[12].Date)

	var december Event
	for _, e := range events {
		if e.Date == "2023-12-28" {
			december = e
		}
	}
	assert.InDelta(t, 26, december.Total, 1e-9, "1.30 per unit times 20 units")

	stored, err := fx.repo.ListForAsset(context.Background(), fx.ids["HGLG11"])
	require.NoError(t, err)
	assert.Len(t, stored, 13, "fetched events are kept for offline use")
}

func TestCalendar_WindowAndStatus(t *testing.T) {
	fx := newFixture(t)
	supplier := &testingpkg.MockDividends{}
	supplier.On("FetchDividends", mock.Anything, "PETR4.SA").Return([]domain.Dividend{
		{ExDate: date("2023-04-01"), Amount: 1},  // older than a year
		{ExDate: date("2024-03-01"), Amount: 0.5},
		{ExDate: date("2024-06-03"), Amount: 0.75}, // reported ahead of its date
		{ExDate: date("2025-08-01"), Amount: 2},  // beyond the window
	}, nil)
	supplier.On("FetchDividends", mock.Anything, "HGLG11.SA").Return([]domain.Dividend{
		{ExDate: date("2024-03-01"), Amount: 1.1},
	}, nil)
	supplier.On("FetchDividends", mock.Anything, "VOO").Return([]domain.Dividend(nil), nil)

	svc := NewService(fx.assets, supplier, fx.repo, zerolog.Nop()).WithClock(func() time.Time { return today })

	events, err := svc.Calendar(context.Background())
	require.NoError(t, err)

	require.Len(t, events, 3)
	assert.Equal(t, Event{Symbol: "PETR4", Date: "2024-06-03", ValuePerShare: 0.75, Quantity: 100, Total: 75, Status: StatusScheduled}, events[0])
	assert.Equal(t, "HGLG11", events[1].Symbol, "same date orders by symbol")
	assert.InDelta(t, 22, events[1].Total, 1e-9)
	assert.Equal(t, "PETR4", events[2].Symbol)
	assert.InDelta(t, 50, events[2].Total, 1e-9)

	supplier.AssertNotCalled(t, "FetchDividends", mock.Anything, "CDB-NUBANK")
}

func TestCalendar_FallsBackToStoredEvents(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.repo.Replace(ctx, fx.ids["HGLG11"], []domain.Dividend{
		{ExDate: date("2024-04-30"), Amount: 1.1},
		{ExDate: date("2024-05-31"), Amount: 1.1, Announced: true},
	}))

	supplier := &testingpkg.MockDividends{}
	supplier.On("FetchDividends", mock.Anything, mock.Anything).Return(nil, errors.New("yahoo returned status 429"))

	svc := NewService(fx.assets, supplier, fx.repo, zerolog.Nop()).WithClock(func() time.Time { return today })

	events, err := svc.Calendar(ctx)
	require.NoError(t, err, "supplier failures never fail the calendar")

	require.Len(t, events, 2)
	assert.Equal(t, StatusAnnounced, events[0].Status)
	assert.Equal(t, StatusPaid, events[1].Status)
	for _, e := range events {
		assert.True(t, e.Stored)
		assert.Equal(t, "HGLG11", e.Symbol)
	}
}

func TestCalendar_SkipsEmptyPositions(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	zero := 0.0
	for _, symbol := range []string{"PETR4", "HGLG11", "VOO"} {
		require.NoError(t, fx.assets.Update(ctx, symbol, portfolio.PositionUpdate{Quantity: &zero}))
	}

	supplier := &testingpkg.MockDividends{}
	svc := NewService(fx.assets, supplier, fx.repo, zerolog.Nop())

	events, err := svc.Calendar(ctx)
	require.NoError(t, err)
	assert.Empty(t, events)
	supplier.AssertNotCalled(t, "FetchDividends", mock.Anything, mock.Anything)
}
