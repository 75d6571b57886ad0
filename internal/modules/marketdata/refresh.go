// Package marketdata refreshes quotes, momentum indicators and provider
// fundamentals for every holding in the portfolio.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aristath/assetflow/internal/cache"
	"github.com/aristath/assetflow/internal/domain"
	"github.com/aristath/assetflow/internal/events"
	"github.com/aristath/assetflow/internal/modules/portfolio"
	"github.com/aristath/assetflow/pkg/formulas"
	"github.com/rs/zerolog"
)

// DefaultWorkers bounds concurrent quote fetches
const DefaultWorkers = 4

// lowLookback is the number of daily closes that make up the 6-month low
const lowLookback = 126

// ErrRefreshFailed is returned when no holding could be refreshed
var ErrRefreshFailed = errors.New("market refresh failed for every asset")

// RefreshResult summarizes one price refresh
type RefreshResult struct {
	Updated  int           `json:"updated"`
	Skipped  int           `json:"skipped"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"-"`
}

// FundamentalsResult summarizes one fundamentals refresh
type FundamentalsResult struct {
	Checked int `json:"checked"`
	Filled  int `json:"filled"`
	Failed  int `json:"failed"`
}

// RefreshService pulls market data for all holdings and writes it to the
// position store
type RefreshService struct {
	assets   *portfolio.AssetRepository
	supplier domain.MarketDataSupplier
	cache    cache.Cache
	events   domain.EventEmitter
	workers  int
	now      func() time.Time
	log      zerolog.Logger
}

// NewRefreshService creates a refresh service. cache and events may be nil.
func NewRefreshService(
	assets *portfolio.AssetRepository,
	supplier domain.MarketDataSupplier,
	snapshots cache.Cache,
	emitter domain.EventEmitter,
	log zerolog.Logger,
) *RefreshService {
	return &RefreshService{
		assets:   assets,
		supplier: supplier,
		cache:    snapshots,
		events:   emitter,
		workers:  DefaultWorkers,
		now:      time.Now,
		log:      log.With().Str("service", "market_refresh").Logger(),
	}
}

// SetWorkers overrides the fetch concurrency
func (s *RefreshService) SetWorkers(n int) {
	if n > 0 {
		s.workers = n
	}
}

// RefreshPrices refreshes every holding and discards the summary
func (s *RefreshService) RefreshPrices(ctx context.Context) error {
	_, err := s.Refresh(ctx)
	return err
}

type fetchJob struct {
	index   int
	holding domain.Holding
}

type fetchResult struct {
	index   int
	holding domain.Holding
	quote   domain.Quote
	err     error
}

// Refresh fetches quotes concurrently, then writes them one at a time
func (s *RefreshService) Refresh(ctx context.Context) (RefreshResult, error) {
	started := s.now()

	holdings, err := s.assets.ListHoldings(ctx)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("failed to list holdings: %w", err)
	}

	var targets []domain.Holding
	for _, h := range holdings {
		if h.Asset != nil {
			targets = append(targets, h)
		}
	}

	results := s.fetchAll(ctx, targets)

	var res RefreshResult
	for _, r := range results {
		asset := r.holding.Asset
		switch {
		case r.err == nil && r.quote.Price <= 0:
			r.err = domain.ErrNoMarketData
			fallthrough
		case r.err != nil:
			if errors.Is(r.err, domain.ErrNoMarketData) && asset.Category == domain.CategoryCashReserve {
				res.Skipped++
				continue
			}
			res.Failed++
			s.log.Warn().Err(r.err).Str("symbol", asset.Symbol).Msg("Failed to fetch quote")
			continue
		}

		if err := s.assets.UpsertMarketData(ctx, snapshotFromQuote(asset.ID, r.quote)); err != nil {
			res.Failed++
			s.log.Error().Err(err).Str("symbol", asset.Symbol).Msg("Failed to store market data")
			continue
		}
		res.Updated++
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}

	res.Duration = s.now().Sub(started)
	s.log.Info().
		Int("updated", res.Updated).
		Int("skipped", res.Skipped).
		Int("failed", res.Failed).
		Dur("duration", res.Duration).
		Msg("Market refresh completed")

	if s.events != nil {
		events.Publish(s.events, &events.MarketRefreshedData{
			Updated: res.Updated,
			Skipped: res.Skipped,
			Failed:  res.Failed,
			Seconds: res.Duration.Seconds(),
		})
	}

	if res.Failed > 0 && res.Updated == 0 {
		return res, fmt.Errorf("%w (%d failed)", ErrRefreshFailed, res.Failed)
	}
	return res, nil
}

func (s *RefreshService) fetchAll(ctx context.Context, holdings []domain.Holding) []fetchResult {
	if len(holdings) == 0 {
		return nil
	}

	jobs := make(chan fetchJob, len(holdings))
	out := make(chan fetchResult, len(holdings))

	workers := s.workers
	if len(holdings) < workers {
		workers = len(holdings)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				out <- s.fetch(ctx, job)
			}
		}()
	}

	for i, h := range holdings {
		jobs <- fetchJob{index: i, holding: h}
	}
	close(jobs)

	wg.Wait()
	close(out)

	results := make([]fetchResult, len(holdings))
	for r := range out {
		results[r.index] = r
	}
	return results
}

func (s *RefreshService) fetch(ctx context.Context, job fetchJob) fetchResult {
	res := fetchResult{index: job.index, holding: job.holding}
	if err := ctx.Err(); err != nil {
		res.err = err
		return res
	}
	symbol := domain.ProviderSymbol(job.holding.Asset.Symbol, job.holding.Asset.Category)
	res.quote, res.err = s.supplier.FetchQuote(ctx, symbol)
	return res
}

// snapshotFromQuote derives the stored market row from a supplier quote
func snapshotFromQuote(assetID int64, q domain.Quote) domain.MarketSnapshot {
	low := q.Low6M
	if low <= 0 {
		low = formulas.MinOfLast(q.Closes, lowLookback)
	}
	return domain.MarketSnapshot{
		AssetID: assetID,
		Price:   q.Price,
		Low6M:   low,
		RSI:     formulas.CalculateRSI(q.Closes, formulas.DefaultRSIPeriod),
		SMA:     formulas.CalculateSMA(q.Closes, formulas.DefaultSMAPeriod),
	}
}

// RefreshFundamentals fills unset dividend yield, EPS and book value for
// stocks and REITs from the provider. Curated values are never replaced.
func (s *RefreshService) RefreshFundamentals(ctx context.Context) (FundamentalsResult, error) {
	holdings, err := s.assets.ListHoldings(ctx)
	if err != nil {
		return FundamentalsResult{}, fmt.Errorf("failed to list holdings: %w", err)
	}

	var res FundamentalsResult
	for _, h := range holdings {
		if h.Asset == nil {
			continue
		}
		if h.Asset.Category != domain.CategoryStock && h.Asset.Category != domain.CategoryREIT {
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}

		res.Checked++
		symbol := domain.ProviderSymbol(h.Asset.Symbol, h.Asset.Category)
		f, err := s.supplier.FetchFundamentals(ctx, symbol)
		if err != nil {
			res.Failed++
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to fetch fundamentals")
			continue
		}

		changed, err := s.assets.FillFundamentals(ctx, h.Asset.ID, f)
		if err != nil {
			res.Failed++
			s.log.Error().Err(err).Str("symbol", h.Asset.Symbol).Msg("Failed to store fundamentals")
			continue
		}
		if changed {
			res.Filled++
		}
	}

	s.log.Info().
		Int("checked", res.Checked).
		Int("filled", res.Filled).
		Int("failed", res.Failed).
		Msg("Fundamentals refresh completed")

	return res, nil
}
