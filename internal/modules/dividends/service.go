package dividends

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aristath/assetflow/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// DefaultWorkers bounds concurrent dividend fetches
const DefaultWorkers = 4

// Window is how far back and ahead of today the calendar reaches
const Window = 365 * 24 * time.Hour

// Status tells paid dividends from upcoming ones
type Status string

// Event statuses
const (
	StatusPaid      Status = "paid"
	StatusScheduled Status = "scheduled"
	StatusAnnounced Status = "announced"
)

// Event is one calendar row: a dividend applied to the current quantity
type Event struct {
	Symbol        string  `json:"symbol"`
	Date          string  `json:"date"`
	ValuePerShare float64 `json:"value_per_share"`
	Quantity      float64 `json:"quantity"`
	Total         float64 `json:"total"`
	Status        Status  `json:"status"`
	Stored        bool    `json:"stored,omitempty"`
}

// HoldingLister lists the positions of the portfolio
type HoldingLister interface {
	ListHoldings(ctx context.Context) ([]domain.Holding, error)
}

// Service builds the dividend calendar
type Service struct {
	holdings HoldingLister
	supplier domain.DividendSupplier
	repo     *Repository
	workers  int
	now      func() time.Time
	log      zerolog.Logger
}

// NewService creates a dividend calendar service
func NewService(holdings HoldingLister, supplier domain.DividendSupplier, repo *Repository, log zerolog.Logger) *Service {
	return &Service{
		holdings: holdings,
		supplier: supplier,
		repo:     repo,
		workers:  DefaultWorkers,
		now:      time.Now,
		log:      log.With().Str("service", "dividends").Logger(),
	}
}

// WithClock overrides the calendar's notion of today
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// paysDividends reports whether a category distributes dividends
func paysDividends(c domain.Category) bool {
	switch c {
	case domain.CategoryStock, domain.CategoryREIT, domain.CategoryInternational, domain.CategoryETF:
		return true
	}
	return false
}

type fetched struct {
	holding domain.Holding
	divs    []domain.Dividend
	err     error
	stored  bool
}

// Calendar returns the dividends of the past year and every announced one
// up to a year ahead, valued at the current quantity and newest first. A
// failed fetch falls back to the events stored for that asset.
func (s *Service) Calendar(ctx context.Context) ([]Event, error) {
	holdings, err := s.holdings.ListHoldings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list holdings: %w", err)
	}

	var targets []domain.Holding
	for _, h := range holdings {
		if h.Asset != nil && h.Position.Quantity > 0 && paysDividends(h.Asset.Category) {
			targets = append(targets, h)
		}
	}

	today := s.now().UTC()
	from, to := today.Add(-Window), today.Add(Window)

	events := make([]Event, 0, len(targets)*12)
	// Fetch concurrently, then write one asset at a time
	for _, f := range s.fetchAll(ctx, targets) {
		s.settle(ctx, &f)
		qty := decimal.NewFromFloat(f.holding.Position.Quantity)
		for _, d := range f.divs {
			if d.ExDate.Before(from) || d.ExDate.After(to) {
				continue
			}
			total := decimal.NewFromFloat(d.Amount).Mul(qty).Round(2)
			if !total.IsPositive() {
				continue
			}
			events = append(events, Event{
				Symbol:        f.holding.Asset.Symbol,
				Date:          d.ExDate.UTC().Format(DateLayout),
				ValuePerShare: d.Amount,
				Quantity:      f.holding.Position.Quantity,
				Total:         total.InexactFloat64(),
				Status:        status(d, today),
				Stored:        f.stored,
			})
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Date != events[j].Date {
			return events[i].Date > events[j].Date
		}
		return events[i].Symbol < events[j].Symbol
	})
	return events, nil
}

func status(d domain.Dividend, today time.Time) Status {
	switch {
	case d.Announced:
		return StatusAnnounced
	case d.ExDate.After(today):
		return StatusScheduled
	default:
		return StatusPaid
	}
}

func (s *Service) fetchAll(ctx context.Context, holdings []domain.Holding) []fetched {
	if len(holdings) == 0 {
		return nil
	}

	jobs := make(chan int, len(holdings))
	results := make([]fetched, len(holdings))

	workers := s.workers
	if len(holdings) < workers {
		workers = len(holdings)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = s.fetch(ctx, holdings[idx])
			}
		}()
	}

	for i := range holdings {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}

func (s *Service) fetch(ctx context.Context, h domain.Holding) fetched {
	out := fetched{holding: h}
	if out.err = ctx.Err(); out.err != nil {
		return out
	}
	out.divs, out.err = s.supplier.FetchDividends(ctx, domain.ProviderSymbol(h.Asset.Symbol, h.Asset.Category))
	return out
}

// settle stores a successful fetch or swaps a failed one for the stored events
func (s *Service) settle(ctx context.Context, f *fetched) {
	symbol := f.holding.Asset.Symbol
	if f.err == nil {
		if err := s.repo.Replace(ctx, f.holding.Asset.ID, f.divs); err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to store dividend events")
		}
		return
	}

	s.log.Warn().Err(f.err).Str("symbol", symbol).Msg("Dividend fetch failed, using stored events")
	stored, err := s.repo.ListForAsset(ctx, f.holding.Asset.ID)
	if err != nil {
		s.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to read stored dividend events")
		return
	}
	f.divs = stored
	f.stored = true
}
