// Package portfolio owns the position store and the two-pass aggregation that
// turns holdings into the scored dashboard.
package portfolio

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/assetflow/internal/cache"
	"github.com/aristath/assetflow/internal/database"
	"github.com/aristath/assetflow/internal/domain"
	"github.com/aristath/assetflow/internal/modules/valuation"
	"github.com/rs/zerolog"
)

// Refresher pulls fresh market data before a forced dashboard
type Refresher interface {
	RefreshPrices(ctx context.Context) error
}

// SnapshotRecorder stores the daily portfolio snapshot after a forced refresh
type SnapshotRecorder interface {
	RecordSnapshot(ctx context.Context) error
}

// ServiceConfig holds the non-dependency settings of Service
type ServiceConfig struct {
	ReportingCurrency domain.Currency
	FXFallbackUSD     float64
	CacheTTL          time.Duration
}

// Service builds dashboards from the store, the snapshot cache and FX rates
type Service struct {
	db         *sql.DB
	assets     *AssetRepository
	categories *CategoryRepository
	cache      cache.Cache
	fx         domain.FXRateSupplier
	engine     *valuation.Engine
	refresher  Refresher
	recorder   SnapshotRecorder
	cfg        ServiceConfig
	log        zerolog.Logger
}

// NewService creates a new portfolio service
func NewService(
	db *sql.DB,
	assets *AssetRepository,
	categories *CategoryRepository,
	snapshots cache.Cache,
	fx domain.FXRateSupplier,
	engine *valuation.Engine,
	cfg ServiceConfig,
	log zerolog.Logger,
) *Service {
	if cfg.ReportingCurrency == "" {
		cfg.ReportingCurrency = domain.CurrencyBRL
	}
	if cfg.FXFallbackUSD <= 0 {
		cfg.FXFallbackUSD = 5.80
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	return &Service{
		db:         db,
		assets:     assets,
		categories: categories,
		cache:      snapshots,
		fx:         fx,
		engine:     engine,
		cfg:        cfg,
		log:        log.With().Str("service", "portfolio").Logger(),
	}
}

// SetRefresher wires the market refresh used by forced dashboards.
// Set after construction because the refresher itself depends on the store.
func (s *Service) SetRefresher(r Refresher) {
	s.refresher = r
}

// SetSnapshotRecorder wires the daily snapshot taken on forced dashboards.
// The recorder reads totals from this service, hence the setter.
func (s *Service) SetSnapshotRecorder(r SnapshotRecorder) {
	s.recorder = r
}

// InvalidateSnapshots drops every cached market snapshot. Call it after
// writes that change positions or prices.
func (s *Service) InvalidateSnapshots(ctx context.Context) {
	s.cache.Invalidate(ctx)
}

// Dashboard aggregates the whole portfolio. With force set, market data is
// refreshed, the snapshot cache dropped and the daily snapshot stored first.
// Supplier failures degrade to fallbacks and never fail the call.
func (s *Service) Dashboard(ctx context.Context, force bool) (Dashboard, error) {
	if force {
		if s.refresher != nil {
			if err := s.refresher.RefreshPrices(ctx); err != nil {
				s.log.Warn().Err(err).Msg("Forced refresh failed, using stored market data")
			}
		}
		s.cache.Invalidate(ctx)
		if s.recorder != nil {
			if err := s.recorder.RecordSnapshot(ctx); err != nil {
				s.log.Warn().Err(err).Msg("Failed to record daily snapshot")
			}
		}
	}

	in, err := s.loadInput(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	in.FX = s.resolveFX(ctx, in.Holdings)

	return Aggregate(in, s.engine), nil
}

// Totals returns the headline numbers of the current dashboard
func (s *Service) Totals(ctx context.Context) (Totals, error) {
	dash, err := s.Dashboard(ctx, false)
	if err != nil {
		return Totals{}, err
	}
	return dash.Totals(), nil
}

// loadInput reads holdings and category targets in one read transaction and
// overlays cached market snapshots.
func (s *Service) loadInput(ctx context.Context) (AggregateInput, error) {
	var in AggregateInput
	err := database.WithReadTransaction(ctx, s.db, func(tx *sql.Tx) error {
		holdings, err := s.assets.ListHoldingsTx(ctx, tx)
		if err != nil {
			return err
		}
		categories, err := s.categories.ListTx(ctx, tx)
		if err != nil {
			return err
		}
		in.Holdings = holdings
		in.Categories = TargetMap(categories)
		return nil
	})
	if err != nil {
		return AggregateInput{}, fmt.Errorf("failed to load portfolio: %w", err)
	}

	for i := range in.Holdings {
		h := &in.Holdings[i]
		if h.Asset == nil {
			continue
		}
		key := cache.SnapshotKey(h.Asset.ID)
		if snap, ok := s.cache.Get(ctx, key); ok {
			h.Market = &snap
			continue
		}
		if h.Market != nil {
			s.cache.Put(ctx, key, *h.Market, s.cfg.CacheTTL)
		}
	}

	return in, nil
}

// resolveFX fetches one rate per foreign currency held. USD falls back to
// the configured constant; other currencies fall back to a factor of 1.
func (s *Service) resolveFX(ctx context.Context, holdings []domain.Holding) domain.FXRates {
	rates := domain.FXRates{}
	for _, h := range holdings {
		if h.Asset == nil {
			continue
		}
		ccy := h.Asset.Currency
		if ccy == s.cfg.ReportingCurrency {
			continue
		}
		if _, done := rates[ccy]; done {
			continue
		}

		var rate float64
		var err error
		if s.fx != nil {
			rate, err = s.fx.Rate(ctx, ccy)
		} else {
			err = fmt.Errorf("no FX supplier configured")
		}
		if err == nil && rate > 0 {
			rates[ccy] = rate
			continue
		}

		if ccy == domain.CurrencyUSD && s.cfg.ReportingCurrency == domain.CurrencyBRL {
			s.log.Warn().Err(err).Float64("fallback", s.cfg.FXFallbackUSD).Msg("FX rate unavailable, using fallback")
			rates[ccy] = s.cfg.FXFallbackUSD
			continue
		}
		s.log.Warn().Err(err).Str("currency", string(ccy)).Msg("FX rate unavailable, valuing at 1:1")
		rates[ccy] = 1.0
	}
	return rates
}
