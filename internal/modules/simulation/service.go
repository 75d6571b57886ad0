package simulation

import (
	"context"
	"fmt"

	"github.com/aristath/assetflow/internal/domain"
	"github.com/aristath/assetflow/internal/modules/portfolio"
	"github.com/rs/zerolog"
)

// HistorySource returns the recorded daily snapshots, oldest first
type HistorySource interface {
	History(ctx context.Context) ([]domain.PortfolioSnapshot, error)
}

// TotalsProvider computes current portfolio totals
type TotalsProvider interface {
	Totals(ctx context.Context) (portfolio.Totals, error)
}

// Service runs projections from the live portfolio and its history
type Service struct {
	history HistorySource
	totals  TotalsProvider
	params  Params
	log     zerolog.Logger
}

// NewService creates a simulation service
func NewService(history HistorySource, totals TotalsProvider, params Params, log zerolog.Logger) *Service {
	return &Service{
		history: history,
		totals:  totals,
		params:  params,
		log:     log.With().Str("service", "simulation").Logger(),
	}
}

// Project runs the Monte Carlo projection starting from current equity
func (s *Service) Project(ctx context.Context) (Projection, error) {
	totals, err := s.totals.Totals(ctx)
	if err != nil {
		return Projection{}, fmt.Errorf("failed to compute totals: %w", err)
	}

	history, err := s.history.History(ctx)
	if err != nil {
		return Projection{}, fmt.Errorf("failed to load history: %w", err)
	}

	equity := make([]float64, 0, len(history))
	for _, snap := range history {
		equity = append(equity, snap.TotalEquity)
	}

	proj := Run(totals.Equity, equity, s.params)
	s.log.Debug().
		Int("history_points", len(equity)).
		Float64("start", proj.StartValue).
		Str("volatility", proj.Volatility).
		Msg("Projection computed")
	return proj, nil
}
