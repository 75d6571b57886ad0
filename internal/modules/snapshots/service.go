// Package snapshots records daily portfolio totals and serves the history.
package snapshots

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aristath/assetflow/internal/domain"
	"github.com/aristath/assetflow/internal/events"
	"github.com/aristath/assetflow/internal/modules/portfolio"
	"github.com/rs/zerolog"
)

// ErrInsufficientHistory is returned when a chart needs more snapshots
var ErrInsufficientHistory = errors.New("at least two snapshots are needed")

// TotalsProvider computes current portfolio totals
type TotalsProvider interface {
	Totals(ctx context.Context) (portfolio.Totals, error)
}

// Service takes and serves portfolio snapshots
type Service struct {
	repo   *Repository
	totals TotalsProvider
	events domain.EventEmitter
	log    zerolog.Logger
}

// NewService creates a snapshot service. events may be nil.
func NewService(repo *Repository, totals TotalsProvider, emitter domain.EventEmitter, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		totals: totals,
		events: emitter,
		log:    log.With().Str("service", "snapshots").Logger(),
	}
}

// TakeDailySnapshot records the current totals under date. Taking a second
// snapshot on the same day overwrites the first.
func (s *Service) TakeDailySnapshot(ctx context.Context, date time.Time) (domain.PortfolioSnapshot, error) {
	totals, err := s.totals.Totals(ctx)
	if err != nil {
		return domain.PortfolioSnapshot{}, fmt.Errorf("failed to compute totals: %w", err)
	}

	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	snap := domain.PortfolioSnapshot{
		Date:          day,
		TotalEquity:   totals.Equity,
		TotalInvested: totals.Invested,
		Profit:        totals.Profit,
	}

	if err := s.repo.Upsert(ctx, snap); err != nil {
		return domain.PortfolioSnapshot{}, err
	}

	s.log.Info().
		Str("date", day.Format(DateLayout)).
		Float64("total_equity", snap.TotalEquity).
		Float64("profit", snap.Profit).
		Msg("Portfolio snapshot taken")

	if s.events != nil {
		events.Publish(s.events, &events.SnapshotTakenData{
			Date:          day.Format(DateLayout),
			TotalEquity:   snap.TotalEquity,
			TotalInvested: snap.TotalInvested,
			Profit:        snap.Profit,
		})
	}

	return snap, nil
}

// RecordSnapshot takes today's snapshot. Forced dashboards call it.
func (s *Service) RecordSnapshot(ctx context.Context) error {
	_, err := s.TakeDailySnapshot(ctx, time.Now())
	return err
}

// History returns the recorded snapshots ordered by date
func (s *Service) History(ctx context.Context) ([]domain.PortfolioSnapshot, error) {
	return s.repo.List(ctx)
}

// RenderChart writes a PNG chart of equity against invested capital
func (s *Service) RenderChart(ctx context.Context, w io.Writer) error {
	history, err := s.repo.List(ctx)
	if err != nil {
		return err
	}
	if len(history) < 2 {
		return ErrInsufficientHistory
	}
	return renderHistoryChart(history, w)
}
