package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/assetflow/internal/modules/portfolio"
	"github.com/rs/zerolog"
)

// DashboardSource produces the aggregated dashboard
type DashboardSource interface {
	Dashboard(ctx context.Context, force bool) (portfolio.Dashboard, error)
}

// Service builds exports from the live dashboard
type Service struct {
	dashboards DashboardSource
	generator  *XLSXGenerator
	now        func() time.Time
	log        zerolog.Logger
}

// NewService creates a report service
func NewService(dashboards DashboardSource, generator *XLSXGenerator, log zerolog.Logger) *Service {
	return &Service{
		dashboards: dashboards,
		generator:  generator,
		now:        time.Now,
		log:        log.With().Str("service", "reports").Logger(),
	}
}

// DashboardXLSX renders the current dashboard as an xlsx workbook
func (s *Service) DashboardXLSX(ctx context.Context) ([]byte, error) {
	dash, err := s.dashboards.Dashboard(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("failed to build dashboard: %w", err)
	}

	data, err := s.generator.Generate(dash, s.now())
	if err != nil {
		return nil, err
	}

	s.log.Info().Int("positions", len(dash.Positions)).Int("bytes", len(data)).Msg("Dashboard report generated")
	return data, nil
}

// FileName is the suggested download name for a report generated at t
func FileName(t time.Time) string {
	return fmt.Sprintf("assetflow_%s.xlsx", t.Format("2006-01-02"))
}
