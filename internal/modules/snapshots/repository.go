package snapshots

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/assetflow/internal/domain"
	"github.com/rs/zerolog"
)

// DateLayout is the storage format of a snapshot date
const DateLayout = "2006-01-02"

// Repository stores one row of portfolio totals per day in history.db
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a snapshot repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "snapshots").Logger(),
	}
}

// Upsert writes the snapshot for its date, replacing any earlier one
func (r *Repository) Upsert(ctx context.Context, snap domain.PortfolioSnapshot) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO portfolio_snapshots
		(date, total_equity, total_invested, profit)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			total_equity = excluded.total_equity,
			total_invested = excluded.total_invested,
			profit = excluded.profit`,
		snap.Date.Format(DateLayout), snap.TotalEquity, snap.TotalInvested, snap.Profit)
	if err != nil {
		return fmt.Errorf("failed to upsert snapshot: %w", err)
	}
	return nil
}

// List returns every snapshot, oldest first
func (r *Repository) List(ctx context.Context) ([]domain.PortfolioSnapshot, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT date, total_equity, total_invested, profit
		FROM portfolio_snapshots ORDER BY date ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var out []domain.PortfolioSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSnapshot(row rowScanner) (domain.PortfolioSnapshot, error) {
	var (
		snap domain.PortfolioSnapshot
		date string
	)
	if err := row.Scan(&date, &snap.TotalEquity, &snap.TotalInvested, &snap.Profit); err != nil {
		if err == sql.ErrNoRows {
			return snap, err
		}
		return snap, fmt.Errorf("failed to scan snapshot: %w", err)
	}
	parsed, err := time.Parse(DateLayout, date)
	if err != nil {
		return snap, fmt.Errorf("invalid snapshot date %q: %w", date, err)
	}
	snap.Date = parsed
	return snap, nil
}
