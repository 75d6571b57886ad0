// Package dividends builds the dividend calendar of the portfolio and keeps
// the last fetched dividend events per asset in portfolio.db.
package dividends

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/assetflow/internal/database"
	"github.com/aristath/assetflow/internal/domain"
	"github.com/rs/zerolog"
)

// DateLayout is the stored and served ex-date format
const DateLayout = "2006-01-02"

// dividendColumns must match scanDividend
const dividendColumns = `ex_date, amount, announced`

// Repository stores the dividend events fetched for each asset. A fetch
// replaces everything stored for that asset.
type Repository struct {
	db  *sql.DB
	now func() time.Time
	log zerolog.Logger
}

// NewRepository creates a dividend event repository over portfolio.db
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		now: time.Now,
		log: log.With().Str("repo", "dividends").Logger(),
	}
}

// Replace stores divs as the dividend events of assetID. Events on the same
// ex-date collapse into the last one.
func (r *Repository) Replace(ctx context.Context, assetID int64, divs []domain.Dividend) error {
	fetchedAt := r.now().Unix()

	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM dividend_events WHERE asset_id = ?", assetID); err != nil {
			return fmt.Errorf("failed to clear dividend events: %w", err)
		}
		for _, d := range divs {
			_, err := tx.ExecContext(ctx, `INSERT INTO dividend_events
				(asset_id, ex_date, amount, announced, fetched_at)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT(asset_id, ex_date) DO UPDATE SET
					amount = excluded.amount,
					announced = excluded.announced,
					fetched_at = excluded.fetched_at`,
				assetID, d.ExDate.UTC().Format(DateLayout), d.Amount, boolToInt(d.Announced), fetchedAt)
			if err != nil {
				return fmt.Errorf("failed to store dividend event: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.log.Debug().Int64("asset_id", assetID).Int("events", len(divs)).Msg("Dividend events stored")
	return nil
}

// ListForAsset returns the stored events of assetID, oldest first
func (r *Repository) ListForAsset(ctx context.Context, assetID int64) ([]domain.Dividend, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+dividendColumns+" FROM dividend_events WHERE asset_id = ? ORDER BY ex_date ASC", assetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list dividend events: %w", err)
	}
	defer rows.Close()

	var divs []domain.Dividend
	for rows.Next() {
		d, err := scanDividend(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dividend event: %w", err)
		}
		divs = append(divs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate dividend events: %w", err)
	}
	return divs, nil
}

func scanDividend(rows *sql.Rows) (domain.Dividend, error) {
	var (
		exDate    string
		d         domain.Dividend
		announced int
	)
	if err := rows.Scan(&exDate, &d.Amount, &announced); err != nil {
		return domain.Dividend{}, err
	}
	t, err := time.Parse(DateLayout, exDate)
	if err != nil {
		return domain.Dividend{}, fmt.Errorf("bad ex_date %q: %w", exDate, err)
	}
	d.ExDate = t
	d.Announced = announced != 0
	return d, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
