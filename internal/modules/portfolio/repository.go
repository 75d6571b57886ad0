package portfolio

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/aristath/assetflow/internal/database"
	"github.com/aristath/assetflow/internal/domain"
	"github.com/rs/zerolog"
)

var (
	// ErrAssetNotFound is returned when no asset matches the symbol
	ErrAssetNotFound = errors.New("asset not found")
	// ErrAssetExists is returned when creating a symbol that is already tracked
	ErrAssetExists = errors.New("asset already exists")
	// ErrInvalidCategory is returned for unknown categories and out of range targets
	ErrInvalidCategory = errors.New("invalid category")
	// ErrInvalidPosition is returned for negative quantities, costs or targets
	ErrInvalidPosition = errors.New("invalid position")
)

// LowWindow is the lifetime of a 6-month low tracking window.
// 126 trading days is roughly 183 calendar days.
const LowWindow = 183 * 24 * time.Hour

// NewAssetInput holds the fields for a first purchase
type NewAssetInput struct {
	Symbol        string          `json:"symbol"`
	Name          string          `json:"name"`
	Currency      domain.Currency `json:"currency"`
	Category      domain.Category `json:"category"`
	Quantity      float64         `json:"quantity"`
	AveragePrice  float64         `json:"average_price"`
	TargetPercent float64         `json:"target_percent"`
	DividendYield float64         `json:"manual_dy"`
	EPS           float64         `json:"manual_lpa"`
	BookValue     float64         `json:"manual_vpa"`
}

// PositionUpdate is a partial update. Nil fields are left untouched.
type PositionUpdate struct {
	Name          *string          `json:"name,omitempty"`
	Category      *domain.Category `json:"category,omitempty"`
	Quantity      *float64         `json:"quantity,omitempty"`
	AveragePrice  *float64         `json:"average_price,omitempty"`
	TargetPercent *float64         `json:"target_percent,omitempty"`
	DividendYield *float64         `json:"manual_dy,omitempty"`
	EPS           *float64         `json:"manual_lpa,omitempty"`
	BookValue     *float64         `json:"manual_vpa,omitempty"`
	ManualPrice   *float64         `json:"manual_price,omitempty"`
}

// AssetRepository handles assets, positions and market data in portfolio.db
type AssetRepository struct {
	db  *sql.DB
	log zerolog.Logger
	now func() time.Time
}

// NewAssetRepository creates a new asset repository
func NewAssetRepository(db *sql.DB, log zerolog.Logger) *AssetRepository {
	return &AssetRepository{
		db:  db,
		log: log.With().Str("repo", "asset").Logger(),
		now: time.Now,
	}
}

// WithClock replaces the time source used for market data windows
func (r *AssetRepository) WithClock(now func() time.Time) *AssetRepository {
	r.now = now
	return r
}

// NormalizeSymbol trims and upper-cases a ticker
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func validAmount(v float64) bool {
	return v >= 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

func validPercent(v float64) bool {
	return validAmount(v) && v <= 100
}

// Create inserts an asset together with its position
func (r *AssetRepository) Create(ctx context.Context, in NewAssetInput) (domain.Holding, error) {
	in.Symbol = NormalizeSymbol(in.Symbol)
	if in.Symbol == "" {
		return domain.Holding{}, fmt.Errorf("%w: symbol is required", ErrInvalidPosition)
	}
	if !validAmount(in.Quantity) || !validAmount(in.AveragePrice) || !validPercent(in.TargetPercent) {
		return domain.Holding{}, fmt.Errorf("%w: quantity, average price and target must be non-negative (target at most 100)", ErrInvalidPosition)
	}
	if in.Name == "" {
		in.Name = in.Symbol
	}
	in.Currency = domain.NormalizeCurrency(string(in.Currency))

	var assetID int64
	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		categoryID, err := categoryIDTx(ctx, tx, in.Category)
		if err != nil {
			return err
		}

		var exists int
		err = tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM assets WHERE symbol = ?", in.Symbol).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check asset: %w", err)
		}
		if exists > 0 {
			return fmt.Errorf("%w: %s", ErrAssetExists, in.Symbol)
		}

		res, err := tx.ExecContext(ctx,
			"INSERT INTO assets (symbol, name, currency, category_id) VALUES (?, ?, ?, ?)",
			in.Symbol, in.Name, string(in.Currency), categoryID)
		if err != nil {
			return fmt.Errorf("failed to insert asset: %w", err)
		}
		assetID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read asset id: %w", err)
		}

		_, err = tx.ExecContext(ctx, `INSERT INTO positions
			(asset_id, quantity, average_price, target_percent, manual_dy, manual_lpa, manual_vpa)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			assetID, in.Quantity, in.AveragePrice, in.TargetPercent,
			nullIfZero(in.DividendYield), nullIfZero(in.EPS), nullIfZero(in.BookValue))
		if err != nil {
			return fmt.Errorf("failed to insert position: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Holding{}, err
	}

	r.log.Info().Str("symbol", in.Symbol).Str("category", string(in.Category)).Msg("Asset created")
	return r.GetBySymbol(ctx, in.Symbol)
}

// Update applies a partial update to the asset and its position
func (r *AssetRepository) Update(ctx context.Context, symbol string, upd PositionUpdate) error {
	symbol = NormalizeSymbol(symbol)

	for _, v := range []*float64{upd.Quantity, upd.AveragePrice, upd.ManualPrice} {
		if v != nil && !validAmount(*v) {
			return fmt.Errorf("%w: values must be non-negative", ErrInvalidPosition)
		}
	}
	if upd.TargetPercent != nil && !validPercent(*upd.TargetPercent) {
		return fmt.Errorf("%w: target must be between 0 and 100", ErrInvalidPosition)
	}

	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		var assetID int64
		err := tx.QueryRowContext(ctx, "SELECT id FROM assets WHERE symbol = ?", symbol).Scan(&assetID)
		if err == sql.ErrNoRows {
			return fmt.Errorf("%w: %s", ErrAssetNotFound, symbol)
		}
		if err != nil {
			return fmt.Errorf("failed to look up asset: %w", err)
		}

		if upd.Name != nil {
			if _, err := tx.ExecContext(ctx, "UPDATE assets SET name = ? WHERE id = ?", *upd.Name, assetID); err != nil {
				return fmt.Errorf("failed to update asset name: %w", err)
			}
		}
		if upd.Category != nil {
			categoryID, err := categoryIDTx(ctx, tx, *upd.Category)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, "UPDATE assets SET category_id = ? WHERE id = ?", categoryID, assetID); err != nil {
				return fmt.Errorf("failed to update asset category: %w", err)
			}
		}

		// Make sure the position row exists before partial updates
		if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO positions (asset_id) VALUES (?)", assetID); err != nil {
			return fmt.Errorf("failed to ensure position: %w", err)
		}

		sets := []string{}
		args := []interface{}{}
		add := func(col string, v *float64, nullable bool) {
			if v == nil {
				return
			}
			sets = append(sets, col+" = ?")
			if nullable {
				args = append(args, nullIfZero(*v))
			} else {
				args = append(args, *v)
			}
		}
		add("quantity", upd.Quantity, false)
		add("average_price", upd.AveragePrice, false)
		add("target_percent", upd.TargetPercent, false)
		add("manual_dy", upd.DividendYield, true)
		add("manual_lpa", upd.EPS, true)
		add("manual_vpa", upd.BookValue, true)

		if len(sets) > 0 {
			args = append(args, assetID)
			query := "UPDATE positions SET " + strings.Join(sets, ", ") + " WHERE asset_id = ?"
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("failed to update position: %w", err)
			}
		}

		if upd.ManualPrice != nil && *upd.ManualPrice > 0 {
			snap := domain.MarketSnapshot{AssetID: assetID, Price: *upd.ManualPrice}
			if err := r.upsertMarketDataTx(ctx, tx, snap); err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete removes an asset; its position and market data cascade
func (r *AssetRepository) Delete(ctx context.Context, symbol string) error {
	symbol = NormalizeSymbol(symbol)
	res, err := r.db.ExecContext(ctx, "DELETE FROM assets WHERE symbol = ?", symbol)
	if err != nil {
		return fmt.Errorf("failed to delete asset: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrAssetNotFound, symbol)
	}
	r.log.Info().Str("symbol", symbol).Msg("Asset deleted")
	return nil
}

const holdingColumns = `p.id, p.asset_id, p.quantity, p.average_price, p.target_percent,
	p.manual_dy, p.manual_lpa, p.manual_vpa,
	a.id, a.symbol, a.name, a.currency, c.name,
	m.price, m.min_6m, m.rsi_14, m.sma_20, m.window_start, m.updated_at`

const holdingJoins = `FROM positions p
	LEFT JOIN assets a ON a.id = p.asset_id
	LEFT JOIN categories c ON c.id = a.category_id
	LEFT JOIN market_data m ON m.asset_id = p.asset_id`

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// GetBySymbol returns one holding
func (r *AssetRepository) GetBySymbol(ctx context.Context, symbol string) (domain.Holding, error) {
	holdings, err := listHoldings(ctx, r.db, "WHERE a.symbol = ?", NormalizeSymbol(symbol))
	if err != nil {
		return domain.Holding{}, err
	}
	if len(holdings) == 0 {
		return domain.Holding{}, fmt.Errorf("%w: %s", ErrAssetNotFound, symbol)
	}
	return holdings[0], nil
}

// ListHoldings returns every position with its asset and market snapshot
func (r *AssetRepository) ListHoldings(ctx context.Context) ([]domain.Holding, error) {
	return listHoldings(ctx, r.db, "")
}

// ListHoldingsTx is ListHoldings inside a caller-owned transaction
func (r *AssetRepository) ListHoldingsTx(ctx context.Context, tx *sql.Tx) ([]domain.Holding, error) {
	return listHoldings(ctx, tx, "")
}

func listHoldings(ctx context.Context, q queryer, where string, args ...interface{}) ([]domain.Holding, error) {
	query := "SELECT " + holdingColumns + " " + holdingJoins + " " + where + " ORDER BY p.id"
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings: %w", err)
	}
	defer rows.Close()

	var holdings []domain.Holding
	for rows.Next() {
		h, err := scanHolding(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		holdings = append(holdings, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holdings: %w", err)
	}
	return holdings, nil
}

func scanHolding(rows *sql.Rows) (domain.Holding, error) {
	var (
		h                    domain.Holding
		dy, lpa, vpa         sql.NullFloat64
		assetID              sql.NullInt64
		symbol, name, ccy    sql.NullString
		category             sql.NullString
		price, low, rsi, sma sql.NullFloat64
		windowStart, updated sql.NullInt64
	)

	err := rows.Scan(
		&h.Position.ID, &h.Position.AssetID, &h.Position.Quantity, &h.Position.AveragePrice, &h.Position.TargetPercent,
		&dy, &lpa, &vpa,
		&assetID, &symbol, &name, &ccy, &category,
		&price, &low, &rsi, &sma, &windowStart, &updated,
	)
	if err != nil {
		return h, err
	}

	h.Position.DividendYield = dy.Float64
	h.Position.EPS = lpa.Float64
	h.Position.BookValue = vpa.Float64

	if assetID.Valid {
		h.Asset = &domain.Asset{
			ID:       assetID.Int64,
			Symbol:   symbol.String,
			Name:     name.String,
			Currency: domain.NormalizeCurrency(ccy.String),
			Category: domain.Category(category.String),
		}
	}

	if price.Valid {
		snap := &domain.MarketSnapshot{
			AssetID:     h.Position.AssetID,
			Price:       price.Float64,
			Low6M:       low.Float64,
			WindowStart: time.Unix(windowStart.Int64, 0).UTC(),
			UpdatedAt:   time.Unix(updated.Int64, 0).UTC(),
		}
		if rsi.Valid {
			v := rsi.Float64
			snap.RSI = &v
		}
		if sma.Valid {
			v := sma.Float64
			snap.SMA = &v
		}
		h.Market = snap
	}

	return h, nil
}

// UpsertMarketData overwrites the market row for an asset.
// Within a tracking window the 6-month low only moves down; once the
// window is older than LowWindow it restarts from the supplied low.
func (r *AssetRepository) UpsertMarketData(ctx context.Context, snap domain.MarketSnapshot) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		return r.upsertMarketDataTx(ctx, tx, snap)
	})
}

func (r *AssetRepository) upsertMarketDataTx(ctx context.Context, tx *sql.Tx, snap domain.MarketSnapshot) error {
	now := r.now().UTC()

	var (
		oldLow      float64
		windowStart int64
		haveRow     = true
	)
	err := tx.QueryRowContext(ctx, "SELECT min_6m, window_start FROM market_data WHERE asset_id = ?", snap.AssetID).
		Scan(&oldLow, &windowStart)
	if err == sql.ErrNoRows {
		haveRow = false
	} else if err != nil {
		return fmt.Errorf("failed to read market data: %w", err)
	}

	low := snap.Low6M
	start := now
	if haveRow && now.Sub(time.Unix(windowStart, 0)) <= LowWindow {
		start = time.Unix(windowStart, 0)
		low = mergeLow(oldLow, snap.Low6M)
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO market_data
		(asset_id, price, min_6m, rsi_14, sma_20, window_start, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(asset_id) DO UPDATE SET
			price = excluded.price,
			min_6m = excluded.min_6m,
			rsi_14 = COALESCE(excluded.rsi_14, market_data.rsi_14),
			sma_20 = COALESCE(excluded.sma_20, market_data.sma_20),
			window_start = excluded.window_start,
			updated_at = excluded.updated_at`,
		snap.AssetID, snap.Price, low, nullFloat(snap.RSI), nullFloat(snap.SMA), start.Unix(), now.Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert market data: %w", err)
	}
	return nil
}

// mergeLow keeps the lower of two positive lows; a non-positive value is unknown.
func mergeLow(old, fresh float64) float64 {
	switch {
	case old <= 0:
		return math.Max(fresh, 0)
	case fresh <= 0:
		return old
	default:
		return math.Min(old, fresh)
	}
}

// FillFundamentals writes provider fundamentals into fields that are still
// NULL or 0. Curated values always win. Returns whether anything changed.
func (r *AssetRepository) FillFundamentals(ctx context.Context, assetID int64, f domain.Fundamentals) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE positions SET
			manual_dy  = CASE WHEN (manual_dy IS NULL OR manual_dy = 0) AND ? > 0 THEN ? ELSE manual_dy END,
			manual_lpa = CASE WHEN (manual_lpa IS NULL OR manual_lpa = 0) AND ? <> 0 THEN ? ELSE manual_lpa END,
			manual_vpa = CASE WHEN (manual_vpa IS NULL OR manual_vpa = 0) AND ? > 0 THEN ? ELSE manual_vpa END
		WHERE asset_id = ?
			AND (((manual_dy IS NULL OR manual_dy = 0) AND ? > 0)
			  OR ((manual_lpa IS NULL OR manual_lpa = 0) AND ? <> 0)
			  OR ((manual_vpa IS NULL OR manual_vpa = 0) AND ? > 0))`,
		f.DividendYield, f.DividendYield,
		f.EPS, f.EPS,
		f.BookValue, f.BookValue,
		assetID,
		f.DividendYield, f.EPS, f.BookValue,
	)
	if err != nil {
		return false, fmt.Errorf("failed to fill fundamentals: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

// DeleteOrphans removes positions, market rows and dividend events whose
// asset is gone
func (r *AssetRepository) DeleteOrphans(ctx context.Context) (int64, error) {
	var removed int64
	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		for _, table := range []string{"positions", "market_data", "dividend_events"} {
			res, err := tx.ExecContext(ctx,
				"DELETE FROM "+table+" WHERE asset_id NOT IN (SELECT id FROM assets)")
			if err != nil {
				return fmt.Errorf("failed to delete orphan %s: %w", table, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to read affected rows: %w", err)
			}
			if table == "positions" {
				removed = n
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		r.log.Info().Int64("removed", removed).Msg("Orphan positions deleted")
	}
	return removed, nil
}

func categoryIDTx(ctx context.Context, tx *sql.Tx, category domain.Category) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, "SELECT id FROM categories WHERE name = ?", string(category)).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to look up category: %w", err)
	}
	return id, nil
}

func nullIfZero(v float64) interface{} {
	if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func nullFloat(v *float64) interface{} {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	return *v
}
