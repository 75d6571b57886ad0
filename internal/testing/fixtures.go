package testing

import (
	"database/sql"
	"testing"
	"time"

	"github.com/aristath/assetflow/internal/domain"
)

// AssetFixture describes one seeded asset with its position and optional market row
type AssetFixture struct {
	Symbol        string
	Currency      domain.Currency
	Category      domain.Category
	Quantity      float64
	AveragePrice  float64
	TargetPercent float64
	DividendYield float64
	EPS           float64
	BookValue     float64
	Price         float64 // 0 leaves market_data empty
	Low6M         float64
	RSI           *float64
}

// NewAssetFixtures returns a small mixed portfolio
func NewAssetFixtures() []AssetFixture {
	return []AssetFixture{
		{
			Symbol: "PETR4", Currency: domain.CurrencyBRL, Category: domain.CategoryStock,
			Quantity: 100, AveragePrice: 30, TargetPercent: 50,
			DividendYield: 0.12, EPS: 6, BookValue: 30,
			Price: 35, Low6M: 28, RSI: floatPtr(45),
		},
		{
			Symbol: "HGLG11", Currency: domain.CurrencyBRL, Category: domain.CategoryREIT,
			Quantity: 20, AveragePrice: 150, TargetPercent: 100,
			DividendYield: 0.09, BookValue: 160,
			Price: 140, Low6M: 139, RSI: floatPtr(27),
		},
		{
			Symbol: "VOO", Currency: domain.CurrencyUSD, Category: domain.CategoryInternational,
			Quantity: 2, AveragePrice: 400, TargetPercent: 100,
			Price: 450, Low6M: 380, RSI: floatPtr(60),
		},
		{
			Symbol: "CDB-NUBANK", Currency: domain.CurrencyBRL, Category: domain.CategoryCashReserve,
			Quantity: 1, AveragePrice: 5000, TargetPercent: 100,
		},
	}
}

// NewCategoryTargetFixtures returns portfolio-level targets for the fixtures
func NewCategoryTargetFixtures() map[domain.Category]float64 {
	return map[domain.Category]float64{
		domain.CategoryStock:         40,
		domain.CategoryREIT:          20,
		domain.CategoryInternational: 20,
		domain.CategoryCashReserve:   20,
	}
}

// SeedPortfolio writes categories and assets into a migrated portfolio database
// and returns the asset ids by symbol.
func SeedPortfolio(t *testing.T, db *sql.DB, targets map[domain.Category]float64, assets []AssetFixture) map[string]int64 {
	t.Helper()

	for _, c := range domain.KnownCategories {
		if _, err := db.Exec("INSERT OR IGNORE INTO categories (name, target_percent) VALUES (?, 0)", string(c)); err != nil {
			t.Fatalf("Failed to seed category %s: %v", c, err)
		}
	}
	for name, target := range targets {
		if _, err := db.Exec(`INSERT INTO categories (name, target_percent) VALUES (?, ?)
			ON CONFLICT(name) DO UPDATE SET target_percent = excluded.target_percent`, string(name), target); err != nil {
			t.Fatalf("Failed to seed category target %s: %v", name, err)
		}
	}

	ids := make(map[string]int64, len(assets))
	now := time.Now().Unix()
	for _, a := range assets {
		currency := a.Currency
		if currency == "" {
			currency = domain.CurrencyBRL
		}
		res, err := db.Exec(`INSERT INTO assets (symbol, name, currency, category_id)
			VALUES (?, ?, ?, (SELECT id FROM categories WHERE name = ?))`,
			a.Symbol, a.Symbol, string(currency), string(a.Category))
		if err != nil {
			t.Fatalf("Failed to seed asset %s: %v", a.Symbol, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			t.Fatalf("Failed to read asset id for %s: %v", a.Symbol, err)
		}
		ids[a.Symbol] = id

		_, err = db.Exec(`INSERT INTO positions
			(asset_id, quantity, average_price, target_percent, manual_dy, manual_lpa, manual_vpa)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, a.Quantity, a.AveragePrice, a.TargetPercent,
			nullable(a.DividendYield), nullable(a.EPS), nullable(a.BookValue))
		if err != nil {
			t.Fatalf("Failed to seed position %s: %v", a.Symbol, err)
		}

		if a.Price > 0 {
			var rsi interface{}
			if a.RSI != nil {
				rsi = *a.RSI
			}
			_, err = db.Exec(`INSERT INTO market_data (asset_id, price, min_6m, rsi_14, window_start, updated_at)
				VALUES (?, ?, ?, ?, ?, ?)`, id, a.Price, a.Low6M, rsi, now, now)
			if err != nil {
				t.Fatalf("Failed to seed market data %s: %v", a.Symbol, err)
			}
		}
	}
	return ids
}

func nullable(v float64) interface{} {
	if v == 0 {
		return nil
	}
	return v
}

func floatPtr(f float64) *float64 {
	return &f
}
