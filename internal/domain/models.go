// Package domain provides the core portfolio models and the supplier contracts
// shared by the valuation engine, the aggregator and the refresh jobs.
package domain

import (
	"strings"
	"time"
)

// Currency represents a currency code
type Currency string

const (
	CurrencyBRL Currency = "BRL"
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
)

// NormalizeCurrency upper-cases a currency code and defaults to BRL.
func NormalizeCurrency(c string) Currency {
	c = strings.ToUpper(strings.TrimSpace(c))
	if c == "" {
		return CurrencyBRL
	}
	return Currency(c)
}

// Category is an asset class. The set is open: unknown names are scored by
// the generic additive model.
type Category string

const (
	CategoryStock         Category = "Ação"
	CategoryREIT          Category = "FII"
	CategoryFixedIncome   Category = "Renda Fixa"
	CategoryCashReserve   Category = "Reserva"
	CategoryInternational Category = "Internacional"
	CategoryCrypto        Category = "Cripto"
	CategoryETF           Category = "ETF"
)

// KnownCategories lists the categories seeded on first start.
var KnownCategories = []Category{
	CategoryStock,
	CategoryREIT,
	CategoryFixedIncome,
	CategoryCashReserve,
	CategoryInternational,
	CategoryCrypto,
	CategoryETF,
}

// ListedOnB3 reports whether quotes for this category need the ".SA" suffix.
func (c Category) ListedOnB3() bool {
	switch c {
	case CategoryStock, CategoryREIT, CategoryFixedIncome, CategoryETF:
		return true
	}
	return false
}

// ProviderSymbol maps a portfolio symbol to the market data provider's
// ticker. B3-listed categories get the ".SA" suffix unless one is present.
func ProviderSymbol(symbol string, category Category) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if category.ListedOnB3() && !strings.Contains(symbol, ".") {
		return symbol + ".SA"
	}
	return symbol
}

// Asset is an instrument owned by the portfolio.
type Asset struct {
	ID       int64    `json:"id"`
	Symbol   string   `json:"symbol"`
	Name     string   `json:"name"`
	Currency Currency `json:"currency"`
	Category Category `json:"category"`
}

// Position is the holding for one Asset. Fundamentals are curated by hand;
// zero means unset.
type Position struct {
	ID            int64   `json:"id"`
	AssetID       int64   `json:"asset_id"`
	Quantity      float64 `json:"quantity"`
	AveragePrice  float64 `json:"average_price"`
	TargetPercent float64 `json:"target_percent"`
	DividendYield float64 `json:"manual_dy"`
	EPS           float64 `json:"manual_lpa"`
	BookValue     float64 `json:"manual_vpa"`
}

// MarketSnapshot is the latest known market state of an asset.
// RSI and SMA are nil when not enough history was available.
type MarketSnapshot struct {
	AssetID     int64     `json:"asset_id" msgpack:"asset_id"`
	Price       float64   `json:"price" msgpack:"price"`
	Low6M       float64   `json:"min_6m" msgpack:"min_6m"`
	RSI         *float64  `json:"rsi_14,omitempty" msgpack:"rsi_14"`
	SMA         *float64  `json:"sma_20,omitempty" msgpack:"sma_20"`
	WindowStart time.Time `json:"window_start" msgpack:"window_start"`
	UpdatedAt   time.Time `json:"updated_at" msgpack:"updated_at"`
}

// CategoryTarget is the portfolio-level target for a category.
type CategoryTarget struct {
	ID            int64    `json:"id"`
	Name          Category `json:"name"`
	TargetPercent float64  `json:"target_percent"`
}

// PortfolioSnapshot is one day of portfolio history.
type PortfolioSnapshot struct {
	Date          time.Time `json:"date"`
	TotalEquity   float64   `json:"total_equity"`
	TotalInvested float64   `json:"total_invested"`
	Profit        float64   `json:"profit"`
}

// Holding joins an asset with its position and optional market snapshot.
// Asset is nil when the position references a missing instrument.
type Holding struct {
	Asset    *Asset
	Position Position
	Market   *MarketSnapshot
}

// FXRates maps a currency to reporting-currency units per foreign unit.
type FXRates map[Currency]float64

// Factor returns the multiplier for a currency, 1 when unknown or invalid.
func (r FXRates) Factor(c Currency) float64 {
	if rate, ok := r[c]; ok && rate > 0 {
		return rate
	}
	return 1.0
}
