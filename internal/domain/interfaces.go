package domain

import (
	"context"
	"errors"
	"time"
)

// ErrNoMarketData is returned by suppliers when a symbol has no usable quote.
var ErrNoMarketData = errors.New("no market data")

// Quote is the typed value returned by a market data supplier.
// Closes are oldest first.
type Quote struct {
	Symbol   string
	Price    float64
	Low6M    float64
	Currency Currency
	Closes   []float64
}

// Fundamentals are provider-reported indicators used to fill unset curated
// fields. Zero means not reported.
type Fundamentals struct {
	DividendYield float64
	EPS           float64
	BookValue     float64
}

// MarketDataSupplier fetches quotes and fundamentals for a provider symbol.
type MarketDataSupplier interface {
	FetchQuote(ctx context.Context, symbol string) (Quote, error)
	FetchFundamentals(ctx context.Context, symbol string) (Fundamentals, error)
}

// Dividend is one per-share distribution keyed by its ex-date. Announced
// marks an upcoming ex-date whose amount is an estimate.
type Dividend struct {
	ExDate    time.Time `json:"ex_date"`
	Amount    float64   `json:"amount"`
	Announced bool      `json:"announced"`
}

// DividendSupplier fetches the past year of dividends plus any announced
// ex-date for a provider symbol. Dividends are oldest first.
type DividendSupplier interface {
	FetchDividends(ctx context.Context, symbol string) ([]Dividend, error)
}

// FXRateSupplier returns reporting-currency units per unit of currency.
type FXRateSupplier interface {
	Rate(ctx context.Context, currency Currency) (float64, error)
}

// EventEmitter publishes application events to subscribers.
type EventEmitter interface {
	Emit(eventType string, data map[string]interface{})
}
