// Package yahoo fetches daily price history and key statistics from the
// Yahoo Finance public endpoints. It implements domain.MarketDataSupplier
// and domain.DividendSupplier.
package yahoo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aristath/assetflow/internal/clientdata"
	"github.com/aristath/assetflow/internal/domain"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// DefaultBaseURL is the public Yahoo Finance query host
const DefaultBaseURL = "https://query1.finance.yahoo.com"

// LowWindow is the number of trailing daily closes that make up the 6-month low
const LowWindow = 126

// Client talks to Yahoo Finance
type Client struct {
	client    *resty.Client
	log       zerolog.Logger
	cacheRepo *clientdata.Repository
}

// NewClient creates a new Yahoo Finance client.
// cacheRepo is optional - if nil, caching is disabled
func NewClient(baseURL string, cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		client: resty.New().
			SetTimeout(15*time.Second).
			SetBaseURL(baseURL).
			SetHeader("Accept", "application/json").
			SetHeader("User-Agent", "Mozilla/5.0 (compatible; assetflow/1.0)"),
		log:       log.With().Str("client", "yahoo").Logger(),
		cacheRepo: cacheRepo,
	}
}

// FetchQuote returns the last close, the 6-month low and the closing history for symbol
func (c *Client) FetchQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	var quote domain.Quote
	if c.cacheRepo != nil && c.cacheRepo.Fresh(ctx, clientdata.Quotes, symbol, &quote) {
		return quote, nil
	}

	body, err := c.get(ctx, "/v8/finance/chart/{symbol}", symbol, map[string]string{
		"range":    "1y",
		"interval": "1d",
	})
	if err == nil {
		quote, err = parseChart(symbol, body)
	}
	if err != nil {
		if errors.Is(err, domain.ErrNoMarketData) {
			return domain.Quote{}, err
		}
		if c.cacheRepo != nil && c.cacheRepo.Stale(ctx, clientdata.Quotes, symbol, &quote) {
			c.log.Warn().Err(err).Str("symbol", symbol).Msg("Quote fetch failed, using stale cached quote")
			return quote, nil
		}
		return domain.Quote{}, err
	}

	c.remember(ctx, clientdata.Quotes, symbol, quote)

	c.log.Debug().
		Str("symbol", symbol).
		Float64("price", quote.Price).
		Float64("min_6m", quote.Low6M).
		Int("closes", len(quote.Closes)).
		Msg("Fetched quote")

	return quote, nil
}

// FetchFundamentals returns dividend yield, trailing EPS and book value per share for symbol
func (c *Client) FetchFundamentals(ctx context.Context, symbol string) (domain.Fundamentals, error) {
	var f domain.Fundamentals
	if c.cacheRepo != nil && c.cacheRepo.Fresh(ctx, clientdata.Fundamentals, symbol, &f) {
		return f, nil
	}

	body, err := c.get(ctx, "/v10/finance/quoteSummary/{symbol}", symbol, map[string]string{
		"modules": "summaryDetail,defaultKeyStatistics",
	})
	if err == nil {
		f, err = parseQuoteSummary(body)
	}
	if err != nil {
		if c.cacheRepo != nil && c.cacheRepo.Stale(ctx, clientdata.Fundamentals, symbol, &f) {
			c.log.Warn().Err(err).Str("symbol", symbol).Msg("Fundamentals fetch failed, using stale cached data")
			return f, nil
		}
		return domain.Fundamentals{}, err
	}

	c.remember(ctx, clientdata.Fundamentals, symbol, f)
	return f, nil
}

// FetchDividends returns the past year of dividends for symbol, oldest first.
// An ex-date announced after the last paid one is appended with the last paid
// amount as its estimate, or the annual rate when there is no history.
func (c *Client) FetchDividends(ctx context.Context, symbol string) ([]domain.Dividend, error) {
	body, err := c.get(ctx, "/v8/finance/chart/{symbol}", symbol, map[string]string{
		"range":    "1y",
		"interval": "1mo",
		"events":   "div",
	})
	if err != nil {
		return nil, err
	}
	divs, err := parseDividends(symbol, body)
	if err != nil {
		return nil, err
	}

	body, err = c.get(ctx, "/v10/finance/quoteSummary/{symbol}", symbol, map[string]string{
		"modules": "calendarEvents,summaryDetail",
	})
	if err != nil {
		c.log.Debug().Err(err).Str("symbol", symbol).Msg("No calendar events, returning paid dividends only")
		return divs, nil
	}
	exDate, rate, err := parseAnnounced(body)
	if err != nil {
		c.log.Debug().Err(err).Str("symbol", symbol).Msg("Unreadable calendar events")
		return divs, nil
	}

	if announced, ok := announcedDividend(divs, exDate, rate); ok {
		divs = append(divs, announced)
	}

	c.log.Debug().Str("symbol", symbol).Int("dividends", len(divs)).Msg("Fetched dividends")
	return divs, nil
}

func announcedDividend(paid []domain.Dividend, exDate time.Time, rate float64) (domain.Dividend, bool) {
	if exDate.IsZero() {
		return domain.Dividend{}, false
	}
	amount := rate
	if n := len(paid); n > 0 {
		last := paid[n-1]
		if !exDate.After(last.ExDate) || exDate.Format("2006-01-02") == last.ExDate.Format("2006-01-02") {
			return domain.Dividend{}, false
		}
		amount = last.Amount
	}
	if amount <= 0 {
		return domain.Dividend{}, false
	}
	return domain.Dividend{ExDate: exDate, Amount: amount, Announced: true}, true
}

func (c *Client) get(ctx context.Context, path, symbol string, params map[string]string) ([]byte, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("symbol", symbol).
		SetQueryParams(params).
		Get(path)
	if err != nil {
		return nil, fmt.Errorf("yahoo request for %s failed: %w", symbol, err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		return resp.Body(), nil
	case http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", symbol, domain.ErrNoMarketData)
	default:
		return nil, fmt.Errorf("yahoo returned status %d for %s", resp.StatusCode(), symbol)
	}
}

func (c *Client) remember(ctx context.Context, table clientdata.Table, symbol string, value interface{}) {
	if c.cacheRepo == nil {
		return
	}
	if err := c.cacheRepo.Put(ctx, table, symbol, value); err != nil {
		c.log.Warn().Err(err).Str("table", table.Name).Str("symbol", symbol).Msg("Failed to cache response")
	}
}
