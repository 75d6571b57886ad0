// Package exchangerate provides currency exchange rate fetching and caching functionality.
package exchangerate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/aristath/assetflow/internal/clientdata"
	"github.com/aristath/assetflow/internal/domain"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// DefaultBaseURL is the public exchangerate-api.com endpoint
const DefaultBaseURL = "https://api.exchangerate-api.com"

// Client for exchangerate-api.com
type Client struct {
	client    *resty.Client
	target    domain.Currency
	log       zerolog.Logger
	cacheRepo *clientdata.Repository
}

// NewClient creates a new exchangerate-api.com client quoting rates in target currency.
// cacheRepo is optional - if nil, caching is disabled
func NewClient(baseURL string, target domain.Currency, cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		client: resty.New().
			SetTimeout(10 * time.Second).
			SetBaseURL(baseURL).
			SetHeader("Accept", "application/json"),
		target:    target,
		log:       log.With().Str("client", "exchangerate-api").Logger(),
		cacheRepo: cacheRepo,
	}
}

// cachedExchangeRate is the structure stored in the cache
type cachedExchangeRate struct {
	Rate float64 `json:"rate"`
}

// Rate returns units of the reporting currency per unit of currency.
// Satisfies domain.FXRateSupplier.
func (c *Client) Rate(ctx context.Context, currency domain.Currency) (float64, error) {
	return c.GetRate(ctx, string(currency), string(c.target))
}

// GetRate fetches exchange rate with cache.
// If the API fails, returns stale cached data if available (stale data > no data).
func (c *Client) GetRate(ctx context.Context, fromCurrency, toCurrency string) (float64, error) {
	if fromCurrency == toCurrency {
		return 1.0, nil
	}

	pair := fromCurrency + ":" + toCurrency

	var cached cachedExchangeRate
	if c.cacheRepo != nil && c.cacheRepo.Fresh(ctx, clientdata.ExchangeRates, pair, &cached) {
		c.log.Debug().Str("pair", pair).Float64("rate", cached.Rate).Msg("Cache hit")
		return cached.Rate, nil
	}

	rate, err := c.fetch(ctx, fromCurrency, toCurrency)
	if err != nil {
		if c.cacheRepo != nil && c.cacheRepo.Stale(ctx, clientdata.ExchangeRates, pair, &cached) && cached.Rate > 0 {
			c.log.Warn().
				Err(err).
				Str("pair", pair).
				Float64("rate", cached.Rate).
				Msg("API failed, using stale cached rate")
			return cached.Rate, nil
		}
		return 0, err
	}

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Put(ctx, clientdata.ExchangeRates, pair, cachedExchangeRate{Rate: rate}); err != nil {
			c.log.Warn().Err(err).Str("pair", pair).Msg("Failed to cache exchange rate")
		}
	}

	c.log.Info().
		Str("from", fromCurrency).
		Str("to", toCurrency).
		Float64("rate", rate).
		Msg("Fetched rate")

	return rate, nil
}

func (c *Client) fetch(ctx context.Context, fromCurrency, toCurrency string) (float64, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("from", fromCurrency).
		Get("/v4/latest/{from}")
	if err != nil {
		return 0, fmt.Errorf("API request failed: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return 0, fmt.Errorf("API returned status %d", resp.StatusCode())
	}

	var result struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return 0, fmt.Errorf("failed to parse response: %w", err)
	}

	rate, exists := result.Rates[toCurrency]
	if !exists || rate <= 0 {
		return 0, fmt.Errorf("rate not found for %s->%s", fromCurrency, toCurrency)
	}

	return rate, nil
}
