package yahoo

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/aristath/assetflow/internal/domain"
	"github.com/aristath/assetflow/pkg/formulas"
)

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency           string  `json:"currency"`
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
			Events struct {
				Dividends map[string]struct {
					Amount float64 `json:"amount"`
					Date   int64   `json:"date"`
				} `json:"dividends"`
			} `json:"events"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type rawValue struct {
	Raw *float64 `json:"raw"`
}

type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			SummaryDetail struct {
				DividendYield          rawValue `json:"dividendYield"`
				TrailingAnnualDivYield rawValue `json:"trailingAnnualDividendYield"`
				DividendRate           rawValue `json:"dividendRate"`
			} `json:"summaryDetail"`
			CalendarEvents struct {
				ExDividendDate rawValue `json:"exDividendDate"`
			} `json:"calendarEvents"`
			DefaultKeyStatistics struct {
				TrailingEps rawValue `json:"trailingEps"`
				BookValue   rawValue `json:"bookValue"`
			} `json:"defaultKeyStatistics"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteSummary"`
}

// parseChart turns a chart response into a typed quote. Null and non-positive
// closes are dropped. The price is the last close and the 6-month low is the
// minimum of the trailing LowWindow closes.
func parseChart(symbol string, body []byte) (domain.Quote, error) {
	var resp chartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.Quote{}, fmt.Errorf("failed to parse chart for %s: %w", symbol, err)
	}
	if resp.Chart.Error != nil {
		return domain.Quote{}, fmt.Errorf("%s: %s: %w", symbol, resp.Chart.Error.Description, domain.ErrNoMarketData)
	}
	if len(resp.Chart.Result) == 0 {
		return domain.Quote{}, fmt.Errorf("%s: empty chart: %w", symbol, domain.ErrNoMarketData)
	}

	result := resp.Chart.Result[0]
	closes := make([]float64, 0, 256)
	if len(result.Indicators.Quote) > 0 {
		for _, c := range result.Indicators.Quote[0].Close {
			if c == nil || math.IsNaN(*c) || math.IsInf(*c, 0) || *c <= 0 {
				continue
			}
			closes = append(closes, *c)
		}
	}

	if len(closes) == 0 {
		return domain.Quote{}, fmt.Errorf("%s: no closes: %w", symbol, domain.ErrNoMarketData)
	}

	return domain.Quote{
		Symbol:   symbol,
		Price:    closes[len(closes)-1],
		Low6M:    formulas.MinOfLast(closes, LowWindow),
		Currency: domain.NormalizeCurrency(result.Meta.Currency),
		Closes:   closes,
	}, nil
}

// parseQuoteSummary extracts the fundamentals used to fill unset position fields
func parseQuoteSummary(body []byte) (domain.Fundamentals, error) {
	var resp quoteSummaryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.Fundamentals{}, fmt.Errorf("failed to parse quote summary: %w", err)
	}
	if resp.QuoteSummary.Error != nil {
		return domain.Fundamentals{}, fmt.Errorf("%s: %w", resp.QuoteSummary.Error.Description, domain.ErrNoMarketData)
	}
	if len(resp.QuoteSummary.Result) == 0 {
		return domain.Fundamentals{}, fmt.Errorf("empty quote summary: %w", domain.ErrNoMarketData)
	}

	r := resp.QuoteSummary.Result[0]
	dy := r.SummaryDetail.DividendYield.value()
	if dy == 0 {
		dy = r.SummaryDetail.TrailingAnnualDivYield.value()
	}

	return domain.Fundamentals{
		DividendYield: dy,
		EPS:           r.DefaultKeyStatistics.TrailingEps.value(),
		BookValue:     r.DefaultKeyStatistics.BookValue.value(),
	}, nil
}

// parseDividends reads the dividend events of a chart response requested
// with events=div. A chart without events yields no dividends.
func parseDividends(symbol string, body []byte) ([]domain.Dividend, error) {
	var resp chartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse dividends for %s: %w", symbol, err)
	}
	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("%s: %s: %w", symbol, resp.Chart.Error.Description, domain.ErrNoMarketData)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("%s: empty chart: %w", symbol, domain.ErrNoMarketData)
	}

	var divs []domain.Dividend
	for _, e := range resp.Chart.Result[0].Events.Dividends {
		if e.Date <= 0 || e.Amount <= 0 || math.IsNaN(e.Amount) || math.IsInf(e.Amount, 0) {
			continue
		}
		divs = append(divs, domain.Dividend{ExDate: time.Unix(e.Date, 0).UTC(), Amount: e.Amount})
	}
	sort.Slice(divs, func(i, j int) bool { return divs[i].ExDate.Before(divs[j].ExDate) })
	return divs, nil
}

// parseAnnounced returns the next ex-dividend date and the annual dividend
// rate from a quoteSummary with the calendarEvents module. A zero time means
// nothing is announced.
func parseAnnounced(body []byte) (time.Time, float64, error) {
	var resp quoteSummaryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return time.Time{}, 0, fmt.Errorf("failed to parse calendar events: %w", err)
	}
	if resp.QuoteSummary.Error != nil || len(resp.QuoteSummary.Result) == 0 {
		return time.Time{}, 0, nil
	}

	r := resp.QuoteSummary.Result[0]
	ts := r.CalendarEvents.ExDividendDate.value()
	if ts <= 0 {
		return time.Time{}, 0, nil
	}
	return time.Unix(int64(ts), 0).UTC(), r.SummaryDetail.DividendRate.value(), nil
}

func (v rawValue) value() float64 {
	if v.Raw == nil || math.IsNaN(*v.Raw) || math.IsInf(*v.Raw, 0) {
		return 0
	}
	return *v.Raw
}
