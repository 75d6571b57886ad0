// Package valuation computes intrinsic-value metrics for a position and turns
// them, together with allocation and market signals, into a bounded
// recommendation. Everything here is pure and safe for concurrent use.
package valuation

import (
	"math"

	"github.com/aristath/assetflow/internal/domain"
)

// grahamMultiplier is the P/E 15 times P/B 1.5 bound of the Graham number.
const grahamMultiplier = 22.5

// Metrics are the valuation figures derived from a position and its price.
// Every field is 0 when its preconditions do not hold.
type Metrics struct {
	FairValue       float64 `json:"fair_value"`
	FairValueMargin float64 `json:"fair_value_margin"`
	PriceToBook     float64 `json:"price_to_book"`
	MonthlyIncome   float64 `json:"monthly_income_estimate"`
	BreakevenUnits  int     `json:"breakeven_unit_count"`
}

// ComputeMetrics derives the valuation metrics for one position at price.
//
//	FairValue       = sqrt(22.5 * lpa * vpa)      (stocks, lpa>0 and vpa>0)
//	FairValueMargin = (FairValue - P) / P * 100   (P>0)
//	PriceToBook     = P / vpa                     (P>0 and vpa>0)
//	MonthlyIncome   = P * dy * quantity / 12      (P>0 and dy>0)
//	BreakevenUnits  = ceil(12 / dy)               (dy>0)
//
// Negative or non-finite inputs count as 0. It never returns NaN or Inf.
func ComputeMetrics(pos domain.Position, category domain.Category, price float64) Metrics {
	price = nonNegative(price)
	quantity := nonNegative(pos.Quantity)
	dy := nonNegative(pos.DividendYield)
	lpa := finite(pos.EPS)
	vpa := finite(pos.BookValue)

	var m Metrics

	if category == domain.CategoryStock && lpa > 0 && vpa > 0 {
		m.FairValue = sanitize(math.Sqrt(grahamMultiplier * lpa * vpa))
	}

	if price > 0 && m.FairValue > 0 {
		m.FairValueMargin = sanitize((m.FairValue - price) / price * 100)
	}

	if price > 0 && vpa > 0 {
		m.PriceToBook = sanitize(price / vpa)
	}

	if dy > 0 && price > 0 {
		m.MonthlyIncome = sanitize(price * dy * quantity / 12)
	}

	if dy > 0 {
		units := math.Ceil(12 / dy)
		if !math.IsInf(units, 0) && !math.IsNaN(units) && units < math.MaxInt32 {
			m.BreakevenUnits = int(units)
		}
	}

	return m
}

// sanitize maps NaN and ±Inf to 0.
func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func finite(v float64) float64 {
	return sanitize(v)
}

func nonNegative(v float64) float64 {
	v = sanitize(v)
	if v < 0 {
		return 0
	}
	return v
}
