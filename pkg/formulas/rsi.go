// Package formulas holds the technical and statistical calculations used by
// the market refresh and the simulation.
package formulas

import (
	"math"

	"github.com/markcheno/go-talib"
)

// DefaultRSIPeriod is the Wilder period used for the momentum oscillator.
const DefaultRSIPeriod = 14

// DefaultSMAPeriod is the short moving average window stored with each quote.
const DefaultSMAPeriod = 20

// CalculateRSI calculates the Relative Strength Index of the last close.
//
//	RSI = 100 - (100 / (1 + RS)), RS = average gain / average loss
//
// Returns nil when there are fewer than length+1 closes or the result is NaN.
func CalculateRSI(closes []float64, length int) *float64 {
	if length <= 0 || len(closes) < length+1 {
		return nil
	}

	rsi := talib.Rsi(closes, length)
	return lastFinite(rsi)
}

// CalculateSMA calculates the simple moving average of the last length closes.
// Returns nil when there is not enough data.
func CalculateSMA(closes []float64, length int) *float64 {
	if length <= 0 || len(closes) < length {
		return nil
	}

	sma := talib.Sma(closes, length)
	return lastFinite(sma)
}

// MinOfLast returns the lowest of the last n values, ignoring non-positive
// entries. Zero means no usable value.
func MinOfLast(values []float64, n int) float64 {
	if n <= 0 || len(values) == 0 {
		return 0
	}
	if n > len(values) {
		n = len(values)
	}

	low := 0.0
	for _, v := range values[len(values)-n:] {
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if low == 0 || v < low {
			low = v
		}
	}
	return low
}

func lastFinite(series []float64) *float64 {
	if len(series) == 0 {
		return nil
	}
	v := series[len(series)-1]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
