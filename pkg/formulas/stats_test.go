package formulas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMeanAndStdDev(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.InDelta(t, 3.0, Mean([]float64{1, 2, 3, 4, 5}), 1e-9)

	assert.Equal(t, 0.0, StdDev([]float64{42}))
	assert.InDelta(t, math.Sqrt(2.5), StdDev([]float64{1, 2, 3, 4, 5}), 1e-9)
}

func TestLogReturns(t *testing.T) {
	assert.Empty(t, LogReturns([]float64{100}))

	returns := LogReturns([]float64{100, 110, 0, 121})
	assert.Len(t, returns, 1)
	assert.InDelta(t, math.Log(1.1), returns[0], 1e-12)
}

func TestAnnualizedVolatility(t *testing.T) {
	daily := []float64{0.01, -0.01, 0.01, -0.01}
	expected := StdDev(daily) * math.Sqrt(252)
	assert.InDelta(t, expected, AnnualizedVolatility(daily), 1e-12)
	assert.Equal(t, 0.0, AnnualizedVolatility(nil))
}

func TestPercentile(t *testing.T) {
	data := []float64{5, 3, 1, 4, 2}

	assert.Equal(t, 1.0, Percentile(data, 0))
	assert.Equal(t, 5.0, Percentile(data, 1))
	assert.Equal(t, 3.0, Percentile(data, 0.5))
	assert.Equal(t, []float64{5, 3, 1, 4, 2}, data, "input must not be sorted in place")
	assert.Equal(t, 0.0, Percentile(nil, 0.5))
}
