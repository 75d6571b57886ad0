// Package simulation projects portfolio equity one year ahead with a
// geometric Brownian motion fitted to the snapshot history.
package simulation

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/aristath/assetflow/pkg/formulas"
	"gonum.org/v1/gonum/stat/distuv"
)

// Defaults used when the history is too short to fit
const (
	DefaultPaths      = 1000
	DefaultDays       = formulas.TradingDaysPerYear
	DefaultDailyDrift = 0.0004
	DefaultDailySigma = 0.01
)

// Response statuses
const (
	StatusOK     = "Sucesso"
	StatusNoData = "Sem dados"
)

// Params controls one simulation run
type Params struct {
	Paths int
	Days  int
	Seed  uint64
}

// DefaultParams returns 1000 paths over one trading year
func DefaultParams() Params {
	return Params{Paths: DefaultPaths, Days: DefaultDays, Seed: 1}
}

// Bands holds the per-day percentiles across all paths. Index 0 is today.
type Bands struct {
	Worst  []float64 `json:"pior_caso"`
	Median []float64 `json:"medio"`
	Best   []float64 `json:"melhor_caso"`
}

// Projection is the result of a simulation
type Projection struct {
	Status     string  `json:"status"`
	StartValue float64 `json:"valor_inicial"`
	DailyDrift float64 `json:"drift_diario"`
	DailySigma float64 `json:"sigma_diario"`
	Volatility string  `json:"volatilidade_anual"`
	Bands      Bands   `json:"projecao"`
}

// FitReturns estimates daily drift and volatility from an equity series.
// With fewer than two log returns the defaults apply.
func FitReturns(equity []float64) (mu, sigma float64) {
	returns := formulas.LogReturns(equity)
	if len(returns) < 2 {
		return DefaultDailyDrift, DefaultDailySigma
	}
	mu = formulas.Mean(returns)
	sigma = formulas.StdDev(returns)
	if math.IsNaN(mu) || math.IsInf(mu, 0) {
		mu = DefaultDailyDrift
	}
	if math.IsNaN(sigma) || math.IsInf(sigma, 0) || sigma <= 0 {
		sigma = DefaultDailySigma
	}
	return mu, sigma
}

// Run simulates p.Paths price paths of p.Days steps starting at start.
// Identical inputs and seed give identical output.
func Run(start float64, equity []float64, p Params) Projection {
	if p.Paths <= 0 {
		p.Paths = DefaultPaths
	}
	if p.Days <= 0 {
		p.Days = DefaultDays
	}

	mu, sigma := FitReturns(equity)
	proj := Projection{
		Status:     StatusOK,
		StartValue: start,
		DailyDrift: mu,
		DailySigma: sigma,
		Volatility: fmt.Sprintf("%.1f%%", sigma*math.Sqrt(formulas.TradingDaysPerYear)*100),
	}
	if start <= 0 {
		proj.Status = StatusNoData
		proj.Bands = Bands{Worst: []float64{}, Median: []float64{}, Best: []float64{}}
		return proj
	}

	normal := distuv.Normal{
		Mu:    0,
		Sigma: 1,
		Src:   rand.NewPCG(p.Seed, p.Seed^0x9e3779b97f4a7c15),
	}
	drift := mu - 0.5*sigma*sigma

	// values[d][i] is path i on day d
	values := make([][]float64, p.Days+1)
	values[0] = make([]float64, p.Paths)
	for i := range values[0] {
		values[0][i] = start
	}
	for d := 1; d <= p.Days; d++ {
		prev := values[d-1]
		cur := make([]float64, p.Paths)
		for i := range cur {
			cur[i] = prev[i] * math.Exp(drift+sigma*normal.Rand())
		}
		values[d] = cur
	}

	proj.Bands = Bands{
		Worst:  make([]float64, p.Days+1),
		Median: make([]float64, p.Days+1),
		Best:   make([]float64, p.Days+1),
	}
	for d, day := range values {
		proj.Bands.Worst[d] = round2(formulas.Percentile(day, 0.05))
		proj.Bands.Median[d] = round2(formulas.Percentile(day, 0.50))
		proj.Bands.Best[d] = round2(formulas.Percentile(day, 0.95))
	}
	return proj
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
