package portfolio

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/aristath/assetflow/internal/domain"
	"github.com/aristath/assetflow/internal/modules/valuation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

func newEngine() *valuation.Engine {
	return valuation.NewEngine(valuation.DefaultThresholds())
}

type holdingSpec struct {
	id       int64
	symbol   string
	category domain.Category
	currency domain.Currency
	qty      float64
	avg      float64
	target   float64
	price    float64 // 0 means no snapshot
	low      float64
	rsi      *float64
	dy       float64
	eps      float64
	bvps     float64
}

func holding(s holdingSpec) domain.Holding {
	h := domain.Holding{
		Asset: &domain.Asset{
			ID:       s.id,
			Symbol:   s.symbol,
			Name:     s.symbol,
			Currency: domain.NormalizeCurrency(string(s.currency)),
			Category: s.category,
		},
		Position: domain.Position{
			AssetID:       s.id,
			Quantity:      s.qty,
			AveragePrice:  s.avg,
			TargetPercent: s.target,
			DividendYield: s.dy,
			EPS:           s.eps,
			BookValue:     s.bvps,
		},
	}
	if s.price > 0 {
		h.Market = &domain.MarketSnapshot{AssetID: s.id, Price: s.price, Low6M: s.low, RSI: s.rsi}
	}
	return h
}

func findPosition(t *testing.T, d Dashboard, symbol string) PositionResult {
	t.Helper()
	for _, p := range d.Positions {
		if p.Symbol == symbol {
			return p
		}
	}
	t.Fatalf("position %s not found", symbol)
	return PositionResult{}
}

func TestAggregate_PctInCategorySplit(t *testing.T) {
	in := AggregateInput{
		Holdings: []domain.Holding{
			holding(holdingSpec{id: 1, symbol: "AAAA3", category: domain.CategoryStock, qty: 100, avg: 10, target: 50, price: 10, rsi: f(50)}),
			holding(holdingSpec{id: 2, symbol: "BBBB3", category: domain.CategoryStock, qty: 300, avg: 10, target: 50, price: 10, rsi: f(50)}),
		},
		Categories: map[domain.Category]float64{domain.CategoryStock: 100},
	}

	d := Aggregate(in, newEngine())

	a := findPosition(t, d, "AAAA3")
	b := findPosition(t, d, "BBBB3")
	assert.InDelta(t, 1000, a.CurrentValue, 1e-9)
	assert.InDelta(t, 3000, b.CurrentValue, 1e-9)
	assert.InDelta(t, 25, a.PctInCategory, 1e-9)
	assert.InDelta(t, 75, b.PctInCategory, 1e-9)
	assert.InDelta(t, 100, a.PctInCategory+b.PctInCategory, 1e-9)
	assert.InDelta(t, 4000, d.Total, 1e-9)
	assert.InDelta(t, 4000, d.CategoryTotals[domain.CategoryStock], 1e-9)
}

func TestAggregate_TwoLevelTargetAndGap(t *testing.T) {
	in := AggregateInput{
		Holdings: []domain.Holding{
			holding(holdingSpec{id: 1, symbol: "AAAA3", category: domain.CategoryStock, qty: 10, avg: 100, target: 50, price: 100, rsi: f(50)}),
			holding(holdingSpec{id: 2, symbol: "HGLG11", category: domain.CategoryREIT, qty: 30, avg: 100, target: 100, price: 100, rsi: f(50)}),
		},
		Categories: map[domain.Category]float64{domain.CategoryStock: 60, domain.CategoryREIT: 40},
	}

	d := Aggregate(in, newEngine())

	// total 4000; stock target = 4000 * 0.6 * 0.5 = 1200, current 1000
	a := findPosition(t, d, "AAAA3")
	assert.InDelta(t, 1200, a.TargetValue, 1e-9)
	assert.InDelta(t, 200, a.AllocationGap, 1e-9)
	assert.Contains(t, a.Rationale, valuation.MsgBelowTarget)

	// REIT target = 4000 * 0.4 * 1.0 = 1600, current 3000
	r := findPosition(t, d, "HGLG11")
	assert.InDelta(t, 1600, r.TargetValue, 1e-9)
	assert.InDelta(t, -1400, r.AllocationGap, 1e-9)
	assert.Contains(t, r.Rationale, valuation.MsgAboveTarget)
}

func TestAggregate_PriceFallbackToCost(t *testing.T) {
	noSnapshot := holding(holdingSpec{id: 1, symbol: "MANUAL", category: domain.CategoryETF, qty: 10, avg: 50, target: 100})
	zeroPrice := holding(holdingSpec{id: 2, symbol: "ZERO", category: domain.CategoryETF, qty: 10, avg: 20, target: 100})
	zeroPrice.Market = &domain.MarketSnapshot{AssetID: 2, Price: 0, Low6M: 15}

	d := Aggregate(AggregateInput{
		Holdings:   []domain.Holding{noSnapshot, zeroPrice},
		Categories: map[domain.Category]float64{domain.CategoryETF: 100},
	}, newEngine())

	m := findPosition(t, d, "MANUAL")
	assert.InDelta(t, 50, m.Price, 1e-9)
	assert.False(t, m.PriceFromMarket)
	assert.InDelta(t, 500, m.CurrentValue, 1e-9)
	assert.InDelta(t, 0, m.Profit, 1e-9)

	z := findPosition(t, d, "ZERO")
	assert.InDelta(t, 20, z.Price, 1e-9)
	assert.InDelta(t, 200, z.CurrentValue, 1e-9)

	critical := 0
	for _, a := range d.Alerts {
		if a.Kind == AlertCritical {
			critical++
		}
	}
	assert.Equal(t, 2, critical)
}

func TestAggregate_FXFactor(t *testing.T) {
	in := AggregateInput{
		Holdings: []domain.Holding{
			holding(holdingSpec{id: 1, symbol: "VOO", category: domain.CategoryInternational, currency: domain.CurrencyUSD,
				qty: 2, avg: 80, target: 100, price: 100, rsi: f(50)}),
			holding(holdingSpec{id: 2, symbol: "BOVA11", category: domain.CategoryETF, qty: 10, avg: 100, target: 100, price: 100, rsi: f(50)}),
		},
		Categories: map[domain.Category]float64{domain.CategoryInternational: 50, domain.CategoryETF: 50},
		FX:         domain.FXRates{domain.CurrencyUSD: 5},
	}

	d := Aggregate(in, newEngine())

	voo := findPosition(t, d, "VOO")
	assert.InDelta(t, 1000, voo.CurrentValue, 1e-9)
	assert.InDelta(t, 800, voo.InvestedValue, 1e-9)
	assert.InDelta(t, 25, voo.ProfitPercent, 1e-9)
	assert.InDelta(t, 100, voo.Price, 1e-9, "price stays in the asset currency")

	assert.InDelta(t, 2000, d.Total, 1e-9)
	assert.InDelta(t, 1800, d.Invested, 1e-9)
	assert.InDelta(t, 200, d.Profit, 1e-9)
	assert.Equal(t, 5.0, d.FX[domain.CurrencyUSD])
}

func TestAggregate_MonthlyIncome(t *testing.T) {
	in := AggregateInput{
		Holdings: []domain.Holding{
			holding(holdingSpec{id: 1, symbol: "HGLG11", category: domain.CategoryREIT, qty: 10, avg: 100, target: 100, price: 100, dy: 0.12, rsi: f(50)}),
		},
		Categories: map[domain.Category]float64{domain.CategoryREIT: 100},
	}

	d := Aggregate(in, newEngine())
	assert.InDelta(t, 10, d.MonthlyIncome, 1e-9)

	p := findPosition(t, d, "HGLG11")
	assert.InDelta(t, 10, p.MonthlyIncome, 1e-9)
	assert.Equal(t, 100, p.BreakevenUnits)
}

func TestAggregate_MilestoneAlert(t *testing.T) {
	testCases := []struct {
		name    string
		qty     float64
		message string
	}{
		{"three short", 97, "3 units short of the breakeven count"},
		{"exactly at the margin", 95, "5 units short of the breakeven count"},
		{"too far", 90, ""},
		{"reached", 100, ""},
		{"past it", 120, ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d := Aggregate(AggregateInput{
				Holdings: []domain.Holding{
					holding(holdingSpec{id: 1, symbol: "HGLG11", category: domain.CategoryREIT, qty: tc.qty, avg: 100, target: 100,
						price: 100, rsi: f(50), dy: 0.12}),
				},
				Categories: map[domain.Category]float64{domain.CategoryREIT: 100},
			}, newEngine())

			var message string
			for _, a := range d.Alerts {
				if a.Kind == AlertMilestone {
					message = a.Message
				}
			}
			assert.Equal(t, tc.message, message)
		})
	}
}

func TestAggregate_SkipsDanglingHoldings(t *testing.T) {
	ok := holding(holdingSpec{id: 1, symbol: "AAAA3", category: domain.CategoryStock, qty: 10, avg: 10, target: 100, price: 10, rsi: f(50)})
	noAsset := domain.Holding{Position: domain.Position{AssetID: 99, Quantity: 10, AveragePrice: 10}}
	noCategory := holding(holdingSpec{id: 2, symbol: "ORPHAN", qty: 10, avg: 10, price: 10})
	noSymbol := holding(holdingSpec{id: 3, category: domain.CategoryStock, qty: 10, avg: 10, price: 10})

	d := Aggregate(AggregateInput{
		Holdings:   []domain.Holding{noAsset, ok, noCategory, noSymbol},
		Categories: map[domain.Category]float64{domain.CategoryStock: 100},
	}, newEngine())

	require.Len(t, d.Positions, 1)
	assert.Equal(t, "AAAA3", d.Positions[0].Symbol)
	assert.InDelta(t, 100, d.Total, 1e-9)
}

func TestAggregate_SortedByScoreStable(t *testing.T) {
	in := AggregateInput{
		Holdings: []domain.Holding{
			holding(holdingSpec{id: 1, symbol: "TESOURO-A", category: domain.CategoryFixedIncome, qty: 1, avg: 100, target: 0, price: 100}),
			holding(holdingSpec{id: 2, symbol: "RESERVA", category: domain.CategoryCashReserve, qty: 1, avg: 100, target: 100}),
			holding(holdingSpec{id: 3, symbol: "TESOURO-B", category: domain.CategoryFixedIncome, qty: 1, avg: 100, target: 0, price: 100}),
		},
		Categories: map[domain.Category]float64{domain.CategoryCashReserve: 50, domain.CategoryFixedIncome: 50},
	}

	d := Aggregate(in, newEngine())

	require.Len(t, d.Positions, 3)
	symbols := []string{d.Positions[0].Symbol, d.Positions[1].Symbol, d.Positions[2].Symbol}
	assert.Equal(t, []string{"RESERVA", "TESOURO-A", "TESOURO-B"}, symbols)
	assert.Equal(t, 100, d.Positions[0].Score)
	assert.Equal(t, 40, d.Positions[1].Score)
	assert.Equal(t, 40, d.Positions[2].Score)
}

func TestAggregate_AlertsByPriority(t *testing.T) {
	in := AggregateInput{
		Holdings: []domain.Holding{
			// Deep Graham discount, oversold, on its low, whole category against a 10% target
			holding(holdingSpec{id: 1, symbol: "AAAA3", category: domain.CategoryStock, qty: 100, avg: 10, target: 10,
				price: 10, low: 9.95, rsi: f(20), eps: 6, bvps: 30}),
			// No market price
			holding(holdingSpec{id: 2, symbol: "BBBB11", category: domain.CategoryETF, qty: 10, avg: 100, target: 10}),
			// Overbought and far above target
			holding(holdingSpec{id: 3, symbol: "BTC", category: domain.CategoryCrypto, qty: 1, avg: 500, target: 50,
				price: 1000, low: 500, rsi: f(85)}),
		},
		Categories: map[domain.Category]float64{
			domain.CategoryStock:  40,
			domain.CategoryETF:    30,
			domain.CategoryCrypto: 30,
		},
	}

	d := Aggregate(in, newEngine())

	type kindSymbol struct {
		kind   AlertKind
		symbol string
	}
	var got []kindSymbol
	for _, a := range d.Alerts {
		got = append(got, kindSymbol{a.Kind, a.Symbol})
	}

	assert.Equal(t, []kindSymbol{
		{AlertCritical, "BBBB11"},
		{AlertFundamental, "AAAA3"},
		{AlertOpportunity, "AAAA3"},
		{AlertSupport, "AAAA3"},
		{AlertRebalance, "AAAA3"},
		{AlertRebalance, "BBBB11"},
		{AlertRebalance, "BTC"},
		{AlertOverextended, "BTC"},
	}, got)

	for _, a := range d.Alerts {
		if a.Kind == AlertSupport {
			assert.Equal(t, SeverityStrong, a.Severity)
		}
		assert.NotEmpty(t, a.ID)
	}
}

func TestAggregate_SupportTiers(t *testing.T) {
	testCases := []struct {
		name     string
		price    float64
		low      float64
		severity string
	}{
		{"within 1%", 10.05, 10, SeverityStrong},
		{"within 3%", 10.2, 10, SeverityWeak},
		{"far from low", 11, 10, ""},
		{"no low", 10, 0, ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d := Aggregate(AggregateInput{
				Holdings: []domain.Holding{
					holding(holdingSpec{id: 1, symbol: "ETF11", category: domain.CategoryETF, qty: 1, avg: 10, target: 100,
						price: tc.price, low: tc.low, rsi: f(50)}),
				},
				Categories: map[domain.Category]float64{domain.CategoryETF: 100},
			}, newEngine())

			var severity string
			for _, a := range d.Alerts {
				if a.Kind == AlertSupport {
					severity = a.Severity
				}
			}
			assert.Equal(t, tc.severity, severity)
		})
	}
}

func TestAggregate_REITFundamentalAlert(t *testing.T) {
	d := Aggregate(AggregateInput{
		Holdings: []domain.Holding{
			holding(holdingSpec{id: 1, symbol: "CHEAP11", category: domain.CategoryREIT, qty: 10, avg: 80, target: 50,
				price: 80, rsi: f(50), bvps: 100}),
			holding(holdingSpec{id: 2, symbol: "FAIR11", category: domain.CategoryREIT, qty: 10, avg: 80, target: 50,
				price: 95, rsi: f(50), bvps: 100}),
		},
		Categories: map[domain.Category]float64{domain.CategoryREIT: 100},
	}, newEngine())

	var fundamental []string
	for _, a := range d.Alerts {
		if a.Kind == AlertFundamental {
			fundamental = append(fundamental, a.Symbol)
		}
	}
	assert.Equal(t, []string{"CHEAP11"}, fundamental)
}

func TestAggregate_AlertIDsAreStable(t *testing.T) {
	in := AggregateInput{
		Holdings: []domain.Holding{
			holding(holdingSpec{id: 1, symbol: "ETF11", category: domain.CategoryETF, qty: 1, avg: 10, target: 10, price: 10, low: 10, rsi: f(10)}),
		},
		Categories: map[domain.Category]float64{domain.CategoryETF: 100},
	}

	first := Aggregate(in, newEngine())
	second := Aggregate(in, newEngine())
	require.NotEmpty(t, first.Alerts)
	assert.Equal(t, first.Alerts, second.Alerts)

	seen := map[string]bool{}
	for _, a := range first.Alerts {
		assert.False(t, seen[a.ID], "alert ids must be unique")
		seen[a.ID] = true
	}
}

func TestAggregate_AllocationSlices(t *testing.T) {
	d := Aggregate(AggregateInput{
		Holdings: []domain.Holding{
			holding(holdingSpec{id: 1, symbol: "AAAA3", category: domain.CategoryStock, qty: 10, avg: 10, target: 100, price: 10, rsi: f(50)}),
			holding(holdingSpec{id: 2, symbol: "HGLG11", category: domain.CategoryREIT, qty: 30, avg: 10, target: 100, price: 10, rsi: f(50)}),
		},
		Categories: map[domain.Category]float64{
			domain.CategoryStock:  50,
			domain.CategoryREIT:   30,
			domain.CategoryCrypto: 20,
		},
	}, newEngine())

	assert.Equal(t, []AllocationSlice{
		{Name: domain.CategoryREIT, Value: 300},
		{Name: domain.CategoryStock, Value: 100},
	}, d.Allocation)

	total, ok := d.CategoryTotals[domain.CategoryCrypto]
	assert.True(t, ok, "configured categories appear even when empty")
	assert.Zero(t, total)
}

func TestAggregate_Empty(t *testing.T) {
	d := Aggregate(AggregateInput{}, newEngine())

	assert.Zero(t, d.Total)
	assert.NotNil(t, d.Positions)
	assert.NotNil(t, d.Alerts)
	assert.Empty(t, d.Allocation)
}

func TestAggregate_SanitizesBadNumbers(t *testing.T) {
	h := holding(holdingSpec{id: 1, symbol: "AAAA3", category: domain.CategoryStock, qty: -5, avg: 10, target: 100, price: 10, rsi: f(50)})

	d := Aggregate(AggregateInput{
		Holdings:   []domain.Holding{h},
		Categories: map[domain.Category]float64{domain.CategoryStock: 100},
	}, newEngine())

	p := findPosition(t, d, "AAAA3")
	assert.Zero(t, p.CurrentValue)
	assert.Zero(t, p.PctInCategory)
	assert.GreaterOrEqual(t, p.Score, 0)
	assert.LessOrEqual(t, p.Score, 100)
}

func TestAggregate_DropsInfiniteRSI(t *testing.T) {
	for _, rsi := range []float64{math.Inf(1), math.Inf(-1), math.NaN()} {
		d := Aggregate(AggregateInput{
			Holdings: []domain.Holding{
				holding(holdingSpec{id: 1, symbol: "BTC", category: domain.CategoryCrypto, qty: 1, avg: 500, target: 50,
					price: 1000, rsi: f(rsi)}),
			},
			Categories: map[domain.Category]float64{domain.CategoryCrypto: 100},
		}, newEngine())

		assert.Nil(t, findPosition(t, d, "BTC").RSI)
		for _, a := range d.Alerts {
			assert.NotEqual(t, AlertOverextended, a.Kind)
			assert.NotEqual(t, AlertOpportunity, a.Kind)
		}

		_, err := json.Marshal(d)
		require.NoError(t, err)
	}
}
