package portfolio

import (
	"fmt"
	"math"
	"sort"

	"github.com/aristath/assetflow/internal/domain"
	"github.com/aristath/assetflow/internal/modules/valuation"
	"github.com/google/uuid"
)

// AlertKind classifies dashboard alerts
type AlertKind string

// Alert kinds, highest priority first
const (
	AlertCritical     AlertKind = "CRITICAL"
	AlertFundamental  AlertKind = "FUNDAMENTAL"
	AlertOpportunity  AlertKind = "OPPORTUNITY"
	AlertSupport      AlertKind = "SUPPORT"
	AlertRebalance    AlertKind = "REBALANCE"
	AlertOverextended AlertKind = "OVEREXTENDED"
	AlertMilestone    AlertKind = "MILESTONE"
)

var alertPriority = map[AlertKind]int{
	AlertCritical:     0,
	AlertFundamental:  1,
	AlertOpportunity:  2,
	AlertSupport:      3,
	AlertRebalance:    4,
	AlertOverextended: 5,
	AlertMilestone:    6,
}

// Support alert tiers
const (
	SeverityStrong = "strong"
	SeverityWeak   = "weak"
)

// alertNamespace scopes alert ids so the same condition keeps the same id
// across dashboard calls.
var alertNamespace = uuid.MustParse("5b0c7f0e-2a52-4d55-9a0b-6f3f1c7f4a11")

// Alert is a dashboard notice about one position
type Alert struct {
	ID       string    `json:"id"`
	Kind     AlertKind `json:"kind"`
	Severity string    `json:"severity,omitempty"`
	Symbol   string    `json:"symbol"`
	Message  string    `json:"message"`
}

func newAlert(kind AlertKind, severity, symbol, message string) Alert {
	return Alert{
		ID:       uuid.NewSHA1(alertNamespace, []byte(string(kind)+":"+severity+":"+symbol)).String(),
		Kind:     kind,
		Severity: severity,
		Symbol:   symbol,
		Message:  message,
	}
}

// PositionResult is the fully evaluated view of one holding
type PositionResult struct {
	AssetID         int64           `json:"asset_id"`
	Symbol          string          `json:"symbol"`
	Name            string          `json:"name"`
	Category        domain.Category `json:"category"`
	Currency        domain.Currency `json:"currency"`
	Quantity        float64         `json:"quantity"`
	AveragePrice    float64         `json:"average_price"`
	TargetPercent   float64         `json:"target_percent"`
	DividendYield   float64         `json:"manual_dy"`
	EPS             float64         `json:"manual_lpa"`
	BookValue       float64         `json:"manual_vpa"`
	Price           float64         `json:"price"`
	PriceFromMarket bool            `json:"price_from_market"`
	Low6M           float64         `json:"min_6m"`
	RSI             *float64        `json:"rsi_14,omitempty"`
	CurrentValue    float64         `json:"current_value"`
	InvestedValue   float64         `json:"invested_value"`
	Profit          float64         `json:"profit"`
	ProfitPercent   float64         `json:"profit_percent"`
	PctInCategory   float64         `json:"pct_in_category"`
	TargetValue     float64         `json:"target_value"`
	AllocationGap   float64         `json:"allocation_gap"`

	valuation.Metrics
	valuation.Recommendation
}

// AllocationSlice is one category slice of the allocation chart
type AllocationSlice struct {
	Name  domain.Category `json:"name"`
	Value float64         `json:"value"`
}

// Dashboard is the aggregated portfolio view
type Dashboard struct {
	Total          float64                     `json:"total"`
	Invested       float64                     `json:"invested"`
	Profit         float64                     `json:"profit"`
	MonthlyIncome  float64                     `json:"monthly_income"`
	CategoryTotals map[domain.Category]float64 `json:"category_totals"`
	Allocation     []AllocationSlice           `json:"allocation"`
	Alerts         []Alert                     `json:"alerts"`
	Positions      []PositionResult            `json:"positions"`
	FX             domain.FXRates              `json:"fx"`
}

// Totals are the headline numbers recorded in the daily history
type Totals struct {
	Equity   float64 `json:"total_equity"`
	Invested float64 `json:"total_invested"`
	Profit   float64 `json:"profit"`
}

// Totals extracts the headline numbers
func (d Dashboard) Totals() Totals {
	return Totals{Equity: d.Total, Invested: d.Invested, Profit: d.Profit}
}

// AggregateInput is everything Aggregate needs, loaded in one read transaction
type AggregateInput struct {
	Holdings   []domain.Holding
	Categories map[domain.Category]float64
	FX         domain.FXRates
}

// valued is a holding after pass A
type valued struct {
	holding    domain.Holding
	price      float64
	fromMarket bool
	current    float64
	invested   float64
}

// Aggregate values every holding, scores it against its allocation target
// and collects alerts. It runs in two passes because allocation gaps depend
// on the portfolio total. Holdings without an asset, symbol or category are
// skipped.
func Aggregate(in AggregateInput, engine *valuation.Engine) Dashboard {
	th := engine.Thresholds()

	dash := Dashboard{
		CategoryTotals: make(map[domain.Category]float64, len(in.Categories)),
		Alerts:         []Alert{},
		Positions:      []PositionResult{},
		FX:             in.FX,
	}
	for name := range in.Categories {
		dash.CategoryTotals[name] = 0
	}

	// Pass A: value each holding and accumulate totals
	items := make([]valued, 0, len(in.Holdings))
	for _, h := range in.Holdings {
		if h.Asset == nil || h.Asset.Symbol == "" || h.Asset.Category == "" {
			continue
		}

		qty := clean(h.Position.Quantity)
		avg := clean(h.Position.AveragePrice)

		price, fromMarket := avg, false
		if h.Market != nil && clean(h.Market.Price) > 0 {
			price, fromMarket = clean(h.Market.Price), true
		}

		fx := in.FX.Factor(h.Asset.Currency)
		v := valued{
			holding:    h,
			price:      price,
			fromMarket: fromMarket,
			current:    qty * price * fx,
			invested:   qty * avg * fx,
		}

		dash.Total += v.current
		dash.Invested += v.invested
		dash.CategoryTotals[h.Asset.Category] += v.current
		items = append(items, v)
	}
	dash.Profit = dash.Total - dash.Invested

	// Pass B: allocation, metrics, score and alerts
	for _, v := range items {
		h := v.holding
		pos := h.Position
		category := h.Asset.Category

		var low float64
		var rsi *float64
		if h.Market != nil {
			low = clean(h.Market.Low6M)
			rsi = finiteRSI(h.Market.RSI)
		}

		subtotal := dash.CategoryTotals[category]
		var pct float64
		if subtotal > 0 {
			pct = v.current / subtotal * 100
		}

		target := dash.Total * (in.Categories[category] / 100) * (clean(pos.TargetPercent) / 100)
		gap := target - v.current

		metrics := valuation.ComputeMetrics(pos, category, v.price)
		rec := engine.ScorePosition(valuation.ScoreInput{
			Category:      category,
			Quantity:      pos.Quantity,
			Metrics:       metrics,
			AllocationGap: gap,
			Price:         v.price,
			Low6M:         low,
			RSI:           rsi,
		})

		fx := in.FX.Factor(h.Asset.Currency)
		dash.MonthlyIncome += metrics.MonthlyIncome * fx

		var profitPct float64
		if v.invested > 0 {
			profitPct = (v.current - v.invested) / v.invested * 100
		}

		dash.Positions = append(dash.Positions, PositionResult{
			AssetID:         h.Asset.ID,
			Symbol:          h.Asset.Symbol,
			Name:            h.Asset.Name,
			Category:        category,
			Currency:        h.Asset.Currency,
			Quantity:        pos.Quantity,
			AveragePrice:    pos.AveragePrice,
			TargetPercent:   pos.TargetPercent,
			DividendYield:   pos.DividendYield,
			EPS:             pos.EPS,
			BookValue:       pos.BookValue,
			Price:           v.price,
			PriceFromMarket: v.fromMarket,
			Low6M:           low,
			RSI:             rsi,
			CurrentValue:    v.current,
			InvestedValue:   v.invested,
			Profit:          v.current - v.invested,
			ProfitPercent:   profitPct,
			PctInCategory:   pct,
			TargetValue:     target,
			AllocationGap:   gap,
			Metrics:         metrics,
			Recommendation:  rec,
		})

		dash.Alerts = append(dash.Alerts, positionAlerts(th, h, v, pct, low, rsi, metrics)...)
	}

	sort.SliceStable(dash.Positions, func(i, j int) bool {
		return dash.Positions[i].Score > dash.Positions[j].Score
	})
	sort.SliceStable(dash.Alerts, func(i, j int) bool {
		return alertPriority[dash.Alerts[i].Kind] < alertPriority[dash.Alerts[j].Kind]
	})

	dash.Allocation = allocationSlices(dash.CategoryTotals)
	return dash
}

func positionAlerts(th valuation.Thresholds, h domain.Holding, v valued, pct, low float64, rsi *float64, m valuation.Metrics) []Alert {
	var alerts []Alert
	symbol := h.Asset.Symbol
	target := clean(h.Position.TargetPercent)

	if clean(h.Position.Quantity) > 0 && !v.fromMarket && h.Asset.Category != domain.CategoryCashReserve {
		alerts = append(alerts, newAlert(AlertCritical, "", symbol, "no market price, valued at cost"))
	}

	switch h.Asset.Category {
	case domain.CategoryStock:
		if m.FairValue > 0 && m.FairValueMargin >= th.FundamentalMargin {
			alerts = append(alerts, newAlert(AlertFundamental, "", symbol,
				fmt.Sprintf("%.1f%% below Graham fair value", m.FairValueMargin)))
		}
	case domain.CategoryREIT:
		if m.PriceToBook > 0 && m.PriceToBook <= th.FundamentalPB {
			alerts = append(alerts, newAlert(AlertFundamental, "", symbol,
				fmt.Sprintf("trading at P/B %.2f", m.PriceToBook)))
		}
	}

	if rsi != nil && *rsi < th.OpportunityRSI {
		alerts = append(alerts, newAlert(AlertOpportunity, "", symbol, fmt.Sprintf("RSI at %.1f", *rsi)))
	}

	if low > 0 && v.fromMarket {
		switch {
		case v.price <= low*th.SupportStrongBand:
			alerts = append(alerts, newAlert(AlertSupport, SeverityStrong, symbol, "within 1% of the 6-month low"))
		case v.price <= low*th.SupportWeakBand:
			alerts = append(alerts, newAlert(AlertSupport, SeverityWeak, symbol, "within 3% of the 6-month low"))
		}
	}

	if target > 0 && pct > target*th.ConcentrationFactor {
		alerts = append(alerts, newAlert(AlertRebalance, "", symbol,
			fmt.Sprintf("%.1f%% of its category against a %.1f%% target", pct, target)))
	}

	if rsi != nil && *rsi > th.OverextendedRSI && target > 0 && pct >= target*th.OverextendedFactor {
		alerts = append(alerts, newAlert(AlertOverextended, "", symbol,
			fmt.Sprintf("RSI at %.1f while above target", *rsi)))
	}

	// Close to the unit count whose dividends buy one more unit a month
	if bu, qty := float64(m.BreakevenUnits), clean(h.Position.Quantity); bu > 0 && qty < bu && bu-qty <= th.MilestoneUnits {
		alerts = append(alerts, newAlert(AlertMilestone, "", symbol,
			fmt.Sprintf("%d units short of the breakeven count", int(math.Ceil(bu-qty)))))
	}

	return alerts
}

func allocationSlices(totals map[domain.Category]float64) []AllocationSlice {
	slices := make([]AllocationSlice, 0, len(totals))
	for name, value := range totals {
		if value > 0 {
			slices = append(slices, AllocationSlice{Name: name, Value: value})
		}
	}
	sort.Slice(slices, func(i, j int) bool {
		if slices[i].Value != slices[j].Value {
			return slices[i].Value > slices[j].Value
		}
		return slices[i].Name < slices[j].Name
	})
	return slices
}

// finiteRSI copies an RSI reading, dropping NaN and infinities so they
// reach neither the alerts nor the JSON encoder
func finiteRSI(v *float64) *float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	r := *v
	return &r
}

// clean maps negative and non-finite values to 0
func clean(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
