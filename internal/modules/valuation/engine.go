package valuation

import (
	"github.com/aristath/assetflow/internal/domain"
)

// Status is the machine-readable recommendation.
type Status string

const (
	StatusStrongBuy Status = "COMPRA_FORTE"
	StatusBuy       Status = "COMPRAR"
	StatusWatch     Status = "AGUARDAR"
	StatusNeutral   Status = "NEUTRO"
	StatusAvoid     Status = "EVITAR"
)

// neutralRSI is assumed when no momentum value is available.
const neutralRSI = 50.0

// Rationale messages. The UI renders them in order as a narrative.
const (
	MsgBelowTarget        = "below target"
	MsgAboveTarget        = "above target"
	MsgCriticalOversold   = "critical oversold"
	MsgTechnicalDiscount  = "technical discount"
	MsgOverbought         = "overbought"
	MsgCryptoOversold     = "crypto oversold"
	MsgCryptoOverextended = "crypto overextended"
	MsgAtSupport          = "at 6-month support"
	MsgNearLows           = "near lows"
	MsgDeepGrahamDiscount = "deep Graham discount"
	MsgGrahamDiscount     = "Graham discount"
	MsgAboveFairValue     = "above fair value"
	MsgIntlDiscount       = "below fair value"
	MsgGlobalDiversity    = "global diversification"
	MsgBookAnomaly        = "P/B anomaly, check data"
	MsgBelowBook          = "trading below book"
	MsgFairBook           = "fair book value"
	MsgHighPremium        = "trading at high premium"
	MsgIncomeMilestone    = "income milestone reached"
	MsgScheduledCont      = "scheduled contribution/rebalancing"
	MsgAllocationMet      = "allocation met"
	MsgReplenishReserve   = "replenish reserve"
	MsgReserveAtTarget    = "reserve at target"
	LabelStrongBuy        = "strong buy opportunity"
	LabelBuy              = "buy"
	LabelWatch            = "watch"
	LabelNeutral          = "neutral"
	LabelAvoid            = "avoid"
	LabelReplenishReserve = MsgReplenishReserve
)

// ScoreInput is everything the engine needs to score one position.
// RSI is nil when the momentum oscillator is unavailable.
type ScoreInput struct {
	Category      domain.Category
	Quantity      float64
	Metrics       Metrics
	AllocationGap float64
	Price         float64
	Low6M         float64
	RSI           *float64
}

// Recommendation is the engine output. Rationale lists every triggered
// signal in evaluation order: allocation, momentum, price action, fundamental.
type Recommendation struct {
	Label     string   `json:"label"`
	Status    Status   `json:"status"`
	Score     int      `json:"score"`
	Rationale []string `json:"rationale"`
}

// Engine scores positions with a fixed set of thresholds.
type Engine struct {
	th Thresholds
}

// NewEngine creates a recommendation engine.
func NewEngine(th Thresholds) *Engine {
	return &Engine{th: th}
}

// Thresholds returns the thresholds the engine was built with.
func (e *Engine) Thresholds() Thresholds {
	return e.th
}

// ScorePosition scores a single position. Cash reserves and fixed income
// short-circuit; every other category, known or not, goes through the
// additive model clamped to [0, 100].
func (e *Engine) ScorePosition(in ScoreInput) Recommendation {
	switch in.Category {
	case domain.CategoryCashReserve:
		return e.scoreCashReserve(in)
	case domain.CategoryFixedIncome:
		return e.scoreFixedIncome(in)
	}

	rsi := neutralRSI
	if in.RSI != nil && !isBad(*in.RSI) {
		rsi = *in.RSI
	}

	price := nonNegative(in.Price)
	low := nonNegative(in.Low6M)
	gap := sanitize(in.AllocationGap)

	score := 0
	rationale := make([]string, 0, 4)
	add := func(points int, msg string) {
		score += points
		rationale = append(rationale, msg)
	}

	// 1. Allocation
	if gap > 0 {
		add(e.th.AllocationUnderBonus, MsgBelowTarget)
	} else {
		add(e.th.AllocationOverPenalty, MsgAboveTarget)
	}

	// 2. Momentum
	if in.Category == domain.CategoryCrypto {
		switch {
		case rsi < e.th.CryptoRSIOversold:
			add(e.th.OversoldBonus, MsgCryptoOversold)
		case rsi > e.th.CryptoRSIOverbought:
			add(e.th.OverboughtPenalty, MsgCryptoOverextended)
		}
	} else {
		switch {
		case rsi < e.th.RSIOversold:
			add(e.th.OversoldBonus, MsgCriticalOversold)
		case rsi < e.th.RSIDiscount:
			add(e.th.DiscountBonus, MsgTechnicalDiscount)
		case rsi > e.th.RSIOverbought:
			add(e.th.OverboughtPenalty, MsgOverbought)
		}
	}

	// 3. Price action
	if low > 0 && price > 0 {
		switch {
		case price <= low*e.th.SupportBand:
			add(e.th.SupportBonus, MsgAtSupport)
		case price <= low*e.th.NearLowBand:
			add(e.th.NearLowBonus, MsgNearLows)
		}
	}

	// 4. Fundamentals
	m := in.Metrics
	switch in.Category {
	case domain.CategoryStock:
		margin := sanitize(m.FairValueMargin)
		switch {
		case margin > e.th.GrahamDeepMargin:
			add(e.th.GrahamDeepBonus, MsgDeepGrahamDiscount)
		case margin > e.th.GrahamMargin:
			add(e.th.GrahamBonus, MsgGrahamDiscount)
		case margin < e.th.GrahamExpensiveMargin:
			add(e.th.GrahamExpensivePenalty, MsgAboveFairValue)
		}

	case domain.CategoryInternational:
		margin := sanitize(m.FairValueMargin)
		if margin != 0 {
			switch {
			case margin > e.th.IntlMargin:
				add(e.th.IntlBonus, MsgIntlDiscount)
			case margin < e.th.IntlExpensiveMargin:
				add(e.th.IntlExpensivePenalty, MsgAboveFairValue)
			}
		} else if sanitize(m.FairValue) == 0 {
			add(e.th.IntlDiversificationBonus, MsgGlobalDiversity)
		}

	case domain.CategoryREIT:
		pb := sanitize(m.PriceToBook)
		if pb > 0 {
			switch {
			case pb < e.th.PBAnomaly:
				add(e.th.PBAnomalyPenalty, MsgBookAnomaly)
			case pb <= e.th.PBDiscountMax:
				add(e.th.PBDiscountBonus, MsgBelowBook)
			case pb < e.th.PBFairMax:
				add(e.th.PBFairBonus, MsgFairBook)
			case pb > e.th.PBPremium:
				add(e.th.PBPremiumPenalty, MsgHighPremium)
			}
		}
		if m.BreakevenUnits > 0 && nonNegative(in.Quantity) >= float64(m.BreakevenUnits) {
			add(e.th.MilestoneBonus, MsgIncomeMilestone)
		}
	}

	score = clamp(score, 0, 100)
	label, status := e.classify(score)

	return Recommendation{
		Label:     label,
		Status:    status,
		Score:     score,
		Rationale: rationale,
	}
}

func (e *Engine) scoreCashReserve(in ScoreInput) Recommendation {
	if sanitize(in.AllocationGap) > 0 {
		return Recommendation{
			Label:     LabelReplenishReserve,
			Status:    StatusStrongBuy,
			Score:     e.th.CashBuyScore,
			Rationale: []string{MsgReplenishReserve},
		}
	}
	return Recommendation{
		Label:     LabelNeutral,
		Status:    StatusNeutral,
		Score:     e.th.CashNeutralScore,
		Rationale: []string{MsgReserveAtTarget},
	}
}

func (e *Engine) scoreFixedIncome(in ScoreInput) Recommendation {
	if sanitize(in.AllocationGap) > 0 {
		return Recommendation{
			Label:     LabelBuy,
			Status:    StatusBuy,
			Score:     e.th.FixedIncomeBuyScore,
			Rationale: []string{MsgScheduledCont},
		}
	}
	return Recommendation{
		Label:     LabelWatch,
		Status:    StatusWatch,
		Score:     e.th.FixedIncomeHoldScore,
		Rationale: []string{MsgAllocationMet},
	}
}

// classify maps a clamped score to its label and status.
func (e *Engine) classify(score int) (string, Status) {
	switch {
	case score >= e.th.StrongBuyScore:
		return LabelStrongBuy, StatusStrongBuy
	case score >= e.th.BuyScore:
		return LabelBuy, StatusBuy
	case score >= e.th.WatchScore:
		return LabelWatch, StatusWatch
	case score >= e.th.NeutralScore:
		return LabelNeutral, StatusNeutral
	default:
		return LabelAvoid, StatusAvoid
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func isBad(v float64) bool {
	return sanitize(v) != v
}
