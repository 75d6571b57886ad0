package valuation

// Thresholds holds every tunable constant of the scoring model and the
// alert rules. Defaults reproduce the production model; each field can be
// overridden from the environment through its env tag.
type Thresholds struct {
	// Allocation signal
	AllocationUnderBonus  int `env:"SCORE_ALLOCATION_UNDER" envDefault:"30"`
	AllocationOverPenalty int `env:"SCORE_ALLOCATION_OVER" envDefault:"-10"`

	// Momentum signal, equities and funds
	RSIOversold         float64 `env:"SCORE_RSI_OVERSOLD" envDefault:"30"`
	RSIDiscount         float64 `env:"SCORE_RSI_DISCOUNT" envDefault:"40"`
	RSIOverbought       float64 `env:"SCORE_RSI_OVERBOUGHT" envDefault:"70"`
	OversoldBonus       int     `env:"SCORE_OVERSOLD_BONUS" envDefault:"25"`
	DiscountBonus       int     `env:"SCORE_DISCOUNT_BONUS" envDefault:"15"`
	OverboughtPenalty   int     `env:"SCORE_OVERBOUGHT_PENALTY" envDefault:"-30"`
	CryptoRSIOversold   float64 `env:"SCORE_CRYPTO_RSI_OVERSOLD" envDefault:"35"`
	CryptoRSIOverbought float64 `env:"SCORE_CRYPTO_RSI_OVERBOUGHT" envDefault:"75"`

	// Price action against the 6-month low
	SupportBand  float64 `env:"SCORE_SUPPORT_BAND" envDefault:"1.02"`
	SupportBonus int     `env:"SCORE_SUPPORT_BONUS" envDefault:"15"`
	NearLowBand  float64 `env:"SCORE_NEAR_LOW_BAND" envDefault:"1.05"`
	NearLowBonus int     `env:"SCORE_NEAR_LOW_BONUS" envDefault:"5"`

	// Stock fundamentals (Graham margin, percent)
	GrahamDeepMargin       float64 `env:"SCORE_GRAHAM_DEEP_MARGIN" envDefault:"50"`
	GrahamDeepBonus        int     `env:"SCORE_GRAHAM_DEEP_BONUS" envDefault:"30"`
	GrahamMargin           float64 `env:"SCORE_GRAHAM_MARGIN" envDefault:"20"`
	GrahamBonus            int     `env:"SCORE_GRAHAM_BONUS" envDefault:"15"`
	GrahamExpensiveMargin  float64 `env:"SCORE_GRAHAM_EXPENSIVE_MARGIN" envDefault:"-20"`
	GrahamExpensivePenalty int     `env:"SCORE_GRAHAM_EXPENSIVE_PENALTY" envDefault:"-20"`

	// International fundamentals
	IntlMargin               float64 `env:"SCORE_INTL_MARGIN" envDefault:"20"`
	IntlBonus                int     `env:"SCORE_INTL_BONUS" envDefault:"15"`
	IntlExpensiveMargin      float64 `env:"SCORE_INTL_EXPENSIVE_MARGIN" envDefault:"-20"`
	IntlExpensivePenalty     int     `env:"SCORE_INTL_EXPENSIVE_PENALTY" envDefault:"-15"`
	IntlDiversificationBonus int     `env:"SCORE_INTL_DIVERSIFICATION_BONUS" envDefault:"10"`

	// REIT fund price-to-book bands
	PBAnomaly        float64 `env:"SCORE_PB_ANOMALY" envDefault:"0.60"`
	PBAnomalyPenalty int     `env:"SCORE_PB_ANOMALY_PENALTY" envDefault:"-20"`
	PBDiscountMax    float64 `env:"SCORE_PB_DISCOUNT_MAX" envDefault:"0.90"`
	PBDiscountBonus  int     `env:"SCORE_PB_DISCOUNT_BONUS" envDefault:"30"`
	PBFairMax        float64 `env:"SCORE_PB_FAIR_MAX" envDefault:"1.02"`
	PBFairBonus      int     `env:"SCORE_PB_FAIR_BONUS" envDefault:"10"`
	PBPremium        float64 `env:"SCORE_PB_PREMIUM" envDefault:"1.15"`
	PBPremiumPenalty int     `env:"SCORE_PB_PREMIUM_PENALTY" envDefault:"-30"`
	MilestoneBonus   int     `env:"SCORE_MILESTONE_BONUS" envDefault:"5"`

	// Category short-circuits
	CashBuyScore         int `env:"SCORE_CASH_BUY" envDefault:"100"`
	CashNeutralScore     int `env:"SCORE_CASH_NEUTRAL" envDefault:"50"`
	FixedIncomeBuyScore  int `env:"SCORE_FIXED_INCOME_BUY" envDefault:"85"`
	FixedIncomeHoldScore int `env:"SCORE_FIXED_INCOME_HOLD" envDefault:"40"`

	// Label cut-offs
	StrongBuyScore int `env:"SCORE_LABEL_STRONG_BUY" envDefault:"80"`
	BuyScore       int `env:"SCORE_LABEL_BUY" envDefault:"60"`
	WatchScore     int `env:"SCORE_LABEL_WATCH" envDefault:"40"`
	NeutralScore   int `env:"SCORE_LABEL_NEUTRAL" envDefault:"20"`

	// Alerts
	ConcentrationFactor float64 `env:"ALERT_CONCENTRATION_FACTOR" envDefault:"1.5"`
	OpportunityRSI      float64 `env:"ALERT_OPPORTUNITY_RSI" envDefault:"28"`
	OverextendedRSI     float64 `env:"ALERT_OVEREXTENDED_RSI" envDefault:"78"`
	OverextendedFactor  float64 `env:"ALERT_OVEREXTENDED_FACTOR" envDefault:"1.2"`
	SupportStrongBand   float64 `env:"ALERT_SUPPORT_STRONG_BAND" envDefault:"1.01"`
	SupportWeakBand     float64 `env:"ALERT_SUPPORT_WEAK_BAND" envDefault:"1.03"`
	FundamentalMargin   float64 `env:"ALERT_FUNDAMENTAL_MARGIN" envDefault:"50"`
	FundamentalPB       float64 `env:"ALERT_FUNDAMENTAL_PB" envDefault:"0.85"`
	MilestoneUnits      float64 `env:"ALERT_MILESTONE_UNITS" envDefault:"5"`
}

// DefaultThresholds returns the production scoring model.
// Keep in sync with the envDefault tags.
func DefaultThresholds() Thresholds {
	return Thresholds{
		AllocationUnderBonus:  30,
		AllocationOverPenalty: -10,

		RSIOversold:         30,
		RSIDiscount:         40,
		RSIOverbought:       70,
		OversoldBonus:       25,
		DiscountBonus:       15,
		OverboughtPenalty:   -30,
		CryptoRSIOversold:   35,
		CryptoRSIOverbought: 75,

		SupportBand:  1.02,
		SupportBonus: 15,
		NearLowBand:  1.05,
		NearLowBonus: 5,

		GrahamDeepMargin:       50,
		GrahamDeepBonus:        30,
		GrahamMargin:           20,
		GrahamBonus:            15,
		GrahamExpensiveMargin:  -20,
		GrahamExpensivePenalty: -20,

		IntlMargin:               20,
		IntlBonus:                15,
		IntlExpensiveMargin:      -20,
		IntlExpensivePenalty:     -15,
		IntlDiversificationBonus: 10,

		PBAnomaly:        0.60,
		PBAnomalyPenalty: -20,
		PBDiscountMax:    0.90,
		PBDiscountBonus:  30,
		PBFairMax:        1.02,
		PBFairBonus:      10,
		PBPremium:        1.15,
		PBPremiumPenalty: -30,
		MilestoneBonus:   5,

		CashBuyScore:         100,
		CashNeutralScore:     50,
		FixedIncomeBuyScore:  85,
		FixedIncomeHoldScore: 40,

		StrongBuyScore: 80,
		BuyScore:       60,
		WatchScore:     40,
		NeutralScore:   20,

		ConcentrationFactor: 1.5,
		OpportunityRSI:      28,
		OverextendedRSI:     78,
		OverextendedFactor:  1.2,
		SupportStrongBand:   1.01,
		SupportWeakBand:     1.03,
		FundamentalMargin:   50,
		FundamentalPB:       0.85,
		MilestoneUnits:      5,
	}
}
