// Package engine computes the CFX-lite score, grade, eligible capital,
// CECL-lite expected loss and reason codes from a feature set.
package engine

import (
	"math"

	"cashflow-scorecard/internal/models"
)

// Component weights of the CFX-lite score.
const (
	WeightLiquidity     = 0.25
	WeightCashFlow      = 0.35
	WeightDiscipline    = 0.20
	WeightStability     = 0.10
	WeightConcentration = 0.10
)

// Policy thresholds shared by reason codes, capital adjustments and memo flags.
const (
	MinDaysCashOnHand        = 15.0
	MaxWeeklyVariability     = 0.3
	MaxRevenueVariability    = 0.3
	MaxTopVendorShare        = 0.35
	DiversifiedVendorShare   = 0.2
	StableRevenueVariability = 0.1
	MaxNSFEvents             = 2.0
	MinDSCR                  = 1.25
	MaxVendorLatePct         = 35.0

	capitalFloorAB      = 5000.0
	revenueCapFraction  = 0.15
	exposureAtDefault   = 0.70
	lgdClean            = 0.35
	lgdDefault          = 0.45
	maxReasonCodes      = 3
	defaultVolatility   = 0.5
	minVolatilityFactor = 0.6
)

// Reason codes.
const (
	ReasonLowLiquidity       = "LOW_LIQ"
	ReasonRevenueVariability = "REV_VAR"
	ReasonHighConcentration  = "HIGH_CONC"
	ReasonNSFEvents          = "NSF_EVENTS"
	ReasonLowDSCR            = "LOW_DSCR"
	ReasonNegativeCashflow   = "NEGATIVE_CASHFLOW"

	ReasonRevenueStable      = "REV_STABLE"
	ReasonCashBuffer         = "CASH_BUFFER"
	ReasonNoNSF              = "NO_NSF"
	ReasonConsistentCashflow = "CONSISTENT_CASHFLOW"
	ReasonDiversifiedVendors = "DIVERSIFIED_VENDORS"
)

type gradeBand struct {
	grade    string
	minScore float64
	multiple float64
	pd       float64
}

// Bands are ordered best first; E catches everything below D.
var bands = []gradeBand{
	{"A", 80, 4, 0.015},
	{"B", 70, 3, 0.03},
	{"C", 60, 2, 0.06},
	{"D", 45, 1, 0.12},
	{"E", math.Inf(-1), 0, 0.25},
}

// Components are the 0-100 sub-scores.
type Components struct {
	Liquidity     float64 `json:"liquidity"`
	CashFlow      float64 `json:"cash_flow"`
	Discipline    float64 `json:"discipline"`
	Stability     float64 `json:"stability"`
	Concentration float64 `json:"concentration"`
}

// Result is a computed scorecard.
type Result struct {
	Score                  float64
	Grade                  string
	EligibleCapital        float64
	ExpectedLossAnnualized float64
	ReasonCodes            []string
	Components             Components
}

// Scorecard converts the result to its wire form.
func (r Result) Scorecard() models.Scorecard {
	g := r.Grade
	codes := r.ReasonCodes
	if codes == nil {
		codes = []string{}
	}
	return models.Scorecard{
		Grade:                  &g,
		Score:                  r.Score,
		EligibleCapital:        r.EligibleCapital,
		ExpectedLossAnnualized: r.ExpectedLossAnnualized,
		ReasonCodes:            codes,
	}
}

// Calculate scores one feature set.
func Calculate(f models.Features) Result {
	c := components(f)
	score := c.Liquidity*WeightLiquidity +
		c.CashFlow*WeightCashFlow +
		c.Discipline*WeightDiscipline +
		c.Stability*WeightStability +
		c.Concentration*WeightConcentration

	band := bandFor(score)
	capital := eligibleCapital(f, band)

	return Result{
		Score:                  score,
		Grade:                  band.grade,
		EligibleCapital:        capital,
		ExpectedLossAnnualized: band.pd * lossGivenDefault(f) * exposureAtDefault * capital,
		ReasonCodes:            reasonCodes(f),
		Components:             c,
	}
}

func components(f models.Features) Components {
	c := Components{
		Liquidity:     clip(f.DaysCashOnHand / 30 * 100),
		Stability:     clip((1 - f.MoMRevenueVariability) * 100),
		Discipline:    100 - clip(f.NSFCount*20),
		Concentration: 100 - clip((f.TopVendorShare-DiversifiedVendorShare)*200),
	}
	if f.MedianMonthlyNOCF >= 0 {
		c.CashFlow = clip((1 - f.WeeklyNetCashflowVariability) * 100)
	}
	return c
}

func bandFor(score float64) gradeBand {
	for _, b := range bands {
		if score >= b.minScore {
			return b
		}
	}
	return bands[len(bands)-1]
}

// GradeFor maps a score to its letter grade.
func GradeFor(score float64) string {
	return bandFor(score).grade
}

func eligibleCapital(f models.Features, band gradeBand) float64 {
	base := math.Max(0, f.MedianMonthlyNOCF*band.multiple)

	volatility := f.WeeklyNetCashflowVariability
	if volatility == 0 {
		volatility = defaultVolatility
	}
	adjusted := base * math.Max(minVolatilityFactor, 1-volatility)
	if f.DaysCashOnHand < MinDaysCashOnHand {
		adjusted *= 0.5
	}
	if f.NSFCount >= MaxNSFEvents {
		adjusted *= 0.8
	}
	if f.TopVendorShare > MaxTopVendorShare {
		adjusted *= 0.85
	}

	capital := math.Min(adjusted, revenueCapFraction*f.AnnualizedRevenue)
	if band.grade == "A" || band.grade == "B" {
		capital = math.Max(capital, capitalFloorAB)
	}
	return capital
}

func lossGivenDefault(f models.Features) float64 {
	if f.NSFCount == 0 && f.PercentOfDaysBelowZero == 0 {
		return lgdClean
	}
	return lgdDefault
}

func reasonCodes(f models.Features) []string {
	var risks []string
	if f.DaysCashOnHand < MinDaysCashOnHand {
		risks = append(risks, ReasonLowLiquidity)
	}
	if f.MoMRevenueVariability > MaxRevenueVariability {
		risks = append(risks, ReasonRevenueVariability)
	}
	if f.TopVendorShare > MaxTopVendorShare {
		risks = append(risks, ReasonHighConcentration)
	}
	if f.NSFCount >= MaxNSFEvents {
		risks = append(risks, ReasonNSFEvents)
	}
	if f.DSCRProxy < MinDSCR {
		risks = append(risks, ReasonLowDSCR)
	}
	if f.MedianMonthlyNOCF < 0 {
		risks = append(risks, ReasonNegativeCashflow)
	}
	if len(risks) > 0 {
		return truncate(risks)
	}

	var positives []string
	if f.MoMRevenueVariability < StableRevenueVariability {
		positives = append(positives, ReasonRevenueStable)
	}
	if f.DaysCashOnHand >= MinDaysCashOnHand {
		positives = append(positives, ReasonCashBuffer)
	}
	if f.NSFCount == 0 {
		positives = append(positives, ReasonNoNSF)
	}
	if f.WeeklyNetCashflowVariability < MaxWeeklyVariability {
		positives = append(positives, ReasonConsistentCashflow)
	}
	if f.TopVendorShare < DiversifiedVendorShare {
		positives = append(positives, ReasonDiversifiedVendors)
	}
	return truncate(positives)
}

func truncate(codes []string) []string {
	if len(codes) > maxReasonCodes {
		return codes[:maxReasonCodes]
	}
	return codes
}

func clip(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
