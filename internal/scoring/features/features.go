// Package features turns validated ledgers into the cash-flow metrics the
// scorecard engine consumes.
package features

import (
	"errors"
	"math"
	"sort"

	"cashflow-scorecard/internal/models"
	"cashflow-scorecard/internal/scoring/ledger"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrNoMonthlyData is returned when the P&L file has no rows.
var ErrNoMonthlyData = errors.New("pnl_monthly has no rows")

const daysPerMonth = 30

// Compute derives all features. Vendors are accepted for parity with the
// upload set but no feature depends on them yet. NaN and Inf results are
// reported as 0.
func Compute(bank []ledger.Transaction, pnl []ledger.MonthlyPnL, _ []ledger.Vendor) (models.Features, error) {
	if len(pnl) == 0 {
		return models.Features{}, ErrNoMonthlyData
	}

	var f models.Features

	// Liquidity
	days := ledger.SummarizeDays(bank)
	closes := make([]float64, 0, len(days))
	below := 0
	for _, d := range days {
		if d.Close < 0 {
			below++
		}
		if !math.IsNaN(d.Close) {
			closes = append(closes, d.Close)
		}
	}
	f.AverageDailyBalance = mean(closes)
	if len(days) > 0 {
		f.PercentOfDaysBelowZero = float64(below) / float64(len(days)) * 100
	} else {
		f.PercentOfDaysBelowZero = math.NaN()
	}

	revenue := column(pnl, func(r ledger.MonthlyPnL) *float64 { return r.Revenue })
	opex := column(pnl, func(r ledger.MonthlyPnL) *float64 { return r.OperatingExpense })
	if avgDailyExpenses := mean(opex) / daysPerMonth; avgDailyExpenses > 0 {
		f.DaysCashOnHand = f.AverageDailyBalance / avgDailyExpenses
	}

	// Cash flow
	nocf := netOperatingCashFlow(pnl)
	f.MedianMonthlyNOCF = median(nocf)

	weekly := ledger.WeeklyNetFlow(bank)
	nets := make([]float64, len(weekly))
	for i, w := range weekly {
		nets[i] = w.Net
	}
	if m := mean(nets); m != 0 {
		f.WeeklyNetCashflowVariability = stdDev(nets) / m
	}

	var inflows, creditInflows float64
	for _, tx := range bank {
		if tx.InOut != ledger.DirectionIn || tx.Amount == nil {
			continue
		}
		inflows += *tx.Amount
		if tx.Category == ledger.CategoryCredit {
			creditInflows += *tx.Amount
		}
	}
	if inflows > 0 {
		f.DrawOnCreditRatio = creditInflows / inflows
	}

	// Payment discipline
	var withDueDate, late int
	for _, tx := range bank {
		switch tx.Category {
		case ledger.CategoryNSFFee:
			f.NSFCount++
		case ledger.CategoryReturnedACH:
			f.ReturnedACHCount++
		}
		if tx.InOut == ledger.DirectionOut && tx.DueDate != nil {
			withDueDate++
			if tx.Date.After(*tx.DueDate) {
				late++
			}
		}
	}
	if withDueDate > 0 {
		f.VendorLateProxy = float64(late) / float64(withDueDate) * 100
	}

	// Revenue stability
	f.MoMRevenueVariability = stdDev(pctChange(revenue))
	if len(pnl) >= 3 {
		f.ThreeMonthSlope = slope(revenue[max(0, len(revenue)-3):])
	}
	f.SeasonalDelta = 0

	// Concentration
	f.TopVendorShare, f.Top5VendorsShare = vendorShares(bank)

	// Coverage
	var debtService float64
	for _, tx := range bank {
		if tx.Category == ledger.CategoryLoanRepayment && tx.Amount != nil {
			debtService += *tx.Amount
		}
	}
	if debtService > 0 {
		f.DSCRProxy = floats.Sum(nocf) / debtService
	}

	f.AnnualizedRevenue = floats.Sum(revenue) * (12 / float64(len(pnl)))

	return sanitize(f), nil
}

func column(rows []ledger.MonthlyPnL, get func(ledger.MonthlyPnL) *float64) []float64 {
	out := make([]float64, 0, len(rows))
	for _, r := range rows {
		if v := get(r); v != nil {
			out = append(out, *v)
		}
	}
	return out
}

func netOperatingCashFlow(rows []ledger.MonthlyPnL) []float64 {
	out := make([]float64, 0, len(rows))
	for _, r := range rows {
		if r.Revenue == nil || r.COGS == nil || r.OperatingExpense == nil {
			continue
		}
		out = append(out, *r.Revenue-*r.COGS-*r.OperatingExpense)
	}
	return out
}

// pctChange is the month-over-month fractional change, skipping the first month.
func pctChange(xs []float64) []float64 {
	if len(xs) < 2 {
		return nil
	}
	out := make([]float64, 0, len(xs)-1)
	for i := 1; i < len(xs); i++ {
		out = append(out, xs[i]/xs[i-1]-1)
	}
	return out
}

// slope is the least-squares slope of ys against 0..n-1.
func slope(ys []float64) float64 {
	xs := make([]float64, len(ys))
	for i := range xs {
		xs[i] = float64(i)
	}
	_, beta := stat.LinearRegression(xs, ys, nil, false)
	return beta
}

func vendorShares(bank []ledger.Transaction) (top, top5 float64) {
	spend := map[string]float64{}
	for _, tx := range bank {
		if tx.InOut != ledger.DirectionOut || tx.Counterparty == "" || tx.Amount == nil {
			continue
		}
		spend[tx.Counterparty] += *tx.Amount
	}
	if len(spend) == 0 {
		return 0, 0
	}

	amounts := make([]float64, 0, len(spend))
	for _, v := range spend {
		amounts = append(amounts, v)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(amounts)))

	total := floats.Sum(amounts)
	if total <= 0 {
		return 0, 0
	}
	return amounts[0] / total, floats.Sum(amounts[:min(5, len(amounts))]) / total
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return stat.Mean(xs, nil)
}

// stdDev is the sample standard deviation; NaN with fewer than two values.
func stdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return math.NaN()
	}
	return stat.StdDev(xs, nil)
}

// median averages the two middle values for even lengths.
func median(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	s := append([]float64(nil), xs...)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}

func sanitize(f models.Features) models.Features {
	for _, p := range []*float64{
		&f.AverageDailyBalance, &f.PercentOfDaysBelowZero, &f.DaysCashOnHand,
		&f.MedianMonthlyNOCF, &f.WeeklyNetCashflowVariability, &f.DrawOnCreditRatio,
		&f.NSFCount, &f.ReturnedACHCount, &f.VendorLateProxy, &f.MoMRevenueVariability,
		&f.ThreeMonthSlope, &f.SeasonalDelta, &f.TopVendorShare, &f.Top5VendorsShare,
		&f.DSCRProxy, &f.AnnualizedRevenue,
	} {
		if math.IsNaN(*p) || math.IsInf(*p, 0) {
			*p = 0
		}
	}
	return f
}
