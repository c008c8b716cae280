// Package validation runs the data-quality checks that gate scoring.
package validation

import (
	"math"
	"time"

	"cashflow-scorecard/internal/scoring/ledger"
)

// Checks are the per-file quality counters. Every numeric check must be zero
// for the data to pass. Vendor checks are present only when a vendors file
// was supplied.
type Checks struct {
	BankTxMissingDates           int    `json:"bank_tx_missing_dates"`
	BankTxDuplicateRows          int    `json:"bank_tx_duplicate_rows"`
	BankTxNegativeOrEmptyAmounts int    `json:"bank_tx_negative_or_empty_amounts"`
	BalanceContinuityErrors      int    `json:"balance_continuity_errors"`
	CategoryCoverageLow          int    `json:"category_coverage_low"`
	PnLNullValues                int    `json:"pnl_null_values"`
	VendorsNullValues            *int   `json:"vendors_null_values,omitempty"`
	VendorsDuplicateIDs          *int   `json:"vendors_duplicate_ids,omitempty"`
	VendorsReadError             string `json:"vendors_read_error,omitempty"`
}

// Passed reports whether every numeric check is zero. A vendors read error is
// informational.
func (c Checks) Passed() bool {
	counts := []int{
		c.BankTxMissingDates,
		c.BankTxDuplicateRows,
		c.BankTxNegativeOrEmptyAmounts,
		c.BalanceContinuityErrors,
		c.CategoryCoverageLow,
		c.PnLNullValues,
	}
	if c.VendorsNullValues != nil {
		counts = append(counts, *c.VendorsNullValues)
	}
	if c.VendorsDuplicateIDs != nil {
		counts = append(counts, *c.VendorsDuplicateIDs)
	}
	for _, n := range counts {
		if n > 0 {
			return false
		}
	}
	return true
}

// Files locates one window's uploads. Vendors is empty when not supplied.
type Files struct {
	BankTx  string
	PnL     string
	Vendors string
}

// Dataset is what validation loaded, handed on to feature engineering.
type Dataset struct {
	Bank    []ledger.Transaction
	PnL     []ledger.MonthlyPnL
	Vendors []ledger.Vendor
}

// Report is the outcome of validating one window.
type Report struct {
	Passed bool
	Checks Checks
	// ReadError is set when the bank or P&L file could not be read.
	ReadError string
}

// Details is the JSON-ready payload for a failed window.
func (r Report) Details() interface{} {
	if r.ReadError != "" {
		return map[string]string{"read_error": r.ReadError}
	}
	return r.Checks
}

// Coverage below this percentage of categorised rows fails validation.
const minCategoryCoveragePct = 95.0

// ValidateFiles reads and checks one window's files.
func ValidateFiles(files Files) (Report, *Dataset) {
	bank, err := ledger.ReadBankTransactionsFile(files.BankTx)
	if err != nil {
		return Report{ReadError: err.Error()}, nil
	}
	pnl, err := ledger.ReadMonthlyPnLFile(files.PnL)
	if err != nil {
		return Report{ReadError: err.Error()}, nil
	}

	ds := &Dataset{Bank: bank, PnL: pnl}
	checks := CheckBank(bank)
	checks.PnLNullValues = CountPnLNulls(pnl)

	if files.Vendors != "" {
		vendors, err := ledger.ReadVendorsFile(files.Vendors)
		if err != nil {
			checks.VendorsReadError = err.Error()
		} else {
			ds.Vendors = vendors
			nulls, dups := CheckVendors(vendors)
			checks.VendorsNullValues = &nulls
			checks.VendorsDuplicateIDs = &dups
		}
	}

	return Report{Passed: checks.Passed(), Checks: checks}, ds
}

// CheckBank computes the bank_tx checks.
func CheckBank(txs []ledger.Transaction) Checks {
	var c Checks

	seen := make(map[string]struct{}, len(txs))
	uncategorised := 0
	for i, tx := range txs {
		if i > 0 && tx.Date.Sub(txs[i-1].Date) > 24*time.Hour {
			c.BankTxMissingDates++
		}
		if _, dup := seen[tx.Row]; dup {
			c.BankTxDuplicateRows++
		}
		seen[tx.Row] = struct{}{}
		if tx.Amount == nil || *tx.Amount < 0 {
			c.BankTxNegativeOrEmptyAmounts++
		}
		if tx.Category == "" {
			uncategorised++
		}
	}

	c.BalanceContinuityErrors = balanceContinuityErrors(txs)

	if n := len(txs); n > 0 {
		coverage := float64(n-uncategorised) / float64(n) * 100
		if coverage < minCategoryCoveragePct {
			c.CategoryCoverageLow = 1
		}
	}
	return c
}

func balanceContinuityErrors(txs []ledger.Transaction) int {
	days := ledger.SummarizeDays(txs)
	errs := 0
	for i := 1; i < len(days); i++ {
		expected := days[i-1].Close + days[i].Net
		if !isClose(days[i].Close, expected) {
			errs++
		}
	}
	return errs
}

// isClose follows numpy.isclose defaults; NaN is never close.
func isClose(a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return false
	}
	return math.Abs(a-b) <= 1e-8+1e-5*math.Abs(b)
}

// CountPnLNulls counts empty revenue, cogs and operating_expense cells.
func CountPnLNulls(rows []ledger.MonthlyPnL) int {
	n := 0
	for _, r := range rows {
		for _, v := range []*float64{r.Revenue, r.COGS, r.OperatingExpense} {
			if v == nil {
				n++
			}
		}
	}
	return n
}

// CheckVendors counts empty vendor_id/name cells and repeated vendor ids.
func CheckVendors(vendors []ledger.Vendor) (nulls, duplicates int) {
	seen := map[string]struct{}{}
	for _, v := range vendors {
		if v.VendorID == "" {
			nulls++
		}
		if v.Name == "" {
			nulls++
		}
		if _, ok := seen[v.VendorID]; ok {
			duplicates++
		}
		seen[v.VendorID] = struct{}{}
	}
	return nulls, duplicates
}
