// Package ledger reads the bank transaction, monthly P&L and vendor CSV
// files a business uploads for scoring.
package ledger

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// Transaction categories the scoring features look for.
const (
	CategoryCredit        = "credit"
	CategoryNSFFee        = "nsf_fee"
	CategoryReturnedACH   = "returned_ach"
	CategoryLoanRepayment = "loan_repayment"
)

var dateLayouts = []string{"2006-01-02", "2006-01-02 15:04:05", time.RFC3339}

// Transaction is one bank_tx row. Nil pointers and empty strings are empty cells.
type Transaction struct {
	Date         time.Time
	Amount       *float64
	InOut        string
	Balance      *float64
	Category     string
	Counterparty string
	InvoiceDate  *time.Time
	DueDate      *time.Time

	// Row is the raw record, used for duplicate detection.
	Row string
}

// Signed returns the amount with outflows negated. ok is false for an empty amount.
func (t Transaction) Signed() (v float64, ok bool) {
	if t.Amount == nil {
		return 0, false
	}
	if t.InOut == DirectionIn {
		return *t.Amount, true
	}
	return -*t.Amount, true
}

// DailySummary is one calendar day of bank activity.
type DailySummary struct {
	Date time.Time
	// Net is the signed sum of the day's non-empty amounts.
	Net float64
	// Close is the last non-empty balance of the day, NaN if none.
	Close float64
}

// SummarizeDays groups transactions by date in ascending date order.
func SummarizeDays(txs []Transaction) []DailySummary {
	byDay := map[time.Time]*DailySummary{}
	for _, tx := range txs {
		d, ok := byDay[tx.Date]
		if !ok {
			d = &DailySummary{Date: tx.Date, Close: math.NaN()}
			byDay[tx.Date] = d
		}
		if v, ok := tx.Signed(); ok {
			d.Net += v
		}
		if tx.Balance != nil {
			d.Close = *tx.Balance
		}
	}

	out := make([]DailySummary, 0, len(byDay))
	for _, d := range byDay {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// WeekFlow is the signed net flow of one week ending Sunday.
type WeekFlow struct {
	WeekEnding time.Time
	Net        float64
}

// WeeklyNetFlow buckets signed amounts into weeks ending Sunday. Weeks with
// no activity between the first and last transaction are included as zero.
func WeeklyNetFlow(txs []Transaction) []WeekFlow {
	if len(txs) == 0 {
		return nil
	}
	sums := map[time.Time]float64{}
	first, last := weekEnding(txs[0].Date), weekEnding(txs[0].Date)
	for _, tx := range txs {
		we := weekEnding(tx.Date)
		if we.Before(first) {
			first = we
		}
		if we.After(last) {
			last = we
		}
		if v, ok := tx.Signed(); ok {
			sums[we] += v
		}
	}

	var out []WeekFlow
	for we := first; !we.After(last); we = we.AddDate(0, 0, 7) {
		out = append(out, WeekFlow{WeekEnding: we, Net: sums[we]})
	}
	return out
}

func weekEnding(d time.Time) time.Time {
	return d.AddDate(0, 0, (7-int(d.Weekday()))%7)
}

// MonthlyPnL is one pnl_monthly row.
type MonthlyPnL struct {
	Month              string
	Revenue            *float64
	COGS               *float64
	OperatingExpense   *float64
	OtherIncomeExpense *float64
}

// Vendor is one vendors row.
type Vendor struct {
	VendorID   string
	Name       string
	Category   string
	IsCritical bool
}

// table is a parsed CSV with a header index.
type table struct {
	index   map[string]int
	records [][]string
}

func readTable(r io.Reader, required []string) (*table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no columns to parse from file")
	}

	t := &table{index: map[string]int{}, records: rows[1:]}
	for i, h := range rows[0] {
		t.index[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	var missing []string
	for _, col := range required {
		if _, ok := t.index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}
	return t, nil
}

func (t *table) cell(rec []string, col string) string {
	i, ok := t.index[col]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func parseFloat(s string) (*float64, error) {
	if s == "" || strings.EqualFold(s, "nan") {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

func parseOptionalDate(s string) (*time.Time, error) {
	if s == "" || s == "NaT" {
		return nil, nil
	}
	t, err := parseDate(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ReadBankTransactions parses a bank_tx CSV in file order.
func ReadBankTransactions(r io.Reader) ([]Transaction, error) {
	t, err := readTable(r, []string{"date", "amount", "in_out", "balance", "category"})
	if err != nil {
		return nil, err
	}

	out := make([]Transaction, 0, len(t.records))
	for n, rec := range t.records {
		line := n + 2
		date, err := parseDate(t.cell(rec, "date"))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		amount, err := parseFloat(t.cell(rec, "amount"))
		if err != nil {
			return nil, fmt.Errorf("line %d: amount: %w", line, err)
		}
		balance, err := parseFloat(t.cell(rec, "balance"))
		if err != nil {
			return nil, fmt.Errorf("line %d: balance: %w", line, err)
		}
		invoice, err := parseOptionalDate(t.cell(rec, "invoice_date"))
		if err != nil {
			return nil, fmt.Errorf("line %d: invoice_date: %w", line, err)
		}
		due, err := parseOptionalDate(t.cell(rec, "due_date"))
		if err != nil {
			return nil, fmt.Errorf("line %d: due_date: %w", line, err)
		}

		out = append(out, Transaction{
			Date:         date,
			Amount:       amount,
			InOut:        t.cell(rec, "in_out"),
			Balance:      balance,
			Category:     t.cell(rec, "category"),
			Counterparty: t.cell(rec, "counterparty"),
			InvoiceDate:  invoice,
			DueDate:      due,
			Row:          strings.Join(rec, "\x1f"),
		})
	}
	return out, nil
}

// ReadMonthlyPnL parses a pnl_monthly CSV.
func ReadMonthlyPnL(r io.Reader) ([]MonthlyPnL, error) {
	t, err := readTable(r, []string{"revenue", "cogs", "operating_expense"})
	if err != nil {
		return nil, err
	}

	out := make([]MonthlyPnL, 0, len(t.records))
	for n, rec := range t.records {
		var row MonthlyPnL
		row.Month = t.cell(rec, "month")
		fields := []struct {
			col string
			dst **float64
		}{
			{"revenue", &row.Revenue},
			{"cogs", &row.COGS},
			{"operating_expense", &row.OperatingExpense},
			{"other_income_expense", &row.OtherIncomeExpense},
		}
		for _, f := range fields {
			v, err := parseFloat(t.cell(rec, f.col))
			if err != nil {
				return nil, fmt.Errorf("line %d: %s: %w", n+2, f.col, err)
			}
			*f.dst = v
		}
		out = append(out, row)
	}
	return out, nil
}

// ReadVendors parses a vendors CSV.
func ReadVendors(r io.Reader) ([]Vendor, error) {
	t, err := readTable(r, []string{"vendor_id", "name"})
	if err != nil {
		return nil, err
	}

	out := make([]Vendor, 0, len(t.records))
	for _, rec := range t.records {
		critical, _ := strconv.ParseBool(t.cell(rec, "is_critical"))
		out = append(out, Vendor{
			VendorID:   t.cell(rec, "vendor_id"),
			Name:       t.cell(rec, "name"),
			Category:   t.cell(rec, "category"),
			IsCritical: critical,
		})
	}
	return out, nil
}

func readFile[T any](path string, read func(io.Reader) (T, error)) (T, error) {
	f, err := os.Open(path)
	if err != nil {
		var zero T
		return zero, err
	}
	defer f.Close()
	return read(f)
}

func ReadBankTransactionsFile(path string) ([]Transaction, error) {
	return readFile(path, ReadBankTransactions)
}

func ReadMonthlyPnLFile(path string) ([]MonthlyPnL, error) {
	return readFile(path, ReadMonthlyPnL)
}

func ReadVendorsFile(path string) ([]Vendor, error) {
	return readFile(path, ReadVendors)
}
