package main

import (
	"encoding/csv"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"
)

const (
	profileHealthy    = "healthy"
	profileStable     = "stable"
	profileStruggling = "struggling"
)

var (
	inCategories  = []string{"customer_payment", "investment_income", "asset_sale", "refund", "credit"}
	outCategories = []string{"payroll", "rent", "utilities", "supplier_payment", "loan_repayment", "tax_payment", "marketing_spend", "software_subscription", "T&E"}
	vendorKinds   = []string{"supplies", "rent", "utilities", "marketing", "logistics", "software"}
)

type profileShape struct {
	revenueMin, revenueMax float64
	cogsRatio, opExRatio   float64
	nsfMin, nsfMax         int // [min, max)
}

var shapes = map[string]profileShape{
	profileHealthy:    {3_000_000, 5_000_000, 0.45, 0.25, 0, 0},
	profileStable:     {2_500_000, 4_000_000, 0.55, 0.35, 0, 2},
	profileStruggling: {2_000_000, 3_500_000, 0.65, 0.45, 2, 5},
}

type pnlRow struct {
	Month                               time.Time
	Revenue, COGS, OpEx, OtherIncomeExp float64
}

type bankRow struct {
	Date         time.Time
	Amount       float64
	Category     string
	InOut        string
	Counterparty string
	Balance      float64
}

type dataset struct {
	Profile string
	PnL     []pnlRow
	Bank    []bankRow
}

type generator struct {
	rng *rand.Rand
}

func newGenerator(seed int64) *generator {
	return &generator{rng: rand.New(rand.NewSource(seed))}
}

func (g *generator) uniform(lo, hi float64) float64 {
	return lo + g.rng.Float64()*(hi-lo)
}

// between returns an int in [lo, hi); hi <= lo yields lo.
func (g *generator) between(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + g.rng.Intn(hi-lo)
}

func (g *generator) pick(xs []string) string {
	return xs[g.rng.Intn(len(xs))]
}

// pickProfile draws healthy 60%, stable 20%, struggling 20%.
func (g *generator) pickProfile() string {
	switch p := g.rng.Float64(); {
	case p < 0.6:
		return profileHealthy
	case p < 0.8:
		return profileStable
	}
	return profileStruggling
}

// split divides total into n shares drawn from a flat Dirichlet, sampled as
// normalized exponentials.
func (g *generator) split(total float64, n int) []float64 {
	shares := make([]float64, n)
	sum := 0.0
	for i := range shares {
		shares[i] = g.rng.ExpFloat64()
		sum += shares[i]
	}
	for i := range shares {
		shares[i] *= total / sum
	}
	return shares
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// generate builds months full calendar months of coherent data ending with
// the month before end.
func (g *generator) generate(profile string, months int, end time.Time) dataset {
	shape := shapes[profile]
	first := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -months, 0)

	ds := dataset{Profile: profile}
	var txs []bankRow
	var days []time.Time

	for m := 0; m < months; m++ {
		monthStart := first.AddDate(0, m, 0)
		revenue := round2(g.uniform(shape.revenueMin, shape.revenueMax))
		row := pnlRow{
			Month:          monthStart,
			Revenue:        revenue,
			COGS:           round2(revenue * shape.cogsRatio),
			OpEx:           round2(revenue * shape.opExRatio),
			OtherIncomeExp: round2(g.uniform(-50_000, 50_000)),
		}
		ds.PnL = append(ds.PnL, row)

		var monthDays []time.Time
		for d := monthStart; d.Before(monthStart.AddDate(0, 1, 0)); d = d.AddDate(0, 0, 1) {
			monthDays = append(monthDays, d)
		}
		days = append(days, monthDays...)

		for _, amt := range g.split(row.Revenue, g.between(15, 30)*len(monthDays)) {
			txs = append(txs, bankRow{Date: monthDays[g.rng.Intn(len(monthDays))], Amount: amt, Category: g.pick(inCategories), InOut: "in"})
		}
		for _, amt := range g.split(row.COGS+row.OpEx, g.between(20, 40)*len(monthDays)) {
			txs = append(txs, bankRow{Date: monthDays[g.rng.Intn(len(monthDays))], Amount: amt, Category: g.pick(outCategories), InOut: "out"})
		}
	}

	for i, n := 0, g.between(shape.nsfMin, shape.nsfMax); i < n; i++ {
		txs = append(txs, bankRow{Date: days[g.rng.Intn(len(days))], Amount: round2(g.uniform(25, 50)), Category: "nsf_fee", InOut: "out"})
	}
	for i, n := 0, g.between(shape.nsfMin, shape.nsfMax); i < n; i++ {
		txs = append(txs, bankRow{Date: days[g.rng.Intn(len(days))], Amount: round2(g.uniform(500, 2000)), Category: "returned_ach", InOut: "out"})
	}

	sort.SliceStable(txs, func(i, j int) bool { return txs[i].Date.Before(txs[j].Date) })

	balance := round2(g.uniform(15_000_000, 25_000_000))
	for i := range txs {
		txs[i].Amount = round2(txs[i].Amount)
		txs[i].Counterparty = fmt.Sprintf("Counterparty_%d", g.between(1, 100))
		if txs[i].InOut == "in" {
			balance += txs[i].Amount
		} else {
			balance -= txs[i].Amount
		}
		txs[i].Balance = round2(balance)
	}
	ds.Bank = txs
	return ds
}

// writeWindow writes the trailing months of ds to <dir>/trailing_<n>m.
func (g *generator) writeWindow(dir string, ds dataset, months int) (string, error) {
	if months > len(ds.PnL) {
		months = len(ds.PnL)
	}
	cutoff := ds.PnL[len(ds.PnL)-months].Month
	out := filepath.Join(dir, fmt.Sprintf("trailing_%dm", months))
	if err := os.MkdirAll(out, 0o755); err != nil {
		return "", err
	}

	bank := [][]string{{"date", "amount", "category", "in_out", "counterparty", "balance", "invoice_date", "due_date"}}
	for _, tx := range ds.Bank {
		if tx.Date.Before(cutoff) {
			continue
		}
		invoice, due := "", ""
		if tx.InOut == "out" {
			inv := tx.Date.AddDate(0, 0, -g.between(15, 45))
			invoice = inv.Format("2006-01-02")
			due = inv.AddDate(0, 0, 30+g.between(-5, 10)).Format("2006-01-02")
		}
		bank = append(bank, []string{
			tx.Date.Format("2006-01-02"), money(tx.Amount), tx.Category, tx.InOut,
			tx.Counterparty, money(tx.Balance), invoice, due,
		})
	}

	pnl := [][]string{{"month", "revenue", "cogs", "operating_expense", "other_income_expense"}}
	for _, row := range ds.PnL[len(ds.PnL)-months:] {
		pnl = append(pnl, []string{
			row.Month.Format("2006-01"), money(row.Revenue), money(row.COGS), money(row.OpEx), money(row.OtherIncomeExp),
		})
	}

	vendors := [][]string{{"vendor_id", "name", "category", "is_critical"}}
	for i := 1; i <= 100; i++ {
		critical := "False"
		if g.rng.Float64() < 0.3 {
			critical = "True"
		}
		vendors = append(vendors, []string{fmt.Sprintf("V%d", i), fmt.Sprintf("Vendor Name %d", i), g.pick(vendorKinds), critical})
	}

	for name, rows := range map[string][][]string{"bank_tx.csv": bank, "pnl_monthly.csv": pnl, "vendors.csv": vendors} {
		if err := writeCSV(filepath.Join(out, name), rows); err != nil {
			return "", err
		}
	}
	return out, nil
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
