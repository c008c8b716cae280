// Package memo renders the one-page credit memo PDF for a scored window.
package memo

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-pdf/fpdf"

	"cashflow-scorecard/internal/common/money"
	"cashflow-scorecard/internal/models"
	"cashflow-scorecard/internal/scoring/engine"
	"cashflow-scorecard/internal/scoring/ledger"
)

const (
	flagPass  = "(Pass)"
	flagWatch = "(Watch)"
)

// Input carries everything printed on the memo.
type Input struct {
	BusinessName string
	Window       models.Window
	AsOf         time.Time
	Scorecard    models.Scorecard
	Features     models.Features
	Bank         []ledger.Transaction
	PolicyNote   string
}

type metricRow struct {
	name  string
	value string
	pass  bool
}

func metricRows(f models.Features) []metricRow {
	return []metricRow{
		{"Avg Daily Balance", money.USD(f.AverageDailyBalance), true},
		{"Days Cash on Hand", fmt.Sprintf("%.1f", f.DaysCashOnHand), f.DaysCashOnHand >= engine.MinDaysCashOnHand},
		{"Median Monthly NOCF", money.USD(f.MedianMonthlyNOCF), true},
		{"Weekly NCF Variability", fmt.Sprintf("%.2f", f.WeeklyNetCashflowVariability), f.WeeklyNetCashflowVariability < engine.MaxWeeklyVariability},
		{"NSF Count", fmt.Sprintf("%.0f", f.NSFCount), f.NSFCount < engine.MaxNSFEvents},
		{"Returned ACH Count", fmt.Sprintf("%.0f", f.ReturnedACHCount), f.ReturnedACHCount == 0},
		{"Vendor Late Proxy (%)", fmt.Sprintf("%.1f%%", f.VendorLateProxy), f.VendorLateProxy < engine.MaxVendorLatePct},
		{"DSCR Proxy", fmt.Sprintf("%.2fx", f.DSCRProxy), f.DSCRProxy >= engine.MinDSCR},
	}
}

func summaryLine(sc models.Scorecard) string {
	grade := sc.GradeOrEmpty()
	if grade == "" {
		grade = "N/A"
	}
	return fmt.Sprintf("Score: %.0f | Grade: %s | Eligible Capital: %s | Annual ECL: %s",
		sc.Score, grade, money.USD(sc.EligibleCapital), money.USD(sc.ExpectedLossAnnualized))
}

// Render writes the memo for in to w.
func Render(w io.Writer, in Input) error {
	days := ledger.SummarizeDays(in.Bank)
	balancePNG, err := balanceChart(days)
	if err != nil {
		return err
	}
	flowPNG, err := weeklyFlowChart(ledger.WeeklyNetFlow(in.Bank))
	if err != nil {
		return err
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Credit Memo: "+in.BusinessName, true)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, tr("Credit Memo: "+in.BusinessName), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 10, fmt.Sprintf("As-of Date: %s | Window: %s", in.AsOf.Format("2006-01-02"), in.Window), "", 1, "C", false, 0, "")
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 10, "Summary", "", 1, "L", false, 0, "")
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(0, 10, summaryLine(in.Scorecard), "1", 1, "C", true, 0, "")
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 10, "Key Metrics", "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pageW, _ := pdf.GetPageSize()
	colW := pageW / 2.2
	_, fontH := pdf.GetFontSize()
	lineH := fontH * 2
	for _, row := range metricRows(in.Features) {
		pdf.CellFormat(colW, lineH, row.name, "1", 0, "", false, 0, "")
		flag := flagPass
		pdf.SetTextColor(40, 167, 69)
		if !row.pass {
			flag = flagWatch
			pdf.SetTextColor(220, 53, 69)
		}
		pdf.CellFormat(colW, lineH, row.value+" "+flag, "1", 1, "", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	}
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 10, "Top Reason Codes", "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	if len(in.Scorecard.ReasonCodes) == 0 {
		pdf.CellFormat(0, 8, "- N/A", "", 1, "", false, 0, "")
	}
	for _, code := range in.Scorecard.ReasonCodes {
		pdf.CellFormat(0, 8, tr("- "+code), "", 1, "", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 10, "Visuals", "", 1, "L", false, 0, "")
	x, y := pdf.GetX(), pdf.GetY()
	placeImage(pdf, "balance", balancePNG, x+5, y)
	placeImage(pdf, "weekly-flow", flowPNG, x+105, y)
	pdf.SetY(y + 60)

	pdf.SetFont("Arial", "I", 8)
	pdf.SetTextColor(128, 128, 128)
	pdf.CellFormat(0, 10, tr(in.PolicyNote), "", 0, "C", false, 0, "")

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write memo: %w", err)
	}
	return nil
}

// placeImage draws a 90mm wide chart, or a short note when there was
// nothing to chart.
func placeImage(pdf *fpdf.Fpdf, name string, png []byte, x, y float64) {
	if png == nil {
		pdf.SetXY(x, y+20)
		pdf.SetFont("Arial", "I", 9)
		pdf.CellFormat(90, 10, "Not enough data to chart", "", 0, "C", false, 0, "")
		pdf.SetFont("Arial", "B", 12)
		return
	}
	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(png))
	pdf.ImageOptions(name, x, y, 90, 0, false, opts, 0, "")
}

// WriteFile renders the memo to path, creating parent directories. A failed
// render leaves no partial file behind.
func WriteFile(path string, in Input) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create memo directory: %w", err)
	}

	var buf bytes.Buffer
	if err := Render(&buf, in); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
