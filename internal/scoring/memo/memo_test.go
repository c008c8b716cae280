package memo

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cashflow-scorecard/internal/models"
	"cashflow-scorecard/internal/scoring/ledger"
)

const bankCSV = `date,amount,in_out,balance,category,counterparty
2025-01-01,1000,in,2001000,customer_payment,CP1
2025-01-02,300,out,2000700,rent,CP2
2025-01-08,5000,out,1995700,payroll,CP3
2025-01-15,2500,in,1998200,customer_payment,CP1
`

func sampleInput(t *testing.T) Input {
	t.Helper()
	bank, err := ledger.ReadBankTransactions(strings.NewReader(bankCSV))
	require.NoError(t, err)

	grade := "B"
	return Input{
		BusinessName: "Acme Café",
		Window:       models.Window3M,
		AsOf:         time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		Scorecard: models.Scorecard{
			Grade:                  &grade,
			Score:                  74.4,
			EligibleCapital:        120000,
			ExpectedLossAnnualized: 1134,
			ReasonCodes:            []string{"CASH_BUFFER", "NO_NSF"},
		},
		Features: models.Features{
			AverageDailyBalance: 1998900,
			DaysCashOnHand:      12,
			DSCRProxy:           1.4,
		},
		Bank:       bank,
		PolicyNote: "Policy Note: automated assessment.",
	}
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleInput(t)))

	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	assert.Greater(t, buf.Len(), 1000)
}

func TestRender_WithoutTransactions(t *testing.T) {
	in := sampleInput(t)
	in.Bank = nil
	in.Scorecard.Grade = nil
	in.Scorecard.ReasonCodes = nil

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, in))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestRender_SingleDay(t *testing.T) {
	in := sampleInput(t)
	in.Bank = in.Bank[:1]

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, in))
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "acme", "Credit_Memo_acme_6m.pdf")
	require.NoError(t, WriteFile(path, sampleInput(t)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
}

func TestMetricRowsFlags(t *testing.T) {
	rows := metricRows(models.Features{
		DaysCashOnHand:               15,
		WeeklyNetCashflowVariability: 0.3,
		NSFCount:                     1,
		ReturnedACHCount:             1,
		VendorLateProxy:              20,
		DSCRProxy:                    1.25,
		MedianMonthlyNOCF:            -1500.5,
	})

	got := map[string]metricRow{}
	for _, r := range rows {
		got[r.name] = r
	}
	require.Len(t, got, 8)

	assert.True(t, got["Days Cash on Hand"].pass)
	assert.False(t, got["Weekly NCF Variability"].pass)
	assert.True(t, got["NSF Count"].pass)
	assert.False(t, got["Returned ACH Count"].pass)
	assert.Equal(t, "20.0%", got["Vendor Late Proxy (%)"].value)
	assert.True(t, got["DSCR Proxy"].pass)
	assert.Equal(t, "1.25x", got["DSCR Proxy"].value)
	assert.Equal(t, "$-1,501", got["Median Monthly NOCF"].value)
}

func TestSummaryLine(t *testing.T) {
	in := sampleInput(t)
	assert.Equal(t, "Score: 74 | Grade: B | Eligible Capital: $120,000 | Annual ECL: $1,134", summaryLine(in.Scorecard))

	in.Scorecard.Grade = nil
	assert.Contains(t, summaryLine(in.Scorecard), "Grade: N/A")
}

func TestPaddedRange(t *testing.T) {
	r := paddedRange(5, 5)
	assert.Less(t, r.Min, 5.0)
	assert.Greater(t, r.Max, 5.0)

	r = paddedRange(0, 0)
	assert.Equal(t, -1.0, r.Min)
	assert.Equal(t, 1.0, r.Max)
}
