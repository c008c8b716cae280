package ledger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bankCSV = `date,amount,in_out,balance,category,counterparty,invoice_date,due_date
2025-01-01,100.5,in,1100.5,customer_payment,Counterparty_1,,
2025-01-02,40,out,1060.5,payroll,Counterparty_2,2024-12-01,2024-12-31
2025-01-02,,out,,,Counterparty_3,,
`

func TestReadBankTransactions(t *testing.T) {
	txs, err := ReadBankTransactions(strings.NewReader(bankCSV))
	require.NoError(t, err)
	require.Len(t, txs, 3)

	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), txs[0].Date)
	v, ok := txs[0].Signed()
	assert.True(t, ok)
	assert.Equal(t, 100.5, v)

	v, ok = txs[1].Signed()
	assert.True(t, ok)
	assert.Equal(t, -40.0, v)
	require.NotNil(t, txs[1].DueDate)
	assert.Equal(t, 31, txs[1].DueDate.Day())

	_, ok = txs[2].Signed()
	assert.False(t, ok)
	assert.Nil(t, txs[2].Balance)
	assert.Empty(t, txs[2].Category)
}

func TestReadBankTransactions_Errors(t *testing.T) {
	_, err := ReadBankTransactions(strings.NewReader("date,amount\n2025-01-01,1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "in_out")

	_, err = ReadBankTransactions(strings.NewReader("date,amount,in_out,balance,category\nyesterday,1,in,1,x\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")

	_, err = ReadBankTransactions(strings.NewReader(""))
	assert.Error(t, err)
}

func TestReadMonthlyPnL(t *testing.T) {
	rows, err := ReadMonthlyPnL(strings.NewReader("month,revenue,cogs,operating_expense\n2025-01,1000,400,,\n2025-02,1200,500,300\n"))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2025-01", rows[0].Month)
	assert.Nil(t, rows[0].OperatingExpense)
	assert.Nil(t, rows[1].OtherIncomeExpense)
	assert.Equal(t, 300.0, *rows[1].OperatingExpense)

	_, err = ReadMonthlyPnL(strings.NewReader("month,revenue,cogs,operating_expense\n2025-01,abc,1,1\n"))
	assert.Error(t, err)
}

func TestReadVendorsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vendors.csv")
	require.NoError(t, os.WriteFile(path, []byte("vendor_id,name,category,is_critical\nV1,Vendor 1,rent,True\nV2,,software,False\n"), 0o600))

	vendors, err := ReadVendorsFile(path)
	require.NoError(t, err)
	require.Len(t, vendors, 2)
	assert.True(t, vendors[0].IsCritical)
	assert.Empty(t, vendors[1].Name)

	_, err = ReadVendorsFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestSummarizeDays(t *testing.T) {
	txs, err := ReadBankTransactions(strings.NewReader(`date,amount,in_out,balance,category
2025-01-02,10,out,990,rent
2025-01-01,100,in,1100,sales
2025-01-01,100,out,1000,payroll
2025-01-02,5,in,,sales
`))
	require.NoError(t, err)

	days := SummarizeDays(txs)
	require.Len(t, days, 2)
	assert.Equal(t, 1, days[0].Date.Day())
	assert.Equal(t, 0.0, days[0].Net)
	assert.Equal(t, 1000.0, days[0].Close)
	assert.Equal(t, -5.0, days[1].Net)
	assert.Equal(t, 990.0, days[1].Close, "empty balance cells are skipped")
}

func TestWeeklyNetFlow(t *testing.T) {
	txs, err := ReadBankTransactions(strings.NewReader(`date,amount,in_out,balance,category
2025-01-01,100,in,1100,sales
2025-01-05,30,out,1070,rent
2025-01-14,50,in,1120,sales
`))
	require.NoError(t, err)

	weeks := WeeklyNetFlow(txs)
	require.Len(t, weeks, 3)
	assert.Equal(t, time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC), weeks[0].WeekEnding)
	assert.Equal(t, 70.0, weeks[0].Net)
	assert.Equal(t, 0.0, weeks[1].Net)
	assert.Equal(t, time.Date(2025, 1, 19, 0, 0, 0, 0, time.UTC), weeks[2].WeekEnding)
	assert.Equal(t, 50.0, weeks[2].Net)

	assert.Nil(t, WeeklyNetFlow(nil))
}
