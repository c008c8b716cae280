package runs

import (
	"context"
	stderrors "errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cashflow-scorecard/internal/common/database"
	"cashflow-scorecard/internal/common/errors"
	"cashflow-scorecard/internal/models"
)

func newMockLedger(t *testing.T) (*Ledger, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewLedger(database.NewPostgresFromDB(db)), mock
}

func TestLedger_EnsureSchema(t *testing.T) {
	l, mock := newMockLedger(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS scoring_runs").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, l.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedger_Record(t *testing.T) {
	l, mock := newMockLedger(t)
	run := sampleRun()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(insertRunSQL)).
		WithArgs("run-1", "Acme", "Acme", run.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta(insertWindowSQL)).
		WithArgs("run-1", "Acme", "3m", true, "B", 72.5, 42000.0, 0.0, sqlmock.AnyArg(), "/download/Acme/Credit_Memo_Acme_3m.pdf", run.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta(insertWindowSQL)).
		WithArgs("run-1", "Acme", "6m", false, "", 0.0, 0.0, 0.0, sqlmock.AnyArg(), "", run.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, l.Record(context.Background(), run))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedger_RecordRollsBack(t *testing.T) {
	l, mock := newMockLedger(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(insertRunSQL)).WillReturnError(stderrors.New("duplicate key"))
	mock.ExpectRollback()

	err := l.Record(context.Background(), sampleRun())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeLedgerDBFailed))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedger_History(t *testing.T) {
	l, mock := newMockLedger(t)
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"run_id", "business_slug", "window_name", "passed", "grade", "score",
		"eligible_capital", "expected_loss", "reason_codes", "pdf_path", "created_at"}).
		AddRow("run-1", "Acme", "3m", true, "B", 72.5, 42000.0, 310.0, "{CASH_BUFFER,NO_NSF}", "/download/x.pdf", created).
		AddRow("run-1", "Acme", "6m", false, "", 0.0, 0.0, 0.0, "{}", "", created)
	mock.ExpectQuery(regexp.QuoteMeta(historySQL)).WithArgs("Acme", 10).WillReturnRows(rows)

	got, err := l.History(context.Background(), "Acme", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, models.Window3M, got[0].Window)
	assert.Equal(t, []string{"CASH_BUFFER", "NO_NSF"}, got[0].ReasonCodes)
	assert.False(t, got[1].Passed)
	require.NoError(t, mock.ExpectationsWereMet())
}
