package runs

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"cashflow-scorecard/internal/common/database"
	"cashflow-scorecard/internal/common/errors"
	"cashflow-scorecard/internal/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS scoring_runs (
	id            TEXT PRIMARY KEY,
	business_name TEXT NOT NULL,
	business_slug TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS scoring_run_windows (
	run_id           TEXT NOT NULL REFERENCES scoring_runs(id),
	business_slug    TEXT NOT NULL,
	window_name      TEXT NOT NULL,
	passed           BOOLEAN NOT NULL,
	grade            TEXT NOT NULL DEFAULT '',
	score            DOUBLE PRECISION NOT NULL DEFAULT 0,
	eligible_capital DOUBLE PRECISION NOT NULL DEFAULT 0,
	expected_loss    DOUBLE PRECISION NOT NULL DEFAULT 0,
	reason_codes     TEXT[] NOT NULL DEFAULT '{}',
	pdf_path         TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (run_id, window_name)
);
CREATE INDEX IF NOT EXISTS idx_scoring_run_windows_slug ON scoring_run_windows (business_slug, created_at DESC);`

const (
	insertRunSQL = `INSERT INTO scoring_runs (id, business_name, business_slug, created_at) VALUES ($1, $2, $3, $4)`

	insertWindowSQL = `INSERT INTO scoring_run_windows
	(run_id, business_slug, window_name, passed, grade, score, eligible_capital, expected_loss, reason_codes, pdf_path, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	historySQL = `SELECT run_id, business_slug, window_name, passed, grade, score, eligible_capital, expected_loss, reason_codes, pdf_path, created_at
	FROM scoring_run_windows WHERE business_slug = $1 ORDER BY created_at DESC, window_name LIMIT $2`
)

// Ledger is the Postgres history of scored windows.
type Ledger struct {
	db *database.PostgresClient
}

func NewLedger(db *database.PostgresClient) *Ledger {
	return &Ledger{db: db}
}

func (l *Ledger) EnsureSchema(ctx context.Context) error {
	if _, err := l.db.Exec(ctx, schemaSQL); err != nil {
		return errors.NewRunLedgerError(err)
	}
	return nil
}

// Record inserts the run and one row per window in a single transaction.
func (l *Ledger) Record(ctx context.Context, run models.ScoringRun) error {
	err := l.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, insertRunSQL, run.ID, run.BusinessName, run.BusinessSlug, run.CreatedAt); err != nil {
			return err
		}
		for _, rec := range models.RecordsFromRun(run) {
			codes := rec.ReasonCodes
			if codes == nil {
				codes = []string{}
			}
			_, err := tx.ExecContext(ctx, insertWindowSQL,
				rec.RunID, rec.BusinessSlug, string(rec.Window), rec.Passed, rec.Grade,
				rec.Score, rec.EligibleCapital, rec.ExpectedLoss, pq.Array(codes), rec.PDFPath, rec.CreatedAt)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.NewRunLedgerError(err)
	}
	return nil
}

// History returns the latest window rows for a business, newest first.
func (l *Ledger) History(ctx context.Context, slug string, limit int) ([]models.RunWindowRecord, error) {
	rows, err := l.db.Query(ctx, historySQL, slug, limit)
	if err != nil {
		return nil, errors.NewRunLedgerError(err)
	}
	defer rows.Close()

	var out []models.RunWindowRecord
	for rows.Next() {
		var rec models.RunWindowRecord
		var window string
		if err := rows.Scan(&rec.RunID, &rec.BusinessSlug, &window, &rec.Passed, &rec.Grade,
			&rec.Score, &rec.EligibleCapital, &rec.ExpectedLoss, pq.Array(&rec.ReasonCodes), &rec.PDFPath, &rec.CreatedAt); err != nil {
			return nil, errors.NewRunLedgerError(err)
		}
		rec.Window = models.Window(window)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewRunLedgerError(err)
	}
	return out, nil
}
