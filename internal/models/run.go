// internal/models/run.go
package models

import "time"

// ScoringRun is one POST /score/ invocation.
type ScoringRun struct {
	ID           string        `json:"id"`
	BusinessName string        `json:"businessName"`
	BusinessSlug string        `json:"businessSlug"`
	Response     ScoreResponse `json:"response"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// RunWindowRecord is the ledger row persisted per scored window.
type RunWindowRecord struct {
	RunID           string    `json:"runId"`
	BusinessSlug    string    `json:"businessSlug"`
	Window          Window    `json:"window"`
	Passed          bool      `json:"passed"`
	Grade           string    `json:"grade,omitempty"`
	Score           float64   `json:"score"`
	EligibleCapital float64   `json:"eligibleCapital"`
	ExpectedLoss    float64   `json:"expectedLoss"`
	ReasonCodes     []string  `json:"reasonCodes"`
	PDFPath         string    `json:"pdfPath,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// RecordsFromRun flattens a run into ledger rows, one per window present.
func RecordsFromRun(run ScoringRun) []RunWindowRecord {
	var out []RunWindowRecord
	for _, w := range ExpectedWindows {
		res, ok := run.Response[w]
		if !ok {
			continue
		}
		rec := RunWindowRecord{
			RunID:        run.ID,
			BusinessSlug: run.BusinessSlug,
			Window:       w,
			CreatedAt:    run.CreatedAt,
		}
		if res.Success != nil {
			sc := res.Success.Scorecard
			rec.Passed = true
			rec.Grade = sc.GradeOrEmpty()
			rec.Score = sc.Score
			rec.EligibleCapital = sc.EligibleCapital
			rec.ExpectedLoss = sc.ExpectedLossAnnualized
			rec.ReasonCodes = sc.ReasonCodes
			rec.PDFPath = res.Success.PDFDownloadURL
		}
		out = append(out, rec)
	}
	return out
}
