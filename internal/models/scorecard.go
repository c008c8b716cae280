// internal/models/scorecard.go
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Window is a scoring horizon over the trailing months of data.
type Window string

const (
	Window3M Window = "3m"
	Window6M Window = "6m"
)

// ExpectedWindows are the windows every score response is rendered for, in order.
var ExpectedWindows = []Window{Window3M, Window6M}

// Label is the display heading for the window.
func (w Window) Label() string {
	switch w {
	case Window3M:
		return "3 Months"
	case Window6M:
		return "6 Months"
	}
	return string(w)
}

func (w Window) Valid() bool {
	return w == Window3M || w == Window6M
}

type Scorecard struct {
	Grade                  *string  `json:"grade"`
	Score                  float64  `json:"score"`
	EligibleCapital        float64  `json:"eligible_capital"`
	ExpectedLossAnnualized float64  `json:"expected_loss_annualized"`
	ReasonCodes            []string `json:"reason_codes"`
}

// GradeOrEmpty returns the grade, or "" when it is null.
func (s Scorecard) GradeOrEmpty() string {
	if s.Grade == nil {
		return ""
	}
	return *s.Grade
}

// Features are the engineered cash-flow metrics a scorecard is built from.
type Features struct {
	AverageDailyBalance          float64 `json:"average_daily_balance"`
	PercentOfDaysBelowZero       float64 `json:"percent_of_days_below_zero"`
	DaysCashOnHand               float64 `json:"days_cash_on_hand"`
	MedianMonthlyNOCF            float64 `json:"median_monthly_nocf"`
	WeeklyNetCashflowVariability float64 `json:"weekly_net_cashflow_variability"`
	DrawOnCreditRatio            float64 `json:"draw_on_credit_ratio"`
	NSFCount                     float64 `json:"nsf_count"`
	ReturnedACHCount             float64 `json:"returned_ach_count"`
	VendorLateProxy              float64 `json:"vendor_late_proxy"`
	MoMRevenueVariability        float64 `json:"mom_revenue_variability"`
	ThreeMonthSlope              float64 `json:"3_month_slope"`
	SeasonalDelta                float64 `json:"seasonal_delta"`
	TopVendorShare               float64 `json:"top_vendor_share"`
	Top5VendorsShare             float64 `json:"top_5_vendors_share"`
	DSCRProxy                    float64 `json:"dscr_proxy"`
	AnnualizedRevenue            float64 `json:"annualized_revenue"`
}

// WindowError is the per-window failure variant.
type WindowError struct {
	Error   string          `json:"error"`
	Details json.RawMessage `json:"details,omitempty"`
}

// WindowSuccess is the per-window scored variant.
type WindowSuccess struct {
	Scorecard      Scorecard `json:"scorecard"`
	Features       *Features `json:"features,omitempty"`
	PDFDownloadURL string    `json:"pdf_download_url"`
}

// WindowResult holds exactly one of Err or Success. On the wire the variant
// is chosen by the presence of the "error" key.
type WindowResult struct {
	Err     *WindowError
	Success *WindowSuccess
}

func NewWindowError(msg string, details interface{}) (WindowResult, error) {
	raw, err := json.Marshal(details)
	if err != nil {
		return WindowResult{}, fmt.Errorf("marshal details: %w", err)
	}
	return WindowResult{Err: &WindowError{Error: msg, Details: raw}}, nil
}

func NewWindowSuccess(sc Scorecard, f *Features, pdfURL string) WindowResult {
	return WindowResult{Success: &WindowSuccess{Scorecard: sc, Features: f, PDFDownloadURL: pdfURL}}
}

func (r WindowResult) IsError() bool {
	return r.Err != nil
}

func (r WindowResult) MarshalJSON() ([]byte, error) {
	switch {
	case r.Err != nil:
		out := struct {
			Error   string          `json:"error"`
			Details json.RawMessage `json:"details"`
		}{Error: r.Err.Error, Details: r.Err.Details}
		if len(out.Details) == 0 {
			out.Details = json.RawMessage("null")
		}
		return json.Marshal(out)
	case r.Success != nil:
		return json.Marshal(r.Success)
	}
	return nil, fmt.Errorf("window result has no variant")
}

func (r *WindowResult) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if fields == nil {
		return fmt.Errorf("window result is null")
	}

	if _, ok := fields["error"]; ok {
		var we WindowError
		if err := json.Unmarshal(fields["error"], &we.Error); err != nil {
			return fmt.Errorf("window error: %w", err)
		}
		if d, ok := fields["details"]; ok && !bytes.Equal(bytes.TrimSpace(d), []byte("null")) {
			we.Details = d
		}
		*r = WindowResult{Err: &we}
		return nil
	}

	var ws WindowSuccess
	if err := json.Unmarshal(data, &ws); err != nil {
		return fmt.Errorf("window success: %w", err)
	}
	*r = WindowResult{Success: &ws}
	return nil
}

// ScoreResponse maps window labels to their results.
type ScoreResponse map[Window]WindowResult

// ErrorResponse is the body of every non-2xx scoring API response.
type ErrorResponse struct {
	Detail string `json:"detail"`
}
