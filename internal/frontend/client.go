package frontend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"cashflow-scorecard/internal/common/errors"
	commonhttp "cashflow-scorecard/internal/common/http"
	"cashflow-scorecard/internal/common/validation"
	"cashflow-scorecard/internal/models"
)

// UnknownErrorMessage is reported when a failed response names no detail.
const UnknownErrorMessage = "An unknown error occurred."

const runIDHeader = "X-Run-ID"

// Submission is the serialized form: every field and file the user sent.
type Submission struct {
	Fields url.Values
	Files  []commonhttp.FilePart
}

// Scored is a successful scoring call.
type Scored struct {
	Response models.ScoreResponse
	RunID    string
}

// ScoreClient posts a submission to the scoring endpoint.
type ScoreClient interface {
	Score(ctx context.Context, sub Submission) (*Scored, error)
}

// ScoringClient talks to POST /score/ over HTTP.
type ScoringClient struct {
	http     *commonhttp.Client
	endpoint string
}

func NewScoringClient(endpoint string, timeout time.Duration) *ScoringClient {
	return &ScoringClient{http: commonhttp.NewClient(timeout), endpoint: endpoint}
}

// Score sends one multipart POST. Transport failures, non-2xx responses and
// bodies that are not a valid score response all come back as errors whose
// message is what the user should see.
func (c *ScoringClient) Score(ctx context.Context, sub Submission) (*Scored, error) {
	resp, err := c.http.PostMultipart(ctx, c.endpoint, sub.Fields, sub.Files)
	if err != nil {
		return nil, errors.NewScoringServiceUnavailableError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, err := failureDetail(resp.Body)
		if err != nil {
			return nil, errors.NewMalformedScoreResponseError(fmt.Sprintf("status %d", resp.StatusCode), err)
		}
		return nil, errors.NewScoringServiceRejectedError(resp.StatusCode, detail)
	}

	result, err := validation.ValidateScoreResponse(resp.Body)
	if err != nil {
		return nil, errors.NewMalformedScoreResponseError("", err)
	}
	if !result.Valid {
		return nil, errors.NewMalformedScoreResponseError(result.Summary(), fmt.Errorf("malformed score response: %s", result.Summary()))
	}

	var out models.ScoreResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, errors.NewMalformedScoreResponseError("", err)
	}
	return &Scored{Response: out, RunID: resp.Header.Get(runIDHeader)}, nil
}

// failureDetail extracts the "detail" field of an error body. A body that is
// not JSON is an error. A JSON body that is not an object, or a missing or
// empty detail, yields the fallback. A non-string detail is reported as its
// JSON text.
func failureDetail(body []byte) (string, error) {
	if !json.Valid(body) {
		var v interface{}
		return "", json.Unmarshal(body, &v)
	}
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return UnknownErrorMessage, nil
	}
	raw, ok := payload["detail"]
	if !ok || string(raw) == "null" {
		return UnknownErrorMessage, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return UnknownErrorMessage, nil
		}
		return s, nil
	}
	return string(raw), nil
}
