// Package validation checks JSON documents exchanged between the frontend,
// the scoring API and the workflow worker against JSON Schemas.
package validation

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ScoreResponseSchema describes the window map returned by POST /score/.
// A window result with an "error" key is the error variant; anything else
// must be a complete success variant.
const ScoreResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "ScoreResponse",
  "type": "object",
  "additionalProperties": {"$ref": "#/definitions/windowResult"},
  "definitions": {
    "windowResult": {
      "oneOf": [
        {"$ref": "#/definitions/errorResult"},
        {"$ref": "#/definitions/successResult"}
      ]
    },
    "errorResult": {
      "type": "object",
      "required": ["error"],
      "properties": {
        "error": {"type": "string"}
      }
    },
    "successResult": {
      "type": "object",
      "required": ["scorecard", "pdf_download_url"],
      "not": {"required": ["error"]},
      "properties": {
        "scorecard": {"$ref": "#/definitions/scorecard"},
        "pdf_download_url": {"type": "string"},
        "features": {"type": "object", "additionalProperties": {"type": "number"}}
      }
    },
    "scorecard": {
      "type": "object",
      "required": ["score", "eligible_capital", "expected_loss_annualized", "reason_codes"],
      "properties": {
        "grade": {"type": ["string", "null"]},
        "score": {"type": "number"},
        "eligible_capital": {"type": "number"},
        "expected_loss_annualized": {"type": "number"},
        "reason_codes": {"type": "array", "items": {"type": "string"}}
      }
    }
  }
}`

// ScoreJobSchema describes the variables the score-window job needs.
const ScoreJobSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "ScoreWindowJob",
  "type": "object",
  "required": ["businessName", "window"],
  "properties": {
    "runId": {"type": "string"},
    "businessName": {"type": "string", "minLength": 1},
    "window": {"type": "string", "enum": ["3m", "6m"]}
  }
}`

var (
	scoreResponseSchema = mustCompile(ScoreResponseSchema)
	scoreJobSchema      = mustCompile(ScoreJobSchema)
)

func mustCompile(schema string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schema))
	if err != nil {
		panic(fmt.Sprintf("invalid built-in schema: %v", err))
	}
	return s
}

// ValidateScoreResponse validates a raw response body. A body that is not
// JSON yields an error rather than a result.
func ValidateScoreResponse(body []byte) (*ValidationResult, error) {
	if !json.Valid(body) {
		return nil, fmt.Errorf("response body is not valid JSON")
	}
	return validate(scoreResponseSchema, gojsonschema.NewBytesLoader(body))
}

// ValidateScoreJob validates decoded job variables.
func ValidateScoreJob(vars map[string]interface{}) (*ValidationResult, error) {
	return validate(scoreJobSchema, gojsonschema.NewGoLoader(vars))
}

// ValidateAgainst validates doc against an arbitrary schema document.
func ValidateAgainst(schema map[string]interface{}, doc interface{}) (*ValidationResult, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
	if err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	return validate(s, gojsonschema.NewGoLoader(doc))
}

func validate(schema *gojsonschema.Schema, doc gojsonschema.JSONLoader) (*ValidationResult, error) {
	result, err := schema.Validate(doc)
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	sort.SliceStable(out.Errors, func(i, j int) bool { return out.Errors[i].Field < out.Errors[j].Field })
	return out, nil
}

func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, e := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return messages
}

// Summary joins all messages into one line.
func (vr *ValidationResult) Summary() string {
	return strings.Join(vr.GetErrorMessages(), "; ")
}

func (vr *ValidationResult) HasErrors(field string) bool {
	for _, e := range vr.Errors {
		if e.Field == field || strings.HasPrefix(e.Field, field+".") {
			return true
		}
	}
	return false
}
