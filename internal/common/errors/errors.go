// Package errors provides the standardized error model shared by the scoring
// API, the frontend and the workflow worker.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeRequiredParamsMissing ErrorCode = "REQUIRED_PARAMS_MISSING"
	ErrCodeInvalidBusinessName   ErrorCode = "INVALID_BUSINESS_NAME"
	ErrCodeIncorrectMultipart    ErrorCode = "INCORRECT_MULTIPART_FILE"

	ErrCodeLedgerReadFailed      ErrorCode = "LEDGER_READ_FAILED"
	ErrCodeDataValidationFailed  ErrorCode = "DATA_VALIDATION_FAILED"
	ErrCodeScoringFailed         ErrorCode = "SCORING_FAILED"
	ErrCodeMemoGenerationFailed  ErrorCode = "MEMO_GENERATION_FAILED"
	ErrCodeArtifactStorageFailed ErrorCode = "ARTIFACT_STORAGE_FAILED"
	ErrCodeArtifactNotFound      ErrorCode = "ARTIFACT_NOT_FOUND"

	ErrCodeRunNotFound     ErrorCode = "RUN_NOT_FOUND"
	ErrCodeRunStoreFailed  ErrorCode = "RUN_STORE_FAILED"
	ErrCodeLedgerDBFailed  ErrorCode = "RUN_LEDGER_FAILED"
	ErrCodeEventPublishing ErrorCode = "EVENT_PUBLISH_FAILED"

	ErrCodeScoringServiceUnavailable ErrorCode = "SCORING_SERVICE_UNAVAILABLE"
	ErrCodeScoringServiceRejected    ErrorCode = "SCORING_SERVICE_REJECTED"
	ErrCodeMalformedScoreResponse    ErrorCode = "MALFORMED_SCORE_RESPONSE"

	ErrCodeWorkflowEngine  ErrorCode = "WORKFLOW_ENGINE_ERROR"
	ErrCodeInvalidJobInput ErrorCode = "INVALID_JOB_INPUT"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Details)
	}
	return e.Message
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata returns the error with one more metadata entry.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = map[string]interface{}{}
	}
	e.Metadata[key] = value
	return e
}

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func NewRequiredParamsMissingError(params []string) *StandardError {
	return newError(ErrCodeRequiredParamsMissing,
		"Required parameters are missing: "+strings.Join(params, ", "), "", false, nil)
}

func NewInvalidBusinessNameError(name string) *StandardError {
	return newError(ErrCodeInvalidBusinessName,
		fmt.Sprintf("Business name '%s' has no usable characters", name), "", false, nil)
}

func NewIncorrectMultipartError(field string, err error) *StandardError {
	return newError(ErrCodeIncorrectMultipart,
		"Unable to read multipart file "+field, err.Error(), false, err)
}

func NewLedgerReadError(file string, err error) *StandardError {
	return newError(ErrCodeLedgerReadFailed,
		"Failed to read "+file, err.Error(), false, err)
}

// NewDataValidationFailedError carries the check results as metadata.
func NewDataValidationFailedError(checks map[string]interface{}) *StandardError {
	e := newError(ErrCodeDataValidationFailed, "Data validation failed", "", false, nil)
	e.Metadata = map[string]interface{}{"checks": checks}
	return e
}

func NewScoringFailedError(window string, err error) *StandardError {
	return newError(ErrCodeScoringFailed,
		fmt.Sprintf("Error processing %s data", window), err.Error(), false, err)
}

func NewMemoGenerationFailedError(window string, err error) *StandardError {
	return newError(ErrCodeMemoGenerationFailed,
		fmt.Sprintf("Credit memo generation failed for %s", window), err.Error(), true, err)
}

func NewArtifactStorageError(path string, err error) *StandardError {
	return newError(ErrCodeArtifactStorageFailed,
		"Artifact storage error", fmt.Sprintf("path: %s, error: %s", path, err.Error()), true, err)
}

func NewArtifactNotFoundError() *StandardError {
	return newError(ErrCodeArtifactNotFound, "File not found", "", false, nil)
}

func NewRunNotFoundError(runID string) *StandardError {
	return newError(ErrCodeRunNotFound, "Scoring run not found", "runId: "+runID, false, nil)
}

func NewRunStoreError(err error) *StandardError {
	return newError(ErrCodeRunStoreFailed, "Scoring run store error", err.Error(), true, err)
}

func NewRunLedgerError(err error) *StandardError {
	return newError(ErrCodeLedgerDBFailed, "Scoring run ledger error", err.Error(), true, err)
}

func NewEventPublishError(err error) *StandardError {
	return newError(ErrCodeEventPublishing, "Scorecard event publish failed", err.Error(), true, err)
}

// NewScoringServiceUnavailableError wraps transport failures talking to the
// scoring endpoint. The message is the transport error text.
func NewScoringServiceUnavailableError(err error) *StandardError {
	return newError(ErrCodeScoringServiceUnavailable, err.Error(), "", false, err)
}

// NewScoringServiceRejectedError is a non-success response; message is the
// human-readable detail reported by the service.
func NewScoringServiceRejectedError(status int, detail string) *StandardError {
	e := newError(ErrCodeScoringServiceRejected, detail, "", false, nil)
	e.Metadata = map[string]interface{}{"status": status}
	return e
}

func NewMalformedScoreResponseError(details string, err error) *StandardError {
	msg := "Malformed scoring response"
	if err != nil {
		msg = err.Error()
	}
	return newError(ErrCodeMalformedScoreResponse, msg, details, false, err)
}

// NewWorkflowEngineError wraps a failed Zeebe command.
func NewWorkflowEngineError(operation string, retryable bool, err error) *StandardError {
	return newError(ErrCodeWorkflowEngine,
		fmt.Sprintf("Zeebe operation '%s' failed", operation), err.Error(), retryable, err)
}

// NewInvalidJobInputError reports job variables that fail the job schema.
func NewInvalidJobInputError(details string) *StandardError {
	return newError(ErrCodeInvalidJobInput, "Job input validation failed", details, false, nil)
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false, err)
}

// ==========================
// 4. Error Conversion
// ==========================

// GetRetryCount returns the recommended retry count for a workflow job.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeArtifactStorageFailed,
		ErrCodeMemoGenerationFailed,
		ErrCodeRunStoreFailed,
		ErrCodeLedgerDBFailed,
		ErrCodeEventPublishing:
		return 3

	default:
		return 0
	}
}

// HTTPStatus maps an error code to the status the scoring API answers with.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeRequiredParamsMissing, ErrCodeInvalidBusinessName, ErrCodeIncorrectMultipart:
		return http.StatusBadRequest
	case ErrCodeArtifactNotFound, ErrCodeRunNotFound:
		return http.StatusNotFound
	case ErrCodeScoringServiceUnavailable, ErrCodeMalformedScoreResponse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	if checks, ok := stdErr.Metadata["checks"]; ok {
		vars["validationChecks"] = checks
	}

	return &BPMNError{
		Code:           string(stdErr.Code),
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// AsStandard unwraps err to a StandardError, wrapping unknown errors as internal.
func AsStandard(err error) *StandardError {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}

// HasCode reports whether err is a StandardError with the given code.
func HasCode(err error, code ErrorCode) bool {
	var stdErr *StandardError
	return errors.As(err, &stdErr) && stdErr.Code == code
}

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "SCORING_SERVICE") || strings.Contains(codeStr, "SCORE_RESPONSE"):
		return "UPSTREAM"
	case strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "PARAMS") ||
		strings.Contains(codeStr, "MULTIPART") || strings.Contains(codeStr, "BUSINESS_NAME") ||
		strings.Contains(codeStr, "JOB_INPUT"):
		return "VALIDATION"
	case strings.Contains(codeStr, "ARTIFACT") || strings.Contains(codeStr, "RUN_"):
		return "STORAGE"
	case strings.Contains(codeStr, "LEDGER") || strings.Contains(codeStr, "SCORING") || strings.Contains(codeStr, "MEMO"):
		return "SCORING"
	case strings.Contains(codeStr, "EVENT"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "WORKFLOW"):
		return "WORKFLOW"
	default:
		return "OTHER"
	}
}
