// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Request validation
	ErrCodeInvalidRequest ErrorCode = "INVALID_RECOMMENDATION_REQUEST"

	// Pipeline outcomes
	ErrCodeCatalogUnavailable    ErrorCode = "CATALOG_UNAVAILABLE"
	ErrCodeAllSourcesFailed      ErrorCode = "ALL_SOURCES_FAILED"
	ErrCodeRecommendationFailed  ErrorCode = "RECOMMENDATION_FAILED"
	ErrCodeRecommendationTimeout ErrorCode = "RECOMMENDATION_TIMEOUT"

	// Collaborators (never surfaced to BPMN on their own; they degrade a branch)
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeExternalCatalogFailed    ErrorCode = "EXTERNAL_CATALOG_FAILED"
	ErrCodeExternalCatalogThrottled ErrorCode = "EXTERNAL_CATALOG_THROTTLED"
	ErrCodeCacheUnavailable         ErrorCode = "CACHE_UNAVAILABLE"
	ErrCodeAdvisoryLookupFailed     ErrorCode = "ADVISORY_LOOKUP_FAILED"
	ErrCodeHistoryWriteFailed       ErrorCode = "HISTORY_WRITE_FAILED"
	ErrCodeReasoningFailed          ErrorCode = "REASONING_FAILED"
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
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause so errors.Is/As keep working through a StandardError.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata returns the error with an extra metadata entry.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

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

// NewInvalidRequestError creates a non-retryable input validation error.
func NewInvalidRequestError(details string) *StandardError {
	return newError(ErrCodeInvalidRequest, "Invalid recommendation request", details, false, nil)
}

// NewCatalogUnavailableError is raised when the internal catalog cannot be reached.
func NewCatalogUnavailableError(err error) *StandardError {
	return newError(ErrCodeCatalogUnavailable, "Internal catalog unavailable", errDetails(err), true, err)
}

// NewAllSourcesFailedError is the fatal pipeline outcome: no internal or external
// candidates could be fetched.
func NewAllSourcesFailedError(failedBranches []string, err error) *StandardError {
	e := newError(ErrCodeAllSourcesFailed, "No candidate source could be reached",
		fmt.Sprintf("failedBranches: %s", strings.Join(failedBranches, ",")), true, err)
	return e.WithMetadata("failedBranches", failedBranches)
}

// NewRecommendationFailedError wraps any other unexpected pipeline failure.
func NewRecommendationFailedError(err error) *StandardError {
	return newError(ErrCodeRecommendationFailed, "Recommendation pipeline failed", errDetails(err), false, err)
}

// NewRecommendationTimeoutError marks a pipeline that ran out of time before any candidate was sourced.
func NewRecommendationTimeoutError(err error) *StandardError {
	return newError(ErrCodeRecommendationTimeout, "Recommendation pipeline timed out", errDetails(err), true, err)
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", errDetails(err), true, err)
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(queryType string, err error) *StandardError {
	return newError(ErrCodeQueryExecutionFailed, "Database query execution error",
		fmt.Sprintf("queryType: %s, error: %s", queryType, errDetails(err)), true, err)
}

// NewExternalCatalogError wraps a failed external catalog call.
func NewExternalCatalogError(operation string, err error) *StandardError {
	return newError(ErrCodeExternalCatalogFailed, "External catalog request failed",
		fmt.Sprintf("operation: %s, error: %s", operation, errDetails(err)), true, err)
}

// NewExternalCatalogThrottledError is returned when the circuit breaker is open or the limiter gave up.
func NewExternalCatalogThrottledError(operation string, err error) *StandardError {
	return newError(ErrCodeExternalCatalogThrottled, "External catalog throttled",
		fmt.Sprintf("operation: %s, error: %s", operation, errDetails(err)), true, err)
}

func NewCacheUnavailableError(err error) *StandardError {
	return newError(ErrCodeCacheUnavailable, "Signal cache unavailable", errDetails(err), true, err)
}

func NewAdvisoryLookupFailedError(err error) *StandardError {
	return newError(ErrCodeAdvisoryLookupFailed, "Content advisory lookup failed", errDetails(err), true, err)
}

func NewHistoryWriteFailedError(err error) *StandardError {
	return newError(ErrCodeHistoryWriteFailed, "Recommendation history write failed", errDetails(err), true, err)
}

func NewReasoningFailedError(err error) *StandardError {
	return newError(ErrCodeReasoningFailed, "Reasoning generator failed", errDetails(err), true, err)
}

func errDetails(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// BPMNErrorMapping maps internal error codes to BPMN error codes. Collaborator
// failures collapse into RECOMMENDATION_FAILED since the process model only
// distinguishes bad input from pipeline failure.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeInvalidRequest:           "INVALID_RECOMMENDATION_REQUEST",
	ErrCodeCatalogUnavailable:       "RECOMMENDATION_FAILED",
	ErrCodeAllSourcesFailed:         "RECOMMENDATION_FAILED",
	ErrCodeRecommendationFailed:     "RECOMMENDATION_FAILED",
	ErrCodeRecommendationTimeout:    "RECOMMENDATION_FAILED",
	ErrCodeDatabaseConnectionFailed: "RECOMMENDATION_FAILED",
	ErrCodeQueryExecutionFailed:     "RECOMMENDATION_FAILED",
	ErrCodeExternalCatalogFailed:    "RECOMMENDATION_FAILED",
}

// GetRetryCount returns the recommended retry count for an error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeCatalogUnavailable,
		ErrCodeAllSourcesFailed,
		ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed:
		return 3

	case ErrCodeRecommendationTimeout,
		ErrCodeExternalCatalogFailed,
		ErrCodeExternalCatalogThrottled:
		return 2

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// AsStandardError finds a StandardError anywhere in err's chain.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY") || strings.Contains(codeStr, "CATALOG_UNAVAILABLE"):
		return "DATABASE"
	case strings.Contains(codeStr, "EXTERNAL_CATALOG"):
		return "EXTERNAL"
	case strings.Contains(codeStr, "CACHE") || strings.Contains(codeStr, "ADVISORY") || strings.Contains(codeStr, "HISTORY"):
		return "STORE"
	case strings.Contains(codeStr, "REASONING"):
		return "AI"
	case strings.Contains(codeStr, "RECOMMENDATION") || strings.Contains(codeStr, "SOURCES"):
		return "PIPELINE"
	default:
		return "OTHER"
	}
}
