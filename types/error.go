package types

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode represents a unified error category across the runtime.
type ErrorCode string

// External-call error categories.
const (
	ErrNetwork        ErrorCode = "NETWORK"
	ErrTimeout        ErrorCode = "TIMEOUT"
	ErrNotFound       ErrorCode = "NOT_FOUND"
	ErrUpstreamServer ErrorCode = "UPSTREAM_SERVER"
	ErrAuth           ErrorCode = "AUTH"
	ErrRateLimit      ErrorCode = "RATE_LIMIT"
	ErrResource       ErrorCode = "RESOURCE"
	ErrParsing        ErrorCode = "PARSING"
)

// Runtime error categories.
const (
	ErrSkillExecution     ErrorCode = "SKILL_EXECUTION"
	ErrNoMatchingSkill    ErrorCode = "NO_MATCHING_SKILL"
	ErrCircularDependency ErrorCode = "CIRCULAR_DEPENDENCY"
	ErrCircuitOpen        ErrorCode = "CIRCUIT_OPEN"
	ErrSessionNotFound    ErrorCode = "SESSION_NOT_FOUND"
	ErrInternal           ErrorCode = "INTERNAL"
)

// Severity grades an error record for analytics.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Error represents a structured error with category, message, and cause.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Retryable  bool      `json:"retryable"`
	Dependency string    `json:"dependency,omitempty"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message, Retryable: isTransient(code)}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable overrides the retryable flag.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithDependency names the external dependency the error came from.
func (e *Error) WithDependency(dep string) *Error {
	e.Dependency = dep
	return e
}

func isTransient(code ErrorCode) bool {
	switch code {
	case ErrNetwork, ErrTimeout, ErrRateLimit:
		return true
	default:
		return false
	}
}

// IsRetryable checks if an error carries a transient category.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error, or ErrInternal
// when the error is not a structured *Error.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrInternal
}

// ErrorRecord captures one categorized failure for circuit-breaker
// accounting and analytics, recovered or not.
type ErrorRecord struct {
	Category   ErrorCode `json:"category"`
	Severity   Severity  `json:"severity"`
	Message    string    `json:"message"`
	Dependency string    `json:"dependency,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Recovered  bool      `json:"recovered"`
	Strategy   string    `json:"strategy,omitempty"`
}
