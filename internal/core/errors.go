// internal/core/errors.go
package core

import "fmt"

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// Predefined errors
var (
	// Feed errors. DataUnavailable never reaches callers as a hard
	// failure; the feed degrades to stale or demo quotes instead.
	ErrDataUnavailable = &Error{Code: "DATA_UNAVAILABLE", Message: "market data unavailable"}

	// Advisor errors
	ErrProviderUnavailable = &Error{Code: "PROVIDER_UNAVAILABLE", Message: "decision provider unavailable"}
	ErrProviderTimeout     = &Error{Code: "PROVIDER_TIMEOUT", Message: "decision provider timeout"}

	// Execution errors
	ErrInvalidTrade        = &Error{Code: "INVALID_TRADE", Message: "trade request invalid"}
	ErrInsufficientFunds   = &Error{Code: "INSUFFICIENT_FUNDS", Message: "insufficient funds"}
	ErrInvalidPosition     = &Error{Code: "INVALID_POSITION", Message: "position does not cover requested quantity"}
	ErrRiskViolation       = &Error{Code: "RISK_VIOLATION", Message: "risk constraint violated"}
	ErrConcurrencyConflict = &Error{Code: "CONCURRENCY_CONFLICT", Message: "conflicting portfolio mutation"}

	// Config errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}
)
