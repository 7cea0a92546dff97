package faults

import (
	"errors"
	"fmt"
	"time"
)

// maxDetailLen bounds any single string stored in error details; raw backend
// responses are truncated before they reach logs or persisted records.
const maxDetailLen = 500

// Error is a categorized pipeline error.
type Error struct {
	Code    Code
	Message string
	Err     error

	// RetryAfter is the backend-provided wait hint for rate-limit errors.
	RetryAfter time.Duration

	// Details carries operator-facing context; values are size-bounded.
	Details map[string]interface{}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a categorized error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates a categorized error around a cause.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// WithDetail attaches one detail entry, truncating oversized strings.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	if s, ok := value.(string); ok {
		value = Truncate(s)
	}
	e.Details[key] = value
	return e
}

// WithRetryAfter records the backend-provided retry hint.
func (e *Error) WithRetryAfter(d time.Duration) *Error {
	e.RetryAfter = d
	return e
}

// Truncate bounds a string for storage in error details.
func Truncate(s string) string {
	if len(s) <= maxDetailLen {
		return s
	}
	return s[:maxDetailLen]
}

// Record is an immutable error record created the moment an exception crosses
// a pipeline boundary.
type Record struct {
	ErrorType string                 `json:"error_type"`
	Message   string                 `json:"message"`
	Code      Code                   `json:"error_code"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// NewRecord builds a record from any error, classifying it if needed.
func NewRecord(err error) Record {
	rec := Record{
		ErrorType: fmt.Sprintf("%T", err),
		Message:   Truncate(err.Error()),
		Code:      Classify(err),
	}
	var fe *Error
	if errors.As(err, &fe) {
		rec.Details = fe.Details
	}
	return rec
}
