package core

import (
	"errors"
	"fmt"
)

// Error codes shared across the analysis pipeline. Component-internal
// failures (chunk calls, retries) are absorbed locally and never carry
// these codes; pipeline-level failures do.
const (
	ErrCodeInvalidInput     = "INVALID_INPUT"
	ErrCodeTransientAPI     = "TRANSIENT_API_ERROR"
	ErrCodeTotalFailure     = "TOTAL_FAILURE"
	ErrCodeIndexUnavailable = "INDEX_UNAVAILABLE"
	ErrCodePersistence      = "PERSISTENCE_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeInternal         = "INTERNAL_ERROR"
)

// Error is the typed error carried across component boundaries.
type Error struct {
	Err     error          `json:"-"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Err.Error())
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with a code and optional structured details.
func NewError(err error, code string, details map[string]any) *Error {
	return &Error{Err: err, Code: code, Details: details}
}

// HasCode reports whether err (or anything it wraps) carries the code.
func HasCode(err error, code string) bool {
	var coreErr *Error
	if errors.As(err, &coreErr) {
		return coreErr.Code == code
	}
	return false
}

// CodeOf returns the code carried by err, or empty when err is untyped.
func CodeOf(err error) string {
	var coreErr *Error
	if errors.As(err, &coreErr) {
		return coreErr.Code
	}
	return ""
}
