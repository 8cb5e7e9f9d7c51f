package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrDatabase     = errors.New("database error")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// ErrorKind classifies a failed extraction.
type ErrorKind string

// Stable values (returned to callers and stored in extract_job.error_kind).
const (
	KindInvalidInput      ErrorKind = "InvalidInput"
	KindUnsupportedFormat ErrorKind = "UnsupportedFormat"
	KindParseFailure      ErrorKind = "ParseFailure"
	KindToolUnavailable   ErrorKind = "ToolUnavailable"
	KindTimeout           ErrorKind = "Timeout"
	KindToolFailure       ErrorKind = "ToolFailure"
	KindInvocationFailure ErrorKind = "InvocationFailure"
	KindInternal          ErrorKind = "Internal"
)

// ClientFault reports whether the failure was caused by the caller's input.
func (k ErrorKind) ClientFault() bool {
	return k == KindInvalidInput || k == KindUnsupportedFormat
}

// ExtractionError is the single failure type produced by the extraction pipeline.
type ExtractionError struct {
	Kind   ErrorKind
	Detail string
	Cause  error
}

func (e *ExtractionError) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *ExtractionError) Unwrap() error {
	return e.Cause
}

// NewExtractionError builds an ExtractionError; detail defaults to the cause's message.
func NewExtractionError(kind ErrorKind, detail string, cause error) *ExtractionError {
	if detail == "" && cause != nil {
		detail = cause.Error()
	}
	return &ExtractionError{Kind: kind, Detail: detail, Cause: cause}
}

// AsExtractionError unwraps err into an ExtractionError. Errors of any other type are
// reported as Internal so callers always get a structured failure.
func AsExtractionError(err error) *ExtractionError {
	if err == nil {
		return nil
	}
	var xe *ExtractionError
	if errors.As(err, &xe) {
		return xe
	}
	return NewExtractionError(KindInternal, "", err)
}

// KindOf returns the ErrorKind carried by err, or "" when err is nil.
func KindOf(err error) ErrorKind {
	if xe := AsExtractionError(err); xe != nil {
		return xe.Kind
	}
	return ""
}
