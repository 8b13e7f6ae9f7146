package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// PipelineError is the error type carried through the reactor pipeline.
// The code decides what the trigger runtime does with a failed delivery.
type PipelineError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

// Error implements the error interface
func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is/As
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Transient creates a TRANSIENT error wrapping cause
func Transient(operation string, cause error) *PipelineError {
	return &PipelineError{
		Code:    ErrTransient,
		Message: fmt.Sprintf("%s failed", operation),
		Cause:   cause,
	}
}

// Malformed creates a MALFORMED_RESPONSE error
func Malformed(source string, cause error) *PipelineError {
	return &PipelineError{
		Code:    ErrMalformedResponse,
		Message: fmt.Sprintf("unusable response from %s", source),
		Cause:   cause,
	}
}

// RecoverableContent creates a RECOVERABLE_CONTENT error
func RecoverableContent(reason string, cause error) *PipelineError {
	return &PipelineError{
		Code:    ErrRecoverableContent,
		Message: reason,
		Cause:   cause,
	}
}

// AlreadyApplied creates an ALREADY_APPLIED error
func AlreadyApplied(detail string) *PipelineError {
	return &PipelineError{
		Code:    ErrAlreadyApplied,
		Message: detail,
	}
}

// NotFound creates a NOT_FOUND error
func NotFound(resource string) *PipelineError {
	return &PipelineError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// AlreadyExists creates an ALREADY_EXISTS error
func AlreadyExists(resource string) *PipelineError {
	return &PipelineError{
		Code:    ErrAlreadyExists,
		Message: fmt.Sprintf("%s already exists", resource),
	}
}

// Internal creates an INTERNAL error
func Internal(message string, cause error) *PipelineError {
	return &PipelineError{
		Code:    ErrInternal,
		Message: message,
		Cause:   cause,
	}
}

// CodeOf extracts the ErrorCode from err, or ErrInternal for foreign errors
func CodeOf(err error) ErrorCode {
	var pe *PipelineError
	if stderrors.As(err, &pe) {
		return pe.Code
	}
	return ErrInternal
}

// IsRetryable reports whether a failed delivery should be redelivered.
// Malformed responses retry too: the only non-retryable outcomes are the
// expected races, which are not failures at all.
func IsRetryable(err error) bool {
	switch CodeOf(err) {
	case ErrAlreadyApplied:
		return false
	default:
		return true
	}
}

// IsAlreadyApplied reports whether err marks work a previous delivery did
func IsAlreadyApplied(err error) bool {
	return CodeOf(err) == ErrAlreadyApplied
}

// IsNotFound reports whether err is a NOT_FOUND error
func IsNotFound(err error) bool {
	return CodeOf(err) == ErrNotFound
}

// IsAlreadyExists reports whether err is an ALREADY_EXISTS error
func IsAlreadyExists(err error) bool {
	return CodeOf(err) == ErrAlreadyExists
}

// IsRecoverableContent reports whether err should downgrade to a guardrail verdict
func IsRecoverableContent(err error) bool {
	return CodeOf(err) == ErrRecoverableContent
}

// Reason returns the short message of a pipeline error as a label value,
// with spaces normalized for metric labels
func Reason(err error) string {
	var pe *PipelineError
	if !stderrors.As(err, &pe) {
		return "unknown"
	}
	return strings.ReplaceAll(pe.Message, " ", "_")
}
