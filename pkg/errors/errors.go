// Package errors provides structured error handling for idconnect.
//
// Every failure surfaced by a connector operation carries an ErrorType so that
// callers can branch on the kind of failure without inspecting messages:
//
//	uid, err := f.Create(ctx, objects.Account, attrs, nil)
//	switch {
//	case errors.IsType(err, errors.ErrorTypeUnsupportedObjectClass):
//	    // the connector type does not manage this object class
//	case errors.IsType(err, errors.ErrorTypeRequiredAttributeMissing):
//	    // the caller forgot __NAME__
//	case errors.IsRetryable(err):
//	    // connectivity problem, try again later
//	}
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeInternal represents internal system errors
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeValidation represents invalid arguments passed to an operation
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConfig represents invalid or missing configuration
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeConnection represents an unreachable resource
	ErrorTypeConnection ErrorType = "connection"
	// ErrorTypeTimeout represents timeout errors
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeUnsupportedObjectClass is returned when an operation is invoked
	// on an object class the connector does not support for that operation
	ErrorTypeUnsupportedObjectClass ErrorType = "unsupported_object_class"
	// ErrorTypeUnsupportedOperation is returned when the connector type does
	// not declare the operation family at all
	ErrorTypeUnsupportedOperation ErrorType = "unsupported_operation"
	// ErrorTypeRequiredAttributeMissing represents a missing mandatory attribute
	ErrorTypeRequiredAttributeMissing ErrorType = "required_attribute_missing"
	// ErrorTypeReadOnlyAttribute represents a write to an immutable attribute
	ErrorTypeReadOnlyAttribute ErrorType = "read_only_attribute"
	// ErrorTypeScript represents a failure while executing a script
	ErrorTypeScript ErrorType = "script"
	// ErrorTypeUnknownUid represents an operation on an object that does not exist
	ErrorTypeUnknownUid ErrorType = "unknown_uid"
	// ErrorTypeAlreadyExists represents a create of an existing object
	ErrorTypeAlreadyExists ErrorType = "already_exists"
	// ErrorTypeInvalidCredential represents a failed authentication
	ErrorTypeInvalidCredential ErrorType = "invalid_credential"
	// ErrorTypeIllegalState represents a lifecycle or contract violation
	ErrorTypeIllegalState ErrorType = "illegal_state"
)

// Error represents a structured error with context
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Detail returns a detail value previously attached with WithDetail
func (e *Error) Detail(key string) (interface{}, bool) {
	if e.Details == nil {
		return nil, false
	}
	v, ok := e.Details[key]
	return v, ok
}

// New creates a new error with the given type and message
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf creates a new error with a formatted message
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	// If already our error type, preserve the stack
	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// IsRetryable returns true if the error is retryable
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}

	switch e.Type {
	case ErrorTypeTimeout, ErrorTypeConnection:
		return true
	default:
		return false
	}
}

// IsType checks if the outermost structured error is of the given type
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// HasType reports whether any structured error in the chain has the given type
func HasType(err error, errType ErrorType) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Type == errType {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// TypeOf returns the type of the outermost structured error, or
// ErrorTypeInternal for plain errors.
func TypeOf(err error) ErrorType {
	var e *Error
	if !errors.As(err, &e) {
		return ErrorTypeInternal
	}
	return e.Type
}

// Is and As re-export the standard library helpers so callers need a single import.
var (
	Is = errors.Is
	As = errors.As
)

// captureStack captures the current call stack
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
