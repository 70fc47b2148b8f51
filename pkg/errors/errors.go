// Package errors provides structured error handling for the driver builder.
//
// Every failure that can occur while probing, generating, loading or running
// a driver is classified with an ErrorType. The rendered form of an error
// ("<type>: <message>[: <cause>]") is what the build orchestrator records in
// its attempt log and feeds to the refinement classifier.
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeInternal represents internal system errors
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeValidation represents caller-side misuse such as a malformed source name
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeConnection represents network errors
	ErrorTypeConnection ErrorType = "connection"
	// ErrorTypeTimeout represents a request that hit its deadline
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeFile represents file operation errors
	ErrorTypeFile ErrorType = "file"
	// ErrorTypeStorage represents table store errors
	ErrorTypeStorage ErrorType = "storage"

	// ErrorTypeProbe represents a failed calibration request. Non-fatal.
	ErrorTypeProbe ErrorType = "probe"
	// ErrorTypeGeneration represents a failure to render or write a driver artifact
	ErrorTypeGeneration ErrorType = "generation"
	// ErrorTypeLoad represents a missing artifact or entry point
	ErrorTypeLoad ErrorType = "load"
	// ErrorTypeEmptyResult represents a driver that ran cleanly but produced nothing
	ErrorTypeEmptyResult ErrorType = "empty_result"
	// ErrorTypeUpstreamAPI represents a non-success upstream status or envelope
	ErrorTypeUpstreamAPI ErrorType = "upstream_api"
	// ErrorTypeAuthentication represents HTTP 401/403 responses
	ErrorTypeAuthentication ErrorType = "authentication"
	// ErrorTypeMissingKey represents a data path key absent from a response
	ErrorTypeMissingKey ErrorType = "missing_key"
	// ErrorTypeShapeMismatch represents a response value of an unexpected JSON type
	ErrorTypeShapeMismatch ErrorType = "shape_mismatch"
	// ErrorTypePagination represents a broken pagination contract
	ErrorTypePagination ErrorType = "pagination"
)

// Error is a classified error. Details carry diagnostic values such as the
// HTTP status or the data path that was being read.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	// Stack is where the error was first created; wrapping keeps it.
	Stack []StackFrame
}

// StackFrame represents a single frame in the call stack
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error renders "<type>: <message>" followed by ": <cause>" when wrapped.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Type))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{}, 1)
	}
	e.Details[key] = value
	return e
}

// Detail returns a detail value previously set with WithDetail.
func (e *Error) Detail(key string) (interface{}, bool) {
	v, ok := e.Details[key]
	return v, ok
}

// New creates an error of the given type.
func New(errType ErrorType, message string) *Error {
	return &Error{Type: errType, Message: message, Stack: callers()}
}

// Newf creates an error of the given type with a formatted message.
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{Type: errType, Message: fmt.Sprintf(format, args...), Stack: callers()}
}

// Wrap classifies err under errType. A nil err yields nil. When err is
// already structured its stack is carried over.
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}
	wrapped := &Error{Type: errType, Message: message, Cause: err}

	var inner *Error
	if errors.As(err, &inner) {
		wrapped.Stack = inner.Stack
	} else {
		wrapped.Stack = callers()
	}
	return wrapped
}

// IsType checks if the outermost structured error is of the given type
func IsType(err error, errType ErrorType) bool {
	var e *Error
	return errors.As(err, &e) && e.Type == errType
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

// TypeOf returns the type of the outermost structured error, or ErrorTypeInternal
func TypeOf(err error) ErrorType {
	var e *Error
	if !errors.As(err, &e) {
		return ErrorTypeInternal
	}
	return e.Type
}

const maxFrames = 32

// callers records the stack above the constructor that called it.
func callers() []StackFrame {
	pcs := make([]uintptr, maxFrames)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	out := make([]StackFrame, 0, n)
	for {
		f, more := frames.Next()
		out = append(out, StackFrame{Function: f.Function, File: f.File, Line: f.Line})
		if !more {
			break
		}
	}
	return out
}
