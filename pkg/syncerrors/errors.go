// Package syncerrors provides structured error handling for Conflux with rich
// context, stack traces, and error categorization. The category determines how
// the sync orchestrator reacts to a failure: cursor expiry triggers a bounded
// full resync, transient errors are surfaced for caller-level retry, and fatal
// errors abort the run without advancing the checkpoint.
//
// # Basic Usage
//
//	// Create a new error
//	err := syncerrors.New(syncerrors.ErrorTypeCursorExpired, "history id too old")
//
//	// Add context
//	err = err.WithDetail("entity_type", "invoice").
//	         WithDetail("cursor", cursor.String())
//
//	// Wrap existing errors
//	if err := adapter.FetchPage(ctx, cursor, size); err != nil {
//	    return syncerrors.Wrap(err, syncerrors.ErrorTypeConnection, "page fetch failed")
//	}
//
// # Categories
//
// The orchestrator never string-matches vendor errors; adapters translate
// vendor failures into one of these categories and the orchestrator inspects
// them with IsCursorExpired, IsTransient and IsFatal.
package syncerrors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the category of error, used by the orchestrator to
// pick a recovery strategy and by monitoring to bucket failures.
type ErrorType string

const (
	// ErrorTypeInternal represents internal system errors
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeValidation represents validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeCursorExpired represents an invalidated resume position:
	// a delta/history token or page offset the vendor no longer accepts
	ErrorTypeCursorExpired ErrorType = "cursor_expired"
	// ErrorTypeRateLimit represents rate limit errors
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeTimeout represents timeout errors
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeConnection represents connection errors
	ErrorTypeConnection ErrorType = "connection"
	// ErrorTypeAuthentication represents authentication errors
	ErrorTypeAuthentication ErrorType = "authentication"
	// ErrorTypePermission represents permission errors
	ErrorTypePermission ErrorType = "permission"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeData represents per-record data processing errors
	ErrorTypeData ErrorType = "data"
	// ErrorTypeCheckpoint represents checkpoint persistence errors
	ErrorTypeCheckpoint ErrorType = "checkpoint"
)

// Error represents a structured error with context.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack.
type StackFrame struct {
	Function string // Fully qualified function name
	File     string // Source file path
	Line     int    // Line number in source file
}

// Error implements the error interface, returning a formatted error message
// that includes the error type, message, and cause (if present).
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error, enabling compatibility with errors.Is
// and errors.As for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error. This method can be chained
// for adding multiple details.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new error with the given type and message, automatically
// capturing the call stack at the point of creation.
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context, preserving the
// original error as the cause. If the error is already a structured Error,
// its stack trace is preserved. Returns nil if the input error is nil.
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

// IsCursorExpired reports whether the error indicates an invalidated resume
// position. The orchestrator reacts by degrading once to a bounded full
// resync from the lookback horizon.
func IsCursorExpired(err error) bool {
	return IsType(err, ErrorTypeCursorExpired)
}

// IsTransient reports whether the error is worth retrying at the caller
// level: the checkpoint is preserved at the last good position so a retried
// run resumes where this one stopped. Rate limit, timeout, and connection
// errors are transient.
func IsTransient(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}

	switch e.Type {
	case ErrorTypeRateLimit, ErrorTypeTimeout, ErrorTypeConnection:
		return true
	default:
		return false
	}
}

// IsFatal reports whether the error requires operator intervention rather
// than a retry: credentials, permissions, or misconfiguration. Unrecognized
// error values are treated as fatal so an unclassified failure never loops.
func IsFatal(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return true
	}

	switch e.Type {
	case ErrorTypeAuthentication, ErrorTypePermission, ErrorTypeConfig, ErrorTypeInternal:
		return true
	default:
		return false
	}
}

// IsType checks if the error is of the given type.
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// captureStack captures the current call stack up to maxFrames deep,
// skipping the specified number of frames from the top.
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
