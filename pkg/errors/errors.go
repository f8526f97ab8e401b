package errors

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotInitialized indicates that a snapshot node has no data source attached.
	// It is a programming error and is never retried.
	ErrNotInitialized = errors.New("snapshot node not initialized")

	// ErrTransport indicates that a read or write against the data source failed
	ErrTransport = errors.New("data source transport failed")

	// ErrCancelled indicates that an operation observed a cancellation signal
	ErrCancelled = errors.New("operation cancelled")

	// ErrNotWritable indicates that a write targeted a read-only variable
	ErrNotWritable = errors.New("variable is not writable")
)

// Error codes carried by Error.Code
const (
	CodeNotInitialized = "NOT_INITIALIZED"
	CodeTransport      = "TRANSPORT_FAILED"
	CodeCancelled      = "CANCELLED"
	CodeNotWritable    = "NOT_WRITABLE"
)

// Error represents a structured SDK error
type Error struct {
	// Code is a machine-readable error code
	Code string

	// Message is a human-readable error message
	Message string

	// Err is the underlying error, if any
	Err error

	kind error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the sentinel for the error kind together with the underlying error,
// so both errors.Is(err, ErrTransport) and errors.Is(err, context.Canceled) hold.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.kind != nil {
		errs = append(errs, e.kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// NewError creates a new SDK error without a sentinel kind
func NewError(code, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewNotInitializedError reports a refresh or write on a detached node.
func NewNotInitializedError(node string) *Error {
	return &Error{
		Code:    CodeNotInitialized,
		Message: fmt.Sprintf("%s has no data source; call Attach first", node),
		kind:    ErrNotInitialized,
	}
}

// NewTransportError reports a failed read or write of variable.
func NewTransportError(variable string, err error) *Error {
	return &Error{
		Code:    CodeTransport,
		Message: fmt.Sprintf("request for %s failed", variable),
		Err:     err,
		kind:    ErrTransport,
	}
}

// NewCancelledError reports that the operation on variable was aborted by ctx.
func NewCancelledError(variable string, err error) *Error {
	return &Error{
		Code:    CodeCancelled,
		Message: fmt.Sprintf("request for %s cancelled", variable),
		Err:     err,
		kind:    ErrCancelled,
	}
}

// NewNotWritableError reports a write to a variable outside the writable set.
func NewNotWritableError(variable string) *Error {
	return &Error{
		Code:    CodeNotWritable,
		Message: fmt.Sprintf("%s cannot be written", variable),
		kind:    ErrNotWritable,
	}
}

// IsNotInitialized checks if an error is a not initialized error
func IsNotInitialized(err error) bool {
	return errors.Is(err, ErrNotInitialized)
}

// IsTransport checks if an error is a transport error
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}

// IsCancelled checks if an error was caused by cancellation, either wrapped by this
// package or a bare context error.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// IsNotWritable checks if an error is a not writable error
func IsNotWritable(err error) bool {
	return errors.Is(err, ErrNotWritable)
}
