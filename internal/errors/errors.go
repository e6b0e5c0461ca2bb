// Package errors provides error code definitions for Go-shell boundary bridging.
package errors

import "fmt"

// ErrorCode represents a unique error code that can be bridged to the UI shell.
type ErrorCode string

const (
	// General errors
	ErrInternal   ErrorCode = "INTERNAL_ERROR"
	ErrInvalid    ErrorCode = "INVALID_INPUT"
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrValidation ErrorCode = "VALIDATION_ERROR"

	// Local persistence errors
	ErrStorage ErrorCode = "STORAGE_ERROR"

	// Remote API errors
	ErrNetwork        ErrorCode = "NETWORK_ERROR"
	ErrServerRejected ErrorCode = "SERVER_REJECTED"

	// Queue / sync errors
	ErrInvalidResource   ErrorCode = "INVALID_RESOURCE"
	ErrInvalidAction     ErrorCode = "INVALID_ACTION"
	ErrOperationNotFound ErrorCode = "OPERATION_NOT_FOUND"
	ErrSyncInProgress    ErrorCode = "SYNC_IN_PROGRESS"
	ErrSyncFailed        ErrorCode = "SYNC_FAILED"
)

// AppError represents an application error with code and message.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an error code.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Is checks if an error is of a specific code.
func Is(err error, code ErrorCode) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == code
	}
	return false
}

// CodeOf returns the error code of err, or ErrInternal for plain errors.
func CodeOf(err error) ErrorCode {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return ErrInternal
}
