package domain

import (
	"errors"
	"fmt"
)

// ErrorCode classifies an AppError.
type ErrorCode string

const (
	CodeValidation       ErrorCode = "VALIDATION_ERROR"
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeConflict         ErrorCode = "CONFLICT"
	CodeInvalidState     ErrorCode = "INVALID_STATE"
	CodePermissionDenied ErrorCode = "PERMISSION_DENIED"
	CodeSampleSource     ErrorCode = "SAMPLE_SOURCE_ERROR"
	CodeStorageInit      ErrorCode = "STORAGE_INIT_ERROR"
	CodeStorage          ErrorCode = "STORAGE_ERROR"
	CodeInternal         ErrorCode = "INTERNAL_ERROR"
)

// AppError is the error type shared by every layer of the service.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *AppError) Unwrap() error { return e.Err }

// Is reports whether target is an AppError with the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is matching by code.
var (
	ErrValidation       = &AppError{Code: CodeValidation}
	ErrNotFound         = &AppError{Code: CodeNotFound}
	ErrConflict         = &AppError{Code: CodeConflict}
	ErrInvalidState     = &AppError{Code: CodeInvalidState}
	ErrPermissionDenied = &AppError{Code: CodePermissionDenied}
	ErrSampleSource     = &AppError{Code: CodeSampleSource}
	ErrStorageInit      = &AppError{Code: CodeStorageInit}
	ErrStorage          = &AppError{Code: CodeStorage}
)

// NewValidationError creates a validation error.
func NewValidationError(message string) *AppError {
	return &AppError{Code: CodeValidation, Message: message}
}

// NewNotFoundError creates a not-found error for the given entity.
func NewNotFoundError(entity, id string) *AppError {
	return &AppError{Code: CodeNotFound, Message: fmt.Sprintf("%s not found: %s", entity, id)}
}

// NewConflictError creates a conflict error.
func NewConflictError(message string) *AppError {
	return &AppError{Code: CodeConflict, Message: message}
}

// NewInvalidStateError creates an error for a disallowed status transition.
func NewInvalidStateError(from, to string) *AppError {
	return &AppError{
		Code:    CodeInvalidState,
		Message: fmt.Sprintf("cannot transition from %s to %s", from, to),
	}
}

// NewPermissionDeniedError creates an error for refused authorization.
func NewPermissionDeniedError(message string) *AppError {
	return &AppError{Code: CodePermissionDenied, Message: message}
}

// NewSampleSourceError wraps a failure of the location sample source.
func NewSampleSourceError(message string, err error) *AppError {
	return &AppError{Code: CodeSampleSource, Message: message, Err: err}
}

// NewStorageInitError wraps a failure to prepare the durable store.
func NewStorageInitError(message string, err error) *AppError {
	return &AppError{Code: CodeStorageInit, Message: message, Err: err}
}

// NewStorageError wraps a failed store operation.
func NewStorageError(op string, err error) *AppError {
	return &AppError{Code: CodeStorage, Message: fmt.Sprintf("%s failed", op), Err: err}
}

// CodeOf returns the code of the first AppError in err's chain, or CodeInternal.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}
