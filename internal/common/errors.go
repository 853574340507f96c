package common

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies failures surfaced by commands.
type Kind string

const (
	KindInvalidRequest    Kind = "INVALID_REQUEST"
	KindInsufficientStock Kind = "INSUFFICIENT_STOCK"
	KindNotFound          Kind = "NOT_FOUND"
	KindForbidden         Kind = "FORBIDDEN"
	KindConflict          Kind = "CONFLICT"
	KindRetryable         Kind = "RETRYABLE"
	KindInternal          Kind = "INTERNAL"
)

// AppError is the error type returned across service boundaries
type AppError struct {
	Kind    Kind
	Message string
	Details map[string]string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func newError(kind Kind, format string, args ...any) *AppError {
	return &AppError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func InvalidRequest(format string, args ...any) *AppError {
	return newError(KindInvalidRequest, format, args...)
}

func NotFound(resource string, id any) *AppError {
	return newError(KindNotFound, "%s %v not found", resource, id)
}

func Forbidden(format string, args ...any) *AppError {
	return newError(KindForbidden, format, args...)
}

func Conflict(format string, args ...any) *AppError {
	return newError(KindConflict, format, args...)
}

// Retryable wraps a lock or serialization failure the caller may retry
func Retryable(err error) *AppError {
	return &AppError{Kind: KindRetryable, Message: "resource busy, retry the request", Err: err}
}

// Internal wraps an unexpected failure. The message never reaches users.
func Internal(operation string, err error) *AppError {
	return &AppError{Kind: KindInternal, Message: "failed to " + operation, Err: err}
}

// InsufficientStock reports the ledger numbers that failed the check
func InsufficientStock(requested, onHand, reserved, available int) *AppError {
	return &AppError{
		Kind: KindInsufficientStock,
		Message: fmt.Sprintf("insufficient stock: requested %d, on hand %d, reserved %d, available %d",
			requested, onHand, reserved, available),
		Details: map[string]string{
			"requested": fmt.Sprint(requested),
			"on_hand":   fmt.Sprint(onHand),
			"reserved":  fmt.Sprint(reserved),
			"available": fmt.Sprint(available),
		},
	}
}

// KindOf returns the kind of err, INTERNAL for anything that is not an AppError
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps a kind onto the response status used by handlers
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindInvalidRequest:
		return http.StatusBadRequest
	case KindInsufficientStock, KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindRetryable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the text shown to callers. Internal failures are never described.
func PublicMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Kind != KindInternal {
		return appErr.Message
	}
	return "operation could not be completed"
}

// DetailsOf returns the structured details of err, if any
func DetailsOf(err error) map[string]string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Details
	}
	return nil
}
