// Package apperror defines the error taxonomy shared by every layer.
//
// Two shapes exist:
//   - *AppError: a domain error with a human-readable message (validation,
//     not found, unauthorized, ...). Handlers show Message to the user.
//   - *OpError: a collaborator failure (store create/list/delete). It wraps
//     the backend-specific cause AND a Kind sentinel, so callers can ask
//     errors.Is(err, ErrStore) without caring which backend failed.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("Validation Error")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")

	// ErrEmptyField is the only validation failure a place form can produce.
	// It wraps ErrValidation so errors.Is(err, ErrValidation) still matches.
	ErrEmptyField = fmt.Errorf("%w: empty field", ErrValidation)

	ErrUnauthorized         = errors.New("unauthorized")
	ErrBusy                 = errors.New("request already in flight")
	ErrConfirmationRequired = errors.New("confirmation required")

	ErrStore  = errors.New("store error")
	ErrList   = errors.New("list error")
	ErrDelete = errors.New("delete error")

	// ErrCorruptState marks malformed persisted data in the local backend.
	// It is logged and recovered from, never returned to a user.
	ErrCorruptState = errors.New("corrupt persisted state")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// EmptyField reports a required form field that is missing or blank.
func EmptyField(field string) *AppError {
	return &AppError{
		Err:     ErrEmptyField,
		Message: "Invalid Data! Fill in Color, Section and Number.",
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized is returned by flows when the auth gate reports no session.
func Unauthorized() *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: "valid authentication required",
	}
}

// Busy rejects a re-entrant submission while an earlier one is pending.
func Busy(what string) *AppError {
	return &AppError{
		Err:     ErrBusy,
		Message: fmt.Sprintf("%s is already in progress", what),
	}
}

// ConfirmationRequired is returned when a destructive action was not confirmed.
func ConfirmationRequired(message string) *AppError {
	return &AppError{
		Err:     ErrConfirmationRequired,
		Message: message,
	}
}

// OpError wraps a backend-specific failure together with the kind of
// operation that failed (ErrStore, ErrList or ErrDelete).
type OpError struct {
	Kind error
	Err  error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *OpError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// StoreFailed wraps a failed PlaceStore.Create.
func StoreFailed(cause error) *OpError { return &OpError{Kind: ErrStore, Err: cause} }

// ListFailed wraps a failed PlaceStore.List.
func ListFailed(cause error) *OpError { return &OpError{Kind: ErrList, Err: cause} }

// DeleteFailed wraps a failed PlaceStore.Delete.
func DeleteFailed(cause error) *OpError { return &OpError{Kind: ErrDelete, Err: cause} }
