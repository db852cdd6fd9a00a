package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches another AppError by code and message, so wrapped sentinels
// still compare equal after fmt.Errorf("...: %w").
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.Message == e.Message
}

// Status maps the error code to an HTTP status.
func (e *AppError) Status() int {
	switch e.Code {
	case ErrValidation:
		return http.StatusBadRequest
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrForbidden, ErrPermanentLock:
		return http.StatusForbidden
	case ErrNotFound:
		return http.StatusNotFound
	case ErrStateConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrValidation
	ErrUnauthorized
	ErrForbidden
	ErrInternal
	ErrStateConflict
	ErrPermanentLock
)

var (
	ErrHospitalLocationMissing = &AppError{Code: ErrValidation, Message: "hospital location not set"}
	ErrInvalidBloodType        = &AppError{Code: ErrValidation, Message: "invalid blood type"}
	ErrInvalidUrgencyLevel     = &AppError{Code: ErrValidation, Message: "urgency level must be between 1 and 5"}
	ErrRequestNoLongerActive   = &AppError{Code: ErrStateConflict, Message: "urgency request is no longer active"}
	ErrDuplicateResponse       = &AppError{Code: ErrStateConflict, Message: "you have already responded to this urgency request"}
	ErrAlreadyResponded        = &AppError{Code: ErrStateConflict, Message: "appointment already scheduled for this request, cancel it first"}
	ErrAppointmentNotScheduled = &AppError{Code: ErrStateConflict, Message: "appointment is not in scheduled state"}
	ErrEligibilityLocked       = &AppError{Code: ErrPermanentLock, Message: "eligibility status is permanently set to ineligible"}
	ErrNotFoundOrDenied        = &AppError{Code: ErrNotFound, Message: "not found or access denied"}
	ErrInvalidCredentials      = &AppError{Code: ErrUnauthorized, Message: "invalid email or password"}
	ErrEmailTaken              = &AppError{Code: ErrStateConflict, Message: "email already registered"}
)

// Error constructors
func NewNotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func NewValidation(message string, err error) *AppError {
	return &AppError{
		Code:    ErrValidation,
		Message: message,
		Err:     err,
	}
}

func NewStateConflict(message string) *AppError {
	return &AppError{
		Code:    ErrStateConflict,
		Message: message,
	}
}

func NewInternal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

func Unauthorized(err error) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: "unauthorized",
		Err:     err,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Code:    ErrForbidden,
		Message: message,
	}
}

// As extracts the first AppError in the chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is reports whether err matches target anywhere in its chain.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
