// Package apperrors defines the typed, caller-recoverable results returned by the
// hold, order and payment services, plus the StorageUnavailable fault.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type Code string

const (
	// Hold layer
	CodeSeatUnavailable  Code = "SEAT_UNAVAILABLE"
	CodeSeatContested    Code = "SEAT_CONTESTED"
	CodeNotHeldBySession Code = "NOT_HELD_BY_SESSION"
	CodeTooManySeats     Code = "TOO_MANY_SEATS"

	// Order layer
	CodeSeatNotHeld                Code = "SEAT_NOT_HELD"
	CodeEventNotBookable           Code = "EVENT_NOT_BOOKABLE"
	CodeInvalidTransition          Code = "INVALID_TRANSITION"
	CodeInvalidToken               Code = "INVALID_TOKEN"
	CodeAlreadyPaid                Code = "ALREADY_PAID"
	CodeAlreadyPendingConfirmation Code = "ALREADY_PENDING_CONFIRMATION"
	CodeOrderExpired               Code = "ORDER_EXPIRED"
	CodeOrderCancelled             Code = "ORDER_CANCELLED"
	CodeAlreadyFinal               Code = "ALREADY_FINAL"
	CodePaymentAmountMismatch      Code = "PAYMENT_AMOUNT_MISMATCH"

	// Generic
	CodeInvalidRequest     Code = "INVALID_REQUEST"
	CodeNotFound           Code = "NOT_FOUND"
	CodeStorageUnavailable Code = "STORAGE_UNAVAILABLE"
)

// Error is the single error type crossing service boundaries. Seats carries the
// offending seat numbers (or ids when no number is known) for hold conflicts.
type Error struct {
	Code    Code
	Message string
	Seats   []string
	cause   error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Seats) > 0 {
		b.WriteString(" [")
		b.WriteString(strings.Join(e.Seats, ", "))
		b.WriteString("]")
	}
	if e.cause != nil {
		b.WriteString(": ")
		b.WriteString(e.cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches any *Error carrying the same code, so sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is checks.
var (
	ErrSeatUnavailable            = &Error{Code: CodeSeatUnavailable}
	ErrSeatContested              = &Error{Code: CodeSeatContested}
	ErrNotHeldBySession           = &Error{Code: CodeNotHeldBySession}
	ErrTooManySeats               = &Error{Code: CodeTooManySeats}
	ErrSeatNotHeld                = &Error{Code: CodeSeatNotHeld}
	ErrEventNotBookable           = &Error{Code: CodeEventNotBookable}
	ErrInvalidTransition          = &Error{Code: CodeInvalidTransition}
	ErrInvalidToken               = &Error{Code: CodeInvalidToken}
	ErrAlreadyPaid                = &Error{Code: CodeAlreadyPaid}
	ErrAlreadyPendingConfirmation = &Error{Code: CodeAlreadyPendingConfirmation}
	ErrOrderExpired               = &Error{Code: CodeOrderExpired}
	ErrOrderCancelled             = &Error{Code: CodeOrderCancelled}
	ErrAlreadyFinal               = &Error{Code: CodeAlreadyFinal}
	ErrPaymentAmountMismatch      = &Error{Code: CodePaymentAmountMismatch}
	ErrInvalidRequest             = &Error{Code: CodeInvalidRequest}
	ErrNotFound                   = &Error{Code: CodeNotFound}
	ErrStorageUnavailable         = &Error{Code: CodeStorageUnavailable}
)

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithSeats builds a hold-layer conflict naming the offending seats.
func WithSeats(code Code, message string, seats []string) *Error {
	return &Error{Code: code, Message: message, Seats: seats}
}

// Storage wraps a backing-store failure. Errors that already carry a code pass through.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return err
	}
	return &Error{Code: CodeStorageUnavailable, Message: op, cause: err}
}

// CodeOf returns the code of err, or "" for untyped errors.
func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsStorage reports whether err is a fault worth retrying.
func IsStorage(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}

// IsAnomaly reports administrative failures that indicate a double action or stale view.
func IsAnomaly(err error) bool {
	switch CodeOf(err) {
	case CodeInvalidTransition, CodeAlreadyFinal, CodePaymentAmountMismatch:
		return true
	}
	return false
}

// HTTPStatus maps a code to the status the controllers reply with.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeInvalidRequest, CodeTooManySeats:
		return http.StatusBadRequest
	case CodeInvalidToken:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	case CodeSeatUnavailable, CodeSeatContested, CodeNotHeldBySession, CodeSeatNotHeld,
		CodeInvalidTransition, CodeAlreadyPaid, CodeAlreadyPendingConfirmation, CodeAlreadyFinal:
		return http.StatusConflict
	case CodeOrderExpired, CodeOrderCancelled:
		return http.StatusGone
	case CodeEventNotBookable, CodePaymentAmountMismatch:
		return http.StatusUnprocessableEntity
	case CodeStorageUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
