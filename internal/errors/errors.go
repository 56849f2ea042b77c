package errors

import (
	"errors"
	"fmt"
)

var ErrUnauthorized = errors.New("user is not authorized")
var ErrForbidden = errors.New("operation is forbidden for user")

// Kind classifies an application error; handlers map it to an HTTP status.
type Kind string

const (
	KindInvalidRequest     Kind = "invalid_request"
	KindInvalidCardDetails Kind = "invalid_card_details"
	KindValidation         Kind = "validation_error"
	KindNotFound           Kind = "not_found"
	KindSeatNotFound       Kind = "seat_not_found"
	KindSeatAlreadyBooked  Kind = "seat_already_booked"
	KindConflict           Kind = "conflict"
	KindPersistence        Kind = "persistence_error"
)

// Error is the error type returned by services. Field names the offending
// input field, Seat the offending seat number.
type Error struct {
	Kind  Kind
	Field string
	Seat  string
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind so callers can write errors.Is(err, ErrSeatAlreadyBooked).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrInvalidRequest     = &Error{Kind: KindInvalidRequest}
	ErrInvalidCardDetails = &Error{Kind: KindInvalidCardDetails}
	ErrValidation         = &Error{Kind: KindValidation}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrSeatNotFound       = &Error{Kind: KindSeatNotFound}
	ErrSeatAlreadyBooked  = &Error{Kind: KindSeatAlreadyBooked}
	ErrConflict           = &Error{Kind: KindConflict}
	ErrPersistence        = &Error{Kind: KindPersistence}
)

func InvalidRequest(format string, args ...any) error {
	return &Error{Kind: KindInvalidRequest, Msg: fmt.Sprintf(format, args...)}
}

func InvalidCard(field, msg string) error {
	return &Error{Kind: KindInvalidCardDetails, Field: field, Msg: msg}
}

func Validation(field, msg string) error {
	return &Error{Kind: KindValidation, Field: field, Msg: msg}
}

func NotFound(resource string) error {
	return &Error{Kind: KindNotFound, Msg: resource + " not found"}
}

func SeatNotFound(seat string) error {
	return &Error{Kind: KindSeatNotFound, Seat: seat, Msg: fmt.Sprintf("seat %s not found on bus", seat)}
}

func SeatAlreadyBooked(seat string) error {
	return &Error{Kind: KindSeatAlreadyBooked, Seat: seat, Msg: fmt.Sprintf("seat %s is already booked", seat)}
}

func Conflict(msg string) error {
	return &Error{Kind: KindConflict, Msg: msg}
}

// Persistence wraps a storage failure. Errors that already carry a Kind are
// returned unchanged.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return err
	}
	return &Error{Kind: KindPersistence, Msg: op, Err: err}
}

// KindOf returns the Kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

// As returns the *Error in err's chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	ok := errors.As(err, &appErr)
	return appErr, ok
}
