// Package apperr classifies errors into caller-facing kinds so transports can
// render "not found", "insufficient stock" and "bad request" differently.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the machine-distinguishable category of a failure.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindInvalidInput
	KindInsufficientStock
	KindConflict
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidInput:
		return "invalid_input"
	case KindInsufficientStock:
		return "insufficient_stock"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "internal"
	}
}

// Kinder is implemented by errors that know their own Kind.
type Kinder interface {
	Kind() Kind
}

// Error is a classified error with a human-readable message.
type Error struct {
	kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Msg == "" {
		return e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Kind() Kind { return e.kind }

func New(kind Kind, format string, args ...interface{}) error {
	return &Error{kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches kind to err, keeping it reachable via errors.Is / errors.As.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{kind: kind, Msg: msg, Err: err}
}

func NotFound(format string, args ...interface{}) error {
	return New(KindNotFound, format, args...)
}

func Invalid(format string, args ...interface{}) error {
	return New(KindInvalidInput, format, args...)
}

func Conflict(format string, args ...interface{}) error {
	return New(KindConflict, format, args...)
}

func Unauthorized(format string, args ...interface{}) error {
	return New(KindUnauthorized, format, args...)
}

// KindOf returns the first Kind found in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var k Kinder
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindInternal
}

// HTTPStatus maps a Kind onto a response status code.
func HTTPStatus(k Kind) int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindInsufficientStock, KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Message is the text safe to show a client. Internal failures are masked.
func Message(err error) string {
	if KindOf(err) == KindInternal {
		return "internal error"
	}
	return err.Error()
}
