// Package apperr defines the error taxonomy shared by services, repositories
// and handlers. Storage and domain faults are translated into one of these
// kinds before they reach the HTTP boundary; anything unrecognized collapses
// to Internal there.
package apperr

import (
	"errors"
	"net/http"
)

type Kind int

const (
	Internal Kind = iota
	Validation
	Auth
	Forbidden
	NotFound
	Conflict
	InvalidOrExpired
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func NewValidation(message string) *Error { return New(Validation, message) }
func NewAuth(message string) *Error      { return New(Auth, message) }
func NewForbidden(message string) *Error { return New(Forbidden, message) }
func NewNotFound(message string) *Error  { return New(NotFound, message) }
func NewConflict(message string) *Error  { return New(Conflict, message) }
func NewInvalidOrExpired(message string) *Error {
	return New(InvalidOrExpired, message)
}
func NewInternal(message string, err error) *Error {
	return Wrap(Internal, message, err)
}

// KindOf reports the taxonomy kind of err, or Internal when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// StatusCode maps a kind onto its HTTP status contract.
func (k Kind) StatusCode() int {
	switch k {
	case Validation, InvalidOrExpired:
		return http.StatusBadRequest
	case Auth:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
