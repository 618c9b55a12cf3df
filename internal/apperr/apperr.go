// Package apperr defines the error kinds shared by services and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindForbidden         Kind = "forbidden"
	KindValidation        Kind = "validation"
	KindConflict          Kind = "conflict"
	KindInvalidTransition Kind = "invalid_transition"
	KindUnauthorized      Kind = "unauthorized"
	KindInternal          Kind = "internal"
)

// Error carries a kind and a human readable message.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	return e.Msg
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) works
// regardless of the message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrNotFound          = &Error{Kind: KindNotFound, Msg: "not found"}
	ErrForbidden         = &Error{Kind: KindForbidden, Msg: "forbidden"}
	ErrValidation        = &Error{Kind: KindValidation, Msg: "validation failed"}
	ErrConflict          = &Error{Kind: KindConflict, Msg: "conflict"}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition, Msg: "invalid transition"}
	ErrUnauthorized      = &Error{Kind: KindUnauthorized, Msg: "unauthorized"}
)

func newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) error   { return newf(KindNotFound, format, args...) }
func Forbidden(format string, args ...any) error  { return newf(KindForbidden, format, args...) }
func Validation(format string, args ...any) error { return newf(KindValidation, format, args...) }
func Conflict(format string, args ...any) error   { return newf(KindConflict, format, args...) }
func Unauthorized(format string, args ...any) error {
	return newf(KindUnauthorized, format, args...)
}
func InvalidTransition(format string, args ...any) error {
	return newf(KindInvalidTransition, format, args...)
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

var statusByKind = map[Kind]int{
	KindNotFound:          http.StatusNotFound,
	KindForbidden:         http.StatusForbidden,
	KindValidation:        http.StatusBadRequest,
	KindConflict:          http.StatusBadRequest,
	KindInvalidTransition: http.StatusConflict,
	KindUnauthorized:      http.StatusUnauthorized,
}

// HTTPStatus maps err to the response status code. Errors without a kind
// are internal.
func HTTPStatus(err error) int {
	if code, ok := statusByKind[KindOf(err)]; ok {
		return code
	}
	return http.StatusInternalServerError
}
