package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for transport mapping
type Kind string

const (
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not_found"
	KindUnsupportedMethod Kind = "unsupported_method"
	KindGateway           Kind = "gateway"
	KindConflict          Kind = "conflict"
)

// Error is a classified error. Feature packages declare their sentinels with
// the constructors below and compare them with errors.Is.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

// Kind sentinels match any error of the same kind
var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrUnsupportedMethod = &Error{Kind: KindUnsupportedMethod}
	ErrGateway           = &Error{Kind: KindGateway}
	ErrConflict          = &Error{Kind: KindConflict}
)

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

// Is matches kind sentinels (no message) against any error of that kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

func Validation(msg string) *Error { return &Error{Kind: KindValidation, Msg: msg} }

func NotFound(msg string) *Error { return &Error{Kind: KindNotFound, Msg: msg} }

func UnsupportedMethod(msg string) *Error { return &Error{Kind: KindUnsupportedMethod, Msg: msg} }

func Conflict(msg string) *Error { return &Error{Kind: KindConflict, Msg: msg} }

// Gateway wraps a failure returned by the external payment provider
func Gateway(msg string, err error) *Error {
	return &Error{Kind: KindGateway, Msg: msg, Err: err}
}

// KindOf returns the kind of the first classified error in the chain
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
