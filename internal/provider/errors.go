package provider

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind categorizes a provider failure for the caller. The taxonomy is
// deliberately small: credentials problems and rate limits get distinct
// handling in the UI, everything else is reported as-is.
type ErrorKind string

const (
	ErrKindAuth      ErrorKind = "auth"
	ErrKindRateLimit ErrorKind = "rate_limit"
	ErrKindOther     ErrorKind = "other"
)

// Error wraps a transport failure with its category.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrKindAuth:
		return fmt.Sprintf("invalid credentials: %v", e.Err)
	case ErrKindRateLimit:
		return fmt.Sprintf("rate limited: %v", e.Err)
	default:
		return e.Err.Error()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the category of err, ErrKindOther for anything unwrapped.
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ErrKindOther
}

// WrapStatus categorizes an SDK error by its HTTP status code. Each client
// package extracts the status from its own SDK error type and funnels it
// through here.
func WrapStatus(status int, err error) error {
	if err == nil {
		return nil
	}
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &Error{Kind: ErrKindAuth, Err: err}
	case http.StatusTooManyRequests:
		return &Error{Kind: ErrKindRateLimit, Err: err}
	default:
		return &Error{Kind: ErrKindOther, Err: err}
	}
}
