// Package apperr defines the closed set of error kinds surfaced by the
// resolution engine. GraphQL responses carry the kind as extensions.code.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers and for the GraphQL response.
type Kind int

const (
	// KindValidation rejects the request because of caller input.
	KindValidation Kind = iota + 1
	// KindAuthentication covers unknown users, bad passwords, missing or
	// invalid sessions and denied capabilities.
	KindAuthentication
	// KindNotFound is a lookup that produced no matching resource.
	KindNotFound
	// KindStore is any failure reported by the record store.
	KindStore
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindNotFound:
		return "not_found"
	case KindStore:
		return "store"
	default:
		return "unknown"
	}
}

// Code is the value reported in extensions.code.
func (k Kind) Code() string {
	switch k {
	case KindValidation:
		return "BAD_USER_INPUT"
	case KindAuthentication:
		return "UNAUTHENTICATED"
	case KindNotFound:
		return "NOT_FOUND"
	default:
		return "INTERNAL_SERVER_ERROR"
	}
}

// Error is a classified error. Message is safe to show to callers; Err is the
// underlying cause and is never rendered.
type Error struct {
	Kind    Kind
	Message string
	Reason  string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Extensions implements gqlerrors.ExtendedError.
func (e *Error) Extensions() map[string]interface{} {
	extensions := map[string]interface{}{
		"code": e.Kind.Code(),
	}
	if e.Reason != "" {
		extensions["reason"] = e.Reason
	}
	return extensions
}

// Validation returns a KindValidation error.
func Validation(reason, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// Authentication returns a KindAuthentication error wrapping cause.
func Authentication(message string, cause error) *Error {
	return &Error{Kind: KindAuthentication, Message: message, Err: cause}
}

// NotFound returns a KindNotFound error.
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Store wraps a record store failure.
func Store(reason, message string, cause error) *Error {
	return &Error{Kind: KindStore, Reason: reason, Message: message, Err: cause}
}

// KindOf reports the kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
