// Package apperr defines the typed error kinds shared across the chat
// server's services (spec.md §7). Callers compare with errors.Is against
// the sentinel values; Of preserves the kind while attaching context.
package apperr

import "errors"

// Kind classifies a failure the way the original C++ implementation's
// error.hpp enumerates them. Handlers at the HTTP/websocket boundary switch
// on Kind, never on the wrapped message text.
type Kind int

const (
	KindUnknown Kind = iota
	KindRequiresAuth
	KindLoginFailed
	KindUsernameExists
	KindEmailExists
	KindNotFound
	KindAlreadyExists
	KindBadRequest
	KindInvalidContentType
	KindParseError
	KindTimeout
	KindCancelled
)

var (
	ErrUnknown             = errors.New("unknown error")
	ErrRequiresAuth        = errors.New("requires authentication")
	ErrLoginFailed         = errors.New("login failed")
	ErrUsernameExists      = errors.New("username already exists")
	ErrEmailExists         = errors.New("email already exists")
	ErrNotFound            = errors.New("not found")
	ErrAlreadyExists       = errors.New("already exists")
	ErrBadRequest          = errors.New("bad request")
	ErrInvalidContentType  = errors.New("invalid content type")
	ErrParseError          = errors.New("parse error")
	ErrTimeout             = errors.New("timeout")
	ErrCancelled           = errors.New("cancelled")
)

// kindErrors mirrors the sentinel list so Of() and Is() stay in sync.
var kindErrors = map[Kind]error{
	KindUnknown:            ErrUnknown,
	KindRequiresAuth:       ErrRequiresAuth,
	KindLoginFailed:        ErrLoginFailed,
	KindUsernameExists:     ErrUsernameExists,
	KindEmailExists:        ErrEmailExists,
	KindNotFound:           ErrNotFound,
	KindAlreadyExists:      ErrAlreadyExists,
	KindBadRequest:         ErrBadRequest,
	KindInvalidContentType: ErrInvalidContentType,
	KindParseError:         ErrParseError,
	KindTimeout:            ErrTimeout,
	KindCancelled:          ErrCancelled,
}

// Error wraps an underlying cause with a classification Kind.
type Error struct {
	Kind  Kind
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return kindErrors[e.Kind].Error()
	}
	return kindErrors[e.Kind].Error() + ": " + e.Cause.Error()
}

func (e *Error) Unwrap() error { return kindErrors[e.Kind] }

// Of builds a typed error for kind, optionally wrapping cause for logging.
func Of(kind Kind, cause error) error {
	return &Error{Kind: kind, Cause: cause}
}

// Is reports whether err was constructed with the given Kind.
func Is(err error, kind Kind) bool {
	return errors.Is(err, kindErrors[kind])
}
