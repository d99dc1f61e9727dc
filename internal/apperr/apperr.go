// Package apperr defines the error kinds shared by the movie night and voice
// subsystems. Command handlers turn them into short user-facing replies.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the command boundary.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindAmbiguousInput
	KindWrongKind
	KindDuplicate
	KindEmpty
	KindExternalService
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindAmbiguousInput:
		return "ambiguous input"
	case KindWrongKind:
		return "wrong kind"
	case KindDuplicate:
		return "duplicate"
	case KindEmpty:
		return "empty"
	case KindExternalService:
		return "external service"
	case KindIO:
		return "io"
	default:
		return "unknown"
	}
}

// Sentinels usable with errors.Is.
var (
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrAmbiguousInput  = &Error{Kind: KindAmbiguousInput}
	ErrWrongKind       = &Error{Kind: KindWrongKind}
	ErrDuplicate       = &Error{Kind: KindDuplicate}
	ErrEmpty           = &Error{Kind: KindEmpty}
	ErrExternalService = &Error{Kind: KindExternalService}
	ErrIO              = &Error{Kind: KindIO}
)

// Error is a classified error. Msg is safe to show to a user, Err is not.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.describe(), e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.describe())
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.describe(), e.Err)
	default:
		return e.describe()
	}
}

func (e *Error) describe() string {
	if e.Msg != "" {
		return e.Msg
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the sentinels above work with
// errors.Is regardless of Op, Msg or the wrapped cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

func Wrap(kind Kind, op, msg string, err error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}

func NotFound(op, msg string) *Error       { return New(KindNotFound, op, msg) }
func AmbiguousInput(op, msg string) *Error { return New(KindAmbiguousInput, op, msg) }
func WrongKind(op, msg string) *Error      { return New(KindWrongKind, op, msg) }
func Duplicate(op, msg string) *Error      { return New(KindDuplicate, op, msg) }
func Empty(op, msg string) *Error          { return New(KindEmpty, op, msg) }

func External(op, msg string, err error) *Error { return Wrap(KindExternalService, op, msg, err) }
func IO(op, msg string, err error) *Error       { return Wrap(KindIO, op, msg, err) }

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsUserFacing reports whether err was caused by the caller's input or by
// missing data, as opposed to an infrastructure failure.
func IsUserFacing(err error) bool {
	switch KindOf(err) {
	case KindNotFound, KindAmbiguousInput, KindWrongKind, KindDuplicate, KindEmpty:
		return true
	}
	return false
}

// UserMessage returns text suitable for an ephemeral reply.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		if IsUserFacing(err) && e.Msg != "" {
			return e.Msg
		}
		switch e.Kind {
		case KindExternalService:
			return "An external service failed, please try again later."
		case KindIO:
			return "Could not save data, please try again."
		}
	}
	return "There was an error while executing this command!"
}
