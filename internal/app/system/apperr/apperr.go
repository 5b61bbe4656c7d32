// Package apperr defines the error kinds surfaced by the access core.
//
// Every failure returned across a package boundary of the access core carries
// a Kind so callers (HTTP handlers, client UIs) can react to the kind rather
// than to message text. Messages are stable and safe to show to end users.
package apperr

import (
	"errors"
)

// Kind classifies an access-core failure.
type Kind string

const (
	Unauthenticated        Kind = "unauthenticated"
	IdentityUnavailable    Kind = "identity_unavailable"
	NoActiveCompany        Kind = "no_active_company"
	NotAMember             Kind = "not_a_member"
	Forbidden              Kind = "forbidden"
	SelfModificationDenied Kind = "self_modification_denied"
	SelfRemovalDenied      Kind = "self_removal_denied"
	AlreadyMember          Kind = "already_member"
	RequestAlreadyHandled  Kind = "request_already_handled"
	NotFound               Kind = "not_found"
	InvalidInput           Kind = "invalid_input"
	RateLimited            Kind = "rate_limited"
	Internal               Kind = "internal"
)

// Error is a classified failure. Err, when set, is the underlying cause and is
// never shown to end users.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Message + ": " + e.Err.Error()
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, apperr.E(Forbidden))
// style checks work alongside KindOf.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

// New returns an error of the given kind with the default message for that kind.
func New(kind Kind) *Error {
	return &Error{Kind: kind, Message: DefaultMessage(kind)}
}

// Newf returns an error of the given kind with a custom user-facing message.
func Newf(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap classifies cause under kind with the default message for that kind.
func Wrap(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Message: DefaultMessage(kind), Err: cause}
}

// KindOf returns the Kind of err, or Internal if err is unclassified.
// A nil error has no kind and returns "".
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// MessageOf returns the user-facing message for err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return DefaultMessage(KindOf(err))
}

// DefaultMessage is the stable user-facing text for a kind.
func DefaultMessage(kind Kind) string {
	switch kind {
	case Unauthenticated:
		return "please sign in to continue"
	case IdentityUnavailable:
		return "sign-in is temporarily unavailable, please try again"
	case NoActiveCompany:
		return "select a company first"
	case NotAMember:
		return "you don't have access to this company"
	case Forbidden:
		return "you don't have permission to do that"
	case SelfModificationDenied:
		return "you can't change your own role"
	case SelfRemovalDenied:
		return "you can't remove yourself from the company"
	case AlreadyMember:
		return "you are already a member of this company"
	case RequestAlreadyHandled:
		return "this request has already been handled"
	case NotFound:
		return "not found"
	case InvalidInput:
		return "the request is invalid"
	case RateLimited:
		return "too many attempts, please wait a moment and try again"
	default:
		return "something went wrong"
	}
}
