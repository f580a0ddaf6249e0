// Package errors implements the taxonomy in spec §7: a small set of error
// kinds that the business layer maps onto, and the HTTP layer maps onto
// status codes. Monitors never propagate these to HTTP — they log and
// continue — but the taxonomy is still useful internally to distinguish
// "retry next tick" failures from fatal startup failures.
package errors

import (
	"fmt"

	faster "github.com/go-faster/errors"
)

// Kind classifies an error for the purposes of HTTP status mapping and
// monitor retry behavior. It is not a type hierarchy — just an enum carried
// alongside a wrapped cause.
type Kind int

const (
	// KindInternal covers template rendering failure, submission failure,
	// store transaction failure, and any unexpected monitor exception.
	KindInternal Kind = iota
	// KindClientMalformed covers invalid id format, missing required field,
	// invalid pagination, invalid enum value.
	KindClientMalformed
	// KindNotFound covers an unknown id.
	KindNotFound
	// KindConflict covers a domain entity in a state that forbids the
	// requested action.
	KindConflict
	// KindUnavailable covers DB connection refused/timed out.
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindClientMalformed:
		return "client_malformed"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// HTTPStatus returns the status code the HTTP layer maps this kind to.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindClientMalformed:
		return 400
	case KindNotFound:
		return 404
	case KindConflict:
		return 409
	case KindUnavailable:
		return 503
	default:
		return 500
	}
}

// Error is a taxonomy-tagged error. Use New/Wrap to build one, Is/As/errors.Is
// to test a chain for a Kind.
type Error struct {
	kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.msg)
}

func (e *Error) Unwrap() error { return e.err }

// Kind returns the taxonomy kind of this error.
func (e *Error) Kind() Kind { return e.kind }

// New builds a taxonomy error whose only cause is a fresh stack-capturing
// error carrying the same message.
func New(kind Kind, msg string) error {
	return &Error{kind: kind, msg: msg, err: faster.New(msg)}
}

// Newf builds a taxonomy error with a formatted message.
func Newf(kind Kind, format string, args ...any) error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...), err: faster.Errorf(format, args...)}
}

// Wrap attaches a taxonomy kind to an existing error, preserving the chain
// for errors.Is/As.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{kind: kind, msg: msg, err: faster.Wrap(err, msg)}
}

// KindOf walks the error chain looking for a *Error and returns its kind.
// An error with no taxonomy tag is reported as KindInternal, matching the
// "unexpected exception" bucket in spec §7.
func KindOf(err error) Kind {
	var e *Error
	if faster.As(err, &e) {
		return e.kind
	}
	return KindInternal
}

// Is reports whether KindOf(err) is kind: only the first *Error found in the
// chain decides, so a kind carried by a more deeply wrapped *Error is not seen.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
