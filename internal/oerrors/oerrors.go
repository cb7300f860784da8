// Package oerrors classifies errors into a small taxonomy so callers
// can branch with errors.Is instead of string matching.
package oerrors

import "errors"

// Kind is one of the error taxonomy buckets.
type Kind string

const (
	InvalidInput Kind = "invalid_input"
	NotFound     Kind = "not_found"
	Conflict     Kind = "conflict"
	Timeout      Kind = "timeout"
	Cancelled    Kind = "cancelled"
	Overflow     Kind = "overflow"
	Storage      Kind = "storage"
	Format       Kind = "format"
	Upstream     Kind = "upstream"
)

// Error wraps an underlying cause with its taxonomy Kind and a
// stable Code used in user-facing responses (e.g. StreamResponses::Error).
type Error struct {
	Kind Kind
	Code string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is(err, oerrors.New(k, "", "")) style matching by
// comparing Kind, so multiple distinct *Error values of the same Kind
// compare equal for classification purposes. A target with a non-empty
// Code matches only an *Error carrying that same Code.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	if other.Kind != e.Kind {
		return false
	}
	return other.Code == "" || other.Code == e.Code
}

func New(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Msg: msg}
}

func Wrap(kind Kind, code, msg string, err error) *Error {
	return &Error{Kind: kind, Code: code, Msg: msg, Err: err}
}

// KindOf returns the Kind of err if it (or something it wraps) is an
// *Error, and Storage as the default classification for opaque errors
// crossing a storage boundary.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Storage
}

// Sentinel constructors for common, parameterless classification checks.
func IsNotFound(err error) bool  { return KindOf(err) == NotFound }
func IsConflict(err error) bool  { return KindOf(err) == Conflict }
func IsTimeout(err error) bool   { return KindOf(err) == Timeout }
func IsCancelled(err error) bool { return KindOf(err) == Cancelled }
func IsOverflow(err error) bool  { return KindOf(err) == Overflow }
