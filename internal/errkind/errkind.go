// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
// Package errkind defines the closed set of error kinds the core returns,
// following the same small-typed-sentinel-struct style the rest of the
// stack uses for expected failure modes.
package errkind

import "fmt"

// Kind is one of the closed error kinds from spec.md §7.
type Kind string

const (
	BadBootstrap      Kind = "bad_bootstrap"
	NotFound          Kind = "not_found"
	DanglingRef       Kind = "dangling_ref"
	BadIntent         Kind = "bad_intent"
	Timeout           Kind = "timeout"
	TickOverrun       Kind = "tick_overrun"
	LostSupport       Kind = "lost_support"
	CascadeUnresolved Kind = "cascade_unresolved"
)

// warning reports whether a Kind is a physical-consistency warning that
// never rejects a patch, only attaches to the committed event.
func (k Kind) warning() bool {
	return k == LostSupport || k == CascadeUnresolved
}

// IsWarning reports whether k is a warning kind rather than a rejection.
func IsWarning(k Kind) bool { return k.warning() }

// Error is the typed error the core returns for every expected failure.
// It always carries a Kind so callers can branch on it without string
// matching; Cause, when present, is wrapped for %w-style unwrapping.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error with the given kind and message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf builds an *Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error that carries an underlying cause.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// As reports whether err is (or wraps) an *Error and, if so, returns it.
func As(err error) (*Error, bool) {
	e, ok := err.(*Error)
	if ok {
		return e, true
	}
	type unwrapper interface{ Unwrap() error }
	for {
		u, ok := err.(unwrapper)
		if !ok {
			return nil, false
		}
		err = u.Unwrap()
		if e, ok := err.(*Error); ok {
			return e, true
		}
	}
}

// Of reports the Kind of err, or "" if err is not an *Error.
func Of(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return ""
}
