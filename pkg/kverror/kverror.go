// Copyright 2025 madkv project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package kverror defines the unified error taxonomy of the runner.
// All lower-level errors are lifted into one of the four kinds at the
// boundary of the package that produced them.
package kverror

import (
	"errors"
	"fmt"
)

// Kind classifies a runner error.
type Kind int

const (
	// Io covers process spawn, pipe read/write and timeout-to-kill failures.
	Io Kind = iota
	// Parse covers failures to decode protocol or generator text.
	Parse
	// Chan covers inter-goroutine channel closure and wait timeouts.
	Chan
	// Join covers background goroutine panics surfaced to the driver.
	Join
)

func (k Kind) String() string {
	switch k {
	case Io:
		return "io error"
	case Parse:
		return "parse error"
	case Chan:
		return "chan error"
	case Join:
		return "goroutine join error"
	}
	return fmt.Sprintf("unknown error kind %d", int(k))
}

// Error is an error tagged with its Kind, optionally wrapping a cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Msg != "" {
			return fmt.Sprintf("%v: %v: %v", e.Kind, e.Msg, e.Err)
		}
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%v: %v", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Iof constructs an Io-kind error.
func Iof(format string, args ...interface{}) *Error {
	return &Error{Kind: Io, Msg: fmt.Sprintf(format, args...)}
}

// Parsef constructs a Parse-kind error.
func Parsef(format string, args ...interface{}) *Error {
	return &Error{Kind: Parse, Msg: fmt.Sprintf(format, args...)}
}

// Chanf constructs a Chan-kind error.
func Chanf(format string, args ...interface{}) *Error {
	return &Error{Kind: Chan, Msg: fmt.Sprintf(format, args...)}
}

// Joinf constructs a Join-kind error.
func Joinf(format string, args ...interface{}) *Error {
	return &Error{Kind: Join, Msg: fmt.Sprintf(format, args...)}
}

// Wrap lifts err into the taxonomy under the given kind. A nil err yields nil.
// An err that already carries a kind is returned as is.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	var kerr *Error
	if errors.As(err, &kerr) {
		return err
	}
	return &Error{Kind: kind, Err: err}
}

// KindOf reports the kind of err, if it carries one.
func KindOf(err error) (Kind, bool) {
	var kerr *Error
	if errors.As(err, &kerr) {
		return kerr.Kind, true
	}
	return 0, false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	got, ok := KindOf(err)
	return ok && got == kind
}
