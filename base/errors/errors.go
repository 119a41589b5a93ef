// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package errors provides a set of error handling helpers,
// extending the standard library errors package.
// It is designed to be imported as a drop-in replacement for
// the standard errors package.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error is an error with a base error and the call site
// frames at which it was wrapped.
type Error struct {
	Base  error
	Stack []string
}

// Wrap wraps the given error into an [*Error] carrying the
// caller information of the call site. It returns nil if the
// given error is nil.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return &Error{
		Base:  err,
		Stack: []string{CallerInfo()},
	}
}

// New returns a new error with the given text, wrapped with
// caller information via [Wrap]. It is the equivalent of [errors.New].
func New(text string) error {
	return Wrap(errors.New(text))
}

// Errorf returns a new error with the given format and arguments,
// wrapped with caller information via [Wrap].
// It is the equivalent of [fmt.Errorf].
func Errorf(format string, a ...any) error {
	return Wrap(fmt.Errorf(format, a...))
}

// Error returns the base error message followed by the call site
// information when [Debug] is on.
func (e *Error) Error() string {
	res := e.Base.Error()
	if Debug && len(e.Stack) > 0 {
		res += " (" + strings.Join(e.Stack, ": ") + ")"
	}
	return res
}

// Unwrap returns the underlying base error of the Error.
func (e *Error) Unwrap() error {
	return e.Base
}

// Is is [errors.Is].
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is [errors.As].
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Join is [errors.Join].
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// Unwrap is [errors.Unwrap].
func Unwrap(err error) error {
	return errors.Unwrap(err)
}
