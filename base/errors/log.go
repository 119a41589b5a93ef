// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package errors

import (
	"log/slog"
)

// Log logs the given error at the error level along with the
// location of the caller, if it is non-nil, and returns it:
//
//	return errors.Log(st.Queue.Submit(cmd))
func Log(err error) error {
	if err != nil {
		slog.Error(err.Error() + " | " + CallerInfo())
	}
	return err
}

// Warn logs the given error as a warning with the given attributes,
// if it is non-nil, and returns it. Buffer operations that are
// rejected without touching any data report through it.
func Warn(err error, args ...any) error {
	if err != nil {
		slog.Warn(err.Error(), args...)
	}
	return err
}
