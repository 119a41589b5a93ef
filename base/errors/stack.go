// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package errors

import (
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// Debug is whether to include the call site of wrapped
// errors in their messages.
var Debug = false

// CallerInfo returns the package.function and file:line of
// the caller of the function that called CallerInfo, skipping
// frames that belong to this package outside of its tests.
func CallerInfo() string {
	callers := make([]uintptr, 8)
	n := runtime.Callers(2, callers)
	if n == 0 {
		return ""
	}
	frames := runtime.CallersFrames(callers[:n])
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.Function, "base/errors.") || strings.HasSuffix(frame.File, "_test.go") {
			return shortFunc(frame.Function) + " " + filepath.Base(frame.File) + ":" + strconv.Itoa(frame.Line)
		}
		if !more {
			return ""
		}
	}
}

func shortFunc(fn string) string {
	if i := strings.LastIndex(fn, "/"); i >= 0 {
		fn = fn[i+1:]
	}
	return fn
}
