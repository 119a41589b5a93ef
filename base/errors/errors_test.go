// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package errors

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errBase = errors.New("base")

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil))
	err := Wrap(errBase)
	assert.True(t, Is(err, errBase))
	var e *Error
	assert.True(t, As(err, &e))
	assert.Equal(t, "base", e.Error())
	assert.Len(t, e.Stack, 1)
	assert.Contains(t, e.Stack[0], "errors_test.go")

	Debug = true
	defer func() { Debug = false }()
	assert.Contains(t, err.Error(), "TestWrap")
}

func TestErrorf(t *testing.T) {
	err := Errorf("size %d: %w", 3, errBase)
	assert.Equal(t, "size 3: base", err.Error())
	assert.ErrorIs(t, err, errBase)
}

func TestLogWarn(t *testing.T) {
	var buf bytes.Buffer
	def := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	defer slog.SetDefault(def)

	assert.Nil(t, Log(nil))
	assert.Nil(t, Warn(nil))
	assert.Empty(t, buf.String())

	assert.Equal(t, errBase, Log(errBase))
	assert.Contains(t, buf.String(), "level=ERROR")
	assert.Contains(t, buf.String(), "errors_test.go")
	buf.Reset()

	assert.Equal(t, errBase, Warn(errBase, "size", 4))
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "size=4")
}
