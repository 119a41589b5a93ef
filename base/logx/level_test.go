// Copyright (c) 2023, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package logx

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelFromFlags(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, LevelFromFlags(true, false, false))
	assert.Equal(t, slog.LevelInfo, LevelFromFlags(false, true, true))
	assert.Equal(t, slog.LevelError, LevelFromFlags(false, false, true))
	assert.Equal(t, slog.LevelWarn, LevelFromFlags(false, false, false))
}

func TestHandler(t *testing.T) {
	defer func(l slog.Level) { UserLevel = l }(UserLevel)
	UserLevel = slog.LevelInfo
	var b bytes.Buffer
	lg := slog.New(NewHandler(&b))
	lg.Debug("hidden")
	lg.Warn("page created", "size", 1024)
	s := b.String()
	assert.NotContains(t, s, "hidden")
	// a bytes.Buffer is not a terminal, so no escape codes are written
	assert.Contains(t, s, "level=WARN")
	assert.Contains(t, s, "size=1024")
}
