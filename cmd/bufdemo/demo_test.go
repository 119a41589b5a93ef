// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"testing"

	"cogentcore.org/bufpool/gpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunDemo(t *testing.T) {
	var pc gpu.PoolConfig
	pc.Defaults()
	res, err := runDemo(context.Background(), &pc, demoOptions{Frames: 20, Verts: 64, Objects: 4})
	require.NoError(t, err)
	assert.Equal(t, 20, res.Frames)
	assert.Equal(t, 1, res.Peak.Pages)
	assert.Equal(t, 0, res.Final.Pages)
	assert.Equal(t, 0, res.Final.AllocatedBlocks)
}

func TestRunDemoDeferred(t *testing.T) {
	var pc gpu.PoolConfig
	pc.Defaults()
	pc.Release = gpu.ReleaseDeferred
	res, err := runDemo(context.Background(), &pc, demoOptions{Frames: 5, Verts: 16, Objects: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Frames)
	assert.Equal(t, 0, res.Final.Pages)
}

func TestRunDemoErrors(t *testing.T) {
	var pc gpu.PoolConfig
	pc.Defaults()
	_, err := runDemo(context.Background(), &pc, demoOptions{})
	assert.Error(t, err)

	// vertex stream larger than a page
	_, err = runDemo(context.Background(), &pc, demoOptions{Frames: 1, Verts: 1 << 16, Objects: 1})
	assert.Error(t, err)
}
