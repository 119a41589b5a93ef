// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu_test

import (
	"math"
	"testing"

	"cogentcore.org/bufpool/gpu"
	"cogentcore.org/bufpool/gpu/soft"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectBounds(t *testing.T) {
	dev := soft.NewDevice()
	pl := newTestPool(t, dev)
	a := pl.Allocate(256)
	b := pl.Allocate(256)
	require.Equal(t, a.Buffer(), b.Buffer())

	require.NoError(t, b.Upload([]byte{7, 7, 7, 7}, 0))
	assert.ErrorIs(t, a.Upload(make([]byte, 8), 252), gpu.ErrOutOfBounds)
	assert.ErrorIs(t, a.Download(make([]byte, 1), 256), gpu.ErrOutOfBounds)
	assert.ErrorIs(t, a.Clear(-1, 2), gpu.ErrOutOfBounds)
	_, err := a.Map(200, 100)
	assert.ErrorIs(t, err, gpu.ErrOutOfBounds)

	got := make([]byte, 4)
	require.NoError(t, b.Download(got, 0))
	assert.Equal(t, []byte{7, 7, 7, 7}, got)
}

func TestObjectBoundsOverflow(t *testing.T) {
	dev := soft.NewDevice()
	pl := newTestPool(t, dev)
	a := pl.Allocate(256)
	b := pl.Allocate(256)
	require.NoError(t, b.Upload([]byte{7, 7, 7, 7}, 0))

	assert.ErrorIs(t, a.BindRange(gpu.UniformBuffer, 0, 1, math.MaxInt), gpu.ErrOutOfBounds)
	assert.Empty(t, dev.Bindings(gpu.UniformBuffer))
	assert.NotPanics(t, func() {
		assert.ErrorIs(t, a.Clear(1, math.MaxInt), gpu.ErrOutOfBounds)
		assert.ErrorIs(t, a.Clear(math.MaxInt, 1), gpu.ErrOutOfBounds)
		assert.ErrorIs(t, a.Download(make([]byte, 4), math.MaxInt), gpu.ErrOutOfBounds)
		assert.ErrorIs(t, a.Upload(make([]byte, 4), math.MaxInt-2), gpu.ErrOutOfBounds)
		assert.ErrorIs(t, a.Copy(b, math.MaxInt, 1, 0), gpu.ErrOutOfBounds)
		_, err := a.Map(math.MaxInt, math.MaxInt)
		assert.ErrorIs(t, err, gpu.ErrOutOfBounds)
	})

	got := make([]byte, 4)
	require.NoError(t, b.Download(got, 0))
	assert.Equal(t, []byte{7, 7, 7, 7}, got)
}

func TestCheckRange(t *testing.T) {
	assert.NoError(t, gpu.CheckRange(0, 256, 256))
	assert.NoError(t, gpu.CheckRange(256, 0, 256))
	assert.ErrorIs(t, gpu.CheckRange(1, 256, 256), gpu.ErrOutOfBounds)
	assert.ErrorIs(t, gpu.CheckRange(1, math.MaxInt, 256), gpu.ErrOutOfBounds)
	assert.ErrorIs(t, gpu.CheckRange(math.MaxInt, 1, 256), gpu.ErrOutOfBounds)
	assert.ErrorIs(t, gpu.CheckRange(0, -1, 256), gpu.ErrOutOfBounds)
}

func TestObjectMapCopyClear(t *testing.T) {
	dev := soft.NewDevice()
	pl := newTestPool(t, dev)
	a := pl.Allocate(64)
	b := pl.Allocate(64)

	m, err := a.Map(8, 4)
	require.NoError(t, err)
	copy(m, []byte{1, 2, 3, 4})
	require.NoError(t, a.Flush(8, 4))
	assert.ErrorIs(t, a.Flush(250, 8), gpu.ErrOutOfBounds)
	assert.Equal(t, 1, a.Buffer().(*soft.Storage).Flushes())
	require.NoError(t, a.Unmap())

	require.NoError(t, a.Copy(b, 4, 8, 16))
	got := make([]byte, 4)
	require.NoError(t, b.Download(got, 16))
	assert.Equal(t, []byte{1, 2, 3, 4}, got)
	assert.ErrorIs(t, a.Copy(b, 8, 0, 252), gpu.ErrOutOfBounds)

	require.NoError(t, b.ClearAll())
	require.NoError(t, b.Download(got, 16))
	assert.Equal(t, []byte{0, 0, 0, 0}, got)

	require.NoError(t, a.Download(got, 8))
	assert.Equal(t, []byte{1, 2, 3, 4}, got)
}

func TestObjectInvalid(t *testing.T) {
	var ob *gpu.Object
	assert.False(t, ob.IsValid())
	assert.Nil(t, ob.Buffer())
	assert.Equal(t, "gpu.Object(invalid)", ob.String())
	assert.ErrorIs(t, ob.Upload([]byte{1}, 0), gpu.ErrInvalidObject)
	assert.ErrorIs(t, ob.Unmap(), gpu.ErrInvalidObject)
	assert.ErrorIs(t, ob.Bind(gpu.VertexBuffer, 0), gpu.ErrInvalidObject)
	ob.Free()

	dev := soft.NewDevice()
	pl := newTestPool(t, dev)
	a := pl.Allocate(10)
	assert.Equal(t, "gpu.Object(offset: 0, size: 256)", a.String())
	a.Free()
	assert.ErrorIs(t, a.Download(make([]byte, 1), 0), gpu.ErrInvalidObject)
}

func TestObjectBind(t *testing.T) {
	dev := soft.NewDevice()
	pl := newTestPool(t, dev)
	pl.Allocate(10)
	ob := pl.Allocate(300)
	require.NoError(t, ob.Bind(gpu.IndexBuffer, 1))
	bd := dev.Bindings(gpu.IndexBuffer)[1]
	assert.Equal(t, 256, bd.Offset)
	assert.Equal(t, 512, bd.Size)

	require.NoError(t, ob.BindRange(gpu.StorageBuffer, 0, 16, 32))
	bd = dev.Bindings(gpu.StorageBuffer)[0]
	assert.Equal(t, 272, bd.Offset)
	assert.Equal(t, 32, bd.Size)
	assert.ErrorIs(t, ob.BindRange(gpu.StorageBuffer, 0, 500, 32), gpu.ErrOutOfBounds)
}

func TestBytes(t *testing.T) {
	assert.Equal(t, 12, gpu.ElementSize[vertex]())
	assert.Len(t, gpu.ToBytes([]vertex{{}, {}}), 24)
	assert.Nil(t, gpu.ToBytes[float32](nil))
	assert.Equal(t, 256, gpu.MemSizeAlign(200, 256))
	assert.Equal(t, 512, gpu.MemSizeAlign(512, 256))
	assert.Equal(t, 13, gpu.MemSizeAlign(13, 0))
}
