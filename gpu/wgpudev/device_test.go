// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wgpudev

import (
	"testing"

	"cogentcore.org/bufpool/gpu"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
)

func TestBufferUsages(t *testing.T) {
	copyUse := wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc
	assert.Equal(t, copyUse, BufferUsages(gpu.UsageGeneral))
	assert.Equal(t, copyUse|wgpu.BufferUsageVertex|wgpu.BufferUsageIndex, BufferUsages(gpu.UsageVertex|gpu.UsageIndex))
	assert.Equal(t, copyUse|wgpu.BufferUsageUniform, BufferUsages(gpu.UsageUniform))
	assert.Equal(t, copyUse|wgpu.BufferUsageStorage|wgpu.BufferUsageIndirect, BufferUsages(gpu.UsageStorage|gpu.UsageIndirect))
}

func TestAlignRange(t *testing.T) {
	lo, hi, err := AlignRange(8, 4, CopyAlignment, 16)
	assert.NoError(t, err)
	assert.Equal(t, [2]int{8, 12}, [2]int{lo, hi})

	lo, hi, err = AlignRange(9, 10, CopyAlignment, 256)
	assert.NoError(t, err)
	assert.Equal(t, [2]int{8, 20}, [2]int{lo, hi})

	lo, hi, err = AlignRange(0, 0, CopyAlignment, 256)
	assert.NoError(t, err)
	assert.Equal(t, [2]int{0, 0}, [2]int{lo, hi})

	_, _, err = AlignRange(8, 2, CopyAlignment, 10)
	assert.ErrorIs(t, err, gpu.ErrMisaligned)
}

func TestPoolOnDevice(t *testing.T) {
	t.Skip("Need software GPU on CI")
	inst := wgpu.CreateInstance(nil)
	adapter, err := inst.RequestAdapter(nil)
	assert.NoError(t, err)
	wd, err := adapter.RequestDevice(nil)
	assert.NoError(t, err)
	dev := NewDevice(wd)

	var pc gpu.PoolConfig
	pc.Defaults()
	pl, err := gpu.NewPool(dev, dev, pc)
	assert.NoError(t, err)
	ob := pl.Allocate(100)
	assert.NotNil(t, ob)
	data := []byte("hello gpu")
	assert.NoError(t, ob.Upload(data, 0))
	got := make([]byte, len(data))
	assert.NoError(t, ob.Download(got, 0))
	assert.Equal(t, data, got)

	m, err := ob.Map(16, 10)
	assert.NoError(t, err)
	copy(m, "persistent")
	assert.NoError(t, ob.Flush(16, 10))
	got = make([]byte, 10)
	assert.NoError(t, ob.Download(got, 16))
	assert.Equal(t, "persistent", string(got))

	f := dev.InsertFence()
	assert.True(t, gpu.WaitForFence(dev, f, gpu.DefaultWaitTimeout))
	pl.Free(ob)
	pl.Release()
}
