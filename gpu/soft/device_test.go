// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package soft

import (
	"context"
	"testing"
	"time"

	"cogentcore.org/bufpool/gpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeline(t *testing.T) {
	d := NewDevice()
	assert.Equal(t, uint64(3), d.Submit(3))
	d.Complete(2)
	assert.Equal(t, uint64(2), d.Completed())
	d.Complete(1)
	assert.Equal(t, uint64(2), d.Completed())
	d.Complete(10)
	assert.Equal(t, uint64(3), d.Completed())
}

func TestWaitFence(t *testing.T) {
	d := NewDevice()
	d.Submit(1)
	f := d.InsertFence()
	assert.Equal(t, 1, d.LiveFences())
	assert.Equal(t, gpu.TimeoutExpired, d.WaitFence(f, false, 0))
	assert.Equal(t, gpu.ConditionSatisfied, d.WaitFence(f, true, time.Second))
	assert.Equal(t, gpu.AlreadySignaled, d.WaitFence(f, false, 0))
	d.ReleaseFence(f)
	assert.Equal(t, 0, d.LiveFences())
	assert.Len(t, d.WaitLog(), 3)

	assert.Equal(t, gpu.WaitFailed, d.WaitFence("not a fence", true, time.Second))
	d.SetWaitFailure(true)
	assert.Equal(t, gpu.WaitFailed, d.WaitFence(f, false, 0))
}

func TestWaitLogLimit(t *testing.T) {
	d := NewDevice()
	d.SetWaitLogLimit(3)
	for i := range 5 {
		d.WaitFence(&Fence{Serial: uint64(i)}, false, 0)
	}
	log := d.WaitLog()
	assert.Len(t, log, 3)
	assert.Equal(t, uint64(2), log[0].Serial)
	assert.Equal(t, uint64(4), log[2].Serial)
	assert.False(t, d.WaitedOn(1))
	assert.True(t, d.WaitedOn(4))

	d.SetWaitLogLimit(1)
	assert.Len(t, d.WaitLog(), 1)
	d.SetWaitLogLimit(0)
	d.WaitFence(&Fence{Serial: 9}, false, 0)
	assert.Empty(t, d.WaitLog())
	assert.False(t, d.WaitedOn(9))
}

func TestWaitStalled(t *testing.T) {
	d := NewDevice()
	d.SetStalled(true)
	d.Submit(1)
	f := d.InsertFence()
	start := time.Now()
	assert.Equal(t, gpu.TimeoutExpired, d.WaitFence(f, true, 10*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)

	go func() {
		time.Sleep(5 * time.Millisecond)
		d.CompleteAll()
	}()
	assert.Equal(t, gpu.ConditionSatisfied, d.WaitFence(f, true, time.Second))
}

func TestRun(t *testing.T) {
	d := NewDevice()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- d.Run(ctx, time.Millisecond) }()

	s := d.Submit(3)
	f := d.InsertFence()
	assert.True(t, gpu.WaitForFence(d, f, time.Second))
	assert.GreaterOrEqual(t, d.Completed(), s)
	cancel()
	assert.NoError(t, <-done)
}

func TestStorage(t *testing.T) {
	d := NewDevice()
	d.FailCreates(1)
	_, err := d.CreateStorage(&gpu.StorageDescriptor{Label: "a", Size: 64})
	assert.Error(t, err)
	_, err = d.CreateStorage(&gpu.StorageDescriptor{Label: "a", Size: 0})
	assert.ErrorIs(t, err, gpu.ErrZeroSize)

	gs, err := d.CreateStorage(&gpu.StorageDescriptor{Label: "a", Size: 64, Access: gpu.CPUToGPU})
	require.NoError(t, err)
	st := gs.(*Storage)
	assert.Equal(t, 1, d.LiveStorages())
	assert.Equal(t, 64, st.Size())

	require.NoError(t, st.Upload([]byte{1, 2, 3}, 4))
	m, err := st.Map(4, 3)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, m)
	assert.True(t, st.Mapped())
	_, err = st.Map(0, 4)
	assert.Error(t, err)
	require.NoError(t, st.Unmap())
	assert.ErrorIs(t, st.Unmap(), gpu.ErrNotMapped)
	assert.ErrorIs(t, st.Upload(make([]byte, 8), 60), gpu.ErrOutOfBounds)

	gpuOnly, err := d.CreateStorage(&gpu.StorageDescriptor{Label: "b", Size: 64, Access: gpu.GPUOnly})
	require.NoError(t, err)
	_, err = gpuOnly.Map(0, 4)
	assert.ErrorIs(t, err, gpu.ErrNotHostVisible)

	require.NoError(t, st.CopyTo(gpuOnly, 3, 4, 0))
	got := make([]byte, 3)
	require.NoError(t, gpuOnly.Download(got, 0))
	assert.Equal(t, []byte{1, 2, 3}, got)
	require.NoError(t, gpuOnly.Clear(0, 2))
	require.NoError(t, gpuOnly.Download(got, 0))
	assert.Equal(t, []byte{0, 0, 3}, got)

	require.NoError(t, st.Bind(gpu.UniformBuffer, 3, 0, 16))
	assert.Equal(t, Binding{Storage: st, Offset: 0, Size: 16}, d.Bindings(gpu.UniformBuffer)[3])

	st.Release()
	st.Release()
	assert.True(t, st.Released())
	assert.Equal(t, 1, d.LiveStorages())
	assert.ErrorIs(t, st.Upload([]byte{1}, 0), gpu.ErrReleased)
	gpuOnly.Release()
	assert.Equal(t, 0, d.LiveStorages())
}

func TestPersistentMap(t *testing.T) {
	d := NewDevice()
	gs, err := d.CreateStorage(&gpu.StorageDescriptor{Size: 32, Access: gpu.CPUToGPU, Persistent: true})
	require.NoError(t, err)
	_, err = gs.Map(0, 8)
	require.NoError(t, err)
	_, err = gs.Map(8, 8)
	require.NoError(t, err)
	require.NoError(t, gs.Flush(0, 16))
	assert.ErrorIs(t, gs.Flush(16, 32), gpu.ErrOutOfBounds)
	assert.Equal(t, 1, gs.(*Storage).Flushes())
	assert.NoError(t, gs.Unmap())
	assert.NoError(t, gs.Unmap())
	assert.ErrorIs(t, gs.Flush(0, 8), gpu.ErrNotMapped)
	gs.Release()
}
