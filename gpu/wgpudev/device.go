// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package wgpudev implements [gpu.Device] and [gpu.FenceSync]
// on a WebGPU device.
package wgpudev

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"cogentcore.org/bufpool/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// Device wraps a WebGPU device and its queue.
type Device struct {
	// Device is the WebGPU device.
	Device *wgpu.Device

	// Queue is the queue of the device.
	Queue *wgpu.Queue

	mu       sync.Mutex
	bindings map[gpu.BindTargets]map[int]wgpu.BindGroupEntry
}

// NewDevice returns a new Device for the given WebGPU device.
func NewDevice(dev *wgpu.Device) *Device {
	return &Device{
		Device:   dev,
		Queue:    dev.GetQueue(),
		bindings: make(map[gpu.BindTargets]map[int]wgpu.BindGroupEntry),
	}
}

// BufferUsages returns the WebGPU buffer usage for the given usage.
// Buffers can always be copied to and from, which is how storage is
// uploaded, downloaded and cleared.
func BufferUsages(u gpu.Usages) wgpu.BufferUsage {
	bu := wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc
	if u.HasFlag(gpu.UsageVertex) {
		bu |= wgpu.BufferUsageVertex
	}
	if u.HasFlag(gpu.UsageIndex) {
		bu |= wgpu.BufferUsageIndex
	}
	if u.HasFlag(gpu.UsageUniform) {
		bu |= wgpu.BufferUsageUniform
	}
	if u.HasFlag(gpu.UsageStorage) {
		bu |= wgpu.BufferUsageStorage
	}
	if u.HasFlag(gpu.UsageIndirect) {
		bu |= wgpu.BufferUsageIndirect
	}
	return bu
}

// CreateStorage implements [gpu.Device] with a [wgpu.Buffer].
// Host visible storage keeps a host copy that [Storage.Map] returns.
func (d *Device) CreateStorage(desc *gpu.StorageDescriptor) (gpu.Storage, error) {
	if desc.Size <= 0 {
		return nil, fmt.Errorf("wgpudev.CreateStorage %s: %w", desc.Label, gpu.ErrZeroSize)
	}
	buf, err := d.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Size:             uint64(desc.Size),
		Label:            desc.Label,
		Usage:            BufferUsages(desc.Usage),
		MappedAtCreation: false,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpudev.CreateStorage %s: %w", desc.Label, err)
	}
	st := &Storage{dev: d, desc: *desc, buffer: buf}
	if desc.Access.HostVisible() {
		st.host = make([]byte, desc.Size)
	}
	return st, nil
}

// Fence is signaled when the queue work submitted before it is done.
type Fence struct {
	done atomic.Bool
}

// InsertFence implements [gpu.FenceSync].
func (d *Device) InsertFence() gpu.Fence {
	f := &Fence{}
	d.Queue.OnSubmittedWorkDone(func(status wgpu.QueueWorkDoneStatus) {
		f.done.Store(true)
	})
	return f
}

// ReleaseFence implements [gpu.FenceSync].
func (d *Device) ReleaseFence(f gpu.Fence) {}

// WaitFence implements [gpu.FenceSync]. Without flush it only
// processes callbacks that are ready. With flush it blocks on the
// device until the queue is empty, polling until the timeout.
func (d *Device) WaitFence(f gpu.Fence, flush bool, timeout time.Duration) gpu.WaitStatus {
	fe, ok := f.(*Fence)
	if !ok || fe == nil {
		return gpu.WaitFailed
	}
	if fe.done.Load() {
		return gpu.AlreadySignaled
	}
	d.Device.Poll(false, nil)
	if fe.done.Load() {
		return gpu.ConditionSatisfied
	}
	if !flush || timeout <= 0 {
		return gpu.TimeoutExpired
	}
	deadline := time.Now().Add(timeout)
	for {
		d.Device.Poll(true, nil)
		if fe.done.Load() {
			return gpu.ConditionSatisfied
		}
		if time.Now().After(deadline) {
			return gpu.TimeoutExpired
		}
		time.Sleep(time.Millisecond)
	}
}

// WaitDone blocks until all submitted work is done.
func (d *Device) WaitDone() {
	d.Device.Poll(true, nil)
}

// BindGroupEntries returns the entries bound with [Storage.Bind]
// for the given target, in location order, for creating a bind group.
func (d *Device) BindGroupEntries(target gpu.BindTargets) []wgpu.BindGroupEntry {
	d.mu.Lock()
	defer d.mu.Unlock()
	m := d.bindings[target]
	n := 0
	for loc := range m {
		n = max(n, loc+1)
	}
	var ents []wgpu.BindGroupEntry
	for loc := range n {
		if e, ok := m[loc]; ok {
			ents = append(ents, e)
		}
	}
	return ents
}

func (d *Device) bind(target gpu.BindTargets, location int, e wgpu.BindGroupEntry) {
	d.mu.Lock()
	defer d.mu.Unlock()
	m := d.bindings[target]
	if m == nil {
		m = make(map[int]wgpu.BindGroupEntry)
		d.bindings[target] = m
	}
	m[location] = e
}

// submit finishes the encoder and submits it to the queue.
func (d *Device) submit(enc *wgpu.CommandEncoder) error {
	cmd, err := enc.Finish(nil)
	if err != nil {
		enc.Release()
		return err
	}
	d.Queue.Submit(cmd)
	cmd.Release()
	enc.Release()
	return nil
}
