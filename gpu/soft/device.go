// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package soft provides a software [gpu.Device] and [gpu.FenceSync]
// with host memory storage and a simulated GPU timeline, for testing
// and for running without a graphics driver.
//
// Work is added to the timeline with [Device.Submit] and retired with
// [Device.Complete], [Device.CompleteAll] or in the background by
// [Device.Run]. When nothing runs the timeline in the background, a
// flushing fence wait retires the work up to the fence, as a
// synchronous GPU would.
package soft

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cogentcore.org/bufpool/gpu"
	"github.com/eapache/queue"
)

// DefaultWaitLogLimit is the default number of fence waits
// that a [Device] keeps in its wait log.
const DefaultWaitLogLimit = 1024

// Device is a software graphics device. It is safe for concurrent use,
// but the storages it creates are not.
type Device struct {
	mu sync.Mutex

	// changed is closed and replaced whenever completed advances
	changed chan struct{}

	submitted uint64
	completed uint64

	running   bool
	stalled   bool
	failWaits bool

	createFailures int
	liveStorages   int
	liveFences     int

	// waits is the wait log, holding the most recent
	// waitLimit WaitRecords
	waits     *queue.Queue
	waitLimit int

	bindings map[gpu.BindTargets]map[int]Binding
}

// Fence is a point on the timeline of a [Device].
type Fence struct {
	// Serial is the submission the fence waits for.
	Serial uint64
}

// WaitRecord is one call to [Device.WaitFence].
type WaitRecord struct {
	Serial  uint64
	Flush   bool
	Timeout time.Duration
	Status  gpu.WaitStatus
}

// Binding is a storage range bound with [Storage.Bind].
type Binding struct {
	Storage *Storage
	Offset  int
	Size    int
}

// NewDevice returns a new software device.
func NewDevice() *Device {
	return &Device{
		changed:   make(chan struct{}),
		waits:     queue.New(),
		waitLimit: DefaultWaitLogLimit,
		bindings:  make(map[gpu.BindTargets]map[int]Binding),
	}
}

// Submit adds n units of GPU work to the timeline and
// returns the serial of the last one.
func (d *Device) Submit(n int) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.submitted += uint64(n)
	return d.submitted
}

// Submitted returns the serial of the last submitted work.
func (d *Device) Submitted() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.submitted
}

// Completed returns the serial of the last completed work.
func (d *Device) Completed() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.completed
}

// Complete retires the work up to the given serial.
func (d *Device) Complete(serial uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.completeLocked(serial)
}

// CompleteAll retires all submitted work.
func (d *Device) CompleteAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.completeLocked(d.submitted)
}

func (d *Device) completeLocked(serial uint64) {
	serial = min(serial, d.submitted)
	if serial <= d.completed {
		return
	}
	d.completed = serial
	close(d.changed)
	d.changed = make(chan struct{})
}

// Run retires one unit of work every interval until the context
// is done. While it runs, flushing waits no longer retire work.
func (d *Device) Run(ctx context.Context, interval time.Duration) error {
	d.mu.Lock()
	d.running = true
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.running = false
		d.mu.Unlock()
	}()
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
			d.mu.Lock()
			if d.completed < d.submitted && !d.stalled {
				d.completeLocked(d.completed + 1)
			}
			d.mu.Unlock()
		}
	}
}

// SetStalled sets whether the timeline is stalled, so that
// no work is retired until it is unstalled.
func (d *Device) SetStalled(stalled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stalled = stalled
}

// SetWaitFailure sets whether fence waits fail.
func (d *Device) SetWaitFailure(fail bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failWaits = fail
}

// FailCreates makes the next n CreateStorage calls fail.
func (d *Device) FailCreates(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.createFailures = n
}

// LiveStorages returns the number of storages not yet released.
func (d *Device) LiveStorages() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.liveStorages
}

// LiveFences returns the number of fences not yet released.
func (d *Device) LiveFences() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.liveFences
}

// CreateStorage implements [gpu.Device].
func (d *Device) CreateStorage(desc *gpu.StorageDescriptor) (gpu.Storage, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.createFailures > 0 {
		d.createFailures--
		return nil, fmt.Errorf("soft.Device.CreateStorage %s: out of device memory", desc.Label)
	}
	if desc.Size <= 0 {
		return nil, fmt.Errorf("soft.Device.CreateStorage %s: %w", desc.Label, gpu.ErrZeroSize)
	}
	mem, err := allocMemory(desc.Size)
	if err != nil {
		return nil, fmt.Errorf("soft.Device.CreateStorage %s: %w", desc.Label, err)
	}
	d.liveStorages++
	return &Storage{dev: d, desc: *desc, mem: mem}, nil
}

// InsertFence implements [gpu.FenceSync].
func (d *Device) InsertFence() gpu.Fence {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.liveFences++
	return &Fence{Serial: d.submitted}
}

// ReleaseFence implements [gpu.FenceSync].
func (d *Device) ReleaseFence(f gpu.Fence) {
	if _, ok := f.(*Fence); !ok {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.liveFences--
}

// WaitFence implements [gpu.FenceSync].
func (d *Device) WaitFence(f gpu.Fence, flush bool, timeout time.Duration) gpu.WaitStatus {
	fe, ok := f.(*Fence)
	serial := uint64(0)
	if ok {
		serial = fe.Serial
	}
	st := gpu.WaitFailed
	if ok {
		st = d.wait(serial, flush, timeout)
	}
	d.mu.Lock()
	if d.waitLimit > 0 {
		for d.waits.Length() >= d.waitLimit {
			d.waits.Remove()
		}
		d.waits.Add(WaitRecord{Serial: serial, Flush: flush, Timeout: timeout, Status: st})
	}
	d.mu.Unlock()
	return st
}

func (d *Device) wait(serial uint64, flush bool, timeout time.Duration) gpu.WaitStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failWaits {
		return gpu.WaitFailed
	}
	if d.completed >= serial {
		return gpu.AlreadySignaled
	}
	if flush && !d.running && !d.stalled {
		d.completeLocked(serial)
		return gpu.ConditionSatisfied
	}
	if timeout <= 0 {
		return gpu.TimeoutExpired
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for d.completed < serial {
		ch := d.changed
		d.mu.Unlock()
		select {
		case <-ch:
			d.mu.Lock()
		case <-timer.C:
			d.mu.Lock()
			if d.completed >= serial {
				return gpu.ConditionSatisfied
			}
			return gpu.TimeoutExpired
		}
	}
	return gpu.ConditionSatisfied
}

// SetWaitLogLimit sets the number of most recent fence waits kept
// in the wait log, dropping older ones. A limit of 0 turns the log off.
func (d *Device) SetWaitLogLimit(limit int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.waitLimit = max(limit, 0)
	for d.waits.Length() > d.waitLimit {
		d.waits.Remove()
	}
}

// WaitLog returns a copy of the recorded fence waits, oldest first.
func (d *Device) WaitLog() []WaitRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	var log []WaitRecord
	for i := range d.waits.Length() {
		log = append(log, d.waits.Get(i).(WaitRecord))
	}
	return log
}

// ResetWaitLog clears the record of fence waits.
func (d *Device) ResetWaitLog() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for d.waits.Length() > 0 {
		d.waits.Remove()
	}
}

// WaitedOn returns whether any fence wait was done on the given fence serial.
func (d *Device) WaitedOn(serial uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.waits.Length() {
		if d.waits.Get(i).(WaitRecord).Serial == serial {
			return true
		}
	}
	return false
}

// Bindings returns the current bindings of the given target, by location.
func (d *Device) Bindings(target gpu.BindTargets) map[int]Binding {
	d.mu.Lock()
	defer d.mu.Unlock()
	res := make(map[int]Binding, len(d.bindings[target]))
	for loc, b := range d.bindings[target] {
		res[loc] = b
	}
	return res
}

func (d *Device) bind(target gpu.BindTargets, location int, b Binding) {
	d.mu.Lock()
	defer d.mu.Unlock()
	m := d.bindings[target]
	if m == nil {
		m = make(map[int]Binding)
		d.bindings[target] = m
	}
	m[location] = b
}

func (d *Device) released() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.liveStorages--
}
