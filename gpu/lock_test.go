// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu_test

import (
	"testing"
	"time"

	"cogentcore.org/bufpool/gpu"
	"cogentcore.org/bufpool/gpu/soft"
	"github.com/stretchr/testify/assert"
)

func TestLockManagerOverlap(t *testing.T) {
	dev := soft.NewDevice()
	lm := gpu.NewLockManager(dev)
	serial := dev.Submit(1)
	lm.LockRange(10, 5)
	assert.Equal(t, 1, lm.Len())

	lm.WaitForLockedRange(12, 2)
	assert.True(t, dev.WaitedOn(serial))
	assert.Equal(t, serial, dev.Completed())
	assert.Equal(t, 0, lm.Len())
	assert.Equal(t, 0, dev.LiveFences())

	dev.ResetWaitLog()
	lm.WaitForLockedRange(12, 2)
	assert.Empty(t, dev.WaitLog())
}

func TestLockManagerNoOverlap(t *testing.T) {
	dev := soft.NewDevice()
	lm := gpu.NewLockManager(dev)
	dev.Submit(1)
	lm.LockRange(10, 5)

	lm.WaitForLockedRange(0, 10)
	lm.WaitForLockedRange(15, 3)
	lm.WaitForLockedRange(11, 0)
	assert.Empty(t, dev.WaitLog())
	assert.Equal(t, 1, lm.Len())

	lm.WaitForLockedRange(14, 1)
	assert.Len(t, dev.WaitLog(), 2)
	assert.Equal(t, 0, lm.Len())
}

func TestLockManagerKeepsOthers(t *testing.T) {
	dev := soft.NewDevice()
	lm := gpu.NewLockManager(dev)
	s1 := dev.Submit(1)
	lm.LockRange(0, 4)
	s2 := dev.Submit(1)
	lm.LockRange(4, 4)
	s3 := dev.Submit(1)
	lm.LockRange(2, 4)

	lm.WaitForLockedRange(0, 1)
	assert.True(t, dev.WaitedOn(s1))
	assert.False(t, dev.WaitedOn(s2))
	assert.False(t, dev.WaitedOn(s3))
	assert.Equal(t, 2, lm.Len())

	lm.Close()
	assert.Equal(t, 0, lm.Len())
	assert.Equal(t, s3, dev.Completed())
	assert.Equal(t, 0, dev.LiveFences())
}

func TestLockManagerPollFirst(t *testing.T) {
	dev := soft.NewDevice()
	lm := gpu.NewLockManager(dev)
	s := dev.Submit(1)
	lm.LockRange(0, 8)
	dev.CompleteAll()

	lm.WaitForLockedRange(0, 8)
	log := dev.WaitLog()
	if assert.Len(t, log, 1) {
		assert.Equal(t, s, log[0].Serial)
		assert.False(t, log[0].Flush)
		assert.Equal(t, time.Duration(0), log[0].Timeout)
		assert.Equal(t, gpu.AlreadySignaled, log[0].Status)
	}
}

func TestLockManagerBlocks(t *testing.T) {
	dev := soft.NewDevice()
	dev.SetStalled(true)
	lm := gpu.NewLockManager(dev)
	lm.WaitTimeout = 5 * time.Millisecond
	s := dev.Submit(1)
	lm.LockRange(0, 8)

	go func() {
		time.Sleep(30 * time.Millisecond)
		dev.Complete(s)
	}()
	lm.WaitForLockedRange(4, 8)
	assert.Equal(t, s, dev.Completed())

	log := dev.WaitLog()
	assert.GreaterOrEqual(t, len(log), 2)
	assert.Equal(t, gpu.TimeoutExpired, log[0].Status)
	for _, w := range log[1:] {
		assert.True(t, w.Flush)
		assert.Equal(t, 5*time.Millisecond, w.Timeout)
	}
	assert.True(t, log[len(log)-1].Status.Signaled())
}

func TestLockManagerWaitFailed(t *testing.T) {
	dev := soft.NewDevice()
	dev.SetWaitFailure(true)
	lm := gpu.NewLockManager(dev)
	dev.Submit(1)
	lm.LockRange(0, 8)
	lm.WaitForLockedRange(0, 8)
	assert.Equal(t, 0, lm.Len())
	assert.Len(t, dev.WaitLog(), 1)
	assert.Equal(t, gpu.WaitFailed, dev.WaitLog()[0].Status)
	assert.Equal(t, uint64(0), dev.Completed())
}

func TestLockManagerNoSync(t *testing.T) {
	lm := gpu.NewLockManager(nil)
	lm.LockRange(0, 8)
	assert.Equal(t, 0, lm.Len())
	lm.WaitForLockedRange(0, 8)
	lm.Close()
}

func TestLockManagerZeroLength(t *testing.T) {
	dev := soft.NewDevice()
	lm := gpu.NewLockManager(dev)
	lm.LockRange(3, 0)
	assert.Equal(t, 0, lm.Len())
	assert.Equal(t, 0, dev.LiveFences())
}

func TestWaitStatus(t *testing.T) {
	assert.True(t, gpu.AlreadySignaled.Signaled())
	assert.True(t, gpu.ConditionSatisfied.Signaled())
	assert.False(t, gpu.TimeoutExpired.Signaled())
	assert.False(t, gpu.WaitFailed.Signaled())
	assert.Equal(t, "TimeoutExpired", gpu.TimeoutExpired.String())
}
