// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import "time"

// bufferRange is a half open range [start, start+length).
type bufferRange struct {
	start  int
	length int
}

func (br bufferRange) overlaps(o bufferRange) bool {
	return br.start < o.start+o.length && o.start < br.start+br.length
}

// bufferLock is a range that GPU work issued before its fence uses.
type bufferLock struct {
	rng   bufferRange
	fence Fence
}

// LockManager keeps track of ranges of a buffer that are in use
// by GPU work, so that the CPU does not write or read them until
// that work has completed. Ranges are in whatever units the owner
// uses consistently (bytes, elements or slots).
//
// The number of outstanding locks is bounded by the multi buffering
// depth of the owner, so lookups are a linear scan.
// A LockManager is not safe for concurrent use.
type LockManager struct {
	// WaitTimeout is the timeout of each flushing fence wait.
	WaitTimeout time.Duration

	sync  FenceSync
	locks []bufferLock
}

// NewLockManager returns a new LockManager using the given fences.
// A nil sync gives a LockManager that never locks, for memory
// that the GPU does not access asynchronously.
func NewLockManager(sync FenceSync) *LockManager {
	return &LockManager{WaitTimeout: DefaultWaitTimeout, sync: sync}
}

// Sync returns the fence sync of the manager.
func (lm *LockManager) Sync() FenceSync {
	return lm.sync
}

// Len returns the number of outstanding locks.
func (lm *LockManager) Len() int {
	return len(lm.locks)
}

// LockRange records that all GPU work submitted so far may use the
// given range. It does not block.
func (lm *LockManager) LockRange(start, length int) {
	if length == 0 || lm.sync == nil {
		return
	}
	f := lm.sync.InsertFence()
	lm.locks = append(lm.locks, bufferLock{rng: bufferRange{start, length}, fence: f})
}

// WaitForLockedRange blocks until all GPU work locked on ranges
// overlapping the given range has completed, and discards those locks.
// Locks on other ranges are kept.
func (lm *LockManager) WaitForLockedRange(start, length int) {
	if length == 0 || len(lm.locks) == 0 {
		return
	}
	rng := bufferRange{start, length}
	keep := lm.locks[:0]
	for _, lk := range lm.locks {
		if !lk.rng.overlaps(rng) {
			keep = append(keep, lk)
			continue
		}
		lm.wait(lk)
	}
	clear(lm.locks[len(keep):])
	lm.locks = keep
}

// Close waits for and discards all outstanding locks.
// The LockManager can still be used afterwards.
func (lm *LockManager) Close() {
	for _, lk := range lm.locks {
		lm.wait(lk)
	}
	lm.locks = nil
}

func (lm *LockManager) wait(lk bufferLock) {
	WaitForFence(lm.sync, lk.fence, lm.WaitTimeout)
	lm.sync.ReleaseFence(lk.fence)
}
