// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"log/slog"
	"time"
)

// Fence is an opaque handle to a point in the GPU command stream,
// created by [FenceSync.InsertFence].
type Fence any

// WaitStatus is the result of a [FenceSync.WaitFence] call.
type WaitStatus int32

const (
	// AlreadySignaled means the fence had been reached before the call.
	AlreadySignaled WaitStatus = iota

	// ConditionSatisfied means the fence was reached during the call.
	ConditionSatisfied

	// TimeoutExpired means the fence was not reached within the timeout.
	TimeoutExpired

	// WaitFailed means the backend could not wait on the fence.
	WaitFailed
)

var waitStatusNames = []string{"AlreadySignaled", "ConditionSatisfied", "TimeoutExpired", "WaitFailed"}

func (ws WaitStatus) String() string {
	return enumString(waitStatusNames, int(ws), "WaitStatus")
}

// Signaled returns whether the fence has been reached.
func (ws WaitStatus) Signaled() bool {
	return ws == AlreadySignaled || ws == ConditionSatisfied
}

// FenceSync is the GPU synchronization capability of a backend.
type FenceSync interface {
	// InsertFence returns a fence that is reached when all
	// GPU work submitted so far has completed. It does not block.
	InsertFence() Fence

	// WaitFence blocks for up to timeout until the fence is reached.
	// If flush is set, pending commands are flushed to the GPU first,
	// so that the fence can be reached at all. A zero timeout without
	// flush is a poll.
	WaitFence(f Fence, flush bool, timeout time.Duration) WaitStatus

	// ReleaseFence releases the backend resources of the fence.
	ReleaseFence(f Fence)
}

// DefaultWaitTimeout is the timeout of each flushing wait
// in [WaitForFence].
var DefaultWaitTimeout = time.Second

// WaitForFence blocks until the given fence is reached. It first polls
// without flushing, so that an already reached fence costs no flush,
// and then does flushing waits of the given timeout until the fence is
// reached. A [WaitFailed] result is logged as a warning and ends the
// wait, in which case false is returned.
func WaitForFence(sync FenceSync, f Fence, timeout time.Duration) bool {
	flush := false
	wait := time.Duration(0)
	for {
		st := sync.WaitFence(f, flush, wait)
		switch {
		case st.Signaled():
			return true
		case st == WaitFailed:
			slog.Warn("gpu.WaitForFence: fence wait failed, continuing without synchronization")
			return false
		}
		flush = true
		wait = timeout
	}
}
