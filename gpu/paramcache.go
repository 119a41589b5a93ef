// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"bytes"
	"fmt"
	"slices"

	"cogentcore.org/bufpool/base/errors"
	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/ristretto/v2"
)

// ParameterCacheConfig has the parameters of a [ParameterCache].
type ParameterCacheConfig struct {
	// SlotSize is the largest parameter block in bytes.
	SlotSize int

	// Slots is the number of slots in the ring.
	Slots int

	// Align is the offset alignment of slots, which is the uniform
	// buffer offset alignment of the device for uniform parameters.
	Align int
}

// Defaults sets 1024 slots of 256 bytes aligned to 256.
func (pc *ParameterCacheConfig) Defaults() {
	pc.SlotSize = 256
	pc.Slots = 1024
	pc.Align = 256
}

// ParameterCache hands out slots of one buffer for small parameter
// blocks that are rewritten every draw, such as per object uniforms.
// Slots are taken in ring order, and each slot is written only after
// the GPU work that last used it has completed: Commit locks the slots
// pushed since the previous Commit for the GPU work submitted so far.
//
// Pushing the same bytes again before the next Commit returns the slot
// already holding them.
type ParameterCache struct {
	Config ParameterCacheConfig

	alloc    Allocator
	buffer   *Object
	locks    *LockManager
	slotSize int

	// next is the next slot to write
	next int

	// batchStart and batchLen are the slots pushed since the last Commit
	batchStart int
	batchLen   int

	// seq counts slot writes; slotSeq is the seq of the last write
	// of each slot and batchSeq the seq at the last Commit.
	seq      uint64
	batchSeq uint64
	slotSeq  []uint64

	dedupe *ristretto.Cache[uint64, cachedSlot]
}

// cachedSlot is the dedupe entry for a content hash.
type cachedSlot struct {
	slot int
	seq  uint64
	data []byte
}

// NewParameterCache allocates the ring buffer from the allocator.
func NewParameterCache(alloc Allocator, sync FenceSync, cfg ParameterCacheConfig) (*ParameterCache, error) {
	if cfg.SlotSize <= 0 || cfg.Slots <= 0 {
		return nil, fmt.Errorf("gpu.NewParameterCache: %w: slot size %d, slots %d", ErrZeroSize, cfg.SlotSize, cfg.Slots)
	}
	ssz := MemSizeAlign(cfg.SlotSize, cfg.Align)
	buf := alloc.Allocate(ssz * cfg.Slots)
	if buf == nil {
		return nil, fmt.Errorf("gpu.NewParameterCache: could not allocate %d slots of %d bytes", cfg.Slots, ssz)
	}
	dd, err := ristretto.NewCache(&ristretto.Config[uint64, cachedSlot]{
		NumCounters:        int64(10 * cfg.Slots),
		MaxCost:            int64(ssz * cfg.Slots),
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		alloc.Free(buf)
		return nil, err
	}
	pc := &ParameterCache{
		Config:   cfg,
		alloc:    alloc,
		buffer:   buf,
		locks:    NewLockManager(sync),
		slotSize: ssz,
		slotSeq:  make([]uint64, cfg.Slots),
		dedupe:   dd,
	}
	return pc, nil
}

// Buffer returns the object holding the slots, for binding.
func (pc *ParameterCache) Buffer() *Object { return pc.buffer }

// SlotSize returns the aligned size of each slot in bytes.
func (pc *ParameterCache) SlotSize() int { return pc.slotSize }

// Capacity returns the number of slots.
func (pc *ParameterCache) Capacity() int { return pc.Config.Slots }

// Pending returns the number of slots pushed since the last Commit.
func (pc *ParameterCache) Pending() int { return pc.batchLen }

// LockManager returns the lock manager tracking the slots.
func (pc *ParameterCache) LockManager() *LockManager { return pc.locks }

// Push writes data to a slot and returns its byte offset in [ParameterCache.Buffer].
// It blocks while GPU work committed on that slot is still running.
// It fails if data is larger than the slot size or if all slots
// have been pushed since the last Commit.
func (pc *ParameterCache) Push(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, ErrZeroSize
	}
	if len(data) > pc.Config.SlotSize {
		return 0, errors.Warn(fmt.Errorf("gpu.ParameterCache.Push: %w: %d > slot size %d", ErrTooLarge, len(data), pc.Config.SlotSize))
	}
	h := xxhash.Sum64(data)
	if cs, ok := pc.dedupe.Get(h); ok && cs.seq > pc.batchSeq && pc.slotSeq[cs.slot] == cs.seq && bytes.Equal(cs.data, data) {
		return cs.slot * pc.slotSize, nil
	}
	if pc.batchLen == pc.Config.Slots {
		return 0, errors.Warn(fmt.Errorf("gpu.ParameterCache.Push: %w: all %d slots pushed since last Commit", ErrTooLarge, pc.Config.Slots))
	}
	slot := pc.next
	pc.locks.WaitForLockedRange(slot, 1)
	off := slot * pc.slotSize
	if err := pc.buffer.Upload(data, off); err != nil {
		return 0, err
	}
	pc.seq++
	pc.slotSeq[slot] = pc.seq
	pc.dedupe.Set(h, cachedSlot{slot: slot, seq: pc.seq, data: slices.Clone(data)}, int64(len(data)))
	pc.dedupe.Wait()
	pc.next = (pc.next + 1) % pc.Config.Slots
	pc.batchLen++
	return off, nil
}

// Commit locks the slots pushed since the last Commit for the GPU
// work submitted so far. Call it after submitting the draws that
// use those slots.
func (pc *ParameterCache) Commit() {
	if pc.batchLen == 0 {
		return
	}
	end := pc.batchStart + pc.batchLen
	if end <= pc.Config.Slots {
		pc.locks.LockRange(pc.batchStart, pc.batchLen)
	} else {
		pc.locks.LockRange(pc.batchStart, pc.Config.Slots-pc.batchStart)
		pc.locks.LockRange(0, end-pc.Config.Slots)
	}
	pc.batchStart = pc.next
	pc.batchLen = 0
	pc.batchSeq = pc.seq
}

// Reset waits for all GPU work on the slots and starts over at slot 0.
func (pc *ParameterCache) Reset() {
	pc.locks.Close()
	pc.dedupe.Clear()
	pc.next = 0
	pc.batchStart = 0
	pc.batchLen = 0
	pc.batchSeq = pc.seq
}

// Release waits for all GPU work on the slots and frees the buffer.
func (pc *ParameterCache) Release() {
	pc.locks.Close()
	pc.dedupe.Close()
	pc.alloc.Free(pc.buffer)
	pc.buffer = nil
}
