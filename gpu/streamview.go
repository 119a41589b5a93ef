// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"fmt"

	"cogentcore.org/bufpool/base/errors"
)

// StreamView is a typed, multi buffered stream of ElementCount
// elements of type E, for data that is rewritten every frame,
// such as dynamic vertices. Its generations are contiguous regions
// of Stride bytes starting at a base offset of one buffer, and
// Offset always points at the current generation, so it can be
// bound directly. Locks are tracked in bytes of the buffer.
type StreamView[E any] struct {
	buffer *Object
	locks  *LockManager

	baseOffset int
	offset     int
	stride     int

	elementSize      int
	elementCount     int
	multiBufferCount int
	head             int

	owned bool
}

// NewStreamView allocates one buffer holding multi generations of
// count elements from the allocator, and returns a stream view of it
// that frees the buffer on Release.
func NewStreamView[E any](alloc Allocator, sync FenceSync, count, multi int) (*StreamView[E], error) {
	esz := ElementSize[E]()
	size := count * esz * multi
	if count <= 0 || multi <= 0 || esz <= 0 {
		return nil, fmt.Errorf("gpu.NewStreamView: %w: count %d, element size %d, multi %d", ErrZeroSize, count, esz, multi)
	}
	buf := alloc.Allocate(size)
	if buf == nil {
		return nil, fmt.Errorf("gpu.NewStreamView: could not allocate %d bytes", size)
	}
	sv, err := NewStreamViewOf[E](buf, sync, 0, count, multi)
	if err != nil {
		alloc.Free(buf)
		return nil, err
	}
	sv.owned = true
	return sv, nil
}

// NewStreamViewOf returns a stream view of multi generations of count
// elements in the given object, starting at baseOffset.
func NewStreamViewOf[E any](buf *Object, sync FenceSync, baseOffset, count, multi int) (*StreamView[E], error) {
	if !buf.IsValid() {
		return nil, fmt.Errorf("gpu.NewStreamViewOf: %w", ErrInvalidObject)
	}
	esz := ElementSize[E]()
	if count <= 0 || multi <= 0 || esz <= 0 {
		return nil, fmt.Errorf("gpu.NewStreamViewOf: %w: count %d, element size %d, multi %d", ErrZeroSize, count, esz, multi)
	}
	if err := checkRuns(0, esz, count, buf.Size()); err != nil {
		return nil, fmt.Errorf("gpu.NewStreamViewOf: %w", err)
	}
	stride := count * esz
	if err := checkRuns(baseOffset, stride, multi, buf.Size()); err != nil {
		return nil, fmt.Errorf("gpu.NewStreamViewOf: base %d: %w", baseOffset, err)
	}
	sv := &StreamView[E]{
		buffer:           buf,
		locks:            NewLockManager(sync),
		baseOffset:       baseOffset,
		offset:           baseOffset,
		stride:           stride,
		elementSize:      esz,
		elementCount:     count,
		multiBufferCount: multi,
	}
	return sv, nil
}

// Buffer returns the object holding the generations.
func (sv *StreamView[E]) Buffer() *Object { return sv.buffer }

// LockManager returns the lock manager of the view.
func (sv *StreamView[E]) LockManager() *LockManager { return sv.locks }

// Offset returns the byte offset of the current generation in the buffer.
func (sv *StreamView[E]) Offset() int { return sv.offset }

// Stride returns the size of one generation in bytes.
func (sv *StreamView[E]) Stride() int { return sv.stride }

// ElementCount returns the number of elements in each generation.
func (sv *StreamView[E]) ElementCount() int { return sv.elementCount }

// MultiBufferCount returns the number of generations.
func (sv *StreamView[E]) MultiBufferCount() int { return sv.multiBufferCount }

// Head returns the index of the current generation.
func (sv *StreamView[E]) Head() int { return sv.head }

func (sv *StreamView[E]) checkRange(op string, index, n int) error {
	if index < 0 || n < 0 || n > sv.elementCount || index > sv.elementCount-n {
		return errors.Warn(fmt.Errorf("gpu.StreamView.%s: %w: index %d + %d > %d", op, ErrOutOfBounds, index, n, sv.elementCount))
	}
	return nil
}

// SetValues writes values into the current generation at the
// given element index, once the GPU is done with those bytes.
func (sv *StreamView[E]) SetValues(index int, values []E) error {
	if len(values) == 0 {
		return nil
	}
	if err := sv.checkRange("SetValues", index, len(values)); err != nil {
		return err
	}
	b := ToBytes(values)
	off := sv.offset + index*sv.elementSize
	sv.locks.WaitForLockedRange(off, len(b))
	return sv.buffer.Upload(b, off)
}

// GetValues reads len(dst) elements of the current generation at
// the given element index, once the GPU is done with those bytes.
func (sv *StreamView[E]) GetValues(index int, dst []E) error {
	if len(dst) == 0 {
		return nil
	}
	if err := sv.checkRange("GetValues", index, len(dst)); err != nil {
		return err
	}
	b := ToBytes(dst)
	off := sv.offset + index*sv.elementSize
	sv.locks.WaitForLockedRange(off, len(b))
	return sv.buffer.Download(b, off)
}

// Swap locks the current generation for the GPU work submitted so
// far and moves Offset to the next generation.
func (sv *StreamView[E]) Swap() {
	sv.locks.LockRange(sv.offset, sv.stride)
	sv.head = (sv.head + 1) % sv.multiBufferCount
	sv.offset = sv.baseOffset + sv.head*sv.stride
}

// Bind binds the current generation to the binding point at location.
func (sv *StreamView[E]) Bind(target BindTargets, location int) error {
	return sv.buffer.BindRange(target, location, sv.offset, sv.stride)
}

// Release waits for all GPU work on the view, and frees the
// buffer if the view allocated it.
func (sv *StreamView[E]) Release() {
	sv.locks.Close()
	if sv.owned {
		sv.buffer.Free()
	}
	sv.buffer = nil
}
