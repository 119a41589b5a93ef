// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"fmt"

	"cogentcore.org/bufpool/base/errors"
)

// View is a typed view of ElementCount elements of type E in an
// [Object], multi buffered over MultiBufferCount generations so that
// the CPU can write one generation while the GPU still reads others.
//
// Generation g holds elements [g*ElementCount, (g+1)*ElementCount)
// after the view offset. SetValues and GetValues address the current
// generation and first wait for any GPU work locked on the addressed
// elements; Swap locks the current generation for the GPU work issued
// so far and moves on to the next one.
type View[E any] struct {
	buffer *Object
	locks  *LockManager

	// offset of the first generation in the object, in bytes
	offset int

	elementSize      int
	elementCount     int
	multiBufferCount int
	head             int

	// owned is whether Release frees the buffer
	owned bool
}

// NewView returns a view of count elements with multi generations
// starting at the given byte offset of the object, using sync to
// track GPU use. It returns an error if the object is invalid or
// the view does not fit in it.
func NewView[E any](buf *Object, sync FenceSync, offset, count, multi int) (*View[E], error) {
	vw := &View[E]{
		buffer:           buf,
		locks:            NewLockManager(sync),
		offset:           offset,
		elementSize:      ElementSize[E](),
		elementCount:     count,
		multiBufferCount: multi,
	}
	if err := vw.validate(); err != nil {
		return nil, err
	}
	return vw, nil
}

// AllocView allocates a buffer for count elements with multi
// generations from the allocator and returns a view of it,
// which frees the buffer on Release.
func AllocView[E any](alloc Allocator, sync FenceSync, count, multi int) (*View[E], error) {
	size := count * ElementSize[E]() * multi
	if size <= 0 {
		return nil, fmt.Errorf("gpu.AllocView: %w: count %d, multi %d", ErrZeroSize, count, multi)
	}
	buf := alloc.Allocate(size)
	if buf == nil {
		return nil, fmt.Errorf("gpu.AllocView: could not allocate %d bytes", size)
	}
	vw, err := NewView[E](buf, sync, 0, count, multi)
	if err != nil {
		alloc.Free(buf)
		return nil, err
	}
	vw.owned = true
	return vw, nil
}

func (vw *View[E]) validate() error {
	switch {
	case !vw.buffer.IsValid():
		return fmt.Errorf("gpu.View: %w", ErrInvalidObject)
	case vw.elementCount <= 0 || vw.elementSize <= 0 || vw.multiBufferCount <= 0:
		return fmt.Errorf("gpu.View: %w: count %d, element size %d, multi %d", ErrZeroSize, vw.elementCount, vw.elementSize, vw.multiBufferCount)
	}
	total := vw.buffer.Size()
	if err := checkRuns(0, vw.elementSize, vw.elementCount, total); err != nil {
		return fmt.Errorf("gpu.View: %w", err)
	}
	if err := checkRuns(vw.offset, vw.generationSize(), vw.multiBufferCount, total); err != nil {
		return fmt.Errorf("gpu.View: offset %d: %w", vw.offset, err)
	}
	return nil
}

// IsValid returns whether the view can be used.
func (vw *View[E]) IsValid() bool {
	return vw != nil && vw.validate() == nil
}

// Buffer returns the object the view is in.
func (vw *View[E]) Buffer() *Object { return vw.buffer }

// LockManager returns the lock manager of the view.
func (vw *View[E]) LockManager() *LockManager { return vw.locks }

// ElementSize returns the size of one element in bytes.
func (vw *View[E]) ElementSize() int { return vw.elementSize }

// ElementCount returns the number of elements in each generation.
func (vw *View[E]) ElementCount() int { return vw.elementCount }

// MultiBufferCount returns the number of generations.
func (vw *View[E]) MultiBufferCount() int { return vw.multiBufferCount }

// Head returns the index of the current generation.
func (vw *View[E]) Head() int { return vw.head }

func (vw *View[E]) generationSize() int {
	return vw.elementCount * vw.elementSize
}

// GenerationOffset returns the byte offset of the current
// generation in the object.
func (vw *View[E]) GenerationOffset() int {
	return vw.offset + vw.head*vw.generationSize()
}

// checkRange validates n elements at index in a generation.
func (vw *View[E]) checkRange(op string, index, n int) error {
	if index < 0 || n < 0 || n > vw.elementCount || index > vw.elementCount-n {
		return errors.Warn(fmt.Errorf("gpu.View.%s: %w: index %d + %d > %d", op, ErrOutOfBounds, index, n, vw.elementCount))
	}
	return nil
}

// waitFor waits for GPU work on n elements at index
// in the current generation, returning their byte offset.
func (vw *View[E]) waitFor(index, n int) int {
	el := vw.head*vw.elementCount + index
	vw.locks.WaitForLockedRange(el, n)
	return vw.offset + el*vw.elementSize
}

// SetValues copies values into the current generation starting
// at the given element index.
func (vw *View[E]) SetValues(index int, values []E) error {
	if len(values) == 0 {
		return nil
	}
	if err := vw.checkRange("SetValues", index, len(values)); err != nil {
		return err
	}
	off := vw.waitFor(index, len(values))
	return vw.buffer.Upload(ToBytes(values), off)
}

// GetValues copies len(dst) elements of the current generation
// starting at the given element index into dst.
func (vw *View[E]) GetValues(index int, dst []E) error {
	if len(dst) == 0 {
		return nil
	}
	if err := vw.checkRange("GetValues", index, len(dst)); err != nil {
		return err
	}
	off := vw.waitFor(index, len(dst))
	return vw.buffer.Download(ToBytes(dst), off)
}

// Swap locks the current generation for the GPU work submitted
// so far, and makes the next generation current.
func (vw *View[E]) Swap() {
	vw.locks.LockRange(vw.head*vw.elementCount, vw.elementCount)
	vw.head = (vw.head + 1) % vw.multiBufferCount
}

// Bind binds the current generation to the binding point at location.
func (vw *View[E]) Bind(target BindTargets, location int) error {
	return vw.buffer.BindRange(target, location, vw.GenerationOffset(), vw.generationSize())
}

// Release waits for all GPU work on the view, and frees the
// buffer if the view allocated it.
func (vw *View[E]) Release() {
	vw.locks.Close()
	if vw.owned {
		vw.buffer.Free()
	}
	vw.buffer = nil
}
