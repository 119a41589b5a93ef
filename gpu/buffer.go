// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"fmt"

	"cogentcore.org/bufpool/base/errors"
)

// Allocator hands out [Object] sub-ranges of GPU storage.
type Allocator interface {
	// Allocate returns an Object of at least size bytes,
	// or nil if size is 0 or the request cannot be served.
	Allocate(size int) *Object

	// Free returns the object to the allocator. It does nothing
	// for nil, invalid or foreign objects.
	Free(ob *Object)
}

// Object is a handle to a sub-range of a [Storage], as handed out
// by an [Allocator]. The storage is shared with the other objects
// allocated from the same page, so every operation is bounds checked
// against the range of the object, not the whole storage.
//
// An Object is valid until it is freed. Operations on an invalid
// object or out of range accesses log a warning and return an
// error without touching any data.
type Object struct {
	storage Storage
	offset  int
	size    int
	alloc   Allocator
}

// NewObject returns an object for the given range of the storage.
// alloc is the allocator it is returned to, and can be nil for
// objects that are not pooled.
func NewObject(st Storage, offset, size int, alloc Allocator) *Object {
	return &Object{storage: st, offset: offset, size: size, alloc: alloc}
}

// IsValid returns whether the object refers to storage.
func (ob *Object) IsValid() bool {
	return ob != nil && ob.storage != nil
}

// Buffer returns the storage the object is a range of.
func (ob *Object) Buffer() Storage {
	if ob == nil {
		return nil
	}
	return ob.storage
}

// Offset returns the byte offset of the object in its storage.
func (ob *Object) Offset() int { return ob.offset }

// Size returns the size of the object in bytes.
func (ob *Object) Size() int { return ob.size }

// Allocator returns the allocator that owns the object.
func (ob *Object) Allocator() Allocator { return ob.alloc }

func (ob *Object) String() string {
	if !ob.IsValid() {
		return "gpu.Object(invalid)"
	}
	return fmt.Sprintf("gpu.Object(offset: %d, size: %d)", ob.offset, ob.size)
}

// check validates an access of size bytes at offset within the object.
func (ob *Object) check(op string, offset, size int) error {
	if !ob.IsValid() {
		return errors.Warn(fmt.Errorf("gpu.Object.%s: %w", op, ErrInvalidObject), "offset", offset, "size", size)
	}
	if err := CheckRange(offset, size, ob.size); err != nil {
		return errors.Warn(fmt.Errorf("gpu.Object.%s: %w", op, err), "objectSize", ob.size)
	}
	return nil
}

// Upload copies data into the object at the given byte offset.
func (ob *Object) Upload(data []byte, offset int) error {
	if err := ob.check("Upload", offset, len(data)); err != nil {
		return err
	}
	return ob.storage.Upload(data, ob.offset+offset)
}

// Download copies from the object at the given byte offset into dst.
func (ob *Object) Download(dst []byte, offset int) error {
	if err := ob.check("Download", offset, len(dst)); err != nil {
		return err
	}
	return ob.storage.Download(dst, ob.offset+offset)
}

// Map maps the given range of the object into CPU memory.
// Call Unmap when done, unless the storage is persistent.
func (ob *Object) Map(offset, size int) ([]byte, error) {
	if err := ob.check("Map", offset, size); err != nil {
		return nil, err
	}
	return ob.storage.Map(ob.offset+offset, size)
}

// Unmap ends the most recent Map of the storage.
func (ob *Object) Unmap() error {
	if !ob.IsValid() {
		return errors.Warn(fmt.Errorf("gpu.Object.Unmap: %w", ErrInvalidObject))
	}
	return ob.storage.Unmap()
}

// Flush makes CPU writes to the given range of a mapped object
// visible to the GPU. Writes through a persistent mapping are only
// guaranteed to reach the GPU after a Flush.
func (ob *Object) Flush(offset, size int) error {
	if err := ob.check("Flush", offset, size); err != nil {
		return err
	}
	return ob.storage.Flush(ob.offset+offset, size)
}

// Clear sets the given range of the object to zero.
func (ob *Object) Clear(offset, size int) error {
	if err := ob.check("Clear", offset, size); err != nil {
		return err
	}
	return ob.storage.Clear(ob.offset+offset, size)
}

// ClearAll sets the whole object to zero.
func (ob *Object) ClearAll() error {
	return ob.Clear(0, ob.Size())
}

// Copy copies size bytes from srcOffset in this object to
// dstOffset in dst.
func (ob *Object) Copy(dst *Object, size, srcOffset, dstOffset int) error {
	if err := ob.check("Copy", srcOffset, size); err != nil {
		return err
	}
	if err := dst.check("Copy", dstOffset, size); err != nil {
		return err
	}
	return ob.storage.CopyTo(dst.storage, size, ob.offset+srcOffset, dst.offset+dstOffset)
}

// Bind binds the whole object to the binding point at location.
func (ob *Object) Bind(target BindTargets, location int) error {
	if !ob.IsValid() {
		return errors.Warn(fmt.Errorf("gpu.Object.Bind: %w", ErrInvalidObject), "target", target)
	}
	return ob.storage.Bind(target, location, ob.offset, ob.size)
}

// BindRange binds the given range of the object to the binding
// point at location.
func (ob *Object) BindRange(target BindTargets, location, offset, size int) error {
	if err := ob.check("BindRange", offset, size); err != nil {
		return err
	}
	return ob.storage.Bind(target, location, ob.offset+offset, size)
}

// Free returns the object to its allocator, if any.
func (ob *Object) Free() {
	if !ob.IsValid() || ob.alloc == nil {
		return
	}
	ob.alloc.Free(ob)
}

// invalidate is called by the allocator when the object is freed,
// so that freeing it again does nothing.
func (ob *Object) invalidate() {
	ob.storage = nil
}
