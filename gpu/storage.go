// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import "fmt"

// StorageDescriptor describes a [Storage] to create.
type StorageDescriptor struct {
	// Label is an optional debugging name.
	Label string

	// Size is the size in bytes.
	Size int

	// Access is where the memory lives and who maps it.
	Access AccessModes

	// Persistent is whether a mapped range stays valid across
	// GPU use, so that the storage can stay mapped for its lifetime.
	Persistent bool

	// Usage is what the storage will be bound as.
	Usage Usages
}

// Device creates [Storage] for a graphics backend.
// This package never inspects it beyond that.
type Device interface {
	// CreateStorage allocates GPU visible memory of exactly
	// desc.Size bytes, or returns an error.
	CreateStorage(desc *StorageDescriptor) (Storage, error)
}

// Storage is a contiguous region of GPU accessible memory.
// All of its operations are bounds checked against its own Size.
// Storage values are compared by identity, so implementations
// must be pointer types.
type Storage interface {
	// Size returns the size in bytes.
	Size() int

	// Upload copies data into the storage at offset.
	Upload(data []byte, offset int) error

	// Download copies from the storage at offset into dst.
	Download(dst []byte, offset int) error

	// Map maps the given range into CPU memory.
	Map(offset, size int) ([]byte, error)

	// Unmap ends the most recent Map.
	Unmap() error

	// Flush makes CPU writes to the given range, made through a Map
	// that is still outstanding, visible to the GPU. Persistent
	// mappings are never unmapped, so their users flush each range
	// they write before submitting GPU work that reads it.
	Flush(offset, size int) error

	// CopyTo copies size bytes from srcOffset in this storage to
	// dstOffset in dst, on the GPU timeline.
	CopyTo(dst Storage, size, srcOffset, dstOffset int) error

	// Clear sets the given range to zero.
	Clear(offset, size int) error

	// Bind binds the given range to the binding point at location.
	Bind(target BindTargets, location, offset, size int) error

	// Release frees the memory. The storage must not be used after.
	Release()
}

// CheckRange returns an [ErrOutOfBounds] error if [offset, offset+size)
// is not within [0, total).
func CheckRange(offset, size, total int) error {
	if offset < 0 || size < 0 || size > total || offset > total-size {
		return fmt.Errorf("%w: offset %d + size %d > %d", ErrOutOfBounds, offset, size, total)
	}
	return nil
}

// checkRuns is [CheckRange] for runs of unit bytes each, starting at offset.
func checkRuns(offset, unit, runs, total int) error {
	if unit > 0 && runs > total/unit {
		return fmt.Errorf("%w: %d runs of %d bytes > %d", ErrOutOfBounds, runs, unit, total)
	}
	return CheckRange(offset, unit*runs, total)
}
