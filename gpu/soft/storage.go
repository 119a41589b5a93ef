// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package soft

import (
	"fmt"

	"cogentcore.org/bufpool/gpu"
)

// Storage is a [gpu.Storage] in host memory.
type Storage struct {
	dev  *Device
	desc gpu.StorageDescriptor
	mem  []byte

	// maps is the number of outstanding Map calls
	maps int

	// flushes is the number of Flush calls
	flushes int
}

// Descriptor returns the descriptor the storage was created with.
func (st *Storage) Descriptor() gpu.StorageDescriptor { return st.desc }

// Released returns whether the storage has been released.
func (st *Storage) Released() bool { return st.mem == nil }

// Mapped returns whether the storage is mapped.
func (st *Storage) Mapped() bool { return st.maps > 0 }

// Flushes returns the number of successful Flush calls.
func (st *Storage) Flushes() int { return st.flushes }

func (st *Storage) Size() int { return st.desc.Size }

func (st *Storage) check(op string, offset, size int) error {
	if st.mem == nil {
		return fmt.Errorf("soft.Storage.%s %s: %w", op, st.desc.Label, gpu.ErrReleased)
	}
	if err := gpu.CheckRange(offset, size, st.desc.Size); err != nil {
		return fmt.Errorf("soft.Storage.%s %s: %w", op, st.desc.Label, err)
	}
	return nil
}

func (st *Storage) Upload(data []byte, offset int) error {
	if err := st.check("Upload", offset, len(data)); err != nil {
		return err
	}
	copy(st.mem[offset:], data)
	return nil
}

func (st *Storage) Download(dst []byte, offset int) error {
	if err := st.check("Download", offset, len(dst)); err != nil {
		return err
	}
	copy(dst, st.mem[offset:offset+len(dst)])
	return nil
}

// Map returns the given range of the host memory. Storage that is
// not persistent can only be mapped once at a time.
func (st *Storage) Map(offset, size int) ([]byte, error) {
	if err := st.check("Map", offset, size); err != nil {
		return nil, err
	}
	if !st.desc.Access.HostVisible() {
		return nil, fmt.Errorf("soft.Storage.Map %s: %w", st.desc.Label, gpu.ErrNotHostVisible)
	}
	if st.maps > 0 && !st.desc.Persistent {
		return nil, fmt.Errorf("soft.Storage.Map %s: already mapped", st.desc.Label)
	}
	st.maps++
	return st.mem[offset : offset+size : offset+size], nil
}

func (st *Storage) Unmap() error {
	if st.maps == 0 {
		return fmt.Errorf("soft.Storage.Unmap %s: %w", st.desc.Label, gpu.ErrNotMapped)
	}
	st.maps--
	return nil
}

// Flush only counts the call, as mapped ranges are the memory itself.
func (st *Storage) Flush(offset, size int) error {
	if err := st.check("Flush", offset, size); err != nil {
		return err
	}
	if st.maps == 0 {
		return fmt.Errorf("soft.Storage.Flush %s: %w", st.desc.Label, gpu.ErrNotMapped)
	}
	st.flushes++
	return nil
}

func (st *Storage) CopyTo(dst gpu.Storage, size, srcOffset, dstOffset int) error {
	ds, ok := dst.(*Storage)
	if !ok {
		return fmt.Errorf("soft.Storage.CopyTo %s: destination %T is not soft storage", st.desc.Label, dst)
	}
	if err := st.check("CopyTo", srcOffset, size); err != nil {
		return err
	}
	if err := ds.check("CopyTo", dstOffset, size); err != nil {
		return err
	}
	copy(ds.mem[dstOffset:dstOffset+size], st.mem[srcOffset:srcOffset+size])
	return nil
}

func (st *Storage) Clear(offset, size int) error {
	if err := st.check("Clear", offset, size); err != nil {
		return err
	}
	clear(st.mem[offset : offset+size])
	return nil
}

func (st *Storage) Bind(target gpu.BindTargets, location, offset, size int) error {
	if err := st.check("Bind", offset, size); err != nil {
		return err
	}
	st.dev.bind(target, location, Binding{Storage: st, Offset: offset, Size: size})
	return nil
}

// Release frees the host memory. Later operations fail with [gpu.ErrReleased].
func (st *Storage) Release() {
	if st.mem == nil {
		return
	}
	freeMemory(st.mem)
	st.mem = nil
	st.maps = 0
	st.dev.released()
}
