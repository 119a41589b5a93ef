// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wgpudev

import (
	"fmt"

	"cogentcore.org/bufpool/base/errors"
	"cogentcore.org/bufpool/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// Storage is a [gpu.Storage] on a [wgpu.Buffer].
type Storage struct {
	dev    *Device
	desc   gpu.StorageDescriptor
	buffer *wgpu.Buffer

	// host is the host copy of host visible storage, returned by Map
	// and written to the buffer on Flush and Unmap.
	host []byte

	// mapped are the ranges returned by Map and not yet unmapped
	mapped [][2]int
}

// Buffer returns the WebGPU buffer.
func (st *Storage) Buffer() *wgpu.Buffer { return st.buffer }

func (st *Storage) Size() int { return st.desc.Size }

func (st *Storage) check(op string, offset, size int) error {
	if st.buffer == nil {
		return fmt.Errorf("wgpudev.Storage.%s %s: %w", op, st.desc.Label, gpu.ErrReleased)
	}
	if err := gpu.CheckRange(offset, size, st.desc.Size); err != nil {
		return fmt.Errorf("wgpudev.Storage.%s %s: %w", op, st.desc.Label, err)
	}
	return nil
}

// CopyAlignment is the alignment of offsets and sizes that WebGPU
// requires for buffer writes, copies and clears.
const CopyAlignment = 4

// AlignRange returns the smallest [lo, hi) range with both ends
// multiples of align that contains [offset, offset+size) and fits
// in total bytes. The range must already be within total.
func AlignRange(offset, size, align, total int) (lo, hi int, err error) {
	lo = offset - offset%align
	hi = offset + size
	if r := hi % align; r != 0 {
		hi += align - r
	}
	if hi > total {
		return 0, 0, fmt.Errorf("%w: [%d, %d) padded to %d exceeds size %d", gpu.ErrMisaligned, offset, offset+size, hi, total)
	}
	return lo, hi, nil
}

func isAligned(offset, size int) bool {
	return offset%CopyAlignment == 0 && size%CopyAlignment == 0
}

// padsFromHost is whether the host copy is current, so that
// misaligned writes can be padded from it.
func (st *Storage) padsFromHost() bool {
	return st.host != nil && (st.desc.Access == gpu.CPUToGPU || st.desc.Access == gpu.CPUOnly)
}

// writeHost writes the host copy of [offset, offset+size) to the
// buffer, padded to [CopyAlignment].
func (st *Storage) writeHost(op string, offset, size int) error {
	lo, hi, err := AlignRange(offset, size, CopyAlignment, st.desc.Size)
	if err != nil {
		return fmt.Errorf("wgpudev.Storage.%s %s: %w", op, st.desc.Label, err)
	}
	return errors.Log(st.dev.Queue.WriteBuffer(st.buffer, uint64(lo), st.host[lo:hi]))
}

// Upload writes data to the buffer. Misaligned ranges of
// CPU written storage are padded from the host copy; for other
// storage they are an [gpu.ErrMisaligned] error.
func (st *Storage) Upload(data []byte, offset int) error {
	if err := st.check("Upload", offset, len(data)); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	if !st.padsFromHost() {
		if !isAligned(offset, len(data)) {
			return fmt.Errorf("wgpudev.Storage.Upload %s: %w: offset %d, size %d", st.desc.Label, gpu.ErrMisaligned, offset, len(data))
		}
		if st.host != nil {
			copy(st.host[offset:], data)
		}
		return errors.Log(st.dev.Queue.WriteBuffer(st.buffer, uint64(offset), data))
	}
	copy(st.host[offset:], data)
	return st.writeHost("Upload", offset, len(data))
}

// Download copies the buffer range, padded to [CopyAlignment],
// to a staging buffer and reads it back, waiting on the device.
func (st *Storage) Download(dst []byte, offset int) error {
	if err := st.check("Download", offset, len(dst)); err != nil {
		return err
	}
	if len(dst) == 0 {
		return nil
	}
	lo, hi, err := AlignRange(offset, len(dst), CopyAlignment, st.desc.Size)
	if err != nil {
		return fmt.Errorf("wgpudev.Storage.Download %s: %w", st.desc.Label, err)
	}
	size := uint64(hi - lo)
	staging, err := st.dev.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Size:  size,
		Label: st.desc.Label + "_read",
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return err
	}
	defer staging.Release()
	enc, err := st.dev.Device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	if err := enc.CopyBufferToBuffer(st.buffer, uint64(lo), staging, 0, size); errors.Log(err) != nil {
		enc.Release()
		return err
	}
	if err := st.dev.submit(enc); err != nil {
		return err
	}
	var status wgpu.BufferMapAsyncStatus
	err = staging.MapAsync(wgpu.MapModeRead, 0, size, func(s wgpu.BufferMapAsyncStatus) {
		status = s
	})
	if errors.Log(err) != nil {
		return err
	}
	st.dev.WaitDone()
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return fmt.Errorf("wgpudev.Storage.Download %s: map status is %s", st.desc.Label, status.String())
	}
	start := offset - lo
	copy(dst, staging.GetMappedRange(0, uint(size))[start:start+len(dst)])
	return errors.Log(staging.Unmap())
}

// Map returns the range of the host copy. For [gpu.GPUToCPU] storage
// the range is downloaded first. Writes to the returned slice reach
// the buffer on [Storage.Flush] or [Storage.Unmap], so users of
// persistent mappings must Flush.
func (st *Storage) Map(offset, size int) ([]byte, error) {
	if err := st.check("Map", offset, size); err != nil {
		return nil, err
	}
	if st.host == nil {
		return nil, fmt.Errorf("wgpudev.Storage.Map %s: %w", st.desc.Label, gpu.ErrNotHostVisible)
	}
	if len(st.mapped) > 0 && !st.desc.Persistent {
		return nil, fmt.Errorf("wgpudev.Storage.Map %s: already mapped", st.desc.Label)
	}
	if st.desc.Access == gpu.GPUToCPU {
		if err := st.Download(st.host[offset:offset+size], offset); err != nil {
			return nil, err
		}
	}
	st.mapped = append(st.mapped, [2]int{offset, size})
	return st.host[offset : offset+size : offset+size], nil
}

// Flush writes the given range of the host copy to the buffer.
func (st *Storage) Flush(offset, size int) error {
	if err := st.check("Flush", offset, size); err != nil {
		return err
	}
	if len(st.mapped) == 0 {
		return fmt.Errorf("wgpudev.Storage.Flush %s: %w", st.desc.Label, gpu.ErrNotMapped)
	}
	if size == 0 || st.desc.Access == gpu.GPUToCPU {
		return nil
	}
	return st.writeHost("Flush", offset, size)
}

// Unmap writes the most recently mapped range back to the buffer.
func (st *Storage) Unmap() error {
	n := len(st.mapped)
	if n == 0 {
		return fmt.Errorf("wgpudev.Storage.Unmap %s: %w", st.desc.Label, gpu.ErrNotMapped)
	}
	r := st.mapped[n-1]
	st.mapped = st.mapped[:n-1]
	if st.buffer == nil || r[1] == 0 || st.desc.Access == gpu.GPUToCPU {
		return nil
	}
	return st.writeHost("Unmap", r[0], r[1])
}

func (st *Storage) CopyTo(dst gpu.Storage, size, srcOffset, dstOffset int) error {
	ds, ok := dst.(*Storage)
	if !ok {
		return fmt.Errorf("wgpudev.Storage.CopyTo %s: destination %T is not WebGPU storage", st.desc.Label, dst)
	}
	if err := st.check("CopyTo", srcOffset, size); err != nil {
		return err
	}
	if err := ds.check("CopyTo", dstOffset, size); err != nil {
		return err
	}
	if size == 0 {
		return nil
	}
	if !isAligned(srcOffset, size) || dstOffset%CopyAlignment != 0 {
		return fmt.Errorf("wgpudev.Storage.CopyTo %s: %w: %d bytes from %d to %d", st.desc.Label, gpu.ErrMisaligned, size, srcOffset, dstOffset)
	}
	enc, err := st.dev.Device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	if err := enc.CopyBufferToBuffer(st.buffer, uint64(srcOffset), ds.buffer, uint64(dstOffset), uint64(size)); errors.Log(err) != nil {
		enc.Release()
		return err
	}
	if st.host != nil && ds.host != nil {
		copy(ds.host[dstOffset:dstOffset+size], st.host[srcOffset:srcOffset+size])
	}
	return st.dev.submit(enc)
}

// Clear clears the range on the GPU timeline. Misaligned ranges of
// CPU written storage are cleared in the host copy and written with
// padding; for other storage they are an [gpu.ErrMisaligned] error.
func (st *Storage) Clear(offset, size int) error {
	if err := st.check("Clear", offset, size); err != nil {
		return err
	}
	if size == 0 {
		return nil
	}
	if !isAligned(offset, size) && !st.padsFromHost() {
		return fmt.Errorf("wgpudev.Storage.Clear %s: %w: offset %d, size %d", st.desc.Label, gpu.ErrMisaligned, offset, size)
	}
	if st.host != nil {
		clear(st.host[offset : offset+size])
	}
	if !isAligned(offset, size) {
		return st.writeHost("Clear", offset, size)
	}
	enc, err := st.dev.Device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	if err := enc.ClearBuffer(st.buffer, uint64(offset), uint64(size)); errors.Log(err) != nil {
		enc.Release()
		return err
	}
	return st.dev.submit(enc)
}

// Bind records a bind group entry for the range, see [Device.BindGroupEntries].
func (st *Storage) Bind(target gpu.BindTargets, location, offset, size int) error {
	if err := st.check("Bind", offset, size); err != nil {
		return err
	}
	st.dev.bind(target, location, wgpu.BindGroupEntry{
		Binding: uint32(location),
		Buffer:  st.buffer,
		Offset:  uint64(offset),
		Size:    uint64(size),
	})
	return nil
}

func (st *Storage) Release() {
	if st.buffer == nil {
		return
	}
	st.buffer.Release()
	st.buffer = nil
	st.host = nil
	st.mapped = nil
}
