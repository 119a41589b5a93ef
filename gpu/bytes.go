// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import "unsafe"

// ElementSize returns the size in bytes of one E in GPU memory.
func ElementSize[E any]() int {
	var e E
	return int(unsafe.Sizeof(e))
}

// ToBytes returns the memory of the given slice as bytes,
// without copying.
func ToBytes[E any](s []E) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*ElementSize[E]())
}

// MemSizeAlign returns the size aligned according to align byte increments
// e.g., if align = 16 and size = 12, it returns 16
func MemSizeAlign(size, align int) int {
	if align <= 1 || size%align == 0 {
		return size
	}
	nb := size / align
	return (nb + 1) * align
}
