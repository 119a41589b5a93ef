// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import "cogentcore.org/bufpool/base/errors"

var (
	// ErrInvalidObject is returned for operations on a nil or freed [Object].
	ErrInvalidObject = errors.New("gpu: invalid buffer object")

	// ErrOutOfBounds is returned when a range does not fit in its buffer.
	ErrOutOfBounds = errors.New("gpu: range out of bounds")

	// ErrZeroSize is returned for empty allocation requests.
	ErrZeroSize = errors.New("gpu: zero size")

	// ErrTooLarge is returned when a request exceeds the capacity
	// of a page or a ring.
	ErrTooLarge = errors.New("gpu: request too large")

	// ErrNotMapped is returned by Unmap on storage that is not mapped.
	ErrNotMapped = errors.New("gpu: storage not mapped")

	// ErrNotHostVisible is returned when mapping GPUOnly storage.
	ErrNotHostVisible = errors.New("gpu: storage not host visible")

	// ErrMisaligned is returned by backends that cannot serve a range
	// whose offset or size is not a multiple of their copy alignment.
	ErrMisaligned = errors.New("gpu: range not aligned")

	// ErrReleased is returned for operations on released storage.
	ErrReleased = errors.New("gpu: storage released")
)
