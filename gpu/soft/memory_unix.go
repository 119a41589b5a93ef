// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build unix

package soft

import "golang.org/x/sys/unix"

// allocMemory maps anonymous page aligned memory, which stays out
// of the Go heap like driver memory does.
func allocMemory(size int) ([]byte, error) {
	return unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
}

func freeMemory(mem []byte) {
	unix.Munmap(mem)
}
