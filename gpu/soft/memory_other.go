// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !unix

package soft

func allocMemory(size int) ([]byte, error) {
	return make([]byte, size), nil
}

func freeMemory(mem []byte) {}
