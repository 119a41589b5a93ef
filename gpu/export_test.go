// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

// PageFreeBlocks returns the number of free blocks of each page, by storage.
func PageFreeBlocks(pl *Pool) map[Storage]int {
	m := make(map[Storage]int, len(pl.pages))
	for _, pg := range pl.pages {
		m[pg.storage] = pg.freeBlocks
	}
	return m
}
