// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

// page is one Storage of the Pool, divided into blocks.
// blocks[i] is true if block i is allocated, and
// freeBlocks is always the number of false blocks.
type page struct {
	storage    Storage
	blocks     []bool
	freeBlocks int
}

func newPage(st Storage, nblocks int) *page {
	return &page{storage: st, blocks: make([]bool, nblocks), freeBlocks: nblocks}
}

// findRun returns the first block index of a run of count free
// blocks, or -1 if there is none, which can happen even when
// freeBlocks >= count if the free blocks are fragmented.
func (pg *page) findRun(count int) int {
	run := 0
	for i, used := range pg.blocks {
		if used {
			run = 0
			continue
		}
		run++
		if run == count {
			return i - count + 1
		}
	}
	return -1
}

// allocate marks count blocks from start as allocated.
func (pg *page) allocate(start, count int) {
	for i := start; i < start+count; i++ {
		pg.blocks[i] = true
	}
	pg.freeBlocks -= count
}

// free marks count blocks from start as free, returning the number
// of blocks that were actually allocated before.
func (pg *page) free(start, count int) int {
	n := 0
	end := min(start+count, len(pg.blocks))
	for i := max(start, 0); i < end; i++ {
		if pg.blocks[i] {
			pg.blocks[i] = false
			n++
		}
	}
	pg.freeBlocks += n
	return n
}

func (pg *page) allocatedBlocks() int {
	return len(pg.blocks) - pg.freeBlocks
}

func (pg *page) isFull() bool {
	return pg.freeBlocks == 0
}

func (pg *page) isEmpty() bool {
	return pg.freeBlocks == len(pg.blocks)
}
