// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/eapache/queue"
)

// Pool is an [Allocator] that sub-allocates objects from pages of
// GPU storage. Each page is BlocksPerPage blocks of BlockSize bytes,
// and each allocation takes a run of consecutive blocks in the first
// page (in creation order) that has one, using the first fitting run
// in that page. A new page is created when no page fits, and a page
// is removed as soon as its last block is freed.
//
// A Pool is not safe for concurrent use.
type Pool struct {
	// WaitTimeout is the timeout of each flushing fence wait
	// for deferred page releases.
	WaitTimeout time.Duration

	config PoolConfig
	device Device
	sync   FenceSync

	// pages in creation order
	pages []*page

	// byStorage finds the page of a freed object
	byStorage map[Storage]*page

	// pending is the FIFO of *pendingPage for [ReleaseDeferred],
	// in fence order.
	pending *queue.Queue

	// pagesCreated counts pages for storage labels
	pagesCreated int
}

// pendingPage is the storage of an emptied page waiting for its fence.
type pendingPage struct {
	storage Storage
	fence   Fence
}

// PoolStats has the current usage of a [Pool].
type PoolStats struct {
	// Pages is the number of pages available for allocation.
	Pages int

	// Blocks is the total number of blocks in those pages.
	Blocks int

	// AllocatedBlocks is the number of allocated blocks.
	AllocatedBlocks int

	// FreeBlocks is the number of free blocks.
	FreeBlocks int

	// PendingReleases is the number of emptied pages whose
	// storage is waiting for a fence before being released.
	PendingReleases int

	// BytesReserved is the storage size held by the pool,
	// including pending releases.
	BytesReserved int
}

func (ps PoolStats) String() string {
	return fmt.Sprintf("pages: %d, blocks: %d/%d, pending: %d, reserved: %d bytes", ps.Pages, ps.AllocatedBlocks, ps.Blocks, ps.PendingReleases, ps.BytesReserved)
}

// NewPool returns a new Pool creating its pages on the given device.
// sync is only used for [ReleaseDeferred] and can otherwise be nil.
func NewPool(dev Device, sync FenceSync, cfg PoolConfig) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Release == ReleaseDeferred && sync == nil {
		return nil, fmt.Errorf("gpu.NewPool %s: ReleaseDeferred requires a FenceSync", cfg.Label)
	}
	pl := &Pool{
		WaitTimeout: DefaultWaitTimeout,
		config:      cfg,
		device:      dev,
		sync:        sync,
		byStorage:   make(map[Storage]*page),
		pending:     queue.New(),
	}
	return pl, nil
}

// Config returns the configuration of the pool.
func (pl *Pool) Config() PoolConfig {
	return pl.config
}

// Allocate returns an object of size rounded up to whole blocks,
// or nil if size is 0, if size is more than a page, or if a new
// page is needed and its storage can not be created.
func (pl *Pool) Allocate(size int) *Object {
	if size <= 0 {
		return nil
	}
	if pl.pending.Length() > 0 {
		pl.Collect()
	}
	bs := pl.config.BlockSize
	count := (size + bs - 1) / bs
	if count > pl.config.BlocksPerPage {
		slog.Warn("gpu.Pool.Allocate: request exceeds the page size", "pool", pl.config.Label, "size", size, "blocks", count, "blocksPerPage", pl.config.BlocksPerPage)
		return nil
	}
	for _, pg := range pl.pages {
		if pg.isFull() || pg.freeBlocks < count {
			continue
		}
		if ob := pl.allocateIn(pg, count); ob != nil {
			return ob
		}
	}
	pg := pl.newPage()
	if pg == nil {
		return nil
	}
	return pl.allocateIn(pg, count)
}

// newPage creates and adds a new page, returning nil on failure.
func (pl *Pool) newPage() *page {
	pl.pagesCreated++
	st, err := pl.device.CreateStorage(&StorageDescriptor{
		Label:      fmt.Sprintf("%s_page_%d", pl.config.Label, pl.pagesCreated),
		Size:       pl.config.PageSize(),
		Access:     pl.config.Access,
		Persistent: pl.config.Persistent,
		Usage:      pl.config.Usage,
	})
	if err != nil || st == nil {
		slog.Warn("gpu.Pool.Allocate: could not create page storage", "pool", pl.config.Label, "size", pl.config.PageSize(), "err", err)
		return nil
	}
	pg := newPage(st, pl.config.BlocksPerPage)
	pl.pages = append(pl.pages, pg)
	pl.byStorage[st] = pg
	slog.Debug("gpu.Pool: page created", "pool", pl.config.Label, "pages", len(pl.pages))
	return pg
}

// allocateIn allocates count blocks in the first fitting run of the
// page, returning nil if the free blocks of the page are too fragmented.
func (pl *Pool) allocateIn(pg *page, count int) *Object {
	start := pg.findRun(count)
	if start < 0 {
		return nil
	}
	pg.allocate(start, count)
	bs := pl.config.BlockSize
	return NewObject(pg.storage, start*bs, count*bs, pl)
}

// Free returns the blocks of the object to its page, and removes the
// page if it is now empty. Objects that are nil, invalid or not from
// this pool are ignored. The object is invalid afterwards.
//
// With [ReleaseImmediate], the storage of an emptied page is released
// right away, even if GPU commands using it are still in flight.
func (pl *Pool) Free(ob *Object) {
	if !ob.IsValid() {
		return
	}
	pg, ok := pl.byStorage[ob.storage]
	if !ok {
		return
	}
	bs := pl.config.BlockSize
	pg.free(ob.offset/bs, ob.size/bs)
	ob.invalidate()
	if pg.isEmpty() {
		pl.removePage(pg)
	}
}

// removePage takes the empty page out of the pool and
// releases or queues its storage.
func (pl *Pool) removePage(pg *page) {
	for i, p := range pl.pages {
		if p == pg {
			pl.pages = append(pl.pages[:i], pl.pages[i+1:]...)
			break
		}
	}
	delete(pl.byStorage, pg.storage)
	if pl.config.Release == ReleaseDeferred {
		pl.pending.Add(&pendingPage{storage: pg.storage, fence: pl.sync.InsertFence()})
		slog.Debug("gpu.Pool: page release deferred", "pool", pl.config.Label, "pending", pl.pending.Length())
		return
	}
	pg.storage.Release()
	slog.Debug("gpu.Pool: page released", "pool", pl.config.Label, "pages", len(pl.pages))
}

// Collect releases the storage of deferred pages whose fence has been
// reached, without blocking, and returns the number released.
func (pl *Pool) Collect() int {
	n := 0
	for pl.pending.Length() > 0 {
		pp := pl.pending.Peek().(*pendingPage)
		st := pl.sync.WaitFence(pp.fence, false, 0)
		if !st.Signaled() && st != WaitFailed {
			break
		}
		if st == WaitFailed {
			slog.Warn("gpu.Pool.Collect: fence wait failed, releasing page storage", "pool", pl.config.Label)
		}
		pl.pending.Remove()
		pl.releasePending(pp)
		n++
	}
	return n
}

// drainPending waits for and releases all deferred pages.
func (pl *Pool) drainPending() {
	for pl.pending.Length() > 0 {
		pp := pl.pending.Remove().(*pendingPage)
		WaitForFence(pl.sync, pp.fence, pl.WaitTimeout)
		pl.releasePending(pp)
	}
}

func (pl *Pool) releasePending(pp *pendingPage) {
	pl.sync.ReleaseFence(pp.fence)
	pp.storage.Release()
}

// Reset releases all pages at once. Objects allocated before are
// left dangling, and the caller must know that no GPU work uses them.
// Deferred releases are waited for first.
func (pl *Pool) Reset() {
	pl.drainPending()
	for _, pg := range pl.pages {
		pg.storage.Release()
	}
	pl.pages = nil
	clear(pl.byStorage)
}

// Release releases all the storage of the pool.
func (pl *Pool) Release() {
	pl.Reset()
}

// AllocatedBlockCount returns the number of allocated blocks
// over all pages.
func (pl *Pool) AllocatedBlockCount() int {
	n := 0
	for _, pg := range pl.pages {
		for _, used := range pg.blocks {
			if used {
				n++
			}
		}
	}
	return n
}

// AllocatedPageCount returns the number of pages.
func (pl *Pool) AllocatedPageCount() int {
	return len(pl.pages)
}

// Stats returns the current usage of the pool.
func (pl *Pool) Stats() PoolStats {
	ps := PoolStats{Pages: len(pl.pages), PendingReleases: pl.pending.Length()}
	for _, pg := range pl.pages {
		ps.Blocks += len(pg.blocks)
		ps.FreeBlocks += pg.freeBlocks
		ps.AllocatedBlocks += pg.allocatedBlocks()
	}
	ps.BytesReserved = (ps.Pages + ps.PendingReleases) * pl.config.PageSize()
	return ps
}
