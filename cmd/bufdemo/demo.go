// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cogentcore.org/bufpool/gpu"
	"cogentcore.org/bufpool/gpu/soft"
	"github.com/chewxy/math32"
	"golang.org/x/sync/errgroup"
)

// vertex is one streamed vertex.
type vertex struct {
	Pos   [3]float32
	Color [4]float32
}

// objectParams is the parameter block of one drawn object.
type objectParams struct {
	Offset [2]float32
	Scale  float32
	Phase  float32
}

type demoOptions struct {
	Frames  int
	Verts   int
	Objects int

	// Tick is the time the software device takes for one frame.
	Tick time.Duration
}

type demoResult struct {
	Frames int

	// Peak is the pool usage when the most blocks were allocated.
	Peak gpu.PoolStats

	// Final is the pool usage after everything is released.
	Final gpu.PoolStats
}

// multiBuffers is the number of frames in flight.
const multiBuffers = 3

// runDemo streams opts.Frames frames through a pool with the given
// config, while the software device retires frames in the background.
func runDemo(ctx context.Context, pc *gpu.PoolConfig, opts demoOptions) (*demoResult, error) {
	if opts.Frames <= 0 || opts.Verts <= 0 || opts.Objects <= 0 {
		return nil, fmt.Errorf("bufdemo: frames, verts and objects must be > 0")
	}
	if opts.Tick <= 0 {
		opts.Tick = time.Millisecond
	}
	dev := soft.NewDevice()
	pl, err := gpu.NewPool(dev, dev, *pc)
	if err != nil {
		return nil, err
	}
	defer pl.Release()

	sv, err := gpu.NewStreamView[vertex](pl, dev, opts.Verts, multiBuffers)
	if err != nil {
		return nil, err
	}
	params, err := gpu.NewParameterCache(pl, dev, gpu.ParameterCacheConfig{
		SlotSize: gpu.ElementSize[objectParams](),
		Slots:    opts.Objects * multiBuffers,
		Align:    256,
	})
	if err != nil {
		sv.Release()
		return nil, err
	}

	res := &demoResult{}
	ctx, cancel := context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return dev.Run(ctx, opts.Tick)
	})
	g.Go(func() error {
		defer cancel()
		verts := make([]vertex, opts.Verts)
		for f := range opts.Frames {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err := streamFrame(sv, params, verts, f, opts.Objects); err != nil {
				return err
			}
			dev.Submit(1)
			sv.Swap()
			params.Commit()
			res.Frames++
			if st := pl.Stats(); st.AllocatedBlocks >= res.Peak.AllocatedBlocks {
				res.Peak = st
			}
			slog.Debug("bufdemo: frame", "frame", f, "offset", sv.Offset(), "completed", dev.Completed())
		}
		return nil
	})
	err = g.Wait()
	sv.Release()
	params.Release()
	res.Final = pl.Stats()
	slog.Info("bufdemo: done", "frames", res.Frames, "peak", res.Peak.String())
	return res, err
}

// streamFrame writes the vertices of frame f, a ring rotating about
// the origin, and one parameter block per object.
func streamFrame(sv *gpu.StreamView[vertex], params *gpu.ParameterCache, verts []vertex, f, objects int) error {
	n := float32(len(verts))
	rot := float32(f) * 0.05
	for i := range verts {
		a := 2*math32.Pi*float32(i)/n + rot
		verts[i] = vertex{
			Pos:   [3]float32{math32.Cos(a), math32.Sin(a), 0},
			Color: [4]float32{0.5 + 0.5*math32.Sin(a), 0.5 + 0.5*math32.Cos(a), 1, 1},
		}
	}
	if err := sv.SetValues(0, verts); err != nil {
		return err
	}
	if err := sv.Bind(gpu.VertexBuffer, 0); err != nil {
		return err
	}
	for o := range objects {
		ph := float32(o) / float32(objects)
		op := []objectParams{{
			Offset: [2]float32{math32.Cos(2 * math32.Pi * ph), math32.Sin(2 * math32.Pi * ph)},
			Scale:  0.1 + 0.05*math32.Sin(rot+ph),
			Phase:  ph,
		}}
		off, err := params.Push(gpu.ToBytes(op))
		if err != nil {
			return err
		}
		if err := params.Buffer().BindRange(gpu.UniformBuffer, 0, off, params.SlotSize()); err != nil {
			return err
		}
	}
	return nil
}
