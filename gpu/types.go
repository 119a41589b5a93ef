// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"fmt"
	"strings"
)

// AccessModes are the memory access modes of a [Storage], which
// determine where the memory lives and which side can map it.
type AccessModes int32

const (
	// GPUOnly is device local memory that the CPU never maps.
	// Data gets there through Upload and Copy.
	GPUOnly AccessModes = iota

	// CPUToGPU is host visible memory written by the CPU and
	// read by the GPU: vertex streams, uniforms.
	CPUToGPU

	// GPUToCPU is host visible memory written by the GPU and
	// read back by the CPU.
	GPUToCPU

	// CPUOnly is host memory used for staging.
	CPUOnly

	AccessModesN
)

var accessModeNames = []string{"GPUOnly", "CPUToGPU", "GPUToCPU", "CPUOnly"}

func (am AccessModes) String() string {
	return enumString(accessModeNames, int(am), "AccessModes")
}

// HostVisible returns whether storage with this access mode
// can be mapped into CPU memory.
func (am AccessModes) HostVisible() bool {
	return am != GPUOnly
}

func (am AccessModes) MarshalText() ([]byte, error) {
	return []byte(am.String()), nil
}

func (am *AccessModes) UnmarshalText(text []byte) error {
	i, err := enumParse(accessModeNames, string(text), "AccessModes")
	if err != nil {
		return err
	}
	*am = AccessModes(i)
	return nil
}

// Usages are bit flags for what a [Storage] is used for,
// passed through to the graphics backend on creation.
// The zero value is UsageGeneral, which allows any use.
type Usages int32

const (
	UsageGeneral Usages = 0
	UsageVertex  Usages = 1 << (iota - 1)
	UsageIndex
	UsageUniform
	UsageStorage
	UsageIndirect
)

var usageFlags = []struct {
	flag Usages
	name string
}{
	{UsageVertex, "Vertex"},
	{UsageIndex, "Index"},
	{UsageUniform, "Uniform"},
	{UsageStorage, "Storage"},
	{UsageIndirect, "Indirect"},
}

// HasFlag returns whether all of the given flags are set.
func (us Usages) HasFlag(f Usages) bool {
	return us&f == f
}

func (us Usages) String() string {
	if us == UsageGeneral {
		return "General"
	}
	var names []string
	for _, uf := range usageFlags {
		if us.HasFlag(uf.flag) {
			names = append(names, uf.name)
		}
	}
	return strings.Join(names, "|")
}

func (us Usages) MarshalText() ([]byte, error) {
	return []byte(us.String()), nil
}

func (us *Usages) UnmarshalText(text []byte) error {
	var res Usages
	for _, s := range strings.Split(string(text), "|") {
		s = strings.TrimSpace(s)
		if s == "" || strings.EqualFold(s, "General") {
			continue
		}
		found := false
		for _, uf := range usageFlags {
			if strings.EqualFold(s, uf.name) {
				res |= uf.flag
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("gpu.Usages: %q is not a valid value", s)
		}
	}
	*us = res
	return nil
}

// BindTargets are the kinds of binding points an [Object]
// range can be bound to for drawing or compute.
type BindTargets int32

const (
	VertexBuffer BindTargets = iota
	IndexBuffer
	UniformBuffer
	StorageBuffer

	BindTargetsN
)

var bindTargetNames = []string{"VertexBuffer", "IndexBuffer", "UniformBuffer", "StorageBuffer"}

func (bt BindTargets) String() string {
	return enumString(bindTargetNames, int(bt), "BindTargets")
}

// ReleasePolicies determine when the [Pool] releases the storage of
// a page that has become empty.
type ReleasePolicies int32

const (
	// ReleaseImmediate releases the storage in the Free call that
	// empties the page. GPU commands issued before the Free that
	// still reference the page will read released memory, so the
	// caller must know that no such commands are in flight.
	ReleaseImmediate ReleasePolicies = iota

	// ReleaseDeferred removes the page from allocation at once but
	// keeps its storage alive until a fence inserted at Free time
	// has been reached by the GPU. Requires a [FenceSync].
	ReleaseDeferred

	ReleasePoliciesN
)

var releasePolicyNames = []string{"Immediate", "Deferred"}

func (rp ReleasePolicies) String() string {
	return enumString(releasePolicyNames, int(rp), "ReleasePolicies")
}

func (rp ReleasePolicies) MarshalText() ([]byte, error) {
	return []byte(rp.String()), nil
}

func (rp *ReleasePolicies) UnmarshalText(text []byte) error {
	i, err := enumParse(releasePolicyNames, string(text), "ReleasePolicies")
	if err != nil {
		return err
	}
	*rp = ReleasePolicies(i)
	return nil
}

func enumString(names []string, i int, typ string) string {
	if i < 0 || i >= len(names) {
		return fmt.Sprintf("%s(%d)", typ, i)
	}
	return names[i]
}

func enumParse(names []string, s, typ string) (int, error) {
	for i, nm := range names {
		if strings.EqualFold(nm, s) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("gpu.%s: %q is not a valid value", typ, s)
}
