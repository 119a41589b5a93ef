// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cogentcore.org/bufpool/base/errors"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// PoolConfig has the parameters of a [Pool], fixed at construction.
type PoolConfig struct {
	// Label is used in storage labels and log messages.
	Label string `toml:"Label" yaml:"Label"`

	// BlockSize is the allocation granularity in bytes.
	BlockSize int `toml:"BlockSize" yaml:"BlockSize"`

	// BlocksPerPage is the number of blocks in each page, which is
	// also the largest number of blocks a single allocation can take.
	BlocksPerPage int `toml:"BlocksPerPage" yaml:"BlocksPerPage"`

	// Access is the access mode of the page storage.
	Access AccessModes `toml:"Access" yaml:"Access"`

	// Persistent is whether page storage stays mapped.
	Persistent bool `toml:"Persistent" yaml:"Persistent"`

	// Usage is passed through to storage creation.
	Usage Usages `toml:"Usage" yaml:"Usage"`

	// Release determines when the storage of an emptied page is released.
	Release ReleasePolicies `toml:"Release" yaml:"Release"`
}

// Defaults sets the default values: 256 byte blocks in 64KiB pages
// of persistent CPU to GPU vertex and index memory.
func (pc *PoolConfig) Defaults() {
	pc.Label = "pool"
	pc.BlockSize = 256
	pc.BlocksPerPage = 256
	pc.Access = CPUToGPU
	pc.Persistent = true
	pc.Usage = UsageVertex | UsageIndex
	pc.Release = ReleaseImmediate
}

// PageSize returns the size of each page in bytes.
func (pc *PoolConfig) PageSize() int {
	return pc.BlockSize * pc.BlocksPerPage
}

// Validate returns an error if the config can not be used.
func (pc *PoolConfig) Validate() error {
	switch {
	case pc.BlockSize <= 0:
		return fmt.Errorf("gpu.PoolConfig: BlockSize must be > 0, is %d", pc.BlockSize)
	case pc.BlocksPerPage <= 0:
		return fmt.Errorf("gpu.PoolConfig: BlocksPerPage must be > 0, is %d", pc.BlocksPerPage)
	case pc.Access < 0 || pc.Access >= AccessModesN:
		return fmt.Errorf("gpu.PoolConfig: invalid Access %v", pc.Access)
	case pc.Release < 0 || pc.Release >= ReleasePoliciesN:
		return fmt.Errorf("gpu.PoolConfig: invalid Release %v", pc.Release)
	}
	return nil
}

// OpenPoolConfig returns the config in the given TOML (.toml)
// or YAML (.yaml, .yml) file. Fields missing from the file have
// their [PoolConfig.Defaults] values.
func OpenPoolConfig(filename string) (*PoolConfig, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	pc := &PoolConfig{}
	pc.Defaults()
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".toml":
		err = toml.Unmarshal(b, pc)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, pc)
	default:
		err = fmt.Errorf("gpu.OpenPoolConfig: unsupported file type %q", ext)
	}
	if err != nil {
		return nil, errors.Wrap(err)
	}
	return pc, pc.Validate()
}

// SavePoolConfig saves the config to the given TOML or YAML file.
func SavePoolConfig(pc *PoolConfig, filename string) error {
	var b bytes.Buffer
	var err error
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".toml":
		err = pc.WriteTOML(&b)
	case ".yaml", ".yml":
		enc := yaml.NewEncoder(&b)
		if err = enc.Encode(pc); err == nil {
			err = enc.Close()
		}
	default:
		err = fmt.Errorf("gpu.SavePoolConfig: unsupported file type %q", ext)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(filename, b.Bytes(), 0666)
}

// WriteTOML writes the config as TOML.
func (pc *PoolConfig) WriteTOML(w io.Writer) error {
	return toml.NewEncoder(w).Encode(pc)
}
