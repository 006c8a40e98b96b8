// Copyright 2025 The Etude Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package memory provides the public API for the Etude runtime's two-tier
// memory system.
//
// A Pool owns one contiguous arena and hands out aligned sub-slices with
// zero per-allocation heap traffic. An Allocator layers bookkeeping on top
// of a pool: allocation statistics, guard bytes for corruption checks, and
// optional leak detection by allocation age.
//
//	pool, _ := memory.NewPool(1<<20, 0)
//	alloc, _ := memory.NewAllocator(1<<20, 32)
//	buf, _ := alloc.Alloc(256)
package memory

import (
	"github.com/etude-ml/etude/internal/memory"
)

// DefaultAlignment is the byte alignment pools use when none is given.
const DefaultAlignment = memory.DefaultAlignment

// PoolType selects the pool's allocation strategy.
type PoolType = memory.PoolType

// Pool strategies.
const (
	// Dynamic pools serve variable-size allocations from a first-fit
	// free list with block splitting and coalescing.
	Dynamic PoolType = memory.Dynamic
	// Fixed pools serve same-size blocks tracked by a bitmap.
	Fixed PoolType = memory.Fixed
)

// Pool is a contiguous arena allocator.
type Pool = memory.Pool

// PoolOptions configures a pool.
type PoolOptions = memory.PoolOptions

// PoolStats is a snapshot of a pool's counters.
type PoolStats = memory.PoolStats

// Allocator is an instrumented allocator over a private pool.
type Allocator = memory.Allocator

// AllocatorStats is a snapshot of an allocator's counters.
type AllocatorStats = memory.AllocatorStats

// LeakInfo describes one live allocation reported by leak detection.
type LeakInfo = memory.LeakInfo

// Sentinel errors.
var (
	ErrInvalidArgument = memory.ErrInvalidArgument
	ErrOutOfMemory     = memory.ErrOutOfMemory
	ErrInvalidPointer  = memory.ErrInvalidPointer
)

// NewPool creates a dynamic pool of size bytes; alignment <= 0 selects
// DefaultAlignment.
func NewPool(size, alignment int) (*Pool, error) {
	return memory.NewPool(size, alignment)
}

// NewPoolWithOptions creates a pool with explicit options.
func NewPoolWithOptions(size int, opts PoolOptions) (*Pool, error) {
	return memory.NewPoolWithOptions(size, opts)
}

// DefaultPoolOptions returns the default dynamic-pool configuration.
func DefaultPoolOptions() PoolOptions {
	return memory.DefaultPoolOptions()
}

// NewAllocator creates an instrumented allocator backed by a private
// dynamic pool of size bytes.
func NewAllocator(size, alignment int) (*Allocator, error) {
	return memory.NewAllocator(size, alignment)
}

// AlignSize rounds size up to the next multiple of alignment, which must
// be a power of two.
func AlignSize(size, alignment int) int {
	return memory.AlignSize(size, alignment)
}

// IsAligned reports whether buf's base address is a multiple of alignment.
func IsAligned(buf []byte, alignment int) bool {
	return memory.IsAligned(buf, alignment)
}
