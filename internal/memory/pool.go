// Package memory provides the arena pool and the instrumented allocator that
// back all graph and tensor allocations in the Etude runtime.
//
// The design is two-tier: a Pool is a single pre-reserved byte arena carved
// into blocks, and an Allocator layers diagnostics (statistics, leak aging,
// guard canaries) on top of a private pool. Neither type locks internally;
// callers serialize access to each instance.
package memory

import (
	"fmt"
	"io"
	"unsafe"
)

// PoolType selects the block-management strategy of a Pool.
type PoolType int

const (
	// Dynamic pools serve variable-sized requests from a first-fit free
	// list with block splitting and coalescing.
	Dynamic PoolType = iota
	// Fixed pools serve equal-sized blocks tracked by a bitmap.
	Fixed
)

const (
	// DefaultAlignment applies when PoolOptions leaves Alignment zero.
	DefaultAlignment = 32
	// minBlockSize is the smallest remainder worth splitting off.
	minBlockSize = 32
)

// PoolOptions configures pool creation.
type PoolOptions struct {
	Type         PoolType
	Alignment    int // power of two; DefaultAlignment if zero
	BlockSize    int // Fixed pools only: size of every block
	MinBlockSize int // Dynamic pools only: split threshold
}

// DefaultPoolOptions returns options for a dynamic pool with the default
// alignment.
func DefaultPoolOptions() PoolOptions {
	return PoolOptions{
		Type:         Dynamic,
		Alignment:    DefaultAlignment,
		MinBlockSize: minBlockSize,
	}
}

// PoolStats is a snapshot of a pool's usage counters.
type PoolStats struct {
	TotalSize          int
	UsedSize           int
	FreeSize           int
	PeakUsage          int
	NumAllocations     uint64
	NumFrees           uint64
	NumResets          uint64
	FragmentationRatio float64
}

// block is an out-of-band record describing one region of the arena.
// Records are kept sorted by offset so adjacent free blocks can merge.
type block struct {
	offset int
	size   int
	free   bool
}

// Pool is a fixed-capacity byte arena. All returned slices alias the arena
// buffer and stay valid until Free, Reset, or the pool is garbage collected.
type Pool struct {
	buf       []byte
	alignment int
	poolType  PoolType

	// Dynamic pool state.
	blocks       []block
	minBlockSize int

	// Fixed pool state.
	blockSize  int
	numBlocks  int
	freeBlocks int
	bitmap     []uint64

	used      int
	peak      int
	numAllocs uint64
	numFrees  uint64
	numResets uint64
}

// NewPool creates a dynamic pool of the given size and alignment.
func NewPool(size, alignment int) (*Pool, error) {
	opts := DefaultPoolOptions()
	if alignment > 0 {
		opts.Alignment = alignment
	}
	return NewPoolWithOptions(size, opts)
}

// NewPoolWithOptions creates a pool with explicit options.
func NewPoolWithOptions(size int, opts PoolOptions) (*Pool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("pool size must be positive: %w", ErrInvalidArgument)
	}
	alignment := opts.Alignment
	if alignment == 0 {
		alignment = DefaultAlignment
	}
	if !isPowerOfTwo(alignment) {
		return nil, fmt.Errorf("alignment %d is not a power of two: %w", alignment, ErrInvalidArgument)
	}

	p := &Pool{
		// Over-allocate so the arena base can be aligned to the
		// requested boundary regardless of where the Go heap put it.
		buf:       alignBuffer(AlignSize(size, alignment), alignment),
		alignment: alignment,
		poolType:  opts.Type,
	}

	switch opts.Type {
	case Fixed:
		if opts.BlockSize <= 0 {
			return nil, fmt.Errorf("fixed pool requires a block size: %w", ErrInvalidArgument)
		}
		p.blockSize = AlignSize(opts.BlockSize, alignment)
		p.numBlocks = len(p.buf) / p.blockSize
		if p.numBlocks == 0 {
			return nil, fmt.Errorf("pool size %d below block size %d: %w", size, p.blockSize, ErrOutOfMemory)
		}
		p.freeBlocks = p.numBlocks
		p.bitmap = make([]uint64, (p.numBlocks+63)/64)
	case Dynamic:
		p.minBlockSize = opts.MinBlockSize
		if p.minBlockSize <= 0 {
			p.minBlockSize = minBlockSize
		}
		p.blocks = []block{{offset: 0, size: len(p.buf), free: true}}
	default:
		return nil, fmt.Errorf("unknown pool type %d: %w", opts.Type, ErrInvalidArgument)
	}

	return p, nil
}

// Alignment returns the pool's configured alignment.
func (p *Pool) Alignment() int { return p.alignment }

// TotalSize returns the arena capacity in bytes.
func (p *Pool) TotalSize() int { return len(p.buf) }

// UsedSize returns the number of bytes currently allocated.
func (p *Pool) UsedSize() int { return p.used }

// Alloc returns a slice of exactly size bytes carved from the arena, aligned
// to the pool alignment. It fails with ErrOutOfMemory when no block can
// satisfy the request.
func (p *Pool) Alloc(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("allocation size must be positive: %w", ErrInvalidArgument)
	}

	var buf []byte
	switch p.poolType {
	case Fixed:
		if size > p.blockSize {
			return nil, fmt.Errorf("request %d exceeds fixed block size %d: %w", size, p.blockSize, ErrOutOfMemory)
		}
		b, err := p.allocFixed()
		if err != nil {
			return nil, err
		}
		buf = b[:size:size]
	default:
		b, err := p.allocDynamic(AlignSize(size, p.alignment))
		if err != nil {
			return nil, err
		}
		buf = b[:size:size]
	}

	p.numAllocs++
	if p.used > p.peak {
		p.peak = p.used
	}
	return buf, nil
}

// AllocAligned returns a slice whose base address satisfies the requested
// alignment, which must be a power of two. Alignments at or below the pool
// alignment are served by plain Alloc; larger ones over-allocate and offset
// into the block.
func (p *Pool) AllocAligned(size, alignment int) ([]byte, error) {
	if size <= 0 || alignment <= 0 {
		return nil, fmt.Errorf("size and alignment must be positive: %w", ErrInvalidArgument)
	}
	if !isPowerOfTwo(alignment) {
		return nil, fmt.Errorf("alignment %d is not a power of two: %w", alignment, ErrInvalidArgument)
	}
	if alignment <= p.alignment {
		return p.Alloc(size)
	}

	raw, err := p.Alloc(size + alignment - 1)
	if err != nil {
		return nil, err
	}
	base := uintptr(unsafe.Pointer(&raw[0]))
	pad := int((uintptr(alignment) - base%uintptr(alignment)) % uintptr(alignment))
	return raw[pad : pad+size : pad+size], nil
}

// Free returns a previously allocated slice to the pool. The slice must be
// one returned by Alloc on this pool (AllocAligned slices are resolved back
// to their containing block).
func (p *Pool) Free(buf []byte) error {
	if len(buf) == 0 {
		return fmt.Errorf("nil buffer: %w", ErrInvalidArgument)
	}
	off, ok := p.offsetOf(buf)
	if !ok {
		return ErrInvalidPointer
	}

	if p.poolType == Fixed {
		return p.freeFixed(off)
	}
	return p.freeDynamic(off)
}

// Reset reclaims every block at once, returning the pool to its just-created
// layout. Peak usage is retained as a high-water mark.
func (p *Pool) Reset() {
	p.used = 0
	p.numResets++

	if p.poolType == Fixed {
		p.freeBlocks = p.numBlocks
		for i := range p.bitmap {
			p.bitmap[i] = 0
		}
		return
	}
	p.blocks = p.blocks[:0]
	p.blocks = append(p.blocks, block{offset: 0, size: len(p.buf), free: true})
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() PoolStats {
	s := PoolStats{
		TotalSize:      len(p.buf),
		UsedSize:       p.used,
		FreeSize:       len(p.buf) - p.used,
		PeakUsage:      p.peak,
		NumAllocations: p.numAllocs,
		NumFrees:       p.numFrees,
		NumResets:      p.numResets,
	}
	if s.TotalSize > 0 {
		s.FragmentationRatio = float64(p.used) / float64(s.TotalSize)
	}
	return s
}

// Validate performs a structural self-check and reports whether the pool's
// internal bookkeeping is consistent. It never mutates state.
func (p *Pool) Validate() bool {
	if len(p.buf) == 0 || p.used > len(p.buf) || !isPowerOfTwo(p.alignment) {
		return false
	}
	if p.poolType == Fixed {
		return p.freeBlocks <= p.numBlocks
	}

	// Dynamic: records must tile the arena in offset order, and used-size
	// accounting must agree with the non-free records.
	next := 0
	used := 0
	for i, b := range p.blocks {
		if b.offset != next || b.size <= 0 {
			return false
		}
		if !b.free {
			used += b.size
		}
		// Adjacent free blocks should have merged.
		if b.free && i+1 < len(p.blocks) && p.blocks[i+1].free {
			return false
		}
		next = b.offset + b.size
	}
	return next == len(p.buf) && used == p.used
}

// PrintInfo writes a human-readable dump of the pool state.
func (p *Pool) PrintInfo(w io.Writer) {
	kind := "dynamic"
	if p.poolType == Fixed {
		kind = "fixed"
	}
	fmt.Fprintf(w, "=== Memory Pool (%s) ===\n", kind)
	fmt.Fprintf(w, "Total size: %d bytes\n", len(p.buf))
	fmt.Fprintf(w, "Used size: %d bytes\n", p.used)
	fmt.Fprintf(w, "Free size: %d bytes\n", len(p.buf)-p.used)
	fmt.Fprintf(w, "Peak usage: %d bytes\n", p.peak)
	fmt.Fprintf(w, "Alignment: %d bytes\n", p.alignment)
	if p.poolType == Fixed {
		fmt.Fprintf(w, "Blocks: %d free of %d (block size %d)\n", p.freeBlocks, p.numBlocks, p.blockSize)
	} else {
		fmt.Fprintf(w, "Block records: %d\n", len(p.blocks))
	}
	fmt.Fprintf(w, "Allocations: %d, frees: %d, resets: %d\n", p.numAllocs, p.numFrees, p.numResets)
}

// allocDynamic serves an aligned-size request from the first fitting free
// block, splitting off the remainder when it is worth keeping.
func (p *Pool) allocDynamic(size int) ([]byte, error) {
	for i := range p.blocks {
		if !p.blocks[i].free || p.blocks[i].size < size {
			continue
		}
		if p.blocks[i].size >= size+p.minBlockSize {
			rest := block{offset: p.blocks[i].offset + size, size: p.blocks[i].size - size, free: true}
			p.blocks[i].size = size
			// append may move the backing array, so all writes go through
			// the re-indexed slice
			p.blocks = append(p.blocks, block{})
			copy(p.blocks[i+2:], p.blocks[i+1:])
			p.blocks[i+1] = rest
		}
		b := &p.blocks[i]
		b.free = false
		p.used += b.size
		return p.buf[b.offset : b.offset+b.size], nil
	}
	return nil, fmt.Errorf("no free block of %d bytes: %w", size, ErrOutOfMemory)
}

func (p *Pool) freeDynamic(off int) error {
	idx := -1
	for i := range p.blocks {
		if p.blocks[i].offset == off {
			idx = i
			break
		}
	}
	if idx < 0 || p.blocks[idx].free {
		return ErrInvalidPointer
	}

	p.blocks[idx].free = true
	p.used -= p.blocks[idx].size
	p.numFrees++
	p.mergeAt(idx)
	return nil
}

// mergeAt coalesces the block at idx with free neighbors on either side.
func (p *Pool) mergeAt(idx int) {
	// Merge with successor first so idx stays valid.
	if idx+1 < len(p.blocks) && p.blocks[idx+1].free {
		p.blocks[idx].size += p.blocks[idx+1].size
		p.blocks = append(p.blocks[:idx+1], p.blocks[idx+2:]...)
	}
	if idx > 0 && p.blocks[idx-1].free {
		p.blocks[idx-1].size += p.blocks[idx].size
		p.blocks = append(p.blocks[:idx], p.blocks[idx+1:]...)
	}
}

// offsetOf maps a slice back to its arena offset. Slices handed out by
// AllocAligned may start inside a block, so the offset is rounded down to
// the containing block boundary.
func (p *Pool) offsetOf(buf []byte) (int, bool) {
	base := uintptr(unsafe.Pointer(&p.buf[0]))
	addr := uintptr(unsafe.Pointer(&buf[0]))
	if addr < base || addr >= base+uintptr(len(p.buf)) {
		return 0, false
	}
	off := int(addr - base)

	if p.poolType == Fixed {
		return off - off%p.blockSize, true
	}
	for _, b := range p.blocks {
		if off >= b.offset && off < b.offset+b.size {
			return b.offset, true
		}
	}
	return 0, false
}

// AlignSize rounds size up to the next multiple of alignment.
func AlignSize(size, alignment int) int {
	if alignment <= 0 {
		return size
	}
	return (size + alignment - 1) &^ (alignment - 1)
}

// IsAligned reports whether the slice's base address is aligned.
func IsAligned(buf []byte, alignment int) bool {
	if alignment <= 1 || len(buf) == 0 {
		return true
	}
	return uintptr(unsafe.Pointer(&buf[0]))%uintptr(alignment) == 0
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// alignBuffer allocates size bytes whose base address is aligned. The Go
// heap aligns large slices generously, but the boundary is not guaranteed,
// so the buffer is over-allocated and re-sliced.
func alignBuffer(size, alignment int) []byte {
	raw := make([]byte, size+alignment)
	base := uintptr(unsafe.Pointer(&raw[0]))
	pad := int((uintptr(alignment) - base%uintptr(alignment)) % uintptr(alignment))
	return raw[pad : pad+size : pad+size]
}
