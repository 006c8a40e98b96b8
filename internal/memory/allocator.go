package memory

import (
	"fmt"
	"io"
	"time"
	"unsafe"
)

const (
	// guardSize is the number of canary bytes written on each side of a
	// payload. The leading guard is widened to the allocator alignment so
	// payloads stay aligned.
	guardSize = 16
	guardByte = 0xFD
)

// LeakInfo describes one live allocation reported by MemoryLeaks.
type LeakInfo struct {
	Offset int           // payload offset within the arena
	Size   int           // requested payload size in bytes
	Age    time.Duration // time since allocation
}

// AllocatorStats is a snapshot of the allocator counters.
// NumActiveBlocks == NumAllocations - NumFrees and
// UsedSize + FreeSize == TotalSize hold at all times.
type AllocatorStats struct {
	TotalSize       int
	UsedSize        int
	FreeSize        int
	PeakUsage       int
	NumAllocations  uint64
	NumFrees        uint64
	NumActiveBlocks int
}

// liveBlock tracks one outstanding allocation: the full pool block
// (guards included), the payload view, and the allocation timestamp when
// leak detection was enabled at alloc time.
type liveBlock struct {
	outer       []byte
	payload     []byte
	size        int
	allocatedAt time.Time
}

// Allocator is a general-purpose instrumented allocator drawing from a
// private dynamic pool. Every allocation is bracketed by guard canaries;
// diagnostics (leak aging, corruption scan) are advisory and never alter
// allocator behavior.
type Allocator struct {
	pool      *Pool
	alignment int

	blocks        map[int]*liveBlock // keyed by payload arena offset
	leakDetection bool

	used      int
	peak      int
	numAllocs uint64
	numFrees  uint64
}

// NewAllocator creates an allocator backed by a fresh dynamic pool of
// totalSize bytes. Alignment must be a power of two (DefaultAlignment when
// zero). Fails with ErrOutOfMemory on a zero size, matching the pool
// contract.
func NewAllocator(totalSize, alignment int) (*Allocator, error) {
	if totalSize <= 0 {
		return nil, fmt.Errorf("allocator size must be positive: %w", ErrOutOfMemory)
	}
	if alignment == 0 {
		alignment = DefaultAlignment
	}
	pool, err := NewPool(totalSize, alignment)
	if err != nil {
		return nil, err
	}
	return &Allocator{
		pool:      pool,
		alignment: alignment,
		blocks:    make(map[int]*liveBlock),
	}, nil
}

// Alloc returns size bytes aligned to the allocator's configured alignment.
func (a *Allocator) Alloc(size int) ([]byte, error) {
	return a.allocGuarded(size, a.alignment)
}

// AllocAligned returns size bytes whose base address satisfies the given
// alignment, which must be a power of two and may exceed the allocator's
// default.
func (a *Allocator) AllocAligned(size, alignment int) ([]byte, error) {
	if alignment <= 0 || !isPowerOfTwo(alignment) {
		return nil, fmt.Errorf("alignment %d is not a power of two: %w", alignment, ErrInvalidArgument)
	}
	if alignment < a.alignment {
		alignment = a.alignment
	}
	return a.allocGuarded(size, alignment)
}

// Calloc returns zero-initialized memory for count elements of elemSize
// bytes, equivalent to Alloc(count*elemSize) plus a zero fill.
func (a *Allocator) Calloc(count, elemSize int) ([]byte, error) {
	if count <= 0 || elemSize <= 0 {
		return nil, fmt.Errorf("count and element size must be positive: %w", ErrInvalidArgument)
	}
	total := count * elemSize
	if total/count != elemSize {
		return nil, fmt.Errorf("allocation size overflows: %w", ErrInvalidArgument)
	}
	buf, err := a.Alloc(total)
	if err != nil {
		return nil, err
	}
	clear(buf)
	return buf, nil
}

func (a *Allocator) allocGuarded(size, alignment int) ([]byte, error) {
	if a.pool == nil {
		return nil, fmt.Errorf("allocator destroyed: %w", ErrInvalidArgument)
	}
	if size <= 0 {
		return nil, fmt.Errorf("allocation size must be positive: %w", ErrInvalidArgument)
	}

	lead := AlignSize(guardSize, alignment)
	outer, err := a.pool.AllocAligned(lead+size+guardSize, alignment)
	if err != nil {
		return nil, err
	}

	for i := lead - guardSize; i < lead; i++ {
		outer[i] = guardByte
	}
	for i := lead + size; i < lead+size+guardSize; i++ {
		outer[i] = guardByte
	}

	payload := outer[lead : lead+size : lead+size]
	blk := &liveBlock{outer: outer, payload: payload, size: size}
	if a.leakDetection {
		blk.allocatedAt = time.Now()
	}
	a.blocks[a.arenaOffset(payload)] = blk

	a.used += size
	if a.used > a.peak {
		a.peak = a.used
	}
	a.numAllocs++
	return payload, nil
}

// Free releases a block previously returned by Alloc, AllocAligned, or
// Calloc. Unknown or already-freed pointers fail with ErrInvalidPointer.
func (a *Allocator) Free(buf []byte) error {
	if a.pool == nil || len(buf) == 0 {
		return fmt.Errorf("nil buffer: %w", ErrInvalidArgument)
	}
	off := a.arenaOffset(buf)
	blk, ok := a.blocks[off]
	if !ok {
		return ErrInvalidPointer
	}
	if err := a.pool.Free(blk.outer); err != nil {
		return err
	}
	delete(a.blocks, off)
	a.used -= blk.size
	a.numFrees++
	return nil
}

// EnableLeakDetection toggles per-block timestamp tracking for subsequent
// allocations.
func (a *Allocator) EnableLeakDetection(enable bool) {
	a.leakDetection = enable
}

// CheckMemoryLeaks returns the number of live tracked blocks older than the
// threshold. Blocks allocated while leak detection was off are not counted.
func (a *Allocator) CheckMemoryLeaks(threshold time.Duration) int {
	now := time.Now()
	count := 0
	for _, blk := range a.blocks {
		if !blk.allocatedAt.IsZero() && now.Sub(blk.allocatedAt) > threshold {
			count++
		}
	}
	return count
}

// MemoryLeaks returns records for up to max tracked live blocks.
func (a *Allocator) MemoryLeaks(max int) []LeakInfo {
	now := time.Now()
	var leaks []LeakInfo
	for off, blk := range a.blocks {
		if blk.allocatedAt.IsZero() {
			continue
		}
		if max > 0 && len(leaks) >= max {
			break
		}
		leaks = append(leaks, LeakInfo{
			Offset: off,
			Size:   blk.size,
			Age:    now.Sub(blk.allocatedAt),
		})
	}
	return leaks
}

// CheckMemoryCorruption validates the guard regions around every live block
// and returns the number of blocks with violated guards. It only reads
// memory and never panics on a detected violation.
func (a *Allocator) CheckMemoryCorruption() int {
	violations := 0
	for _, blk := range a.blocks {
		lead := len(blk.outer) - blk.size - guardSize
		ok := true
		for i := lead - guardSize; i < lead; i++ {
			if blk.outer[i] != guardByte {
				ok = false
				break
			}
		}
		if ok {
			for i := lead + blk.size; i < len(blk.outer); i++ {
				if blk.outer[i] != guardByte {
					ok = false
					break
				}
			}
		}
		if !ok {
			violations++
		}
	}
	return violations
}

// Stats returns a snapshot of the allocator counters.
func (a *Allocator) Stats() AllocatorStats {
	total := 0
	if a.pool != nil {
		total = a.pool.TotalSize()
	}
	return AllocatorStats{
		TotalSize:       total,
		UsedSize:        a.used,
		FreeSize:        total - a.used,
		PeakUsage:       a.peak,
		NumAllocations:  a.numAllocs,
		NumFrees:        a.numFrees,
		NumActiveBlocks: len(a.blocks),
	}
}

// Reset reclaims all outstanding blocks at once and clears every leak and
// corruption tracking entry. Peak usage survives as a high-water mark;
// allocation counters restart so the stats invariants keep holding.
func (a *Allocator) Reset() {
	if a.pool == nil {
		return
	}
	a.pool.Reset()
	clear(a.blocks)
	a.used = 0
	a.numAllocs = 0
	a.numFrees = 0
}

// Destroy releases the backing pool. The allocator must not be used after.
func (a *Allocator) Destroy() {
	a.pool = nil
	a.blocks = nil
	a.used = 0
}

// Validate cross-checks allocator bookkeeping against the backing pool.
func (a *Allocator) Validate() bool {
	if a.pool == nil || !a.pool.Validate() {
		return false
	}
	if a.used > a.pool.TotalSize() || a.peak > a.pool.TotalSize() {
		return false
	}
	return uint64(len(a.blocks)) == a.numAllocs-a.numFrees
}

// PrintInfo writes a human-readable dump of the allocator state.
func (a *Allocator) PrintInfo(w io.Writer) {
	s := a.Stats()
	fmt.Fprintf(w, "=== Runtime Allocator ===\n")
	fmt.Fprintf(w, "Total size: %d bytes (%.2f MB)\n", s.TotalSize, float64(s.TotalSize)/(1024*1024))
	fmt.Fprintf(w, "Used size: %d bytes\n", s.UsedSize)
	fmt.Fprintf(w, "Free size: %d bytes\n", s.FreeSize)
	fmt.Fprintf(w, "Peak usage: %d bytes\n", s.PeakUsage)
	fmt.Fprintf(w, "Alignment: %d bytes\n", a.alignment)
	fmt.Fprintf(w, "Allocations: %d, frees: %d, active: %d\n", s.NumAllocations, s.NumFrees, s.NumActiveBlocks)
	fmt.Fprintf(w, "Leak detection: %v\n", a.leakDetection)
}

// arenaOffset maps a payload slice to its offset inside the backing arena.
func (a *Allocator) arenaOffset(buf []byte) int {
	base := uintptr(unsafe.Pointer(&a.pool.buf[0]))
	return int(uintptr(unsafe.Pointer(&buf[0])) - base)
}
