package memory

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocatorRoundTrip(t *testing.T) {
	alloc, err := NewAllocator(1024*1024, 32)
	require.NoError(t, err)

	sizes := []int{1, 7, 64, 128, 1000, 4096}
	alignments := []int{8, 16, 32, 64, 128}

	for _, size := range sizes {
		for _, alignment := range alignments {
			before := alloc.Stats().UsedSize
			buf, err := alloc.AllocAligned(size, alignment)
			require.NoError(t, err, "size=%d alignment=%d", size, alignment)
			assert.Len(t, buf, size)
			assert.True(t, IsAligned(buf, alignment), "size=%d alignment=%d", size, alignment)
			assert.GreaterOrEqual(t, alloc.Stats().UsedSize, before+size)

			require.NoError(t, alloc.Free(buf))
			assert.Equal(t, before, alloc.Stats().UsedSize)
		}
	}
}

func TestAllocatorScenarioOneMiB(t *testing.T) {
	alloc, err := NewAllocator(1024*1024, 32)
	require.NoError(t, err)

	a, err := alloc.Alloc(128)
	require.NoError(t, err)
	b, err := alloc.Alloc(256)
	require.NoError(t, err)

	assert.Equal(t, uint64(2), alloc.Stats().NumAllocations)

	require.NoError(t, alloc.Free(a))
	require.NoError(t, alloc.Free(b))
	assert.Equal(t, 0, alloc.Stats().NumActiveBlocks)
	assert.True(t, alloc.Validate())
}

func TestAllocatorStatsInvariant(t *testing.T) {
	alloc, err := NewAllocator(64*1024, 32)
	require.NoError(t, err)

	check := func() {
		s := alloc.Stats()
		assert.Equal(t, int(s.NumAllocations-s.NumFrees), s.NumActiveBlocks)
		assert.Equal(t, s.TotalSize, s.UsedSize+s.FreeSize)
	}

	check()
	var bufs [][]byte
	for _, size := range []int{32, 100, 500, 77} {
		buf, err := alloc.Alloc(size)
		require.NoError(t, err)
		bufs = append(bufs, buf)
		check()
	}
	for _, buf := range bufs {
		require.NoError(t, alloc.Free(buf))
		check()
	}
}

func TestAllocatorCalloc(t *testing.T) {
	alloc, err := NewAllocator(4096, 32)
	require.NoError(t, err)

	buf, err := alloc.Calloc(16, 8)
	require.NoError(t, err)
	assert.Len(t, buf, 128)
	for i, v := range buf {
		if v != 0 {
			t.Fatalf("byte %d not zeroed: %d", i, v)
		}
	}

	_, err = alloc.Calloc(0, 8)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestAllocatorFailureReturnsError(t *testing.T) {
	alloc, err := NewAllocator(1024, 32)
	require.NoError(t, err)

	_, err = alloc.Alloc(1 << 20)
	assert.ErrorIs(t, err, ErrOutOfMemory)

	_, err = NewAllocator(0, 32)
	assert.ErrorIs(t, err, ErrOutOfMemory)
}

func TestAllocatorInvalidFree(t *testing.T) {
	alloc, err := NewAllocator(4096, 32)
	require.NoError(t, err)

	assert.ErrorIs(t, alloc.Free(make([]byte, 32)), ErrInvalidPointer)

	buf, err := alloc.Alloc(64)
	require.NoError(t, err)
	require.NoError(t, alloc.Free(buf))
	assert.ErrorIs(t, alloc.Free(buf), ErrInvalidPointer)
}

func TestLeakAging(t *testing.T) {
	alloc, err := NewAllocator(64*1024, 32)
	require.NoError(t, err)
	alloc.EnableLeakDetection(true)

	old, err := alloc.Alloc(128)
	require.NoError(t, err)
	_ = old

	time.Sleep(20 * time.Millisecond)

	fresh, err := alloc.Alloc(64)
	require.NoError(t, err)
	require.NoError(t, alloc.Free(fresh))

	assert.Equal(t, 1, alloc.CheckMemoryLeaks(10*time.Millisecond))
	assert.Equal(t, 0, alloc.CheckMemoryLeaks(time.Minute))

	leaks := alloc.MemoryLeaks(10)
	require.Len(t, leaks, 1)
	assert.Equal(t, 128, leaks[0].Size)
	assert.Greater(t, leaks[0].Age, 10*time.Millisecond)
}

func TestLeakDetectionDisabled(t *testing.T) {
	alloc, err := NewAllocator(4096, 32)
	require.NoError(t, err)

	_, err = alloc.Alloc(128)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 0, alloc.CheckMemoryLeaks(0), "untracked blocks are not reported")
}

func TestCorruptionDetection(t *testing.T) {
	alloc, err := NewAllocator(64*1024, 32)
	require.NoError(t, err)

	a, err := alloc.Alloc(64)
	require.NoError(t, err)
	b, err := alloc.Alloc(64)
	require.NoError(t, err)
	_ = b

	assert.Equal(t, 0, alloc.CheckMemoryCorruption())

	// Overwrite the trailing guard of a, the classic off-by-N bug. The
	// payload slice is capacity-capped, so reach past it via the arena.
	off := alloc.arenaOffset(a)
	alloc.pool.buf[off+64] = 0x00

	assert.Equal(t, 1, alloc.CheckMemoryCorruption())

	// Diagnostics are advisory: the allocator still frees and validates.
	require.NoError(t, alloc.Free(a))
	assert.Equal(t, 0, alloc.CheckMemoryCorruption())
}

func TestAllocatorReset(t *testing.T) {
	alloc, err := NewAllocator(8192, 32)
	require.NoError(t, err)
	alloc.EnableLeakDetection(true)

	_, err = alloc.Alloc(1024)
	require.NoError(t, err)
	_, err = alloc.Alloc(2048)
	require.NoError(t, err)

	peak := alloc.Stats().PeakUsage
	alloc.Reset()

	s := alloc.Stats()
	assert.Equal(t, 0, s.UsedSize)
	assert.Equal(t, s.TotalSize, s.FreeSize)
	assert.Equal(t, peak, s.PeakUsage)
	assert.Equal(t, 0, s.NumActiveBlocks)
	assert.Equal(t, 0, alloc.CheckMemoryLeaks(0), "leak entries cleared by reset")

	// The full arena is available again, minus guard overhead.
	buf, err := alloc.Alloc(s.TotalSize - 256)
	require.NoError(t, err)
	assert.NotNil(t, buf)
	assert.True(t, alloc.Validate())
}

func TestAllocatorPrintInfo(t *testing.T) {
	alloc, err := NewAllocator(4096, 32)
	require.NoError(t, err)

	var buf bytes.Buffer
	alloc.PrintInfo(&buf)
	assert.True(t, strings.Contains(buf.String(), "Runtime Allocator"))
}
