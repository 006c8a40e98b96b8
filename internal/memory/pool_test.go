package memory

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPoolValidation(t *testing.T) {
	tests := []struct {
		name string
		size int
		opts PoolOptions
	}{
		{name: "zero size", size: 0, opts: DefaultPoolOptions()},
		{name: "negative size", size: -1, opts: DefaultPoolOptions()},
		{name: "non power of two alignment", size: 1024, opts: PoolOptions{Alignment: 48}},
		{name: "fixed without block size", size: 1024, opts: PoolOptions{Type: Fixed, Alignment: 32}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPoolWithOptions(tt.size, tt.opts)
			assert.Error(t, err)
		})
	}
}

func TestPoolAllocFree(t *testing.T) {
	pool, err := NewPool(64*1024, 32)
	require.NoError(t, err)

	a, err := pool.Alloc(100)
	require.NoError(t, err)
	assert.Len(t, a, 100)
	assert.True(t, IsAligned(a, 32))

	b, err := pool.Alloc(200)
	require.NoError(t, err)
	assert.True(t, IsAligned(b, 32))

	used := pool.UsedSize()
	assert.GreaterOrEqual(t, used, 300)

	require.NoError(t, pool.Free(a))
	assert.Less(t, pool.UsedSize(), used)
	require.NoError(t, pool.Free(b))
	assert.Equal(t, 0, pool.UsedSize())
	assert.True(t, pool.Validate())
}

func TestPoolSplitBookkeeping(t *testing.T) {
	// the first allocation splits the single initial free block, growing
	// the record slice; the split block must still be marked in use
	pool, err := NewPool(1<<20, 32)
	require.NoError(t, err)

	a, err := pool.Alloc(128)
	require.NoError(t, err)
	b, err := pool.Alloc(256)
	require.NoError(t, err)
	assert.True(t, pool.Validate())

	// the two live blocks must not be handed out again
	c, err := pool.Alloc(128)
	require.NoError(t, err)
	assert.NotSame(t, &a[0], &c[0])
	assert.NotSame(t, &b[0], &c[0])

	require.NoError(t, pool.Free(a))
	require.NoError(t, pool.Free(b))
	require.NoError(t, pool.Free(c))
	assert.True(t, pool.Validate())
	assert.Equal(t, 0, pool.UsedSize())
}

func TestPoolAllocAligned(t *testing.T) {
	pool, err := NewPool(64*1024, 32)
	require.NoError(t, err)

	for _, alignment := range []int{8, 32, 64, 128, 256} {
		buf, err := pool.AllocAligned(100, alignment)
		require.NoError(t, err, "alignment %d", alignment)
		assert.True(t, IsAligned(buf, alignment), "alignment %d", alignment)
		require.NoError(t, pool.Free(buf))
	}

	_, err = pool.AllocAligned(100, 33)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestPoolExhaustion(t *testing.T) {
	pool, err := NewPool(1024, 32)
	require.NoError(t, err)

	_, err = pool.Alloc(4096)
	assert.ErrorIs(t, err, ErrOutOfMemory)

	// The failed allocation must leave the pool usable.
	buf, err := pool.Alloc(512)
	require.NoError(t, err)
	require.NoError(t, pool.Free(buf))
}

func TestPoolInvalidFree(t *testing.T) {
	pool, err := NewPool(4096, 32)
	require.NoError(t, err)

	foreign := make([]byte, 64)
	assert.ErrorIs(t, pool.Free(foreign), ErrInvalidPointer)

	buf, err := pool.Alloc(64)
	require.NoError(t, err)
	require.NoError(t, pool.Free(buf))
	assert.ErrorIs(t, pool.Free(buf), ErrInvalidPointer, "double free")
}

func TestPoolCoalescing(t *testing.T) {
	pool, err := NewPool(4096, 32)
	require.NoError(t, err)

	a, err := pool.Alloc(512)
	require.NoError(t, err)
	b, err := pool.Alloc(512)
	require.NoError(t, err)
	c, err := pool.Alloc(512)
	require.NoError(t, err)

	// Free out of order so coalescing has to merge both neighbors.
	require.NoError(t, pool.Free(a))
	require.NoError(t, pool.Free(c))
	require.NoError(t, pool.Free(b))
	assert.True(t, pool.Validate())

	// The whole arena must be a single free block again.
	big, err := pool.Alloc(pool.TotalSize())
	require.NoError(t, err)
	assert.Len(t, big, pool.TotalSize())
}

func TestPoolReset(t *testing.T) {
	pool, err := NewPool(4096, 32)
	require.NoError(t, err)

	_, err = pool.Alloc(1024)
	require.NoError(t, err)
	_, err = pool.Alloc(1024)
	require.NoError(t, err)

	peak := pool.Stats().PeakUsage
	pool.Reset()

	s := pool.Stats()
	assert.Equal(t, 0, s.UsedSize)
	assert.Equal(t, s.TotalSize, s.FreeSize)
	assert.Equal(t, peak, s.PeakUsage, "peak survives reset")
	assert.Equal(t, uint64(1), s.NumResets)

	buf, err := pool.Alloc(pool.TotalSize())
	require.NoError(t, err)
	assert.Len(t, buf, pool.TotalSize())
}

func TestFixedPool(t *testing.T) {
	pool, err := NewPoolWithOptions(1024, PoolOptions{Type: Fixed, Alignment: 32, BlockSize: 128})
	require.NoError(t, err)

	var bufs [][]byte
	for i := 0; i < 8; i++ {
		buf, err := pool.Alloc(100)
		require.NoError(t, err, "block %d", i)
		assert.True(t, IsAligned(buf, 32))
		bufs = append(bufs, buf)
	}

	_, err = pool.Alloc(1)
	assert.ErrorIs(t, err, ErrOutOfMemory, "all blocks taken")

	_, err = pool.Alloc(129)
	assert.ErrorIs(t, err, ErrOutOfMemory, "request above block size")

	require.NoError(t, pool.Free(bufs[3]))
	assert.ErrorIs(t, pool.Free(bufs[3]), ErrInvalidPointer, "double free")

	again, err := pool.Alloc(128)
	require.NoError(t, err)
	assert.NotNil(t, again)
	assert.True(t, pool.Validate())
}

func TestPoolStatsInvariant(t *testing.T) {
	pool, err := NewPool(8192, 32)
	require.NoError(t, err)

	check := func() {
		s := pool.Stats()
		assert.Equal(t, s.TotalSize, s.UsedSize+s.FreeSize)
	}

	check()
	a, _ := pool.Alloc(100)
	check()
	b, _ := pool.Alloc(1000)
	check()
	require.NoError(t, pool.Free(a))
	check()
	require.NoError(t, pool.Free(b))
	check()
}

func TestPoolPrintInfo(t *testing.T) {
	pool, err := NewPool(4096, 32)
	require.NoError(t, err)

	var buf bytes.Buffer
	pool.PrintInfo(&buf)
	out := buf.String()
	assert.True(t, strings.Contains(out, "Total size: 4096"))
	assert.True(t, strings.Contains(out, "Alignment: 32"))
}

func TestAlignSize(t *testing.T) {
	tests := []struct {
		size, alignment, want int
	}{
		{0, 32, 0},
		{1, 32, 32},
		{32, 32, 32},
		{33, 32, 64},
		{100, 8, 104},
		{100, 0, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AlignSize(tt.size, tt.alignment), "AlignSize(%d, %d)", tt.size, tt.alignment)
	}
}
