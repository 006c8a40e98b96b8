package kernels

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T, hw Feature) *Registry {
	t.Helper()
	r := NewRegistry()
	r.InitWithFeatures(hw)
	return r
}

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Initialized())

	err := r.Register("vector_add_scalar", VectorBinaryFunc(addScalar), FeatureNone, 0)
	assert.ErrorIs(t, err, ErrNotInitialized)

	_, err = r.SelectOptimal("vector_add", 16)
	assert.ErrorIs(t, err, ErrNotInitialized)

	r.InitWithFeatures(FeatureSSE2)
	assert.True(t, r.Initialized())
	assert.Equal(t, FeatureSSE2, r.HardwareFeatures())

	// second init does not re-probe or clear
	require.NoError(t, r.Register("vector_add_scalar", VectorBinaryFunc(addScalar), FeatureNone, 0))
	r.InitWithFeatures(FeatureAVX2)
	assert.Equal(t, FeatureSSE2, r.HardwareFeatures())
	assert.Equal(t, 1, r.KernelCount())

	r.Finalize()
	assert.False(t, r.Initialized())
	assert.Equal(t, 0, r.KernelCount())
}

func TestRegisterValidation(t *testing.T) {
	r := newTestRegistry(t, FeatureSSE2)

	tests := []struct {
		desc string
		name string
		fn   any
		want error
	}{
		{"empty name", "", VectorBinaryFunc(addScalar), ErrInvalidArgument},
		{"nil function", "vector_add_nil", nil, ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			err := r.Register(tt.name, tt.fn, FeatureNone, 0)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	require.NoError(t, r.Register("vector_add_scalar", VectorBinaryFunc(addScalar), FeatureNone, 0))
	err := r.Register("vector_add_scalar", VectorBinaryFunc(addWide), FeatureAVX2, 1024)
	assert.ErrorIs(t, err, ErrAlreadyExists)
	assert.Equal(t, 1, r.KernelCount())
}

func TestRegisterCapacity(t *testing.T) {
	r := newTestRegistry(t, FeatureNone)
	fn := VectorBinaryFunc(addScalar)
	for i := 0; i < MaxKernels; i++ {
		require.NoError(t, r.Register(string(rune('a'+i%26))+string(rune('0'+i/26)), fn, FeatureNone, 0))
	}
	err := r.Register("overflow", fn, FeatureNone, 0)
	assert.ErrorIs(t, err, ErrCapacityExceeded)
}

func TestSelectOptimalPrefersSIMDTier(t *testing.T) {
	// add_scalar scores 1+2=3, add_avx2 scores 8+2=10 at size 2048
	r := newTestRegistry(t, FeatureAVX2|FeatureSSE2)
	require.NoError(t, r.Register("vector_add_scalar", VectorBinaryFunc(addScalar), FeatureNone, 0))
	require.NoError(t, r.Register("vector_add_avx2", VectorBinaryFunc(addWide), FeatureAVX2, 1024))

	fn, err := r.SelectOptimal("vector_add", 2048)
	require.NoError(t, err)
	assert.Equal(t, funcOf(t, addWide), funcOf(t, fn.(VectorBinaryFunc)))
}

func TestSelectOptimalFallsBackToScalar(t *testing.T) {
	r := newTestRegistry(t, FeatureSSE2)
	require.NoError(t, r.Register("vector_add_scalar", VectorBinaryFunc(addScalar), FeatureNone, 0))
	require.NoError(t, r.Register("vector_add_avx2", VectorBinaryFunc(addWide), FeatureAVX2, 1024))

	fn, err := r.SelectOptimal("vector_add", 2048)
	require.NoError(t, err)
	assert.Equal(t, funcOf(t, addScalar), funcOf(t, fn.(VectorBinaryFunc)))
}

func TestSelectOptimalSizeBonus(t *testing.T) {
	// Same tier, different optimal sizes: small requests land on the
	// small-tuned kernel, large requests on the large-tuned one.
	r := newTestRegistry(t, FeatureAVX2)
	small := VectorBinaryFunc(func(a, b, dst []float32) { dst[0] = 1 })
	large := VectorBinaryFunc(func(a, b, dst []float32) { dst[0] = 2 })
	require.NoError(t, r.Register("vector_mul_avx2_small", small, FeatureAVX2, 64))
	require.NoError(t, r.Register("vector_mul_avx2_large", large, FeatureAVX2, 4096))

	buf := make([]float32, 1)

	fn, err := r.SelectOptimal("vector_mul", 64)
	require.NoError(t, err)
	fn.(VectorBinaryFunc)(nil, nil, buf)
	assert.Equal(t, float32(1), buf[0])

	fn, err = r.SelectOptimal("vector_mul", 4096)
	require.NoError(t, err)
	fn.(VectorBinaryFunc)(nil, nil, buf)
	assert.Equal(t, float32(2), buf[0])
}

func TestSelectOptimalTieGoesToFirstRegistered(t *testing.T) {
	r := newTestRegistry(t, FeatureAVX2)
	first := VectorBinaryFunc(func(a, b, dst []float32) { dst[0] = 1 })
	second := VectorBinaryFunc(func(a, b, dst []float32) { dst[0] = 2 })
	require.NoError(t, r.Register("vector_add_avx2_a", first, FeatureAVX2, 1024))
	require.NoError(t, r.Register("vector_add_avx2_b", second, FeatureAVX2, 1024))

	buf := make([]float32, 1)
	for i := 0; i < 5; i++ {
		fn, err := r.SelectOptimal("vector_add", 2048)
		require.NoError(t, err)
		fn.(VectorBinaryFunc)(nil, nil, buf)
		assert.Equal(t, float32(1), buf[0], "selection must be deterministic")
	}
}

func TestSelectOptimalNotFound(t *testing.T) {
	r := newTestRegistry(t, FeatureNone)
	require.NoError(t, r.Register("vector_add_avx2", VectorBinaryFunc(addWide), FeatureAVX2, 1024))

	// only candidate requires SIMD the hardware lacks
	_, err := r.SelectOptimal("vector_add", 2048)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.SelectOptimal("gemm", 64)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.SelectOptimal("", 64)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestSetActive(t *testing.T) {
	r := newTestRegistry(t, FeatureAVX2)
	require.NoError(t, r.RegisterBuiltins())

	require.NoError(t, r.SetActive("vector_add_avx2", false))
	fn, err := r.SelectOptimal("vector_add", 2048)
	require.NoError(t, err)
	assert.Equal(t, funcOf(t, addScalar), funcOf(t, fn.(VectorBinaryFunc)))

	require.NoError(t, r.SetActive("vector_add_avx2", true))
	fn, err = r.SelectOptimal("vector_add", 2048)
	require.NoError(t, err)
	assert.Equal(t, funcOf(t, addWide), funcOf(t, fn.(VectorBinaryFunc)))

	assert.ErrorIs(t, r.SetActive("no_such_kernel", false), ErrNotFound)
}

func TestRegisterBuiltins(t *testing.T) {
	r := newTestRegistry(t, FeatureAVX2|FeatureSSE2)
	require.NoError(t, r.RegisterBuiltins())
	assert.Equal(t, len(builtinKernels), r.KernelCount())

	// every operation family resolves on AVX2 hardware
	for _, op := range []string{"vector_add", "vector_mul", "vector_scale", "vector_dot", "gemm", "activation_relu", "activation_softmax"} {
		_, err := r.SelectOptimal(op, 256)
		assert.NoError(t, err, op)
	}

	// and still resolves with no SIMD at all
	r2 := newTestRegistry(t, FeatureNone)
	require.NoError(t, r2.RegisterBuiltins())
	for _, op := range []string{"vector_add", "vector_mul", "gemm"} {
		fn, err := r2.SelectOptimal(op, 256)
		require.NoError(t, err, op)
		assert.NotNil(t, fn)
	}
}

func TestRunBenchmarks(t *testing.T) {
	r := newTestRegistry(t, DetectFeatures())
	require.NoError(t, r.RegisterBuiltins())

	assert.ErrorIs(t, r.RunBenchmarks(0), ErrInvalidArgument)
	require.NoError(t, r.RunBenchmarks(256))

	scored := 0
	for _, k := range r.Kernels() {
		if k.Score > 0 {
			scored++
		}
	}
	assert.Greater(t, scored, 0)
}

func TestPrintInfo(t *testing.T) {
	var buf bytes.Buffer

	r := NewRegistry()
	r.PrintInfo(&buf)
	assert.Contains(t, buf.String(), "not initialized")

	buf.Reset()
	r.InitWithFeatures(FeatureAVX2 | FeatureSSE2)
	require.NoError(t, r.RegisterBuiltins())
	r.PrintInfo(&buf)
	out := buf.String()
	assert.Contains(t, out, "Kernel Registry")
	assert.Contains(t, out, "vector_add_scalar")
	assert.Contains(t, out, "gemm_blocked_avx2")
}

// funcOf compares kernel functions by identity.
func funcOf(t *testing.T, fn VectorBinaryFunc) uintptr {
	t.Helper()
	return reflect.ValueOf(fn).Pointer()
}
