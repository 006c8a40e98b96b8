package kernels

import (
	"fmt"
	"time"
)

const benchIterations = 64

// RunBenchmarks micro-benchmarks every registered kernel the host can run
// and records a throughput score (million elements per second) on each
// entry. Scores are informational; selection stays score-free and
// deterministic.
func (r *Registry) RunBenchmarks(dataSize int) error {
	if !r.initialized {
		return ErrNotInitialized
	}
	if dataSize <= 0 {
		return fmt.Errorf("benchmark size %d: %w", dataSize, ErrInvalidArgument)
	}

	a := make([]float32, dataSize)
	b := make([]float32, dataSize)
	dst := make([]float32, dataSize)
	for i := range a {
		a[i] = float32(i%17) * 0.25
		b[i] = float32(i%13) * 0.5
	}

	for i := range r.kernels {
		k := &r.kernels[i]
		if k.Features != FeatureNone && k.Features&r.hwFeatures == 0 {
			continue
		}
		elapsed, elems := benchKernel(k.Fn, a, b, dst, dataSize)
		if elapsed <= 0 || elems == 0 {
			continue
		}
		k.Score = float64(elems) / elapsed.Seconds() / 1e6
	}
	return nil
}

func benchKernel(fn any, a, b, dst []float32, n int) (time.Duration, int) {
	start := time.Now()
	switch f := fn.(type) {
	case VectorBinaryFunc:
		for i := 0; i < benchIterations; i++ {
			f(a, b, dst)
		}
	case VectorScaleFunc:
		for i := 0; i < benchIterations; i++ {
			f(dst, 1.0)
		}
	case DotFunc:
		for i := 0; i < benchIterations; i++ {
			_ = f(a, b)
		}
	case ActivationFunc:
		for i := 0; i < benchIterations; i++ {
			f(a, dst)
		}
	case GemmFunc:
		// square matrices sized to the same element budget
		m := 1
		for (m+1)*(m+1) <= n {
			m++
		}
		for i := 0; i < benchIterations; i++ {
			f(a[:m*m], b[:m*m], dst[:m*m], m, m, m)
		}
		return time.Since(start), benchIterations * m * m
	default:
		return 0, 0
	}
	return time.Since(start), benchIterations * n
}
