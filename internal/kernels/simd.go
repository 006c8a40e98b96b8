package kernels

// Wide-vector kernels. Written as 8-lane unrolled Go so the compiler can
// vectorize the hot loop; registered under the AVX2/NEON tiers they are
// tuned for.

func addWide(a, b, dst []float32) {
	i := 0
	for ; i+8 <= len(dst); i += 8 {
		dst[i+0] = a[i+0] + b[i+0]
		dst[i+1] = a[i+1] + b[i+1]
		dst[i+2] = a[i+2] + b[i+2]
		dst[i+3] = a[i+3] + b[i+3]
		dst[i+4] = a[i+4] + b[i+4]
		dst[i+5] = a[i+5] + b[i+5]
		dst[i+6] = a[i+6] + b[i+6]
		dst[i+7] = a[i+7] + b[i+7]
	}
	for ; i < len(dst); i++ {
		dst[i] = a[i] + b[i]
	}
}

func mulWide(a, b, dst []float32) {
	i := 0
	for ; i+8 <= len(dst); i += 8 {
		dst[i+0] = a[i+0] * b[i+0]
		dst[i+1] = a[i+1] * b[i+1]
		dst[i+2] = a[i+2] * b[i+2]
		dst[i+3] = a[i+3] * b[i+3]
		dst[i+4] = a[i+4] * b[i+4]
		dst[i+5] = a[i+5] * b[i+5]
		dst[i+6] = a[i+6] * b[i+6]
		dst[i+7] = a[i+7] * b[i+7]
	}
	for ; i < len(dst); i++ {
		dst[i] = a[i] * b[i]
	}
}

func scaleWide(x []float32, s float32) {
	i := 0
	for ; i+8 <= len(x); i += 8 {
		x[i+0] *= s
		x[i+1] *= s
		x[i+2] *= s
		x[i+3] *= s
		x[i+4] *= s
		x[i+5] *= s
		x[i+6] *= s
		x[i+7] *= s
	}
	for ; i < len(x); i++ {
		x[i] *= s
	}
}

func dotWide(a, b []float32) float32 {
	var s0, s1, s2, s3 float32
	i := 0
	for ; i+4 <= len(a); i += 4 {
		s0 += a[i+0] * b[i+0]
		s1 += a[i+1] * b[i+1]
		s2 += a[i+2] * b[i+2]
		s3 += a[i+3] * b[i+3]
	}
	sum := s0 + s1 + s2 + s3
	for ; i < len(a); i++ {
		sum += a[i] * b[i]
	}
	return sum
}

// gemmBlocked tiles the inner loops for cache locality. Good enough for the
// small matmuls the graph executor issues; large models go through BLAS.
func gemmBlocked(a, b, c []float32, m, n, k int) {
	const bs = 64
	for i := range c[:m*n] {
		c[i] = 0
	}
	for i0 := 0; i0 < m; i0 += bs {
		iMax := min(i0+bs, m)
		for k0 := 0; k0 < k; k0 += bs {
			kMax := min(k0+bs, k)
			for i := i0; i < iMax; i++ {
				for p := k0; p < kMax; p++ {
					av := a[i*k+p]
					row := b[p*n : p*n+n]
					crow := c[i*n : i*n+n]
					for j, bv := range row {
						crow[j] += av * bv
					}
				}
			}
		}
	}
}
