package kernels

import (
	"math"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// Scalar baseline kernels. These run on every host and anchor the dispatch
// table: a SIMD tier only replaces one of these when selection scores it
// higher.

func addScalar(a, b, dst []float32) {
	copy(dst, a)
	blas32.Axpy(1,
		blas32.Vector{N: len(b), Data: b, Inc: 1},
		blas32.Vector{N: len(dst), Data: dst, Inc: 1})
}

func mulScalar(a, b, dst []float32) {
	for i := range dst {
		dst[i] = a[i] * b[i]
	}
}

func scaleScalar(x []float32, s float32) {
	blas32.Scal(s, blas32.Vector{N: len(x), Data: x, Inc: 1})
}

func dotScalar(a, b []float32) float32 {
	return blas32.Dot(
		blas32.Vector{N: len(a), Data: a, Inc: 1},
		blas32.Vector{N: len(b), Data: b, Inc: 1})
}

func gemmScalar(a, b, c []float32, m, n, k int) {
	blas32.Gemm(blas.NoTrans, blas.NoTrans, 1,
		blas32.General{Rows: m, Cols: k, Stride: k, Data: a},
		blas32.General{Rows: k, Cols: n, Stride: n, Data: b},
		0,
		blas32.General{Rows: m, Cols: n, Stride: n, Data: c})
}

func reluScalar(in, out []float32) {
	for i, v := range in {
		if v > 0 {
			out[i] = v
		} else {
			out[i] = 0
		}
	}
}

func sigmoidScalar(in, out []float32) {
	for i, v := range in {
		out[i] = float32(1 / (1 + math.Exp(-float64(v))))
	}
}

func tanhScalar(in, out []float32) {
	for i, v := range in {
		out[i] = float32(math.Tanh(float64(v)))
	}
}

func geluScalar(in, out []float32) {
	// tanh approximation of GELU
	const c = 0.7978845608028654 // sqrt(2/pi)
	for i, v := range in {
		x := float64(v)
		out[i] = float32(0.5 * x * (1 + math.Tanh(c*(x+0.044715*x*x*x))))
	}
}

func softmaxScalar(in, out []float32) {
	if len(in) == 0 {
		return
	}
	max := in[0]
	for _, v := range in[1:] {
		if v > max {
			max = v
		}
	}
	var sum float64
	for i, v := range in {
		e := math.Exp(float64(v - max))
		out[i] = float32(e)
		sum += e
	}
	inv := float32(1 / sum)
	for i := range out {
		out[i] *= inv
	}
}
