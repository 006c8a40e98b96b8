package kernels

// Optimal sizes the builtin kernels were tuned at: element counts below
// these still work, they just stop earning the size-fit bonus.
const (
	vectorOptimalSize = 1024
	gemmOptimalSize   = 64
)

type builtinKernel struct {
	name        string
	fn          any
	features    Feature
	optimalSize int
}

var builtinKernels = []builtinKernel{
	// Scalar baselines register first; SIMD tiers outscore them whenever
	// the hardware mask allows.
	{"vector_add_scalar", VectorBinaryFunc(addScalar), FeatureNone, 0},
	{"vector_add_avx2", VectorBinaryFunc(addWide), FeatureAVX2, vectorOptimalSize},
	{"vector_add_neon", VectorBinaryFunc(addWide), FeatureNEON, vectorOptimalSize},

	{"vector_mul_scalar", VectorBinaryFunc(mulScalar), FeatureNone, 0},
	{"vector_mul_avx2", VectorBinaryFunc(mulWide), FeatureAVX2, vectorOptimalSize},
	{"vector_mul_neon", VectorBinaryFunc(mulWide), FeatureNEON, vectorOptimalSize},

	{"vector_scale_scalar", VectorScaleFunc(scaleScalar), FeatureNone, 0},
	{"vector_scale_avx2", VectorScaleFunc(scaleWide), FeatureAVX2, vectorOptimalSize},
	{"vector_scale_neon", VectorScaleFunc(scaleWide), FeatureNEON, vectorOptimalSize},

	{"vector_dot_scalar", DotFunc(dotScalar), FeatureNone, 0},
	{"vector_dot_avx2", DotFunc(dotWide), FeatureAVX2, vectorOptimalSize},
	{"vector_dot_neon", DotFunc(dotWide), FeatureNEON, vectorOptimalSize},

	{"gemm_scalar", GemmFunc(gemmScalar), FeatureNone, 0},
	{"gemm_blocked_avx2", GemmFunc(gemmBlocked), FeatureAVX2, gemmOptimalSize},
	{"gemm_blocked_neon", GemmFunc(gemmBlocked), FeatureNEON, gemmOptimalSize},

	{"activation_relu_scalar", ActivationFunc(reluScalar), FeatureNone, 0},
	{"activation_sigmoid_scalar", ActivationFunc(sigmoidScalar), FeatureNone, 0},
	{"activation_tanh_scalar", ActivationFunc(tanhScalar), FeatureNone, 0},
	{"activation_gelu_scalar", ActivationFunc(geluScalar), FeatureNone, 0},
	{"activation_softmax_scalar", ActivationFunc(softmaxScalar), FeatureNone, 0},
}

// RegisterBuiltins installs the stock kernel set into an initialized
// registry.
func (r *Registry) RegisterBuiltins() error {
	for _, k := range builtinKernels {
		if err := r.Register(k.name, k.fn, k.features, k.optimalSize); err != nil {
			return err
		}
	}
	return nil
}
