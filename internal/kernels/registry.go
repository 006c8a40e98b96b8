package kernels

import (
	"fmt"
	"io"
	"strings"
)

// MaxKernels bounds the registry table, matching the fixed capacity of the
// dispatch design: registration past this fails loudly instead of growing.
const MaxKernels = 256

// Kernel function signatures. Entries are stored as `any` and type-asserted
// by the caller of SelectOptimal against the family it expects.
type (
	// VectorBinaryFunc computes dst[i] = op(a[i], b[i]).
	VectorBinaryFunc func(a, b, dst []float32)
	// VectorScaleFunc scales x in place by s.
	VectorScaleFunc func(x []float32, s float32)
	// DotFunc returns the inner product of a and b.
	DotFunc func(a, b []float32) float32
	// ActivationFunc computes out[i] = f(in[i]).
	ActivationFunc func(in, out []float32)
	// GemmFunc computes C = A*B for row-major MxK and KxN matrices.
	GemmFunc func(a, b, c []float32, m, n, k int)
)

// Kernel is one registered implementation of a named operation.
type Kernel struct {
	Name        string
	Fn          any
	Features    Feature // SIMD tiers required; FeatureNone for scalar baseline
	OptimalSize int     // element count this kernel is tuned for; 0 = any
	Score       float64 // benchmark performance score, 0 until measured
	active      bool
}

// Registry maps (operation name, buffer size, detected CPU features) to the
// best concrete kernel. It starts uninitialized; Init or InitWithFeatures
// must run before registration or selection.
type Registry struct {
	kernels     []Kernel
	hwFeatures  Feature
	initialized bool
}

// NewRegistry returns an uninitialized registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Init probes the host CPU feature mask (exactly once for this registry)
// and clears the kernel table. Calling Init on an initialized registry is a
// no-op.
func (r *Registry) Init() {
	r.InitWithFeatures(DetectFeatures())
}

// InitWithFeatures initializes with a caller-pinned hardware feature mask,
// for hosts and tests that need deterministic selection. A no-op when
// already initialized; the mask is never re-probed.
func (r *Registry) InitWithFeatures(features Feature) {
	if r.initialized {
		return
	}
	r.kernels = make([]Kernel, 0, 16)
	r.hwFeatures = features
	r.initialized = true
}

// Finalize discards all registrations and returns to the uninitialized
// state.
func (r *Registry) Finalize() {
	r.kernels = nil
	r.hwFeatures = FeatureNone
	r.initialized = false
}

// Initialized reports whether Init has run.
func (r *Registry) Initialized() bool { return r.initialized }

// Register adds a kernel entry. Duplicate names fail rather than overwrite.
func (r *Registry) Register(name string, fn any, features Feature, optimalSize int) error {
	if !r.initialized {
		return ErrNotInitialized
	}
	if name == "" || fn == nil {
		return fmt.Errorf("kernel name and function are required: %w", ErrInvalidArgument)
	}
	if len(r.kernels) >= MaxKernels {
		return fmt.Errorf("registry holds %d kernels: %w", MaxKernels, ErrCapacityExceeded)
	}
	for i := range r.kernels {
		if r.kernels[i].Name == name {
			return fmt.Errorf("kernel %q: %w", name, ErrAlreadyExists)
		}
	}
	r.kernels = append(r.kernels, Kernel{
		Name:        name,
		Fn:          fn,
		Features:    features,
		OptimalSize: optimalSize,
		active:      true,
	})
	return nil
}

// SetActive toggles a kernel in or out of selection without unregistering.
func (r *Registry) SetActive(name string, active bool) error {
	for i := range r.kernels {
		if r.kernels[i].Name == name {
			r.kernels[i].active = active
			return nil
		}
	}
	return fmt.Errorf("kernel %q: %w", name, ErrNotFound)
}

// SelectOptimal picks the best active kernel whose name contains opName.
//
// Candidates requiring SIMD tiers entirely absent from the hardware mask are
// rejected. The rest score by their highest declared tier (AVX2 8, AVX 6,
// NEON 5, SSE4.2 4, SSE2 2, scalar 1) plus a size-fit bonus (+2 at or above
// the kernel's optimal size, +1 at or above half of it). The first strictly
// highest score in registration order wins, which makes selection a pure
// function of (registration order, hardware mask, opName, dataSize).
func (r *Registry) SelectOptimal(opName string, dataSize int) (any, error) {
	if !r.initialized {
		return nil, ErrNotInitialized
	}
	if opName == "" {
		return nil, fmt.Errorf("empty operation name: %w", ErrInvalidArgument)
	}

	best := -1
	bestScore := 0
	for i := range r.kernels {
		k := &r.kernels[i]
		if !k.active || !strings.Contains(k.Name, opName) {
			continue
		}
		if k.Features != FeatureNone && k.Features&r.hwFeatures == 0 {
			continue
		}

		score := k.tierScore() + sizeBonus(dataSize, k.OptimalSize)
		if score > bestScore {
			bestScore = score
			best = i
		}
	}
	if best < 0 {
		return nil, fmt.Errorf("operation %q (size %d): %w", opName, dataSize, ErrNotFound)
	}
	return r.kernels[best].Fn, nil
}

// tierScore ranks the kernel's highest declared SIMD tier. This is a
// hand-tuned priority order, not a popcount: wider vectors usually but not
// always win, and NEON sits between AVX and SSE4.2.
func (k *Kernel) tierScore() int {
	switch {
	case k.Features&FeatureAVX2 != 0:
		return 8
	case k.Features&FeatureAVX != 0:
		return 6
	case k.Features&FeatureNEON != 0:
		return 5
	case k.Features&FeatureSSE42 != 0:
		return 4
	case k.Features&FeatureSSE2 != 0:
		return 2
	default:
		return 1
	}
}

func sizeBonus(dataSize, optimalSize int) int {
	switch {
	case dataSize >= optimalSize:
		return 2
	case dataSize >= optimalSize/2:
		return 1
	default:
		return 0
	}
}

// HardwareFeatures returns the feature mask captured at Init.
func (r *Registry) HardwareFeatures() Feature { return r.hwFeatures }

// KernelCount returns the number of registered kernels.
func (r *Registry) KernelCount() int { return len(r.kernels) }

// Kernels returns a copy of the registered entries, in registration order.
func (r *Registry) Kernels() []Kernel {
	out := make([]Kernel, len(r.kernels))
	copy(out, r.kernels)
	return out
}

// kernelFamilies groups the PrintInfo dump the way operators are named.
var kernelFamilies = []string{"vector_add", "vector_mul", "vector_scale", "vector_dot", "gemm", "activation"}

// PrintInfo writes a human-readable dump of the registry.
func (r *Registry) PrintInfo(w io.Writer) {
	if !r.initialized {
		fmt.Fprintln(w, "Kernel registry not initialized")
		return
	}

	fmt.Fprintf(w, "=== Kernel Registry ===\n")
	fmt.Fprintf(w, "Hardware features: 0x%08X (%s)\n", uint32(r.hwFeatures), r.hwFeatures)
	fmt.Fprintf(w, "Registered kernels: %d\n", len(r.kernels))

	printed := make([]bool, len(r.kernels))
	for _, family := range kernelFamilies {
		header := false
		for i := range r.kernels {
			k := &r.kernels[i]
			if !strings.Contains(k.Name, family) {
				continue
			}
			if !header {
				fmt.Fprintf(w, "\n%s kernels:\n", family)
				header = true
			}
			r.printKernel(w, i)
			printed[i] = true
		}
	}

	header := false
	for i := range r.kernels {
		if printed[i] {
			continue
		}
		if !header {
			fmt.Fprintf(w, "\nother kernels:\n")
			header = true
		}
		r.printKernel(w, i)
	}
}

func (r *Registry) printKernel(w io.Writer, i int) {
	k := &r.kernels[i]
	available := k.Features == FeatureNone || k.Features&r.hwFeatures != 0
	fmt.Fprintf(w, "  [%d] %s\n", i, k.Name)
	fmt.Fprintf(w, "      SIMD: %s\n", k.Features)
	fmt.Fprintf(w, "      Optimal size: %d\n", k.OptimalSize)
	if k.Score > 0 {
		fmt.Fprintf(w, "      Performance score: %.2f\n", k.Score)
	}
	fmt.Fprintf(w, "      Available: %v\n", available)
}
