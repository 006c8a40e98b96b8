// Package kernels matches operation names and buffer sizes against the host
// CPU's SIMD feature set to pick the best registered numeric implementation.
//
// A Registry is an explicit, caller-constructed object with a one-time Init
// contract: the hardware feature mask is probed exactly once and never
// re-probed. Registries do not lock internally; hosts that share one across
// goroutines must synchronize initialization themselves.
package kernels

import "strings"

// Feature is a bitmask of CPU SIMD instruction-set tiers.
type Feature uint32

// SIMD feature flags.
const (
	FeatureNone  Feature = 0
	FeatureSSE   Feature = 1 << 0
	FeatureSSE2  Feature = 1 << 1
	FeatureSSE3  Feature = 1 << 2
	FeatureSSSE3 Feature = 1 << 3
	FeatureSSE41 Feature = 1 << 4
	FeatureSSE42 Feature = 1 << 5
	FeatureAVX   Feature = 1 << 6
	FeatureAVX2  Feature = 1 << 7
	FeatureNEON  Feature = 1 << 8
)

var featureNames = []struct {
	bit  Feature
	name string
}{
	{FeatureSSE, "SSE"},
	{FeatureSSE2, "SSE2"},
	{FeatureSSE3, "SSE3"},
	{FeatureSSSE3, "SSSE3"},
	{FeatureSSE41, "SSE4.1"},
	{FeatureSSE42, "SSE4.2"},
	{FeatureAVX, "AVX"},
	{FeatureAVX2, "AVX2"},
	{FeatureNEON, "NEON"},
}

// String renders the feature set as a comma-separated list, or "None".
func (f Feature) String() string {
	if f == FeatureNone {
		return "None"
	}
	var parts []string
	for _, fn := range featureNames {
		if f&fn.bit != 0 {
			parts = append(parts, fn.name)
		}
	}
	if len(parts) == 0 {
		return "Unknown"
	}
	return strings.Join(parts, ", ")
}

// DetectFeatures probes the host CPU once and returns its SIMD feature mask.
// The probe is idempotent; callers treat the result as process-wide.
func DetectFeatures() Feature {
	return detectFeatures()
}
