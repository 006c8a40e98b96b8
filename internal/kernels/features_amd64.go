//go:build amd64

package kernels

import "golang.org/x/sys/cpu"

func detectFeatures() Feature {
	// SSE and SSE2 are part of the amd64 baseline.
	f := FeatureSSE | FeatureSSE2
	if cpu.X86.HasSSE3 {
		f |= FeatureSSE3
	}
	if cpu.X86.HasSSSE3 {
		f |= FeatureSSSE3
	}
	if cpu.X86.HasSSE41 {
		f |= FeatureSSE41
	}
	if cpu.X86.HasSSE42 {
		f |= FeatureSSE42
	}
	if cpu.X86.HasAVX {
		f |= FeatureAVX
	}
	if cpu.X86.HasAVX2 {
		f |= FeatureAVX2
	}
	return f
}
