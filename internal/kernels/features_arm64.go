//go:build arm64

package kernels

// NEON (AdvSIMD) is mandatory on arm64.
func detectFeatures() Feature {
	return FeatureNEON
}
