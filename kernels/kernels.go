// Copyright 2025 The Etude Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package kernels provides the public API for Etude's kernel dispatch
// registry.
//
// A Registry maps operation names to concrete numeric implementations and
// selects among them by the host CPU's SIMD features and the request's
// buffer size:
//
//	reg := kernels.NewRegistry()
//	reg.Init()
//	_ = reg.RegisterBuiltins()
//	fn, _ := reg.SelectOptimal("vector_add", 2048)
//	fn.(kernels.VectorBinaryFunc)(a, b, dst)
package kernels

import (
	"github.com/etude-ml/etude/internal/kernels"
)

// Feature is a bitmask of CPU SIMD instruction-set tiers.
type Feature = kernels.Feature

// SIMD feature flags.
const (
	FeatureNone  Feature = kernels.FeatureNone
	FeatureSSE   Feature = kernels.FeatureSSE
	FeatureSSE2  Feature = kernels.FeatureSSE2
	FeatureSSE3  Feature = kernels.FeatureSSE3
	FeatureSSSE3 Feature = kernels.FeatureSSSE3
	FeatureSSE41 Feature = kernels.FeatureSSE41
	FeatureSSE42 Feature = kernels.FeatureSSE42
	FeatureAVX   Feature = kernels.FeatureAVX
	FeatureAVX2  Feature = kernels.FeatureAVX2
	FeatureNEON  Feature = kernels.FeatureNEON
)

// MaxKernels is the registry's fixed capacity.
const MaxKernels = kernels.MaxKernels

// Kernel function signatures.
type (
	VectorBinaryFunc = kernels.VectorBinaryFunc
	VectorScaleFunc  = kernels.VectorScaleFunc
	DotFunc          = kernels.DotFunc
	ActivationFunc   = kernels.ActivationFunc
	GemmFunc         = kernels.GemmFunc
)

// Kernel is one registered implementation of a named operation.
type Kernel = kernels.Kernel

// Registry dispatches operation names to kernels.
type Registry = kernels.Registry

// Sentinel errors.
var (
	ErrNotInitialized   = kernels.ErrNotInitialized
	ErrInvalidArgument  = kernels.ErrInvalidArgument
	ErrAlreadyExists    = kernels.ErrAlreadyExists
	ErrCapacityExceeded = kernels.ErrCapacityExceeded
	ErrNotFound         = kernels.ErrNotFound
)

// NewRegistry returns an uninitialized registry.
func NewRegistry() *Registry {
	return kernels.NewRegistry()
}

// DetectFeatures probes the host CPU and returns its SIMD feature mask.
func DetectFeatures() Feature {
	return kernels.DetectFeatures()
}
