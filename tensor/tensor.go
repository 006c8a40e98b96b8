// Copyright 2025 The Etude Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public API for raw tensor storage in the
// Etude inference runtime.
//
// A RawTensor is a flat, contiguous buffer with a shape, row-major strides
// and a data type. Tensors are allocated from the heap or from a
// memory.Pool and are reinterpreted in place for kernel dispatch:
//
//	t, _ := tensor.FromFloat32(tensor.Shape{2, 3}, []float32{1, 2, 3, 4, 5, 6})
//	data := t.AsFloat32()
package tensor

import (
	"github.com/etude-ml/etude/internal/memory"
	"github.com/etude-ml/etude/internal/tensor"
)

// Shape represents the dimensions of a tensor.
// Example: Shape{2, 3, 4} represents a 3D tensor with dimensions 2×3×4.
type Shape = tensor.Shape

// DataType represents the underlying data type of a tensor.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32 DataType = tensor.Float32
	Float16 DataType = tensor.Float16
	Int32   DataType = tensor.Int32
	Int64   DataType = tensor.Int64
	Uint8   DataType = tensor.Uint8
	Bool    DataType = tensor.Bool
)

// RawTensor is a contiguous typed buffer with shape and stride metadata.
type RawTensor = tensor.RawTensor

// NewRaw allocates a zeroed tensor on the heap.
func NewRaw(shape Shape, dtype DataType) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype)
}

// NewRawInPool allocates a tensor from pool. The buffer is not cleared.
func NewRawInPool(pool *memory.Pool, shape Shape, dtype DataType) (*RawTensor, error) {
	return tensor.NewRawInPool(pool, shape, dtype)
}

// FromFloat32 builds a Float32 tensor from values; len(values) must match
// the shape's element count.
func FromFloat32(shape Shape, values []float32) (*RawTensor, error) {
	return tensor.FromFloat32(shape, values)
}

// Cast converts a tensor to another data type. Float32 and Float16
// convert both ways; other conversions are rejected.
func Cast(t *RawTensor, dtype DataType) (*RawTensor, error) {
	return tensor.Cast(t, dtype)
}
