package tensor

import (
	"fmt"

	"github.com/x448/float16"
)

// Float32ToFloat16 converts values into IEEE 754 half-precision bits.
func Float32ToFloat16(values []float32) []uint16 {
	out := make([]uint16, len(values))
	for i, v := range values {
		out[i] = float16.Fromfloat32(v).Bits()
	}
	return out
}

// Float16ToFloat32 converts half-precision bits back to float32.
func Float16ToFloat32(bits []uint16) []float32 {
	out := make([]float32, len(bits))
	for i, b := range bits {
		out[i] = float16.Frombits(b).Float32()
	}
	return out
}

// Cast converts a tensor to the target data type, returning a new
// heap-backed tensor. Only Float32 <-> Float16 conversions are supported;
// casting to the tensor's own type returns a copy.
func Cast(t *RawTensor, dtype DataType) (*RawTensor, error) {
	out, err := NewRaw(t.Shape(), dtype)
	if err != nil {
		return nil, err
	}

	switch {
	case t.DType() == dtype:
		copy(out.data, t.data)
	case t.DType() == Float32 && dtype == Float16:
		copy(out.AsUint16(), Float32ToFloat16(t.AsFloat32()))
	case t.DType() == Float16 && dtype == Float32:
		copy(out.AsFloat32(), Float16ToFloat32(t.AsUint16()))
	default:
		return nil, fmt.Errorf("%v -> %v: %w", t.DType(), dtype, ErrUnsupportedCast)
	}
	return out, nil
}
