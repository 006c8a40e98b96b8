package tensor

import (
	"fmt"
	"unsafe"

	"github.com/etude-ml/etude/internal/memory"
)

// RawTensor is the low-level tensor representation: a contiguous, row-major
// byte buffer plus shape, strides, and runtime type information. When built
// with NewRawInPool the buffer aliases the pool arena and must be handed
// back with Release.
type RawTensor struct {
	data   []byte
	shape  Shape
	stride []int
	dtype  DataType
	pool   *memory.Pool // nil for heap-backed tensors
}

// NewRaw creates a heap-backed tensor with the given shape and type.
// Memory is zero-initialized.
func NewRaw(shape Shape, dtype DataType) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	return &RawTensor{
		data:   make([]byte, shape.NumElements()*dtype.Size()),
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		dtype:  dtype,
	}, nil
}

// NewRawInPool creates a tensor whose buffer is drawn from the given memory
// pool. The buffer contents are not cleared; callers that need zeros should
// fill explicitly.
func NewRawInPool(pool *memory.Pool, shape Shape, dtype DataType) (*RawTensor, error) {
	if pool == nil {
		return nil, fmt.Errorf("nil pool: %w", ErrInvalidArgument)
	}
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	buf, err := pool.Alloc(shape.NumElements() * dtype.Size())
	if err != nil {
		return nil, fmt.Errorf("tensor %v: %w", shape, err)
	}
	return &RawTensor{
		data:   buf,
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		dtype:  dtype,
		pool:   pool,
	}, nil
}

// FromFloat32 creates a heap-backed Float32 tensor initialized from values.
func FromFloat32(shape Shape, values []float32) (*RawTensor, error) {
	t, err := NewRaw(shape, Float32)
	if err != nil {
		return nil, err
	}
	if len(values) != shape.NumElements() {
		return nil, fmt.Errorf("got %d values for shape %v: %w", len(values), shape, ErrInvalidArgument)
	}
	copy(t.AsFloat32(), values)
	return t, nil
}

// Release returns a pool-backed buffer to its pool. Heap-backed tensors are
// left to the garbage collector. The tensor must not be used afterwards.
func (r *RawTensor) Release() error {
	if r.pool == nil {
		return nil
	}
	err := r.pool.Free(r.data)
	r.data = nil
	r.pool = nil
	return err
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape { return r.shape }

// Strides returns the tensor's memory strides.
func (r *RawTensor) Strides() []int { return r.stride }

// DType returns the tensor's data type.
func (r *RawTensor) DType() DataType { return r.dtype }

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int { return r.shape.NumElements() }

// ByteSize returns the total memory size in bytes.
func (r *RawTensor) ByteSize() int { return len(r.data) }

// Pooled reports whether the buffer lives inside a memory pool.
func (r *RawTensor) Pooled() bool { return r.pool != nil }

// Data returns the raw byte slice.
// WARNING: Direct access to underlying memory. Use with caution.
func (r *RawTensor) Data() []byte { return r.data }

// AsFloat32 returns the data as a float32 slice.
// Panics if the dtype is not Float32.
func (r *RawTensor) AsFloat32() []float32 {
	if r.dtype != Float32 {
		panic(fmt.Sprintf("AsFloat32 on %v tensor", r.dtype))
	}
	if len(r.data) == 0 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

// AsUint16 returns the data as a uint16 slice holding IEEE 754 half bits.
// Panics if the dtype is not Float16.
func (r *RawTensor) AsUint16() []uint16 {
	if r.dtype != Float16 {
		panic(fmt.Sprintf("AsUint16 on %v tensor", r.dtype))
	}
	if len(r.data) == 0 {
		return nil
	}
	return unsafe.Slice((*uint16)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

// AsInt32 returns the data as an int32 slice.
// Panics if the dtype is not Int32.
func (r *RawTensor) AsInt32() []int32 {
	if r.dtype != Int32 {
		panic(fmt.Sprintf("AsInt32 on %v tensor", r.dtype))
	}
	if len(r.data) == 0 {
		return nil
	}
	return unsafe.Slice((*int32)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

// AsInt64 returns the data as an int64 slice.
// Panics if the dtype is not Int64.
func (r *RawTensor) AsInt64() []int64 {
	if r.dtype != Int64 {
		panic(fmt.Sprintf("AsInt64 on %v tensor", r.dtype))
	}
	if len(r.data) == 0 {
		return nil
	}
	return unsafe.Slice((*int64)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

// String returns a compact description for diagnostics.
func (r *RawTensor) String() string {
	backing := "heap"
	if r.pool != nil {
		backing = "pool"
	}
	return fmt.Sprintf("RawTensor(shape=%v, dtype=%v, %s)", r.shape, r.dtype, backing)
}
