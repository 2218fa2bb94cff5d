package tensor

import "github.com/pkg/errors"

// Zeros creates a tensor filled with zeros.
//
// Example:
//
//	t, err := tensor.Zeros(Shape{3, 4}, Float32, CPU)
func Zeros(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	// Data is already zero-initialized by make()
	return NewRaw(shape, dtype, device)
}

// Ones creates a tensor filled with ones.
func Ones(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return Full(shape, 1, dtype, device)
}

// Full creates a tensor filled with a specific value.
//
// Example:
//
//	t, err := tensor.Full(Shape{3, 3}, 3.14, Float64, CPU)
func Full(shape Shape, value float64, dtype DataType, device Device) (*RawTensor, error) {
	t, err := NewRaw(shape, dtype, device)
	if err != nil {
		return nil, err
	}
	switch dtype {
	case Float32:
		data := t.AsFloat32()
		for i := range data {
			data[i] = float32(value)
		}
	case Float64:
		data := t.AsFloat64()
		for i := range data {
			data[i] = value
		}
	}
	return t, nil
}

// EyeLike creates a batch of identity matrices shaped [..., n, n].
// The last two dimensions of shape must be equal.
func EyeLike(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	if len(shape) < 2 || shape[len(shape)-1] != shape[len(shape)-2] {
		return nil, errors.Wrapf(ErrShapeMismatch, "eye: shape %v is not a batch of square matrices", shape)
	}
	t, err := NewRaw(shape, dtype, device)
	if err != nil {
		return nil, err
	}
	n := shape[len(shape)-1]
	batches := shape.NumElements() / (n * n)
	for b := 0; b < batches; b++ {
		for i := 0; i < n; i++ {
			idx := b*n*n + i*n + i
			switch dtype {
			case Float32:
				t.AsFloat32()[idx] = 1
			case Float64:
				t.AsFloat64()[idx] = 1
			}
		}
	}
	return t, nil
}

// FromSlice creates a tensor from a slice of data.
// The data is copied, so modifying the original slice won't affect the tensor.
//
// Example:
//
//	data := []float32{1, 2, 3, 4, 5, 6}
//	t, err := tensor.FromSlice(data, Shape{2, 3}, CPU)
func FromSlice[T Float](data []T, shape Shape, device Device) (*RawTensor, error) {
	if len(data) != shape.NumElements() {
		return nil, errors.Wrapf(ErrShape, "data length %d doesn't match shape %v (expected %d elements)",
			len(data), shape, shape.NumElements())
	}

	var dummy T
	raw, err := NewRaw(shape, inferDataType(dummy), device)
	if err != nil {
		return nil, err
	}

	switch dst := any(raw.AsTyped()).(type) {
	case []float32:
		for i, v := range data {
			dst[i] = float32(v)
		}
	case []float64:
		for i, v := range data {
			dst[i] = float64(v)
		}
	}
	return raw, nil
}

// Scalar creates a rank-0 tensor.
func Scalar[T Float](value T, device Device) (*RawTensor, error) {
	return FromSlice([]T{value}, Shape{}, device)
}

// Diag creates a square matrix with values on its diagonal.
func Diag[T Float](values []T, device Device) (*RawTensor, error) {
	n := len(values)
	data := make([]T, n*n)
	for i, v := range values {
		data[i*n+i] = v
	}
	return FromSlice(data, Shape{n, n}, device)
}

// AsTyped returns the element slice as []float32 or []float64 depending on dtype.
func (r *RawTensor) AsTyped() any {
	switch r.dtype {
	case Float32:
		return r.AsFloat32()
	default:
		return r.AsFloat64()
	}
}
