package cpu

import (
	"github.com/pkg/errors"

	"github.com/born-ml/wengert/internal/tensor"
)

// SumDim sums tensor elements along the specified dimension.
//
// Parameters:
//   - dim: dimension to reduce (supports negative indexing: -1 = last dim)
//   - keepDim: if true, keep the reduced dimension with size 1; if false, remove it
//
// Example:
//
//	// x has shape [2, 3, 4]
//	y := backend.SumDim(x, -1, true)   // shape: [2, 3, 1]
//	z := backend.SumDim(x, -1, false)  // shape: [2, 3]
func (cpu *CPUBackend) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	checkOperand("sumdim", x)
	shape := x.Shape()
	ndim := len(shape)

	if dim < 0 {
		dim = ndim + dim
	}
	if dim < 0 || dim >= ndim {
		panic(errors.Wrapf(tensor.ErrShapeMismatch, "sumdim: dimension %d out of range for %dD tensor", dim, ndim))
	}

	var outShape tensor.Shape
	if keepDim {
		outShape = shape.Clone()
		outShape[dim] = 1
	} else {
		outShape = make(tensor.Shape, 0, ndim-1)
		for i := 0; i < ndim; i++ {
			if i != dim {
				outShape = append(outShape, shape[i])
			}
		}
	}

	result := cpu.alloc("sumdim", outShape, x.DType())
	switch x.DType() {
	case tensor.Float32:
		sumDim(x.AsFloat32(), result.AsFloat32(), shape, dim)
	case tensor.Float64:
		sumDim(x.AsFloat64(), result.AsFloat64(), shape, dim)
	}
	return result
}

// sumDim reduces data (laid out as shape) along dim into result.
// The layout of result is the same whether or not the dimension was kept.
func sumDim[T tensor.Float](data, result []T, shape tensor.Shape, dim int) {
	outer := shape[:dim].NumElements()
	size := shape[dim]
	inner := shape[dim+1:].NumElements()

	for o := 0; o < outer; o++ {
		for d := 0; d < size; d++ {
			base := (o*size + d) * inner
			for i := 0; i < inner; i++ {
				result[o*inner+i] += data[base+i]
			}
		}
	}
}

// Sum computes the total sum of all elements, returning a scalar tensor.
func (cpu *CPUBackend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	checkOperand("sum", x)
	result := cpu.alloc("sum", tensor.Shape{}, x.DType())
	switch x.DType() {
	case tensor.Float32:
		result.AsFloat32()[0] = sumAll(x.AsFloat32())
	case tensor.Float64:
		result.AsFloat64()[0] = sumAll(x.AsFloat64())
	}
	return result
}

func sumAll[T tensor.Float](data []T) T {
	var s T
	for _, v := range data {
		s += v
	}
	return s
}
