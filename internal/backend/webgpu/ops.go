//go:build windows

package webgpu

import (
	"github.com/pkg/errors"

	"github.com/born-ml/wengert/internal/tensor"
)

// checkOperand panics unless x is a float32 tensor the shaders can index.
func checkOperand(op string, x *tensor.RawTensor) {
	if x.DType() != tensor.Float32 {
		panic(errors.Wrapf(tensor.ErrShape, "webgpu %s: only float32 is supported, got %s", op, x.DType()))
	}
	if x.Shape().Rank() > maxRank {
		panic(errors.Wrapf(tensor.ErrShape, "webgpu %s: rank %d exceeds %d", op, x.Shape().Rank(), maxRank))
	}
}

// Add performs element-wise addition with NumPy-style broadcasting.
func (b *Backend) Add(a, other *tensor.RawTensor) *tensor.RawTensor {
	return b.binary("add", addShader, a, other)
}

// Sub performs element-wise subtraction with broadcasting.
func (b *Backend) Sub(a, other *tensor.RawTensor) *tensor.RawTensor {
	return b.binary("sub", subShader, a, other)
}

// Mul performs element-wise multiplication with broadcasting.
func (b *Backend) Mul(a, other *tensor.RawTensor) *tensor.RawTensor {
	return b.binary("mul", mulShader, a, other)
}

func (b *Backend) binary(name, code string, a, other *tensor.RawTensor) *tensor.RawTensor {
	checkOperand(name, a)
	checkOperand(name, other)
	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), other.Shape())
	if err != nil {
		panic(errors.Wrapf(err, "webgpu %s", name))
	}
	if needsBroadcast {
		a = b.expand(a, outShape)
		other = b.expand(other, outShape)
	}
	n := outShape.NumElements()
	return b.run(kernel{
		name:       name,
		code:       code,
		inputs:     []*tensor.RawTensor{a, other},
		outShape:   outShape,
		params:     []uint32{uint32(n)}, //nolint:gosec // G115: element count is non-negative
		workgroups: linearGroups(n),
	})
}

// expand materializes x broadcast to outShape.
func (b *Backend) expand(x *tensor.RawTensor, outShape tensor.Shape) *tensor.RawTensor {
	if x.Shape().Equal(outShape) {
		return x
	}
	// Left-pad the input shape with ones to the output rank.
	inShape := make(tensor.Shape, len(outShape))
	offset := len(outShape) - x.Shape().Rank()
	for i := range inShape {
		inShape[i] = 1
		if i >= offset {
			inShape[i] = x.Shape()[i-offset]
		}
	}

	n := outShape.NumElements()
	//nolint:gosec // G115: rank and element count are non-negative
	params := []uint32{uint32(len(outShape)), uint32(n)}
	params = append(params, padded(inShape, 1)...)
	params = append(params, padded(inShape.ComputeStrides(), 0)...)
	params = append(params, padded(outShape.ComputeStrides(), 0)...)
	return b.run(kernel{
		name:       "expand",
		code:       expandShader,
		inputs:     []*tensor.RawTensor{x},
		outShape:   outShape,
		params:     params,
		workgroups: linearGroups(n),
	})
}

// Neg computes element-wise negation: -x.
func (b *Backend) Neg(x *tensor.RawTensor) *tensor.RawTensor {
	return b.unary("neg", negShader, x)
}

// Exp computes element-wise exponential: exp(x).
func (b *Backend) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	return b.unary("exp", expShader, x)
}

// Sin computes element-wise sine: sin(x).
func (b *Backend) Sin(x *tensor.RawTensor) *tensor.RawTensor {
	return b.unary("sin", sinShader, x)
}

// Cos computes element-wise cosine: cos(x).
func (b *Backend) Cos(x *tensor.RawTensor) *tensor.RawTensor {
	return b.unary("cos", cosShader, x)
}

func (b *Backend) unary(name, code string, x *tensor.RawTensor) *tensor.RawTensor {
	checkOperand(name, x)
	n := x.NumElements()
	return b.run(kernel{
		name:       name,
		code:       code,
		inputs:     []*tensor.RawTensor{x},
		outShape:   x.Shape(),
		params:     []uint32{uint32(n)}, //nolint:gosec // G115: element count is non-negative
		workgroups: linearGroups(n),
	})
}

// MatMul performs (batched) matrix multiplication:
// [..., M, K] @ [..., K, N] -> [..., M, N] with identical batch dims.
func (b *Backend) MatMul(a, other *tensor.RawTensor) *tensor.RawTensor {
	checkOperand("matmul", a)
	checkOperand("matmul", other)
	aShape, bShape := a.Shape(), other.Shape()
	ndim := aShape.Rank()
	if ndim < 2 || bShape.Rank() != ndim || !aShape.BatchDims().Equal(bShape.BatchDims()) ||
		aShape[ndim-1] != bShape[ndim-2] {
		panic(errors.Wrapf(tensor.ErrShapeMismatch, "webgpu matmul: incompatible shapes %v @ %v", aShape, bShape))
	}

	batch := aShape.BatchDims().NumElements()
	m, k, n := aShape[ndim-2], aShape[ndim-1], bShape[ndim-1]
	outShape := aShape.Clone()
	outShape[ndim-1] = n

	return b.run(kernel{
		name:     "batch_matmul",
		code:     batchMatMulShader,
		inputs:   []*tensor.RawTensor{a, other},
		outShape: outShape,
		//nolint:gosec // G115: shape dimensions are non-negative
		params: []uint32{uint32(batch), uint32(m), uint32(k), uint32(n)},
		//nolint:gosec // G115: workgroup counts are non-negative
		workgroups: [3]uint32{uint32((n + 7) / 8), uint32((m + 7) / 8), uint32(batch)},
	})
}

// Transpose permutes dimensions (reverses them when axes is empty).
func (b *Backend) Transpose(x *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	checkOperand("transpose", x)
	shape := x.Shape()
	ndim := shape.Rank()
	if len(axes) == 0 {
		axes = make([]int, ndim)
		for i := range axes {
			axes[i] = ndim - 1 - i
		}
	}
	if len(axes) != ndim {
		panic(errors.Wrapf(tensor.ErrShapeMismatch, "webgpu transpose: axes length %d != ndim %d", len(axes), ndim))
	}
	seen := make([]bool, ndim)
	newShape := make(tensor.Shape, ndim)
	for i, ax := range axes {
		if ax < 0 || ax >= ndim || seen[ax] {
			panic(errors.Wrapf(tensor.ErrShapeMismatch, "webgpu transpose: invalid permutation %v", axes))
		}
		seen[ax] = true
		newShape[i] = shape[ax]
	}

	n := shape.NumElements()
	//nolint:gosec // G115: rank and element count are non-negative
	params := []uint32{uint32(ndim), uint32(n)}
	params = append(params, padded(shape.ComputeStrides(), 0)...)
	params = append(params, padded(newShape.ComputeStrides(), 0)...)
	params = append(params, padded(axes, 0)...)
	return b.run(kernel{
		name:       "transpose_nd",
		code:       transposeNDShader,
		inputs:     []*tensor.RawTensor{x},
		outShape:   newShape,
		params:     params,
		workgroups: linearGroups(n),
	})
}

// SumDim sums tensor elements along dim (negative values count from the end).
func (b *Backend) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	checkOperand("sumdim", x)
	shape := x.Shape()
	ndim := shape.Rank()
	if dim < 0 {
		dim += ndim
	}
	if dim < 0 || dim >= ndim {
		panic(errors.Wrapf(tensor.ErrShapeMismatch, "webgpu sumdim: dimension %d out of range for %dD tensor", dim, ndim))
	}

	var outShape tensor.Shape
	if keepDim {
		outShape = shape.Clone()
		outShape[dim] = 1
	} else {
		outShape = append(shape[:dim].Clone(), shape[dim+1:]...)
	}
	return b.reduce(x, outShape, shape[:dim].NumElements(), shape[dim], shape[dim+1:].NumElements())
}

// Sum computes the total sum of all elements, returning a scalar tensor.
func (b *Backend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	checkOperand("sum", x)
	return b.reduce(x, tensor.Shape{}, 1, x.NumElements(), 1)
}

func (b *Backend) reduce(x *tensor.RawTensor, outShape tensor.Shape, outer, size, inner int) *tensor.RawTensor {
	total := outer * inner
	return b.run(kernel{
		name:     "sum_dim",
		code:     sumDimShader,
		inputs:   []*tensor.RawTensor{x},
		outShape: outShape,
		//nolint:gosec // G115: sizes are non-negative
		params:     []uint32{uint32(outer), uint32(size), uint32(inner), uint32(total)},
		workgroups: linearGroups(total),
	})
}
