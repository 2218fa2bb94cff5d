package cpu

import (
	"github.com/pkg/errors"

	"github.com/born-ml/wengert/internal/parallel"
	"github.com/born-ml/wengert/internal/tensor"
)

// MatMul performs (batched) matrix multiplication.
//
// For 2D: [M, K] @ [K, N] -> [M, N]
// For ND: [..., M, K] @ [..., K, N] -> [..., M, N]
//
// The last two dimensions are treated as matrix dimensions.
// Both operands must have the same rank and identical batch dimensions.
func (cpu *CPUBackend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	checkOperand("matmul", a)
	checkOperand("matmul", b)
	aShape := a.Shape()
	bShape := b.Shape()
	ndim := len(aShape)

	if ndim < 2 || len(bShape) != ndim {
		panic(errors.Wrapf(tensor.ErrShapeMismatch, "matmul: ranks must be equal and >= 2, got %v @ %v", aShape, bShape))
	}
	if a.DType() != b.DType() {
		panic(errors.Wrapf(tensor.ErrShapeMismatch, "matmul: dtype mismatch %s vs %s", a.DType(), b.DType()))
	}
	if !aShape.BatchDims().Equal(bShape.BatchDims()) {
		panic(errors.Wrapf(tensor.ErrShapeMismatch, "matmul: batch dimension mismatch %v @ %v", aShape, bShape))
	}

	m := aShape[ndim-2]
	k := aShape[ndim-1]
	n := bShape[ndim-1]
	if bShape[ndim-2] != k {
		panic(errors.Wrapf(tensor.ErrShapeMismatch, "matmul: inner dimension mismatch: %d vs %d", k, bShape[ndim-2]))
	}

	batchSize := aShape.BatchDims().NumElements()

	outShape := aShape.Clone()
	outShape[ndim-1] = n

	result := cpu.alloc("matmul", outShape, a.DType())
	switch a.DType() {
	case tensor.Float32:
		batchMatmul(result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), batchSize, m, k, n, cpu.workers)
	case tensor.Float64:
		batchMatmul(result.AsFloat64(), a.AsFloat64(), b.AsFloat64(), batchSize, m, k, n, cpu.workers)
	}
	return result
}

// batchMatmul multiplies batchSize pairs of row-major matrices, splitting the
// batchSize*m output rows across workers.
// Uses the i-k-j loop order so the inner loop streams through rows of b.
func batchMatmul[T tensor.Float](c, a, b []T, batchSize, m, k, n int, workers parallel.Config) {
	parallel.For(batchSize*m, k*n, workers, func(lo, hi int) {
		for r := lo; r < hi; r++ {
			batch, i := r/m, r%m
			aRow := a[batch*m*k+i*k : batch*m*k+(i+1)*k]
			row := c[batch*m*n+i*n : batch*m*n+(i+1)*n]
			bOff := batch * k * n
			for p, av := range aRow {
				bRow := b[bOff+p*n : bOff+(p+1)*n]
				for j := range row {
					row[j] += av * bRow[j]
				}
			}
		}
	})
}
