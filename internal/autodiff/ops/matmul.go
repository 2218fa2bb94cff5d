package ops

import (
	"github.com/pkg/errors"

	"github.com/born-ml/wengert/internal/tensor"
)

// MatMulOp represents a batched matrix multiplication: output = a @ b.
//
// Shapes: a is [..., M, K], b is [..., K, N], output is [..., M, N]. Both
// operands have the same rank and identical batch dimensions.
//
// Backward pass:
//   - d(A@B)/dA = outputGrad @ B^T
//   - d(A@B)/dB = A^T @ outputGrad
//
// Where ^T swaps the two innermost axes of every matrix in the batch.
type MatMulOp struct{}

// Arity implements Operation.
func (MatMulOp) Arity() int { return 2 }

// InferShape implements Operation.
func (MatMulOp) InferShape(shapes ...tensor.Shape) (tensor.Shape, error) {
	if len(shapes) != 2 {
		return nil, errors.Wrapf(tensor.ErrShapeMismatch, "matmul: expected 2 operands, got %d", len(shapes))
	}
	a, b := shapes[0], shapes[1]
	n := a.Rank()
	switch {
	case n < 2 || b.Rank() < 2:
		return nil, errors.Wrapf(tensor.ErrShapeMismatch, "matmul: operands must be at least 2D, got %v @ %v", a, b)
	case b.Rank() != n:
		return nil, errors.Wrapf(tensor.ErrShapeMismatch, "matmul: rank mismatch %v @ %v", a, b)
	case !a.BatchDims().Equal(b.BatchDims()):
		return nil, errors.Wrapf(tensor.ErrShapeMismatch, "matmul: batch dimensions differ %v @ %v", a, b)
	case a[n-1] != b[n-2]:
		return nil, errors.Wrapf(tensor.ErrShapeMismatch, "matmul: inner dimension mismatch %v @ %v", a, b)
	}
	out := a.Clone()
	out[n-1] = b[n-1]
	return out, nil
}

// Forward implements Operation.
func (MatMulOp) Forward(backend tensor.Backend, inputs ...*tensor.RawTensor) *tensor.RawTensor {
	return backend.MatMul(inputs[0], inputs[1])
}

// Backward implements Operation.
func (MatMulOp) Backward(backend tensor.Backend, outputGrad, _ *tensor.RawTensor, inputs ...*tensor.RawTensor) []*tensor.RawTensor {
	a, b := inputs[0], inputs[1]
	axes := tensor.SwapLastTwoAxes(a.Shape().Rank())

	// grad_a = outputGrad @ b^T
	gradA := backend.MatMul(outputGrad, backend.Transpose(b, axes...))

	// grad_b = a^T @ outputGrad
	gradB := backend.MatMul(backend.Transpose(a, axes...), outputGrad)

	return []*tensor.RawTensor{gradA, gradB}
}
