package ops

import (
	"github.com/pkg/errors"

	"github.com/born-ml/wengert/internal/tensor"
)

// SumOp represents the total sum of all elements: output = sum(x), a scalar.
//
// Backward pass:
//   - d(sum(x))/dx_i = 1, so grad_x = outputGrad broadcast to x's shape
type SumOp struct{}

// Arity implements Operation.
func (SumOp) Arity() int { return 1 }

// InferShape implements Operation.
func (SumOp) InferShape(shapes ...tensor.Shape) (tensor.Shape, error) {
	if len(shapes) != 1 {
		return nil, errors.Wrapf(tensor.ErrShapeMismatch, "sum: expected 1 operand, got %d", len(shapes))
	}
	return tensor.Shape{}, nil
}

// Forward implements Operation.
func (SumOp) Forward(backend tensor.Backend, inputs ...*tensor.RawTensor) *tensor.RawTensor {
	return backend.Sum(inputs[0])
}

// Backward implements Operation.
func (SumOp) Backward(backend tensor.Backend, outputGrad, _ *tensor.RawTensor, inputs ...*tensor.RawTensor) []*tensor.RawTensor {
	x := inputs[0]
	ones, err := tensor.Ones(x.Shape(), x.DType(), backend.Device())
	if err != nil {
		panic(errors.Wrap(err, "sum"))
	}
	return []*tensor.RawTensor{backend.Mul(ones, outputGrad)}
}

// reduceBroadcast reduces a gradient tensor to match the target shape.
// This is necessary when broadcasting was used in the forward pass.
//
// Example:
//
//	Forward: a[3,1] + b[3,4] -> c[3,4]  (a was broadcast along dim 1)
//	Backward: grad_c[3,4] -> grad_a[3,1] (sum along dim 1)
func reduceBroadcast(grad *tensor.RawTensor, targetShape tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	if grad.Shape().Equal(targetShape) {
		return grad
	}

	// NumPy broadcasting aligns shapes from the right: drop leading axes first.
	for grad.Shape().Rank() > targetShape.Rank() {
		grad = backend.SumDim(grad, 0, false)
	}

	// Then collapse axes where the target had size 1.
	for i, dim := range targetShape {
		if dim == 1 && grad.Shape()[i] > 1 {
			grad = backend.SumDim(grad, i, true)
		}
	}

	if !grad.Shape().Equal(targetShape) {
		panic(errors.Wrapf(tensor.ErrShapeMismatch, "cannot reduce gradient %v to %v", grad.Shape(), targetShape))
	}
	return grad
}
