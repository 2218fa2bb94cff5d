package ops

import (
	"github.com/pkg/errors"

	"github.com/born-ml/wengert/internal/tensor"
)

// broadcastShape is the shape rule shared by the element-wise binary operators.
func broadcastShape(name string, shapes []tensor.Shape) (tensor.Shape, error) {
	if len(shapes) != 2 {
		return nil, errors.Wrapf(tensor.ErrShapeMismatch, "%s: expected 2 operands, got %d", name, len(shapes))
	}
	out, _, err := tensor.BroadcastShapes(shapes[0], shapes[1])
	if err != nil {
		return nil, errors.Wrap(err, name)
	}
	return out, nil
}

// AddOp represents an element-wise addition operation: output = a + b.
//
// Backward pass:
//   - d(a+b)/da = 1, so grad_a = outputGrad (reduced to a's shape)
//   - d(a+b)/db = 1, so grad_b = outputGrad (reduced to b's shape)
type AddOp struct{}

// Arity implements Operation.
func (AddOp) Arity() int { return 2 }

// InferShape implements Operation.
func (AddOp) InferShape(shapes ...tensor.Shape) (tensor.Shape, error) {
	return broadcastShape("add", shapes)
}

// Forward implements Operation.
func (AddOp) Forward(backend tensor.Backend, inputs ...*tensor.RawTensor) *tensor.RawTensor {
	return backend.Add(inputs[0], inputs[1])
}

// Backward implements Operation.
func (AddOp) Backward(backend tensor.Backend, outputGrad, _ *tensor.RawTensor, inputs ...*tensor.RawTensor) []*tensor.RawTensor {
	return []*tensor.RawTensor{
		reduceBroadcast(outputGrad, inputs[0].Shape(), backend),
		reduceBroadcast(outputGrad, inputs[1].Shape(), backend),
	}
}

// SubOp represents an element-wise subtraction operation: output = a - b.
//
// Backward pass:
//   - grad_a = outputGrad (reduced to a's shape)
//   - grad_b = -outputGrad (reduced to b's shape)
type SubOp struct{}

// Arity implements Operation.
func (SubOp) Arity() int { return 2 }

// InferShape implements Operation.
func (SubOp) InferShape(shapes ...tensor.Shape) (tensor.Shape, error) {
	return broadcastShape("sub", shapes)
}

// Forward implements Operation.
func (SubOp) Forward(backend tensor.Backend, inputs ...*tensor.RawTensor) *tensor.RawTensor {
	return backend.Sub(inputs[0], inputs[1])
}

// Backward implements Operation.
func (SubOp) Backward(backend tensor.Backend, outputGrad, _ *tensor.RawTensor, inputs ...*tensor.RawTensor) []*tensor.RawTensor {
	return []*tensor.RawTensor{
		reduceBroadcast(outputGrad, inputs[0].Shape(), backend),
		reduceBroadcast(backend.Neg(outputGrad), inputs[1].Shape(), backend),
	}
}

// MulOp represents an element-wise multiplication operation: output = a * b.
//
// Backward pass:
//   - d(a*b)/da = b, so grad_a = outputGrad * b
//   - d(a*b)/db = a, so grad_b = outputGrad * a
type MulOp struct{}

// Arity implements Operation.
func (MulOp) Arity() int { return 2 }

// InferShape implements Operation.
func (MulOp) InferShape(shapes ...tensor.Shape) (tensor.Shape, error) {
	return broadcastShape("mul", shapes)
}

// Forward implements Operation.
func (MulOp) Forward(backend tensor.Backend, inputs ...*tensor.RawTensor) *tensor.RawTensor {
	return backend.Mul(inputs[0], inputs[1])
}

// Backward implements Operation.
func (MulOp) Backward(backend tensor.Backend, outputGrad, _ *tensor.RawTensor, inputs ...*tensor.RawTensor) []*tensor.RawTensor {
	a, b := inputs[0], inputs[1]
	return []*tensor.RawTensor{
		reduceBroadcast(backend.Mul(outputGrad, b), a.Shape(), backend),
		reduceBroadcast(backend.Mul(outputGrad, a), b.Shape(), backend),
	}
}

// unaryShape is the shape rule of element-wise unary operators.
func unaryShape(name string, shapes []tensor.Shape) (tensor.Shape, error) {
	if len(shapes) != 1 {
		return nil, errors.Wrapf(tensor.ErrShapeMismatch, "%s: expected 1 operand, got %d", name, len(shapes))
	}
	return shapes[0].Clone(), nil
}
