// Package ops defines the closed set of differentiable operators.
//
// Each operator implements the Operation interface, which provides:
//   - Shape rule: validates operand shapes and derives the output shape
//   - Forward pass: computed by the backend
//   - Backward pass: vector-Jacobian products for every operand
//
// Supported operations:
//   - Add: element-wise addition (d(a+b)/da = 1, d(a+b)/db = 1)
//   - Sub: element-wise subtraction (d(a-b)/da = 1, d(a-b)/db = -1)
//   - Mul: element-wise multiplication (d(a*b)/da = b, d(a*b)/db = a)
//   - MatMul: batched matrix multiplication (d(A@B)/dA = grad@B^T, d(A@B)/dB = A^T@grad)
//   - Expm: exponential of a diagonal matrix (divided-difference Fréchet rule)
//   - Sum: total sum to a scalar
//   - Sin: element-wise sine
//
// Forward and Backward follow the backend's convention and panic with an
// error on failure.
package ops

import (
	"github.com/pkg/errors"

	"github.com/born-ml/wengert/internal/tensor"
)

// Kind tags a graph node with its operator.
type Kind int

// Operator kinds. Leaf nodes hold a user-supplied value and have no parents.
const (
	Leaf Kind = iota
	Add
	Sub
	Mul
	MatMul
	Expm
	Sum
	Sin
)

// Operation is the shape, forward and backward rule of one operator.
type Operation interface {
	// Arity is the number of operands the operator takes.
	Arity() int

	// InferShape validates operand shapes and returns the output shape.
	// Errors wrap tensor.ErrShapeMismatch.
	InferShape(shapes ...tensor.Shape) (tensor.Shape, error)

	// Forward computes the output value from operand values.
	Forward(backend tensor.Backend, inputs ...*tensor.RawTensor) *tensor.RawTensor

	// Backward returns the gradient contribution for each operand, given the
	// gradient of the output and the forward values.
	Backward(backend tensor.Backend, outputGrad, output *tensor.RawTensor, inputs ...*tensor.RawTensor) []*tensor.RawTensor
}

// Operation returns the rule implementing k.
// It panics with an error wrapping tensor.ErrUnsupportedOperator if k is not
// a defined operator.
func (k Kind) Operation() Operation {
	switch k {
	case Leaf:
		return LeafOp{}
	case Add:
		return AddOp{}
	case Sub:
		return SubOp{}
	case Mul:
		return MulOp{}
	case MatMul:
		return MatMulOp{}
	case Expm:
		return ExpmOp{}
	case Sum:
		return SumOp{}
	case Sin:
		return SinOp{}
	default:
		panic(errors.Wrapf(tensor.ErrUnsupportedOperator, "operator kind %d", int(k)))
	}
}

// Valid reports whether k is one of the defined operators.
func (k Kind) Valid() bool {
	return k >= Leaf && k <= Sin
}

// Arity returns the number of operands k takes, or -1 for an invalid kind.
func (k Kind) Arity() int {
	if !k.Valid() {
		return -1
	}
	return k.Operation().Arity()
}

// String returns the operator name.
func (k Kind) String() string {
	switch k {
	case Leaf:
		return "Leaf"
	case Add:
		return "Add"
	case Sub:
		return "Sub"
	case Mul:
		return "Mul"
	case MatMul:
		return "MatMul"
	case Expm:
		return "Expm"
	case Sum:
		return "Sum"
	case Sin:
		return "Sin"
	default:
		return "Unknown"
	}
}

// LeafOp is the operation of a node seeded with a value.
// It has no operands, and its value is never computed.
type LeafOp struct{}

// Arity implements Operation.
func (LeafOp) Arity() int { return 0 }

// InferShape implements Operation. A leaf's shape comes from its value.
func (LeafOp) InferShape(...tensor.Shape) (tensor.Shape, error) {
	return nil, errors.Wrap(tensor.ErrGraphConsistency, "leaf shape is given by its value")
}

// Forward implements Operation.
func (LeafOp) Forward(tensor.Backend, ...*tensor.RawTensor) *tensor.RawTensor {
	panic(errors.Wrap(tensor.ErrGraphConsistency, "leaf values are seeded, not computed"))
}

// Backward implements Operation. Leaves do not propagate gradients.
func (LeafOp) Backward(tensor.Backend, *tensor.RawTensor, *tensor.RawTensor, ...*tensor.RawTensor) []*tensor.RawTensor {
	return nil
}
