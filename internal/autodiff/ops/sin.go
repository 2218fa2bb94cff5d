package ops

import "github.com/born-ml/wengert/internal/tensor"

// SinOp represents the sine operation: y = sin(x).
//
// Backward pass:
//   - d(sin(x))/dx = cos(x)
//   - grad_input = grad_output * cos(input)
type SinOp struct{}

// Arity implements Operation.
func (SinOp) Arity() int { return 1 }

// InferShape implements Operation.
func (SinOp) InferShape(shapes ...tensor.Shape) (tensor.Shape, error) {
	return unaryShape("sin", shapes)
}

// Forward implements Operation.
func (SinOp) Forward(backend tensor.Backend, inputs ...*tensor.RawTensor) *tensor.RawTensor {
	return backend.Sin(inputs[0])
}

// Backward implements Operation.
func (SinOp) Backward(backend tensor.Backend, outputGrad, _ *tensor.RawTensor, inputs ...*tensor.RawTensor) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Mul(outputGrad, backend.Cos(inputs[0]))}
}
