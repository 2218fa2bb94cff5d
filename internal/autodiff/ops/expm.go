package ops

import (
	"math"

	"github.com/pkg/errors"

	"github.com/born-ml/wengert/internal/tensor"
)

// ExpmOp represents the matrix exponential of a batch of diagonal matrices.
//
// For a diagonal matrix with entries λ_i, expm is the diagonal matrix of e^{λ_i}.
// General matrices are rejected with tensor.ErrUnsupportedOperator.
//
// Backward pass: the Fréchet derivative in the (standard) eigenbasis is the
// divided-difference matrix
//
//	D_ij = (e^{λ_i} - e^{λ_j}) / (λ_i - λ_j)   i != j
//	D_ii = e^{λ_i}
//
// and grad_a = outputGrad * D (element-wise).
type ExpmOp struct{}

// Arity implements Operation.
func (ExpmOp) Arity() int { return 1 }

// InferShape implements Operation.
func (ExpmOp) InferShape(shapes ...tensor.Shape) (tensor.Shape, error) {
	if len(shapes) != 1 {
		return nil, errors.Wrapf(tensor.ErrShapeMismatch, "expm: expected 1 operand, got %d", len(shapes))
	}
	s := shapes[0]
	if s.Rank() < 2 || s[s.Rank()-1] != s[s.Rank()-2] {
		return nil, errors.Wrapf(tensor.ErrShapeMismatch, "expm: operand %v is not a batch of square matrices", s)
	}
	return s.Clone(), nil
}

// Forward implements Operation.
func (ExpmOp) Forward(backend tensor.Backend, inputs ...*tensor.RawTensor) *tensor.RawTensor {
	a := inputs[0]
	if err := CheckDiagonal(a); err != nil {
		panic(err)
	}
	// exp() maps the zero off-diagonal to 1; masking with the identity restores it.
	eye, err := tensor.EyeLike(a.Shape(), a.DType(), backend.Device())
	if err != nil {
		panic(errors.Wrap(err, "expm"))
	}
	return backend.Mul(backend.Exp(a), eye)
}

// Backward implements Operation.
func (ExpmOp) Backward(backend tensor.Backend, outputGrad, _ *tensor.RawTensor, inputs ...*tensor.RawTensor) []*tensor.RawTensor {
	d := DividedDifferences(inputs[0], backend.Device())
	return []*tensor.RawTensor{backend.Mul(outputGrad, d)}
}

// CheckDiagonal returns an error wrapping tensor.ErrUnsupportedOperator if any
// matrix of the batch x has a nonzero off-diagonal entry.
func CheckDiagonal(x *tensor.RawTensor) error {
	shape := x.Shape()
	n := shape[shape.Rank()-1]
	for idx, v := range x.Float64s() {
		i, j := (idx/n)%n, idx%n
		if i != j && v != 0 {
			return errors.Wrapf(tensor.ErrUnsupportedOperator,
				"expm: only diagonal matrices are supported, found %g at (%d, %d) of %v", v, i, j, shape)
		}
	}
	return nil
}

// DividedDifferences builds the Fréchet-derivative matrix of expm at the
// diagonal batch x, with x's shape and dtype, on device.
//
// Off-diagonal entries use e^{λ_j}·expm1(λ_i-λ_j)/(λ_i-λ_j), which stays
// accurate when the eigenvalues are close.
func DividedDifferences(x *tensor.RawTensor, device tensor.Device) *tensor.RawTensor {
	shape := x.Shape()
	n := shape[shape.Rank()-1]
	values := x.Float64s()
	batches := len(values) / (n * n)

	d := make([]float64, len(values))
	lambda := make([]float64, n)
	for b := 0; b < batches; b++ {
		off := b * n * n
		for i := range lambda {
			lambda[i] = values[off+i*n+i]
		}
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				d[off+i*n+j] = dividedDifference(lambda[i], lambda[j])
			}
		}
	}

	result, err := tensor.NewRaw(shape, x.DType(), device)
	if err != nil {
		panic(errors.Wrap(err, "expm"))
	}
	switch dst := result.AsTyped().(type) {
	case []float32:
		for i, v := range d {
			dst[i] = float32(v)
		}
	case []float64:
		copy(dst, d)
	}
	return result
}

// dividedDifference returns (e^a - e^b)/(a - b), or e^a when a == b.
func dividedDifference(a, b float64) float64 {
	if a == b {
		return math.Exp(a)
	}
	return math.Exp(b) * math.Expm1(a-b) / (a - b)
}
