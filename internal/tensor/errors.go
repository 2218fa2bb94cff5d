package tensor

import "github.com/pkg/errors"

// Error kinds surfaced by backends and by the autodiff engine.
// Callers classify failures with errors.Is; the returned errors wrap one of
// these with context.
var (
	// ErrShape reports a value whose rank or dtype the device cannot hold.
	ErrShape = errors.New("shape error")

	// ErrShapeMismatch reports operand shapes incompatible with an operator.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrUnsupportedOperator reports an operator applied outside its domain,
	// e.g. the matrix exponential of a non-diagonal matrix.
	ErrUnsupportedOperator = errors.New("unsupported operator")

	// ErrDeviceMismatch reports operands from different devices or graphs.
	ErrDeviceMismatch = errors.New("device mismatch")

	// ErrGraphConsistency reports a read or pass issued before its prerequisite pass ran.
	ErrGraphConsistency = errors.New("graph consistency error")

	// ErrDeviceFailure reports a failure inside a backend kernel.
	ErrDeviceFailure = errors.New("device failure")
)
