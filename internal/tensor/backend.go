package tensor

// Backend defines the kernel capability the autodiff engine computes with.
// Backends handle the actual computation; the engine never branches on
// which device it runs on.
//
// Kernels always allocate a fresh result and never modify their inputs.
// Failures are reported by panicking with an error wrapping one of the error
// kinds, e.g. panic(errors.Wrapf(ErrShapeMismatch, ...));
// the engine converts them at its kernel boundary.
//
// Implementations:
//   - CPU: Pure Go
//   - WebGPU: GPU compute via WGSL shaders
type Backend interface {
	// Element-wise binary operations with NumPy-style broadcasting.
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor

	// MatMul performs (batched) matrix multiplication:
	// [..., M, K] @ [..., K, N] -> [..., M, N] with identical batch dims.
	MatMul(a, b *RawTensor) *RawTensor

	// Transpose permutes dimensions (reverses them when axes is empty).
	Transpose(t *RawTensor, axes ...int) *RawTensor

	// Math operations (element-wise)
	Neg(x *RawTensor) *RawTensor // negation
	Exp(x *RawTensor) *RawTensor // exponential
	Sin(x *RawTensor) *RawTensor // sine
	Cos(x *RawTensor) *RawTensor // cosine

	// Reduction operations
	Sum(x *RawTensor) *RawTensor                           // total sum (scalar result)
	SumDim(x *RawTensor, dim int, keepDim bool) *RawTensor // sum along dimension

	// Metadata
	Name() string
	Device() Device
}

// Synchronizer is implemented by backends that may hold submitted but not yet
// completed work. Synchronize blocks until all results are materialized.
type Synchronizer interface {
	Synchronize() error
}

// RankLimiter is implemented by backends that cannot hold tensors of
// arbitrary rank.
type RankLimiter interface {
	MaxRank() int
}

// DTypeSupporter is implemented by backends that only run a subset of the
// data types.
type DTypeSupporter interface {
	SupportsDType(dt DataType) bool
}

// Synchronize waits for b's pending work when b supports it.
func Synchronize(b Backend) error {
	if s, ok := b.(Synchronizer); ok {
		return s.Synchronize()
	}
	return nil
}

// MaxRank returns the largest rank b accepts, or -1 when unlimited.
func MaxRank(b Backend) int {
	if l, ok := b.(RankLimiter); ok {
		return l.MaxRank()
	}
	return -1
}

// SupportsDType reports whether b can run kernels on dt.
func SupportsDType(b Backend, dt DataType) bool {
	if s, ok := b.(DTypeSupporter); ok {
		return s.SupportsDType(dt)
	}
	return dt.Valid()
}
