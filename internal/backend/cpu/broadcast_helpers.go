package cpu

import (
	"github.com/pkg/errors"

	"github.com/born-ml/wengert/internal/tensor"
)

type binaryOp int

const (
	opAdd binaryOp = iota
	opSub
	opMul
)

// binary validates operands, allocates the broadcast result and dispatches on dtype.
func (cpu *CPUBackend) binary(op string, a, b *tensor.RawTensor, kind binaryOp) *tensor.RawTensor {
	checkOperand(op, a)
	checkOperand(op, b)
	if a.DType() != b.DType() {
		panic(errors.Wrapf(tensor.ErrShapeMismatch, "%s: dtype mismatch %s vs %s", op, a.DType(), b.DType()))
	}

	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(errors.Wrap(err, op))
	}

	result := cpu.alloc(op, outShape, a.DType())
	switch a.DType() {
	case tensor.Float32:
		applyBinary(kind, result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), a.Shape(), b.Shape(), outShape, needsBroadcast)
	case tensor.Float64:
		applyBinary(kind, result.AsFloat64(), a.AsFloat64(), b.AsFloat64(), a.Shape(), b.Shape(), outShape, needsBroadcast)
	}
	return result
}

func applyBinary[T tensor.Float](kind binaryOp, dst, a, b []T, aShape, bShape, outShape tensor.Shape, needsBroadcast bool) {
	var f func(x, y T) T
	switch kind {
	case opAdd:
		f = func(x, y T) T { return x + y }
	case opSub:
		f = func(x, y T) T { return x - y }
	case opMul:
		f = func(x, y T) T { return x * y }
	}

	// Fast path: identical shapes.
	if !needsBroadcast {
		for i := range dst {
			dst[i] = f(a[i], b[i])
		}
		return
	}

	outStrides := outShape.ComputeStrides()
	aStrides := computeBroadcastStridesForShape(aShape, outShape)
	bStrides := computeBroadcastStridesForShape(bShape, outShape)
	for i := range dst {
		dst[i] = f(a[computeFlatIndex(i, outStrides, aStrides)], b[computeFlatIndex(i, outStrides, bStrides)])
	}
}

// computeBroadcastStridesForShape computes strides for broadcasting a shape to outShape.
// Returns strides where dimensions of size 1 have stride 0 (for broadcasting).
func computeBroadcastStridesForShape(inShape, outShape tensor.Shape) []int {
	outDim := len(outShape)
	strides := make([]int, outDim)

	// Pad input shape with 1s on the left
	inDim := len(inShape)
	offset := outDim - inDim

	origStrides := inShape.ComputeStrides()

	for i := 0; i < outDim; i++ {
		inIdx := i - offset
		switch {
		case inIdx < 0 || inIdx >= inDim:
			strides[i] = 0
		case inShape[inIdx] == 1:
			strides[i] = 0
		default:
			strides[i] = origStrides[inIdx]
		}
	}

	return strides
}

// computeFlatIndex computes the flat index in the source array for a given output index.
// outStrides: strides of the output shape.
// inStrides: broadcast-adjusted strides of the input shape.
func computeFlatIndex(outIdx int, outStrides, inStrides []int) int {
	flatIdx := 0
	for i := range outStrides {
		coord := outIdx / outStrides[i]
		outIdx %= outStrides[i]
		flatIdx += coord * inStrides[i]
	}
	return flatIdx
}
