// Package cpu implements the pure Go CPU backend.
//
// Every kernel allocates its result and leaves its inputs untouched. Kernels
// report invalid input by panicking with an error wrapping one of the tensor
// error kinds; the autodiff engine recovers those at its kernel boundary.
package cpu

import (
	"github.com/pkg/errors"

	"github.com/born-ml/wengert/internal/parallel"
	"github.com/born-ml/wengert/internal/tensor"
)

// CPUBackend implements tensor operations on CPU.
type CPUBackend struct {
	device  tensor.Device
	workers parallel.Config // row fan-out for MatMul
}

// New creates a new CPU backend.
func New() *CPUBackend {
	return &CPUBackend{
		device:  tensor.CPU,
		workers: parallel.DefaultConfig(),
	}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("add", a, b, opAdd)
}

// Sub performs element-wise subtraction with broadcasting.
func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("sub", a, b, opSub)
}

// Mul performs element-wise multiplication with broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("mul", a, b, opMul)
}

// Transpose transposes the tensor by permuting its dimensions.
// With no axes, all dimensions are reversed.
func (cpu *CPUBackend) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	shape := t.Shape()
	ndim := len(shape)

	// Default: reverse all dimensions
	if len(axes) == 0 {
		axes = make([]int, ndim)
		for i := range axes {
			axes[i] = ndim - 1 - i
		}
	}

	if len(axes) != ndim {
		panic(errors.Wrapf(tensor.ErrShapeMismatch, "transpose: axes length %d != ndim %d", len(axes), ndim))
	}
	seen := make([]bool, ndim)
	for _, ax := range axes {
		if ax < 0 || ax >= ndim || seen[ax] {
			panic(errors.Wrapf(tensor.ErrShapeMismatch, "transpose: invalid permutation %v for %dD tensor", axes, ndim))
		}
		seen[ax] = true
	}

	newShape := make(tensor.Shape, ndim)
	for i, ax := range axes {
		newShape[i] = shape[ax]
	}

	result := cpu.alloc("transpose", newShape, t.DType())
	switch t.DType() {
	case tensor.Float32:
		transposeData(result.AsFloat32(), t.AsFloat32(), shape, axes)
	case tensor.Float64:
		transposeData(result.AsFloat64(), t.AsFloat64(), shape, axes)
	}
	return result
}

// alloc creates a zero-filled result tensor on this device.
func (cpu *CPUBackend) alloc(op string, shape tensor.Shape, dtype tensor.DataType) *tensor.RawTensor {
	result, err := tensor.NewRaw(shape, dtype, cpu.device)
	if err != nil {
		panic(errors.Wrapf(err, "%s: failed to create result tensor", op))
	}
	return result
}

// checkOperand panics unless x has a dtype this backend computes with.
func checkOperand(op string, x *tensor.RawTensor) {
	if !x.DType().Valid() {
		panic(errors.Wrapf(tensor.ErrShape, "%s: unsupported dtype %s", op, x.DType()))
	}
}

// transposeData permutes src (laid out as shape) into dst following axes.
func transposeData[T tensor.Float](dst, src []T, shape tensor.Shape, axes []int) {
	ndim := len(shape)
	srcStrides := shape.ComputeStrides()

	newShape := make(tensor.Shape, ndim)
	for i, ax := range axes {
		newShape[i] = shape[ax]
	}
	dstStrides := newShape.ComputeStrides()

	// Map each output position back to its source position.
	for dstIdx := range dst {
		rem := dstIdx
		srcIdx := 0
		for i := 0; i < ndim; i++ {
			coord := rem / dstStrides[i]
			rem %= dstStrides[i]
			srcIdx += coord * srcStrides[axes[i]]
		}
		dst[dstIdx] = src[srcIdx]
	}
}
