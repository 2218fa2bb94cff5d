// Package instrumented provides a tensor.Backend decorator that counts kernel
// executions, both per instance and in Prometheus metrics.
package instrumented

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/born-ml/wengert/internal/tensor"
)

var (
	// kernelCalls counts kernel executions by device and kernel name.
	kernelCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wengert_kernel_calls_total",
		Help: "Total backend kernel executions",
	}, []string{"device", "kernel"})

	// kernelDuration tracks wall time spent inside kernels.
	kernelDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wengert_kernel_duration_seconds",
		Help:    "Backend kernel duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10), // 10us to ~2.6s
	}, []string{"device", "kernel"})
)

// Kernel names as reported by Calls and the metrics.
const (
	KernelAdd       = "add"
	KernelSub       = "sub"
	KernelMul       = "mul"
	KernelMatMul    = "matmul"
	KernelTranspose = "transpose"
	KernelNeg       = "neg"
	KernelExp       = "exp"
	KernelSin       = "sin"
	KernelCos       = "cos"
	KernelSum       = "sum"
	KernelSumDim    = "sumdim"
)

// Backend wraps another tensor.Backend and records every kernel it runs.
// It is safe for concurrent use as long as the wrapped backend is.
type Backend struct {
	inner tensor.Backend

	mu    sync.Mutex
	calls map[string]int
}

// Wrap returns a counting decorator around inner.
func Wrap(inner tensor.Backend) *Backend {
	return &Backend{
		inner: inner,
		calls: make(map[string]int),
	}
}

// Unwrap returns the decorated backend.
func (b *Backend) Unwrap() tensor.Backend {
	return b.inner
}

// Calls returns how many times kernel ran since creation or the last Reset.
func (b *Backend) Calls(kernel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[kernel]
}

// Total returns the number of kernel executions across all kernels.
func (b *Backend) Total() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	total := 0
	for _, n := range b.calls {
		total += n
	}
	return total
}

// Reset zeroes the per-instance counters. Prometheus counters are not affected.
func (b *Backend) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.calls)
}

// record runs kernel and accounts for it. Panicking kernels are counted too.
func (b *Backend) record(kernel string, fn func() *tensor.RawTensor) *tensor.RawTensor {
	b.mu.Lock()
	b.calls[kernel]++
	b.mu.Unlock()

	device := b.inner.Device().String()
	kernelCalls.WithLabelValues(device, kernel).Inc()
	start := time.Now()
	defer func() {
		kernelDuration.WithLabelValues(device, kernel).Observe(time.Since(start).Seconds())
	}()
	return fn()
}

// Add implements tensor.Backend.
func (b *Backend) Add(x, y *tensor.RawTensor) *tensor.RawTensor {
	return b.record(KernelAdd, func() *tensor.RawTensor { return b.inner.Add(x, y) })
}

// Sub implements tensor.Backend.
func (b *Backend) Sub(x, y *tensor.RawTensor) *tensor.RawTensor {
	return b.record(KernelSub, func() *tensor.RawTensor { return b.inner.Sub(x, y) })
}

// Mul implements tensor.Backend.
func (b *Backend) Mul(x, y *tensor.RawTensor) *tensor.RawTensor {
	return b.record(KernelMul, func() *tensor.RawTensor { return b.inner.Mul(x, y) })
}

// MatMul implements tensor.Backend.
func (b *Backend) MatMul(x, y *tensor.RawTensor) *tensor.RawTensor {
	return b.record(KernelMatMul, func() *tensor.RawTensor { return b.inner.MatMul(x, y) })
}

// Transpose implements tensor.Backend.
func (b *Backend) Transpose(x *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	return b.record(KernelTranspose, func() *tensor.RawTensor { return b.inner.Transpose(x, axes...) })
}

// Neg implements tensor.Backend.
func (b *Backend) Neg(x *tensor.RawTensor) *tensor.RawTensor {
	return b.record(KernelNeg, func() *tensor.RawTensor { return b.inner.Neg(x) })
}

// Exp implements tensor.Backend.
func (b *Backend) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	return b.record(KernelExp, func() *tensor.RawTensor { return b.inner.Exp(x) })
}

// Sin implements tensor.Backend.
func (b *Backend) Sin(x *tensor.RawTensor) *tensor.RawTensor {
	return b.record(KernelSin, func() *tensor.RawTensor { return b.inner.Sin(x) })
}

// Cos implements tensor.Backend.
func (b *Backend) Cos(x *tensor.RawTensor) *tensor.RawTensor {
	return b.record(KernelCos, func() *tensor.RawTensor { return b.inner.Cos(x) })
}

// Sum implements tensor.Backend.
func (b *Backend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	return b.record(KernelSum, func() *tensor.RawTensor { return b.inner.Sum(x) })
}

// SumDim implements tensor.Backend.
func (b *Backend) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	return b.record(KernelSumDim, func() *tensor.RawTensor { return b.inner.SumDim(x, dim, keepDim) })
}

// Name implements tensor.Backend.
func (b *Backend) Name() string {
	return b.inner.Name() + " (instrumented)"
}

// Device implements tensor.Backend.
func (b *Backend) Device() tensor.Device {
	return b.inner.Device()
}

// Synchronize forwards to the wrapped backend.
func (b *Backend) Synchronize() error {
	return tensor.Synchronize(b.inner)
}

// MaxRank forwards to the wrapped backend.
func (b *Backend) MaxRank() int {
	return tensor.MaxRank(b.inner)
}

// SupportsDType forwards to the wrapped backend.
func (b *Backend) SupportsDType(dt tensor.DataType) bool {
	return tensor.SupportsDType(b.inner, dt)
}
