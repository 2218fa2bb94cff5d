//go:build windows

// Package webgpu implements the WebGPU backend for GPU-accelerated tensor operations.
// Uses go-webgpu (github.com/go-webgpu/webgpu) for zero-CGO WebGPU bindings.
//
// Only float32 tensors of rank 4 or less are supported. Every kernel reads its
// result back before returning, so results are always host-visible.
package webgpu

import (
	"fmt"
	"sync"

	"github.com/go-webgpu/webgpu/wgpu"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/wengert/internal/tensor"
)

// maxRank bounds the shapes the shaders index, see the Params structs in shaders.go.
const maxRank = 4

// Backend implements tensor operations on GPU using WebGPU.
type Backend struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	info     wgpu.AdapterInfo

	// Compiled kernels by name.
	shaders   map[string]*wgpu.ShaderModule
	pipelines map[string]*wgpu.ComputePipeline
	mu        sync.RWMutex

	// release frees the wgpu handles in reverse order of creation.
	release []func()
}

// New creates a new WebGPU backend.
// Returns an error wrapping tensor.ErrDeviceFailure if WebGPU is not available
// or initialization fails.
func New() (b *Backend, err error) {
	b = &Backend{
		shaders:   make(map[string]*wgpu.ShaderModule),
		pipelines: make(map[string]*wgpu.ComputePipeline),
	}
	defer func() {
		// wgpu panics when the native library cannot be loaded.
		if r := recover(); r != nil {
			err = errors.Wrapf(tensor.ErrDeviceFailure, "webgpu: native library not available: %v", r)
		}
		if err != nil {
			b.releaseHandles()
			b = nil
		}
	}()

	b.instance = wgpu.CreateInstance(nil)
	b.release = append(b.release, b.instance.Release)

	if b.adapter, err = b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	}); err != nil {
		return b, errors.Wrapf(tensor.ErrDeviceFailure, "webgpu: request adapter: %v", err)
	}
	b.release = append(b.release, b.adapter.Release)
	b.info = b.adapter.GetInfo()

	if b.device, err = b.adapter.RequestDevice(nil); err != nil {
		return b, errors.Wrapf(tensor.ErrDeviceFailure, "webgpu: request device: %v", err)
	}
	b.release = append(b.release, b.device.Release)

	if b.queue = b.device.GetQueue(); b.queue == nil {
		return b, errors.Wrap(tensor.ErrDeviceFailure, "webgpu: device has no queue")
	}
	b.release = append(b.release, b.queue.Release)

	klog.V(1).Infof("webgpu: opened adapter %s", b.Name())
	return b, nil
}

// Release frees the compiled kernels and the device. The backend must not be
// used afterwards; Synchronize reports ErrDeviceFailure.
func (b *Backend) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, p := range b.pipelines {
		p.Release()
	}
	for _, s := range b.shaders {
		s.Release()
	}
	b.pipelines, b.shaders = nil, nil
	b.releaseHandles()
}

func (b *Backend) releaseHandles() {
	for i := len(b.release) - 1; i >= 0; i-- {
		b.release[i]()
	}
	b.release = nil
	b.instance, b.adapter, b.device, b.queue = nil, nil, nil, nil
}

// Name returns the backend name.
func (b *Backend) Name() string {
	if b.info.Vendor == "" && b.info.Device == "" {
		return "WebGPU"
	}
	return fmt.Sprintf("WebGPU (%s %s)", b.info.Vendor, b.info.Device)
}

// Device returns the compute device.
func (b *Backend) Device() tensor.Device {
	return tensor.WebGPU
}

// MaxRank returns the largest tensor rank the shaders can index.
func (b *Backend) MaxRank() int {
	return maxRank
}

// SupportsDType reports whether dt can be computed on the GPU.
func (b *Backend) SupportsDType(dt tensor.DataType) bool {
	return dt == tensor.Float32
}

// Synchronize reports whether the device is still usable.
// Kernels already wait for their read-back, so there is no queued work to flush.
func (b *Backend) Synchronize() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.device == nil {
		return errors.Wrap(tensor.ErrDeviceFailure, "webgpu: backend released")
	}
	return nil
}

// IsAvailable reports whether an adapter can be obtained on this system.
func IsAvailable() (available bool) {
	defer func() {
		if recover() != nil {
			available = false
		}
	}()

	instance := wgpu.CreateInstance(nil)
	defer instance.Release()
	adapter, err := instance.RequestAdapter(nil)
	if err == nil {
		adapter.Release()
	}
	return err == nil
}

func open() (tensor.Backend, error) {
	b, err := New()
	if err != nil {
		return nil, err
	}
	return b, nil
}
