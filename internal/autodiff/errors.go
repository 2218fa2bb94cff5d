package autodiff

import (
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/wengert/internal/tensor"
)

// Error kinds returned by Graph and Node operations. Match them with errors.Is.
var (
	ErrShape               = tensor.ErrShape
	ErrShapeMismatch       = tensor.ErrShapeMismatch
	ErrUnsupportedOperator = tensor.ErrUnsupportedOperator
	ErrDeviceMismatch      = tensor.ErrDeviceMismatch
	ErrGraphConsistency    = tensor.ErrGraphConsistency
	ErrDeviceFailure       = tensor.ErrDeviceFailure
)

var errorKinds = []error{
	ErrShape,
	ErrShapeMismatch,
	ErrUnsupportedOperator,
	ErrDeviceMismatch,
	ErrGraphConsistency,
	ErrDeviceFailure,
}

// runKernels calls fn, converting a panic raised by a backend kernel into an
// error. Errors that do not already carry one of the error kinds are reported
// as ErrDeviceFailure.
func (g *Graph) runKernels(what string, fn func()) error {
	exception := exceptions.Try(fn)
	if exception == nil {
		return nil
	}

	err, ok := exception.(error)
	if !ok {
		err = errors.Errorf("%v", exception)
	}
	for _, kind := range errorKinds {
		if errors.Is(err, kind) {
			return errors.WithMessage(err, what)
		}
	}
	klog.Warningf("autodiff: graph %s: %s failed on %s: %v", g.id, what, g.backend.Name(), err)
	return errors.Wrapf(ErrDeviceFailure, "%s: %v", what, err)
}
