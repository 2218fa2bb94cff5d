package autodiff

import (
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/wengert/internal/tensor"
)

// forward evaluates target and its unevaluated ancestors in tape order.
// New values are committed only if every kernel succeeds.
func (g *Graph) forward(target NodeID) error {
	if g.node(target).value != nil {
		return nil
	}

	// Mark the unevaluated ancestors. Evaluated nodes cut the walk: their own
	// ancestors were evaluated before them.
	needed := make([]bool, target+1)
	needed[target] = true
	for i := target; i >= 0; i-- {
		n := g.node(i)
		if !needed[i] || n.value != nil {
			needed[i] = false
			continue
		}
		for _, p := range n.parents {
			needed[p] = true
		}
	}

	staged := make(map[NodeID]*tensor.RawTensor)
	valueOf := func(id NodeID) *tensor.RawTensor {
		if v := g.node(id).value; v != nil {
			return v
		}
		return staged[id]
	}

	err := g.runKernels("forward", func() {
		for i := NodeID(0); i <= target; i++ {
			if !needed[i] {
				continue
			}
			n := g.node(i)
			inputs := make([]*tensor.RawTensor, len(n.parents))
			for j, p := range n.parents {
				inputs[j] = valueOf(p)
			}
			out := n.op.Operation().Forward(g.backend, inputs...)
			if !out.Shape().Equal(n.shape) {
				panic(errors.Wrapf(ErrDeviceFailure, "%s produced %v, expected %v", n.op, out.Shape(), n.shape))
			}
			if klog.V(2).Enabled() {
				klog.Infof("autodiff: %s: forward %%%d = %s -> %s", g.name, i, n.op, out)
			}
			staged[i] = out
		}
	})
	if err == nil {
		err = g.sync("forward")
	}
	if err != nil {
		return err
	}

	for id, v := range staged {
		g.node(id).value = v
	}
	forwardNodes.WithLabelValues(g.Device().String()).Add(float64(len(staged)))
	klog.V(1).Infof("autodiff: %s: forward %%%d evaluated %d nodes", g.name, target, len(staged))
	return nil
}

// sync waits for the backend to materialize pending results.
func (g *Graph) sync(what string) error {
	if err := tensor.Synchronize(g.backend); err != nil {
		klog.Warningf("autodiff: graph %s: %s: synchronize failed: %v", g.id, what, err)
		if errors.Is(err, ErrDeviceFailure) {
			return errors.WithMessage(err, what)
		}
		return errors.Wrapf(ErrDeviceFailure, "%s: synchronize: %v", what, err)
	}
	return nil
}
