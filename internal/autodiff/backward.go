package autodiff

import (
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/wengert/internal/tensor"
)

// backward propagates seed from target through the tape in reverse order.
//
// Algorithm:
//  1. Seed the target (ones by default)
//  2. Walk nodes from target down to 0
//  3. For each node holding a gradient, compute its operands' contributions
//  4. Sum contributions into operands reached along several paths
//
// Gradients are committed only on success; every node the pass does not reach
// ends with a zero gradient.
func (g *Graph) backward(target NodeID, seed *tensor.RawTensor) error {
	t := g.node(target)
	if t.value == nil {
		return errors.Wrapf(ErrGraphConsistency, "backward from %%%d: node not evaluated, call Forward first", target)
	}

	if seed == nil {
		var err error
		seed, err = tensor.Ones(t.shape, t.dtype, g.Device())
		if err != nil {
			return err
		}
	}
	if seed.Device() != g.Device() {
		return errors.Wrapf(ErrDeviceMismatch, "backward: seed on %s, graph on %s", seed.Device(), g.Device())
	}
	if !seed.Shape().Equal(t.shape) || seed.DType() != t.dtype {
		return errors.Wrapf(ErrShapeMismatch, "backward: seed %s does not match %s%v", seed, t.dtype, t.shape)
	}

	grads := make([]*tensor.RawTensor, target+1)
	grads[target] = seed.Clone()

	err := g.runKernels("backward", func() {
		for i := target; i >= 0; i-- {
			grad := grads[i]
			n := g.node(i)
			if grad == nil || len(n.parents) == 0 {
				continue
			}
			inputs := make([]*tensor.RawTensor, len(n.parents))
			for j, p := range n.parents {
				inputs[j] = g.node(p).value
			}
			contributions := n.op.Operation().Backward(g.backend, grad, n.value, inputs...)
			for j, p := range n.parents {
				if grads[p] == nil {
					grads[p] = contributions[j]
				} else {
					grads[p] = g.backend.Add(grads[p], contributions[j])
				}
			}
			if klog.V(2).Enabled() {
				klog.Infof("autodiff: %s: backward %%%d = %s -> %v", g.name, i, n.op, n.parents)
			}
		}
	})
	if err == nil {
		err = g.sync("backward")
	}
	if err != nil {
		return err
	}

	reached := 0
	for i := range g.nodes {
		g.nodes[i].grad = nil
		if NodeID(i) <= target && grads[i] != nil {
			g.nodes[i].grad = grads[i]
			reached++
		}
	}
	backwardPasses.WithLabelValues(g.Device().String()).Inc()
	klog.V(1).Infof("autodiff: %s: backward from %%%d reached %d nodes", g.name, target, reached)
	return nil
}
