package autodiff

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/born-ml/wengert/internal/autodiff/ops"
	"github.com/born-ml/wengert/internal/tensor"
)

// Node is a handle to one node of a Graph. It is a small value: copies refer
// to the same node, and all state lives in the Graph.
//
// The zero Node refers to no graph; its methods fail with ErrGraphConsistency.
type Node struct {
	g  *Graph
	id NodeID
}

// Must returns n, panicking if err is non-nil. It is meant for building
// expressions whose shapes are known to be valid.
//
//	z := autodiff.Must(autodiff.Must(x.Add(y)).Mul(x))
func Must(n Node, err error) Node {
	if err != nil {
		panic(err)
	}
	return n
}

// ID returns the node's identifier within its graph.
func (n Node) ID() NodeID {
	return n.id
}

// Graph returns the graph owning the node.
func (n Node) Graph() *Graph {
	return n.g
}

// Op returns the node's operator.
func (n Node) Op() ops.Kind {
	return n.g.node(n.id).op
}

// Parents returns the identifiers of the node's operands.
func (n Node) Parents() []NodeID {
	return append([]NodeID(nil), n.g.node(n.id).parents...)
}

// Shape returns the node's shape.
func (n Node) Shape() tensor.Shape {
	return n.g.node(n.id).shape.Clone()
}

// DType returns the node's data type.
func (n Node) DType() tensor.DataType {
	return n.g.node(n.id).dtype
}

// String renders the node as "%id = Op dtype[shape]".
func (n Node) String() string {
	if n.g == nil {
		return "<nil node>"
	}
	nd := n.g.node(n.id)
	return fmt.Sprintf("%%%d = %s %s%v", n.id, nd.op, nd.dtype, nd.shape)
}

// Add returns a node computing n + other with broadcasting.
func (n Node) Add(other Node) (Node, error) {
	return n.apply(ops.Add, other)
}

// Sub returns a node computing n - other with broadcasting.
func (n Node) Sub(other Node) (Node, error) {
	return n.apply(ops.Sub, other)
}

// Mul returns a node computing n * other element-wise with broadcasting.
func (n Node) Mul(other Node) (Node, error) {
	return n.apply(ops.Mul, other)
}

// MatMul returns a node computing the batched matrix product n @ other.
func (n Node) MatMul(other Node) (Node, error) {
	return n.apply(ops.MatMul, other)
}

// Expm returns a node computing the matrix exponential of n, which must be a
// batch of diagonal matrices.
func (n Node) Expm() (Node, error) {
	return n.apply(ops.Expm)
}

// Sum returns a scalar node holding the sum of all elements of n.
func (n Node) Sum() (Node, error) {
	return n.apply(ops.Sum)
}

// Sin returns a node computing sin(n) element-wise.
func (n Node) Sin() (Node, error) {
	return n.apply(ops.Sin)
}

func (n Node) apply(kind ops.Kind, others ...Node) (Node, error) {
	if n.g == nil {
		return Node{}, errors.Wrapf(ErrGraphConsistency, "%s on a zero Node", kind)
	}
	return n.g.Apply(kind, append([]Node{n}, others...)...)
}

// Forward computes the node's value, evaluating unevaluated ancestors first.
// Values already computed are reused.
func (n Node) Forward() error {
	if n.g == nil {
		return errors.Wrap(ErrGraphConsistency, "forward on a zero Node")
	}
	return n.g.forward(n.id)
}

// Value returns a copy of the node's computed value.
// Fails with ErrGraphConsistency before Forward reached the node.
func (n Node) Value() (*tensor.RawTensor, error) {
	if n.g == nil {
		return nil, errors.Wrap(ErrGraphConsistency, "value of a zero Node")
	}
	v := n.g.node(n.id).value
	if v == nil {
		return nil, errors.Wrapf(ErrGraphConsistency, "value of %s: not evaluated", n)
	}
	return v.Clone(), nil
}

// Backward propagates gradients from this node to every ancestor. The seed
// defaults to ones shaped like the node. All gradients of the graph are reset
// first.
//
// Fails with ErrGraphConsistency if the node has no value yet, with
// ErrShapeMismatch if the seed's shape or dtype differs from the node's, and
// with ErrDeviceMismatch if the seed lives on another device.
func (n Node) Backward(seed ...*tensor.RawTensor) error {
	if n.g == nil {
		return errors.Wrap(ErrGraphConsistency, "backward on a zero Node")
	}
	if len(seed) > 1 {
		return errors.Wrapf(ErrShapeMismatch, "backward: at most one seed, got %d", len(seed))
	}
	var s *tensor.RawTensor
	if len(seed) == 1 {
		s = seed[0]
	}
	return n.g.backward(n.id, s)
}

// Grad returns a copy of the gradient accumulated by the last backward pass,
// or zeros of the node's shape if no pass has reached the node.
func (n Node) Grad() (*tensor.RawTensor, error) {
	if n.g == nil {
		return nil, errors.Wrap(ErrGraphConsistency, "grad of a zero Node")
	}
	nd := n.g.node(n.id)
	if nd.grad != nil {
		return nd.grad.Clone(), nil
	}
	return tensor.Zeros(nd.shape, nd.dtype, n.g.Device())
}
