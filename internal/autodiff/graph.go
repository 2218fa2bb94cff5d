// Package autodiff implements a lazy computation graph with reverse-mode
// automatic differentiation.
//
// A Graph is an append-only tape of nodes bound to one tensor.Backend. Leaves
// hold user-supplied values; every other node records an operator and the
// earlier nodes it reads, so insertion order is always a topological order.
// Values are computed on demand by Forward and memoized; Backward walks the
// tape in reverse and accumulates gradients into every node it reaches.
//
// Usage:
//
//	g := autodiff.New(cpu.New())
//	x := autodiff.Must(g.Tensor(xValue))
//	y := autodiff.Must(g.Tensor(yValue))
//	z := autodiff.Must(x.Mul(y))
//	if err := z.Forward(); err != nil { ... }
//	if err := z.Backward(); err != nil { ... }
//	dx, _ := x.Grad() // == value of y
//
// A Graph is not safe for concurrent mutation; confine it to one goroutine or
// synchronize access externally.
package autodiff

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/wengert/internal/autodiff/ops"
	"github.com/born-ml/wengert/internal/backend"
	"github.com/born-ml/wengert/internal/backend/instrumented"
	"github.com/born-ml/wengert/internal/tensor"
)

// NodeID identifies a node within its Graph. IDs are assigned densely from 0
// in creation order and never reused.
type NodeID int

// node is one tape entry.
type node struct {
	op      ops.Kind
	parents []NodeID
	shape   tensor.Shape
	dtype   tensor.DataType
	value   *tensor.RawTensor // nil until computed; set once
	grad    *tensor.RawTensor // nil means zero
}

// Graph owns the tape of nodes and the backend they execute on.
type Graph struct {
	id      uuid.UUID
	name    string
	backend tensor.Backend
	counter *instrumented.Backend
	nodes   []node
}

// New creates an empty Graph computing with b.
func New(b tensor.Backend, opts ...Option) *Graph {
	g := &Graph{
		id:      uuid.New(),
		backend: b,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.name == "" {
		g.name = "graph"
	}
	klog.V(1).Infof("autodiff: created %s %s on %s", g.name, g.id, g.backend.Name())
	return g
}

// Open creates an empty Graph on the backend for device.
// Unavailable devices fail with ErrDeviceFailure.
func Open(device tensor.Device, opts ...Option) (*Graph, error) {
	b, err := backend.Open(device)
	if err != nil {
		return nil, err
	}
	return New(b, opts...), nil
}

// ID returns the graph's unique identifier.
func (g *Graph) ID() uuid.UUID {
	return g.id
}

// Name returns the graph's name.
func (g *Graph) Name() string {
	return g.name
}

// Len returns the number of nodes on the tape.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Device returns the device all nodes of the graph compute on.
func (g *Graph) Device() tensor.Device {
	return g.backend.Device()
}

// Backend returns the backend kernels run on.
func (g *Graph) Backend() tensor.Backend {
	return g.backend
}

// Instrumentation returns the kernel counter installed by WithInstrumentation,
// or nil.
func (g *Graph) Instrumentation() *instrumented.Backend {
	return g.counter
}

// Tensor appends a Leaf node seeded with a copy of value.
//
// Fails with ErrShape if the backend cannot hold value's dtype or rank, and
// with ErrDeviceMismatch if value lives on another device.
func (g *Graph) Tensor(value *tensor.RawTensor) (Node, error) {
	if value == nil {
		return Node{}, errors.Wrap(ErrShape, "tensor: nil value")
	}
	if err := g.checkHolds(value.Shape(), value.DType()); err != nil {
		return Node{}, errors.WithMessage(err, "tensor")
	}
	if value.Device() != g.Device() {
		return Node{}, errors.Wrapf(ErrDeviceMismatch, "tensor: value on %s, graph on %s", value.Device(), g.Device())
	}
	return g.append(node{
		op:    ops.Leaf,
		shape: value.Shape().Clone(),
		dtype: value.DType(),
		value: value.Clone(),
	}), nil
}

// Apply appends a node applying kind to operands, after validating them.
// Nothing is appended when it fails.
//
// Fails with ErrDeviceMismatch if an operand belongs to another Graph, with
// ErrShapeMismatch if the operand shapes or dtypes are incompatible, and with
// ErrUnsupportedOperator for Expm of an already-evaluated non-diagonal matrix.
func (g *Graph) Apply(kind ops.Kind, operands ...Node) (Node, error) {
	if !kind.Valid() || kind == ops.Leaf {
		return Node{}, errors.Wrapf(ErrUnsupportedOperator, "apply: operator %s", kind)
	}
	op := kind.Operation()
	if len(operands) != op.Arity() {
		return Node{}, errors.Wrapf(ErrShapeMismatch, "apply %s: expected %d operands, got %d", kind, op.Arity(), len(operands))
	}

	parents := make([]NodeID, len(operands))
	shapes := make([]tensor.Shape, len(operands))
	for i, o := range operands {
		if o.g == nil {
			return Node{}, errors.Wrapf(ErrGraphConsistency, "apply %s: operand %d is a zero Node", kind, i)
		}
		if o.g != g {
			return Node{}, errors.Wrapf(ErrDeviceMismatch, "apply %s: operand %d belongs to another graph", kind, i)
		}
		n := g.node(o.id)
		if n.dtype != g.node(operands[0].id).dtype {
			return Node{}, errors.Wrapf(ErrShapeMismatch, "apply %s: dtype mismatch %s vs %s",
				kind, g.node(operands[0].id).dtype, n.dtype)
		}
		parents[i] = o.id
		shapes[i] = n.shape
	}

	shape, err := op.InferShape(shapes...)
	if err != nil {
		return Node{}, err
	}
	dtype := g.node(parents[0]).dtype
	if err := g.checkHolds(shape, dtype); err != nil {
		return Node{}, errors.WithMessagef(err, "apply %s", kind)
	}

	// Catch non-diagonal Expm operands as early as their values are known.
	if kind == ops.Expm {
		if v := g.node(parents[0]).value; v != nil {
			if err := ops.CheckDiagonal(v); err != nil {
				return Node{}, err
			}
		}
	}

	return g.append(node{
		op:      kind,
		parents: parents,
		shape:   shape,
		dtype:   dtype,
	}), nil
}

// ZeroGrad clears every node's gradient.
func (g *Graph) ZeroGrad() {
	for i := range g.nodes {
		g.nodes[i].grad = nil
	}
}

// Stats summarizes the tape.
type Stats struct {
	Nodes      int // Nodes on the tape
	Leaves     int // Leaf nodes
	Evaluated  int // Nodes holding a value
	ValueBytes int // Bytes held by values
	GradBytes  int // Bytes held by non-zero gradients
}

// Stats returns a snapshot of the tape's size and memory use.
func (g *Graph) Stats() Stats {
	s := Stats{Nodes: len(g.nodes)}
	for _, n := range g.nodes {
		if n.op == ops.Leaf {
			s.Leaves++
		}
		if n.value != nil {
			s.Evaluated++
			s.ValueBytes += n.value.ByteSize()
		}
		if n.grad != nil {
			s.GradBytes += n.grad.ByteSize()
		}
	}
	return s
}

// String lists the tape, one node per line.
func (g *Graph) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s on %s (%d nodes)\n", g.name, g.id, g.backend.Name(), len(g.nodes))
	for i, n := range g.nodes {
		args := make([]string, len(n.parents))
		for j, p := range n.parents {
			args[j] = fmt.Sprintf("%%%d", p)
		}
		fmt.Fprintf(&sb, "  %%%d = %s(%s) %s%v", i, n.op, strings.Join(args, ", "), n.dtype, n.shape)
		if n.value != nil {
			sb.WriteString(" evaluated")
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func (g *Graph) append(n node) Node {
	id := NodeID(len(g.nodes))
	g.nodes = append(g.nodes, n)
	if klog.V(2).Enabled() {
		klog.Infof("autodiff: %s: %%%d = %s%v %s%v", g.name, id, n.op, n.parents, n.dtype, n.shape)
	}
	return Node{g: g, id: id}
}

func (g *Graph) node(id NodeID) *node {
	return &g.nodes[id]
}

// checkHolds reports ErrShape if the backend cannot compute on shape and dtype.
func (g *Graph) checkHolds(shape tensor.Shape, dtype tensor.DataType) error {
	if !dtype.Valid() || !tensor.SupportsDType(g.backend, dtype) {
		return errors.Wrapf(ErrShape, "dtype %s not supported on %s", dtype, g.backend.Name())
	}
	if limit := tensor.MaxRank(g.backend); limit >= 0 && shape.Rank() > limit {
		return errors.Wrapf(ErrShape, "rank %d exceeds %d supported on %s", shape.Rank(), limit, g.backend.Name())
	}
	return nil
}
