// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff provides lazy computation graphs with reverse-mode
// automatic differentiation.
//
// A Graph records operations on an append-only tape bound to one backend.
// Nothing is computed until Forward is called on a node; Backward then
// propagates gradients to every ancestor of that node.
//
// Example:
//
//	import (
//	    "github.com/born-ml/wengert/autodiff"
//	    "github.com/born-ml/wengert/backend/cpu"
//	    "github.com/born-ml/wengert/tensor"
//	)
//
//	func main() {
//	    g := autodiff.New(cpu.New())
//
//	    xv, _ := tensor.FromSlice([]float64{1, 2}, tensor.Shape{2}, tensor.CPU)
//	    yv, _ := tensor.FromSlice([]float64{3, 4}, tensor.Shape{2}, tensor.CPU)
//	    x := autodiff.Must(g.Tensor(xv))
//	    y := autodiff.Must(g.Tensor(yv))
//	    z := autodiff.Must(x.Mul(y))
//
//	    if err := z.Forward(); err != nil { ... }
//	    if err := z.Backward(); err != nil { ... }
//	    dx, _ := x.Grad() // [3 4]
//	}
package autodiff

import (
	"github.com/born-ml/wengert/internal/autodiff"
	"github.com/born-ml/wengert/internal/autodiff/ops"
	"github.com/born-ml/wengert/tensor"
)

// Graph is an append-only tape of nodes computing on one backend.
type Graph = autodiff.Graph

// Node is a handle to a node of a Graph.
type Node = autodiff.Node

// NodeID identifies a node within its graph.
type NodeID = autodiff.NodeID

// Stats summarizes a graph's size and memory use.
type Stats = autodiff.Stats

// Option configures a Graph.
type Option = autodiff.Option

// Op identifies the operator a node applies.
type Op = ops.Kind

// Operators.
const (
	Leaf   Op = ops.Leaf
	Add    Op = ops.Add
	Sub    Op = ops.Sub
	Mul    Op = ops.Mul
	MatMul Op = ops.MatMul
	Expm   Op = ops.Expm
	Sum    Op = ops.Sum
	Sin    Op = ops.Sin
)

// New creates an empty graph computing with backend.
//
// Example:
//
//	g := autodiff.New(cpu.New(), autodiff.WithName("model"))
func New(backend tensor.Backend, opts ...Option) *Graph {
	return autodiff.New(backend, opts...)
}

// Open creates an empty graph on the backend for device.
func Open(device tensor.Device, opts ...Option) (*Graph, error) {
	return autodiff.Open(device, opts...)
}

// Must returns n, panicking if err is non-nil.
func Must(n Node, err error) Node {
	return autodiff.Must(n, err)
}

// WithName sets the graph's name.
func WithName(name string) Option {
	return autodiff.WithName(name)
}

// WithCapacity preallocates room for n nodes.
func WithCapacity(n int) Option {
	return autodiff.WithCapacity(n)
}

// WithInstrumentation counts kernel launches; see Graph.Instrumentation.
func WithInstrumentation() Option {
	return autodiff.WithInstrumentation()
}
