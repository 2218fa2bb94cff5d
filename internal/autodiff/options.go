package autodiff

import "github.com/born-ml/wengert/internal/backend/instrumented"

// Option configures a Graph at construction.
type Option func(*Graph)

// WithName sets a human-readable name used in logs and String.
func WithName(name string) Option {
	return func(g *Graph) {
		g.name = name
	}
}

// WithCapacity preallocates room for n nodes on the tape.
func WithCapacity(n int) Option {
	return func(g *Graph) {
		if n > cap(g.nodes) {
			nodes := make([]node, len(g.nodes), n)
			copy(nodes, g.nodes)
			g.nodes = nodes
		}
	}
}

// WithInstrumentation wraps the graph's backend in a kernel-counting decorator,
// reachable through Graph.Instrumentation.
func WithInstrumentation() Option {
	return func(g *Graph) {
		if g.counter == nil {
			g.counter = instrumented.Wrap(g.backend)
			g.backend = g.counter
		}
	}
}
