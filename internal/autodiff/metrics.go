package autodiff

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// forwardNodes counts nodes whose value was computed by a forward pass.
	forwardNodes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wengert_forward_nodes_total",
		Help: "Total graph nodes evaluated by forward passes",
	}, []string{"device"})

	// backwardPasses counts completed backward passes.
	backwardPasses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wengert_backward_passes_total",
		Help: "Total completed backward passes",
	}, []string{"device"})
)
