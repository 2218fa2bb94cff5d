// Package parallel splits index ranges of CPU kernels across goroutines.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls parallel execution behavior.
type Config struct {
	Workers  int // Goroutines to use; 1 or less runs sequentially.
	MinGrain int // Minimum work units (index count times cost) per goroutine.
}

// DefaultConfig uses one worker per CPU.
func DefaultConfig() Config {
	return Config{
		Workers:  runtime.NumCPU(),
		MinGrain: 1 << 14,
	}
}

// Sequential never starts goroutines.
var Sequential = Config{Workers: 1}

// For calls f on disjoint ranges [lo, hi) covering [0, n), where each index
// costs roughly cost work units. It returns once every call has returned.
//
// f must not panic: panics on worker goroutines cannot be recovered by the
// caller.
func For(n, cost int, cfg Config, f func(lo, hi int)) {
	if n <= 0 {
		return
	}
	cost = max(cost, 1)
	chunks := min(cfg.Workers, n)
	if cfg.MinGrain > 0 {
		chunks = min(chunks, n*cost/cfg.MinGrain)
	}
	if chunks <= 1 {
		f(0, n)
		return
	}

	var wg sync.WaitGroup
	size := (n + chunks - 1) / chunks
	for lo := 0; lo < n; lo += size {
		hi := min(lo+size, n)
		wg.Add(1)
		go func() {
			defer wg.Done()
			f(lo, hi)
		}()
	}
	wg.Wait()
}
