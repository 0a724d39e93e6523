// SPDX-FileCopyrightText: (C) 2025 Keyparcel Authors
// SPDX-License-Identifier: Apache 2.0

// Package xpar carries the execution policy threaded through the parallel
// cipher paths: how many workers to fan out, and a scoped way to force
// single-threaded behavior for callers that need determinism.
package xpar

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Policy decides whether a transform may decompose across workers.
type Policy struct {
	Parallel bool
	Workers  int
}

// Default returns the ambient policy: parallel when more than one logical
// processor is available, with the worker count rounded down to even.
func Default() Policy {
	n := runtime.NumCPU()
	n -= n % 2
	if n < 2 {
		return Linear()
	}
	return Policy{Parallel: true, Workers: n}
}

// Linear returns the single-threaded policy.
func Linear() Policy {
	return Policy{Parallel: false, Workers: 1}
}

// WorkerCount returns the effective fan-out for this policy.
func (p Policy) WorkerCount() int {
	if !p.Parallel || p.Workers < 2 {
		return 1
	}
	return p.Workers
}

// Run fans fn out over workers indices and waits for all of them. The first
// error wins; remaining workers run to completion.
func Run(workers int, fn func(w int) error) error {
	if workers <= 1 {
		return fn(0)
	}
	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error { return fn(w) })
	}
	return g.Wait()
}
