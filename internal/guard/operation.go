// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package guard

import "context"

// Operation is a context-aware unit of work that a pipeline can protect.
type Operation[In, Out any] func(ctx context.Context, in In) (Out, error)

// Wrap returns an operation that evaluates p and only invokes op when every
// guard passes. On denial the zero Out and the *Denied error are returned.
//
// Wrapping an already wrapped operation nests the pipelines: the outer
// pipeline is evaluated first.
func Wrap[In, Out any](p Pipeline, op Operation[In, Out]) Operation[In, Out] {
	return func(ctx context.Context, in In) (Out, error) {
		if err := p.Evaluate(ctx); err != nil {
			var zero Out
			return zero, err
		}
		return op(ctx, in)
	}
}
