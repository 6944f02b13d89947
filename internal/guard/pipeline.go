// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package guard

import (
	"context"
	"slices"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("warden/guard")

// Pipeline is an ordered, immutable list of guards.
type Pipeline struct {
	guards []Guard
}

// NewPipeline builds a pipeline that evaluates guards in the given order.
// It panics on a nil guard, since pipelines are assembled at startup.
func NewPipeline(guards ...Guard) Pipeline {
	for i, g := range guards {
		if g == nil {
			panic("guard: nil guard at position " + strconv.Itoa(i))
		}
	}
	return Pipeline{guards: slices.Clone(guards)}
}

// With returns a new pipeline with guards appended after the existing ones.
// The receiver is left unchanged.
func (p Pipeline) With(guards ...Guard) Pipeline {
	return NewPipeline(slices.Concat(p.guards, guards)...)
}

// Len returns the number of guards in the pipeline.
func (p Pipeline) Len() int {
	return len(p.guards)
}

// Names returns guard names in evaluation order.
func (p Pipeline) Names() []string {
	names := make([]string, len(p.guards))
	for i, g := range p.guards {
		names[i] = g.Name()
	}
	return names
}

// Evaluate runs each guard in order. The first failure is returned as a
// *Denied and no later guard is evaluated. An empty pipeline always passes.
func (p Pipeline) Evaluate(ctx context.Context) (err error) {
	if len(p.guards) == 0 {
		return nil
	}

	ctx, span := tracer.Start(ctx, "guard.evaluate",
		trace.WithAttributes(attribute.StringSlice("guard.names", p.Names())),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	for _, g := range p.guards {
		if gerr := g.Evaluate(ctx); gerr != nil {
			span.SetAttributes(attribute.String("guard.denied_by", g.Name()))
			RecordDenial(g.Name())
			return &Denied{Guard: g.Name(), Err: gerr}
		}
	}
	return nil
}
