// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

// Package guard composes authorization checks that run ahead of protected
// operations.
//
// A Guard is a named predicate over the request context. Guards are collected
// into an immutable Pipeline, which evaluates them strictly in declared order
// and stops at the first failure. Pipelines are attached to operations with
// Wrap and to HTTP handlers with Pipeline.Middleware.
package guard

import (
	"context"
	"fmt"
)

// Guard is a single authorization check. Evaluate returns nil when the check
// passes and a descriptive error when it fails.
type Guard interface {
	Name() string
	Evaluate(ctx context.Context) error
}

type funcGuard struct {
	name string
	fn   func(ctx context.Context) error
}

func (g funcGuard) Name() string { return g.name }

func (g funcGuard) Evaluate(ctx context.Context) error { return g.fn(ctx) }

// Func adapts a plain function into a named Guard.
func Func(name string, fn func(ctx context.Context) error) Guard {
	return funcGuard{name: name, fn: fn}
}

// Denied is returned by Pipeline.Evaluate when a guard fails. It records which
// guard failed and wraps the reason the guard gave.
type Denied struct {
	Guard string
	Err   error
}

func (d *Denied) Error() string {
	return fmt.Sprintf("guard %s denied: %v", d.Guard, d.Err)
}

func (d *Denied) Unwrap() error {
	return d.Err
}
