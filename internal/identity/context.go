// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

// Package identity carries the authenticated caller through a request context.
package identity

import "context"

// Identity is the resolved caller of a request. The zero value is the
// anonymous identity.
type Identity struct {
	UserID int64
}

// Anonymous is the identity attached when no valid session token was presented.
var Anonymous = Identity{}

// IsAnonymous reports whether the identity carries no user.
func (i Identity) IsAnonymous() bool {
	return i.UserID == 0
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// From returns the identity attached to ctx. The boolean is false when the
// request never passed through authentication.
func From(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// UserID returns the authenticated user id, or 0 for anonymous and
// unauthenticated contexts.
func UserID(ctx context.Context) int64 {
	id, _ := From(ctx)
	return id.UserID
}
