// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package guard

import (
	"context"

	"github.com/samber/oops"

	"github.com/wardenid/warden/internal/identity"
)

// CodeUnauthorized is the error code of a failed RequireAuthenticated check.
const CodeUnauthorized = "AUTH_UNAUTHORIZED"

// UnauthorizedMessage is shown to callers that reach a protected operation
// without a valid session token.
const UnauthorizedMessage = "Unauthorized, token is not valid!"

// RequireAuthenticated passes only when the context carries a non-anonymous
// identity.
func RequireAuthenticated() Guard {
	return Func("authenticated", func(ctx context.Context) error {
		id, ok := identity.From(ctx)
		if !ok || id.IsAnonymous() {
			return oops.Code(CodeUnauthorized).
				With("message", UnauthorizedMessage).
				Errorf("%s", UnauthorizedMessage)
		}
		return nil
	})
}
