// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package guard

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/samber/oops"
)

// Middleware adapts the pipeline to net/http. A denied request gets a 401
// with a JSON error body and next is never called.
func (p Pipeline) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := p.Evaluate(r.Context()); err != nil {
			WriteDenied(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WriteDenied renders a guard denial as an HTTP 401 response.
func WriteDenied(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	body := map[string]string{"error": Message(err)}
	if encErr := json.NewEncoder(w).Encode(body); encErr != nil {
		slog.Debug("failed to write denial response", "error", encErr)
	}
}

// Message returns the caller-facing text for a denial. Guards may supply
// their own text through a "message" oops context value.
func Message(err error) string {
	var denied *Denied
	if !errors.As(err, &denied) {
		return UnauthorizedMessage
	}
	if oopsErr, ok := oops.AsOops(denied.Err); ok {
		if msg, ok := oopsErr.Context()["message"].(string); ok && msg != "" {
			return msg
		}
	}
	return UnauthorizedMessage
}
