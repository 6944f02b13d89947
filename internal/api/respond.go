// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/samber/oops"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// errorBody is the JSON shape of every non-envelope error response.
type errorBody struct {
	Error string `json:"error"`
}

// resultBody answers the recovery and reset operations.
type resultBody struct {
	Success bool `json:"success"`
}

// validBody answers GET /reset/{token}.
type validBody struct {
	Valid bool `json:"valid"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Debug("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, target any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		return oops.Code("REQUEST_BODY_INVALID").Wrap(err)
	}
	return nil
}
