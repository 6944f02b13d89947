// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/wardenid/warden/internal/auth"
	"github.com/wardenid/warden/internal/guard"
	"github.com/wardenid/warden/pkg/errutil"
)

const msgBadRequest = "Request body is not valid."

type handlers struct {
	accounts *auth.AccountService
	baseURL  *BaseURLResolver
	logger   *slog.Logger
}

type recoveryRequest struct {
	Email string `json:"email"`
}

type resetRequest struct {
	Token           string `json:"token"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (h *handlers) signup(w http.ResponseWriter, r *http.Request) {
	var in auth.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, auth.UserResponse{Errors: msgBadRequest})
		return
	}
	writeJSON(w, http.StatusOK, h.accounts.Register(r.Context(), in))
}

func (h *handlers) signin(w http.ResponseWriter, r *http.Request) {
	var in auth.LoginInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, auth.LoginResponse{Errors: msgBadRequest})
		return
	}
	writeJSON(w, http.StatusOK, h.accounts.Login(r.Context(), in))
}

func (h *handlers) recovery(w http.ResponseWriter, r *http.Request) {
	var in recoveryRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, resultBody{})
		return
	}
	baseURL, err := h.baseURL.Resolve(r)
	if err != nil {
		errutil.LogWarnContext(r.Context(), h.logger, "reset link base url rejected", err)
		writeJSON(w, http.StatusOK, resultBody{})
		return
	}
	ok := h.accounts.RequestPasswordReset(r.Context(), in.Email, baseURL)
	writeJSON(w, http.StatusOK, resultBody{Success: ok})
}

func (h *handlers) validateReset(w http.ResponseWriter, r *http.Request) {
	ok := h.accounts.ValidateResetToken(r.Context(), chi.URLParam(r, "token"))
	writeJSON(w, http.StatusOK, validBody{Valid: ok})
}

func (h *handlers) reset(w http.ResponseWriter, r *http.Request) {
	var in resetRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, resultBody{})
		return
	}
	ok := h.accounts.CompletePasswordReset(r.Context(), in.Token, in.Password, in.ConfirmPassword)
	writeJSON(w, http.StatusOK, resultBody{Success: ok})
}

func (h *handlers) listProfiles(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "page must be an integer")
		return
	}
	limit, err := queryInt(r, "limit", auth.DefaultPageSize)
	if err != nil {
		writeError(w, http.StatusBadRequest, "limit must be an integer")
		return
	}

	profiles, err := h.accounts.ListProfiles(r.Context(), page, limit)
	if err != nil {
		errutil.LogErrorContext(r.Context(), h.logger, "list profiles failed", err)
		writeError(w, http.StatusInternalServerError, auth.MsgGeneric)
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}

func (h *handlers) getProfile(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusNotFound, auth.MsgUserNotFound)
		return
	}

	profile, err := h.accounts.GetProfile(r.Context(), id)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			writeError(w, http.StatusNotFound, auth.MsgUserNotFound)
			return
		}
		errutil.LogErrorContext(r.Context(), h.logger, "get profile failed", err)
		writeError(w, http.StatusInternalServerError, auth.MsgGeneric)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *handlers) updateProfile(w http.ResponseWriter, r *http.Request) {
	var in auth.UpdateInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, auth.UserResponse{Errors: msgBadRequest})
		return
	}
	resp, err := h.accounts.UpdateProfile(r.Context(), in)
	if err != nil {
		guard.WriteDenied(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) deleteAccount(w http.ResponseWriter, r *http.Request) {
	resp, err := h.accounts.DeleteAccount(r.Context())
	if err != nil {
		guard.WriteDenied(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
