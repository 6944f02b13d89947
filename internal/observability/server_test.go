// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package observability

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/wardenid/warden/internal/guard"
)

func startServer(t *testing.T, ready ReadinessChecker) *Server {
	t.Helper()
	server := NewServer("127.0.0.1:0", ready)
	_, err := server.Start()
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Stop(ctx)
	})
	return server
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url) //nolint:gosec,noctx // test URL
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServer_Metrics(t *testing.T) {
	server := startServer(t, nil)

	server.Metrics().HTTPRequestsTotal.WithLabelValues("/signin", "200").Inc()
	server.Metrics().HTTPRequestDuration.WithLabelValues("/signin").Observe(0.01)
	RecordAuthEvent("login", OutcomeSuccess)
	guard.RecordDenial("authenticated")

	status, body := get(t, "http://"+server.Addr()+"/metrics")
	assert.Equal(t, http.StatusOK, status)
	for _, want := range []string{
		"# HELP",
		"go_",
		"process_",
		`warden_http_requests_total{route="/signin",status="200"} 1`,
		"warden_http_request_duration_seconds",
		`warden_auth_events_total{event="login",outcome="success"}`,
		`warden_guard_denials_total{guard="authenticated"}`,
	} {
		assert.Contains(t, body, want)
	}
}

func TestServer_Liveness(t *testing.T) {
	server := startServer(t, func(context.Context) error { return errors.New("db down") })

	status, body := get(t, "http://"+server.Addr()+"/healthz/liveness")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", strings.TrimSpace(body))
}

func TestServer_Readiness(t *testing.T) {
	tests := []struct {
		name       string
		checker    ReadinessChecker
		wantStatus int
		wantBody   string
	}{
		{"nil checker is ready", nil, http.StatusOK, "ok"},
		{"healthy", func(context.Context) error { return nil }, http.StatusOK, "ok"},
		{"unhealthy", func(context.Context) error { return errors.New("ping failed") }, http.StatusServiceUnavailable, "not ready"},
		{"checker gets deadline", func(ctx context.Context) error {
			if _, ok := ctx.Deadline(); !ok {
				return errors.New("no deadline")
			}
			return nil
		}, http.StatusOK, "ok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := startServer(t, tt.checker)
			status, body := get(t, "http://"+server.Addr()+"/healthz/readiness")
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantBody, strings.TrimSpace(body))
		})
	}
}

func TestServer_DoubleStartFails(t *testing.T) {
	server := startServer(t, nil)
	_, err := server.Start()
	require.Error(t, err)
}

func TestServer_StartOnBusyPortFails(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = ln.Close() }()

	server := NewServer(ln.Addr().String(), nil)
	_, err = server.Start()
	require.Error(t, err)

	// A failed start leaves the server restartable.
	server.addr = "127.0.0.1:0"
	_, err = server.Start()
	require.NoError(t, err)
	require.NoError(t, server.Stop(context.Background()))
}

func TestServer_StopIdempotentAndClosesErrorChannel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	server := NewServer("127.0.0.1:0", nil)
	errCh, err := server.Start()
	require.NoError(t, err)

	require.NoError(t, server.Stop(context.Background()))
	require.NoError(t, server.Stop(context.Background()))

	select {
	case err, ok := <-errCh:
		assert.False(t, ok, "channel should be closed without error, got %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("error channel not closed after Stop")
	}
}
