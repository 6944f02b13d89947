// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package api

import (
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// CodeUntrustedHost marks a request whose Host header matches no trusted
// host pattern.
const CodeUntrustedHost = "UNTRUSTED_HOST"

// BaseURLResolver decides the base URL embedded in password reset links.
type BaseURLResolver struct {
	publicURL string
	trusted   []glob.Glob
}

// NewBaseURLResolver creates a resolver. A non-empty publicURL always wins.
// Otherwise the URL is derived from the request, and its host must match
// one of the trustedHosts globs ("*.example.com", "localhost").
func NewBaseURLResolver(publicURL string, trustedHosts []string) (*BaseURLResolver, error) {
	r := &BaseURLResolver{publicURL: strings.TrimRight(publicURL, "/")}
	if r.publicURL != "" {
		u, err := url.Parse(r.publicURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, oops.Code("BASE_URL_INVALID").
				With("public_url", publicURL).
				Errorf("public url must be absolute")
		}
	}
	for _, pattern := range trustedHosts {
		g, err := glob.Compile(strings.ToLower(pattern), '.')
		if err != nil {
			return nil, oops.Code("BASE_URL_INVALID").
				With("pattern", pattern).
				Wrapf(err, "compile trusted host")
		}
		r.trusted = append(r.trusted, g)
	}
	return r, nil
}

// Resolve returns the base URL for req without a trailing slash.
func (b *BaseURLResolver) Resolve(req *http.Request) (string, error) {
	if b.publicURL != "" {
		return b.publicURL, nil
	}

	host := strings.ToLower(req.Host)
	if host == "" {
		return "", oops.Code(CodeUntrustedHost).Errorf("request has no host")
	}
	hostname := host
	if h, _, err := net.SplitHostPort(host); err == nil {
		hostname = h
	}
	if !b.trustedHost(hostname) {
		return "", oops.Code(CodeUntrustedHost).
			With("host", host).
			Errorf("host is not trusted")
	}

	return requestScheme(req) + "://" + host, nil
}

func (b *BaseURLResolver) trustedHost(hostname string) bool {
	for _, g := range b.trusted {
		if g.Match(hostname) {
			return true
		}
	}
	return false
}

func requestScheme(req *http.Request) string {
	if proto := req.Header.Get("X-Forwarded-Proto"); proto != "" {
		proto = strings.ToLower(strings.TrimSpace(strings.Split(proto, ",")[0]))
		if proto == "http" || proto == "https" {
			return proto
		}
	}
	if req.TLS != nil {
		return "https"
	}
	return "http"
}
