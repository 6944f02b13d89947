// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package api

import (
	"net/http"
	"net/netip"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/samber/oops"
)

// TrustedProxies lists the peers allowed to report the client address in
// X-Forwarded-For, X-Real-IP or True-Client-IP.
type TrustedProxies []netip.Prefix

// ParseTrustedProxies accepts bare addresses ("10.0.0.1") and CIDRs
// ("10.0.0.0/8").
func ParseTrustedProxies(entries []string) (TrustedProxies, error) {
	proxies := make(TrustedProxies, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, oops.Code("TRUSTED_PROXY_INVALID").With("proxy", entry).Wrap(err)
			}
			proxies = append(proxies, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, oops.Code("TRUSTED_PROXY_INVALID").With("proxy", entry).Wrap(err)
		}
		addr = addr.Unmap()
		proxies = append(proxies, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return proxies, nil
}

// Contains reports whether remoteAddr ("ip:port" or "ip") is a trusted peer.
func (t TrustedProxies) Contains(remoteAddr string) bool {
	addr, err := peerAddr(remoteAddr)
	if err != nil {
		return false
	}
	for _, prefix := range t {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// Middleware rewrites RemoteAddr from the forwarding headers only for
// requests arriving from a trusted peer. Everyone else is keyed on the TCP
// peer, so rate limits cannot be dodged by forging headers.
func (t TrustedProxies) Middleware(next http.Handler) http.Handler {
	if len(t) == 0 {
		return next
	}
	forwarded := middleware.RealIP(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if t.Contains(r.RemoteAddr) {
			forwarded.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func peerAddr(remoteAddr string) (netip.Addr, error) {
	if ap, err := netip.ParseAddrPort(remoteAddr); err == nil {
		return ap.Addr().Unmap(), nil
	}
	addr, err := netip.ParseAddr(remoteAddr)
	if err != nil {
		return netip.Addr{}, err
	}
	return addr.Unmap(), nil
}
