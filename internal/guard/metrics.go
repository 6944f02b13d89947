// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package guard

import "github.com/prometheus/client_golang/prometheus"

// Denials counts pipeline denials by the guard that failed.
// Use RegisterMetrics to register this with a Prometheus registry.
var Denials = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "warden_guard_denials_total",
		Help: "Total number of requests denied by a guard",
	},
	[]string{"guard"},
)

// RegisterMetrics registers guard metrics with the given registry.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Denials)
}

// RecordDenial increments the denial counter for the named guard.
func RecordDenial(guard string) {
	Denials.WithLabelValues(guard).Inc()
}
