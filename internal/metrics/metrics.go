// SPDX-License-Identifier: MIT

// Package metrics exposes Prometheus instrumentation for the engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsByState tracks how many sessions are in each state.
	SessionsByState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gridcam_sessions",
		Help: "Number of camera sessions by state",
	}, []string{"state"})

	// SessionTransitionsTotal counts state machine transitions.
	SessionTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gridcam_session_transitions_total",
		Help: "Total session state transitions by new state and reason",
	}, []string{"state", "reason"})

	// ConnectDuration tracks the time from grant to ready.
	ConnectDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gridcam_connect_duration_seconds",
		Help:    "Time from connection start to player ready",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 3, 5, 8, 13, 20},
	})

	// RetriesTotal counts automatic reconnection attempts.
	RetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gridcam_retries_total",
		Help: "Total automatic reconnection attempts",
	})

	// AdmissionRequestsTotal counts grant requests by synchronous outcome.
	AdmissionRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gridcam_admission_requests_total",
		Help: "Total admission requests by outcome",
	}, []string{"result"})

	// AdmissionCapacity is the configured concurrency budget.
	AdmissionCapacity = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gridcam_admission_capacity",
		Help: "Configured maximum number of concurrent sessions",
	})

	// GrantsInUse is the current grant count.
	GrantsInUse = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gridcam_grants_in_use",
		Help: "Number of cameras currently granted",
	})

	// GrantQueueDepth is the number of visible cameras waiting for capacity.
	GrantQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gridcam_grant_queue_depth",
		Help: "Number of cameras queued for a grant",
	})
)

// SetAdmissionState records the current budget counters.
func SetAdmissionState(capacity, grants, queued int) {
	AdmissionCapacity.Set(float64(capacity))
	GrantsInUse.Set(float64(grants))
	GrantQueueDepth.Set(float64(queued))
}

// IncAdmissionRequest records a grant request outcome.
func IncAdmissionRequest(result string) {
	AdmissionRequestsTotal.WithLabelValues(result).Inc()
}

// IncTransition records a session transition.
func IncTransition(state, reason string) {
	SessionTransitionsTotal.WithLabelValues(state, reason).Inc()
}
