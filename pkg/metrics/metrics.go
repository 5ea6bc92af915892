// Package metrics holds the Prometheus collectors of the service. They are
// registered once with the default registry and served on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "launchpad"

var (
	// WorkflowTransitions counts workflow operations by outcome.
	// Labels: workflow (scoping, procurement, go_live, deployment, site),
	// action, outcome (ok or an error code).
	WorkflowTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "workflow",
		Name:      "transitions_total",
		Help:      "Workflow operations by workflow, action and outcome.",
	}, []string{"workflow", "action", "outcome"})

	// SiteStatusChanges counts site status updates written by workflows.
	SiteStatusChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "site",
		Name:      "status_changes_total",
		Help:      "Site status changes by source and target status.",
	}, []string{"from", "to"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route template, method and status code.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method", "status"})

	OTPIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "otp_total",
		Help:      "One-time passwords by operation and result.",
	}, []string{"operation", "result"})
)
