// Package observability exposes Prometheus metrics for the engine.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AlertEvaluations counts condition evaluations, triggered or not.
	AlertEvaluations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "opsdeck_alert_evaluations_total",
		Help: "Number of alert condition evaluations performed.",
	})

	// AlertTriggers counts evaluations that created an alert event.
	AlertTriggers = promauto.NewCounter(prometheus.CounterOpts{
		Name: "opsdeck_alert_triggers_total",
		Help: "Number of alert events created.",
	})

	// CommandMatches counts new command pattern matches recorded.
	CommandMatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "opsdeck_command_matches_total",
		Help: "Number of command pattern matches recorded.",
	})

	// NotificationSends counts per-recipient delivery attempts by outcome.
	NotificationSends = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opsdeck_notification_sends_total",
		Help: "Number of per-recipient notification deliveries by status.",
	}, []string{"status"})
)
