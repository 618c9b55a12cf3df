// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AlertsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopfloor_alerts_created_total",
			Help: "Alerts raised, by priority",
		},
		[]string{"priority"},
	)

	AlertTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopfloor_alert_transitions_total",
			Help: "Alert status changes",
		},
		[]string{"from", "to"},
	)

	MachineStatusChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopfloor_machine_status_changes_total",
			Help: "Machine status changes and what caused them",
		},
		[]string{"from", "to", "reason"},
	)

	NotificationsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shopfloor_notifications_dropped_total",
			Help: "Notices dropped because the worker queue was full",
		},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shopfloor_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// Reasons recorded with MachineStatusChanges.
const (
	ReasonCriticalAlert = "critical_alert"
	ReasonAlertsCleared = "alerts_cleared"
	ReasonManual        = "manual"
	ReasonMaintenance   = "maintenance_completed"
)

func MachineStatusChanged(from, to, reason string) {
	MachineStatusChanges.WithLabelValues(from, to, reason).Inc()
}
