// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "courtside",
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "courtside",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	AttendanceRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "courtside",
		Name:      "attendance_recorded_total",
		Help:      "Attendance records created.",
	})

	// AttendanceEdits counts edit outcomes: applied, no_changes, pending,
	// confirmed, cancelled, conflict, failed.
	AttendanceEdits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "courtside",
		Name:      "attendance_edits_total",
		Help:      "Attendance edit outcomes.",
	}, []string{"outcome"})

	Reminders = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "courtside",
		Name:      "reminders_total",
		Help:      "Low-balance reminders by delivery mode and result.",
	}, []string{"delivery", "result"})

	QueueJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "courtside",
		Name:      "worker_jobs_total",
		Help:      "Queue jobs handled by the worker.",
	}, []string{"type", "result"})
)
