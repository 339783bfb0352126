// Package metrics exposes prometheus collectors for the polling loop.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SubmissionsTotal counts transport submissions per operation
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobpoll_submissions_total",
			Help: "Total number of submitted requests",
		},
		[]string{"operation"},
	)

	// RejectedSubmissionsTotal counts submissions refused because a job was active
	RejectedSubmissionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jobpoll_rejected_submissions_total",
			Help: "Submissions rejected while a job was outstanding",
		},
	)

	// OutcomesTotal counts classification outcomes
	OutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobpoll_outcomes_total",
			Help: "Total number of classified responses",
		},
		[]string{"kind", "code"},
	)

	// StatusChecksTotal counts scheduled status checks issued to the transport
	StatusChecksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jobpoll_status_checks_total",
			Help: "Total number of job status checks",
		},
	)

	// TransportLatency tracks transport call latency
	TransportLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jobpoll_transport_latency_seconds",
			Help:    "Transport call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"call"},
	)

	// TransportErrorsTotal counts failed transport calls
	TransportErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobpoll_transport_errors_total",
			Help: "Total number of transport errors",
		},
		[]string{"call", "code"},
	)

	// JobWaitSeconds is the cumulative in-progress wait of the current job
	JobWaitSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jobpoll_job_wait_seconds",
			Help: "Cumulative wait time of the current job",
		},
	)

	// ActiveJob is 1 while a job handle is held
	ActiveJob = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jobpoll_active_job",
			Help: "Whether a job is currently outstanding",
		},
	)
)
