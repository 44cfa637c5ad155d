// Package metrics holds the Prometheus collectors of the purge engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "purgebot"

var (
	TicksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Scheduler ticks started.",
		},
	)

	TickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Wall time of a full tick across all robots.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14),
		},
	)

	RobotRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "robot_runs_total",
			Help:      "Per-robot passes by outcome.",
		},
		[]string{"outcome"},
	)

	CandidatesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_inserted_total",
			Help:      "New purge records created by evaluation.",
		},
	)

	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Purge record transitions applied, by action.",
		},
		[]string{"action"},
	)

	EffectFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "effect_failures_total",
			Help:      "Failed side effects, by step.",
		},
		[]string{"step"},
	)

	DirectoryRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "directory_requests_total",
			Help:      "Directory HTTP calls, by operation and outcome.",
		},
		[]string{"op", "outcome"},
	)

	DirectoryRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "directory_retries_total",
			Help:      "Directory calls retried after a recoverable failure.",
		},
		[]string{"op"},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Outbound notifications, by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)
)
