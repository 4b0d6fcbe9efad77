// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Polling scheduler metrics
var (
	// TicksTotal counts completed ticks by outcome (ok, failed, panic).
	TicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channelstats_ticks_total",
			Help: "Total polling ticks by outcome",
		},
		[]string{"status"},
	)

	// TickDuration tracks how long a full fetch-aggregate-write cycle takes.
	TickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "channelstats_tick_duration_seconds",
			Help:    "Duration of a polling tick in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	// SchedulerRunning is 1 while the tick loop is running.
	SchedulerRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "channelstats_scheduler_running",
			Help: "Whether the polling loop is running (1) or stopped (0)",
		},
	)

	// SessionStartsTotal counts session (re)starts.
	SessionStartsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "channelstats_session_starts_total",
			Help: "Total polling session starts, including restarts",
		},
	)
)

// Platform API metrics
var (
	// APIRequestsTotal counts outbound API requests by endpoint and status class.
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channelstats_api_requests_total",
			Help: "Total outbound API requests by endpoint and status",
		},
		[]string{"endpoint", "status"},
	)

	// APIRequestDuration tracks outbound API latency.
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "channelstats_api_request_duration_seconds",
			Help:    "Outbound API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// LookupFailuresTotal counts metric lookups that fell back to 0, by
	// platform and error kind.
	LookupFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channelstats_lookup_failures_total",
			Help: "Metric lookups that reported 0 because of an error",
		},
		[]string{"platform", "kind"},
	)

	// TwitchTokenRequestsTotal counts app access token exchanges by outcome.
	TwitchTokenRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channelstats_twitch_token_requests_total",
			Help: "Twitch client-credentials token exchanges by outcome",
		},
		[]string{"status"},
	)
)

// Overlay sink metrics
var (
	// OverlayWritesTotal counts overlay text updates by outcome.
	OverlayWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channelstats_overlay_writes_total",
			Help: "Overlay text updates by outcome",
		},
		[]string{"status"},
	)
)
