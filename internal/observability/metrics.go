package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// Web API command metrics
	CommandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "slack_command_duration_seconds",
			Help:    "Web API command latency in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"command", "status"},
	)

	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slack_commands_total",
			Help: "Total number of Web API commands sent",
		},
		[]string{"command", "status"},
	)

	// RTM metrics
	RTMConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rtm_connected",
			Help: "1 while the RTM websocket is connected",
		},
	)

	RTMEventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rtm_events_received_total",
			Help: "Total number of RTM frames received, by type",
		},
		[]string{"type"},
	)

	EventsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_dispatched_total",
			Help: "Total number of events dispatched to listeners, by kind",
		},
		[]string{"kind"},
	)

	// History metrics
	HistoryFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "history_fetch_duration_seconds",
			Help:    "Channel history fetch latency in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"status"},
	)

	HistoryFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "history_fetches_total",
			Help: "Total number of channel history fetches",
		},
		[]string{"status"},
	)

	TrackedHistoriesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tracked_histories_active",
			Help: "Number of histories kept up to date by event listeners",
		},
	)

	TrackedHistoryEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracked_history_events_total",
			Help: "Total number of events applied to tracked histories, by kind",
		},
		[]string{"kind"},
	)

	// Database metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5},
		},
		[]string{"operation", "table"},
	)
)
