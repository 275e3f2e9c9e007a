package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Stanza metrics
	StanzasParsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lctvbot_stanzas_parsed_total",
			Help: "Total stanzas normalized into events",
		},
		[]string{"kind"},
	)

	ParseErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lctvbot_parse_errors_total",
			Help: "Total malformed stanzas rejected by the parser",
		},
	)

	// Send metrics
	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lctvbot_messages_sent_total",
			Help: "Total messages sent to the room",
		},
	)

	MessagesSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lctvbot_messages_suppressed_total",
			Help: "Total outgoing messages dropped as duplicates",
		},
	)

	// Policy metrics
	CommandsRateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lctvbot_commands_rate_limited_total",
			Help: "Total commands flagged by the per-user rate limit",
		},
	)

	// Infrastructure metrics
	StoreLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lctvbot_store_latency_seconds",
			Help:    "Settings store operation latency",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05},
		},
	)
)
