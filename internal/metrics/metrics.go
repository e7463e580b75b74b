// Package metrics provides Prometheus instrumentation for the SkillSwap
// service: connection gauges, swipe and match counters, chat throughput and
// deck ranking latency.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectionsTotal tracks the current number of active WebSocket connections.
	ConnectionsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "skillswap_connections_total",
		Help: "Current number of active WebSocket connections",
	})

	// SwipesTotal counts recorded swipes by direction ("like" or "pass").
	SwipesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "skillswap_swipes_total",
		Help: "Total number of swipes recorded",
	}, []string{"direction"})

	// MatchesTotal counts match formation attempts by outcome:
	// "created", "existing", "none" or "conflict".
	MatchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "skillswap_matches_total",
		Help: "Match formation attempts by outcome",
	}, []string{"outcome"})

	// MessagesTotal counts chat messages, labeled by type: "sent" or "rejected".
	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "skillswap_messages_total",
		Help: "Total number of chat messages processed",
	}, []string{"type"})

	// DeckSize records how many candidates a deck request returned.
	DeckSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "skillswap_deck_size",
		Help:    "Number of candidates returned per deck request",
		Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
	})

	// DeckLatency records the time spent loading and ranking a deck.
	DeckLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "skillswap_deck_latency_seconds",
		Help:    "Deck load and ranking latency in seconds",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	})

	// RequestLatency records gateway request handling latency by frame type.
	RequestLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "skillswap_request_latency_seconds",
		Help:    "Client request handling latency in seconds",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"type"})

	// NotifyFailures counts change notifications that could not be published.
	NotifyFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "skillswap_notify_failures_total",
		Help: "Notifications that failed to publish",
	})
)

func init() {
	prometheus.MustRegister(
		ConnectionsTotal,
		SwipesTotal,
		MatchesTotal,
		MessagesTotal,
		DeckSize,
		DeckLatency,
		RequestLatency,
		NotifyFailures,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
