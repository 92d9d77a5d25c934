// Package metrics holds the prometheus collectors of message-service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "message_service"

var (
	MessagesCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_created_total",
		Help:      "Messages created, each with its receiver notification.",
	})

	MessageEdits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "message_edits_total",
		Help:      "Edit attempts by outcome.",
	}, []string{"result"})

	MessagesMarkedRead = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_marked_read_total",
		Help:      "Messages whose read flag flipped to true.",
	})

	ActorsRemoved = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "actors_removed_total",
		Help:      "Actor removal cascades by trigger.",
	}, []string{"source"})

	CacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_lookups_total",
		Help:      "Response cache lookups by view and result.",
	}, []string{"view", "result"})

	CacheInvalidations = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_invalidations_total",
		Help:      "Response cache keys deleted after a commit.",
	})

	RateLimitDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ratelimit_decisions_total",
		Help:      "Rate limiter decisions by result.",
	}, []string{"result"})

	RateLimitTrackedClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ratelimit_tracked_clients",
		Help:      "Client windows currently held by the in-memory limiter.",
	})
)

// Edit outcomes.
const (
	EditChanged  = "changed"
	EditNoop     = "noop"
	EditConflict = "conflict"
)

// Cache lookup results.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

// Rate limit results.
const (
	RateLimitAllowed  = "allowed"
	RateLimitRejected = "rejected"
	RateLimitError    = "error"
)

func init() {
	prometheus.MustRegister(
		MessagesCreated,
		MessageEdits,
		MessagesMarkedRead,
		ActorsRemoved,
		CacheLookups,
		CacheInvalidations,
		RateLimitDecisions,
		RateLimitTrackedClients,
	)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
