package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var responsesProcessed = promauto.NewCounter(prometheus.CounterOpts{
	Name: "feedsieve_engine_responses_processed_total",
	Help: "Content-bearing responses with at least one extracted entry.",
})

var entriesSeen = promauto.NewCounter(prometheus.CounterOpts{
	Name: "feedsieve_engine_entries_seen_total",
	Help: "Normalized user records produced from intercepted responses.",
})

var entriesSuppressed = promauto.NewCounter(prometheus.CounterOpts{
	Name: "feedsieve_engine_entries_suppressed_total",
	Help: "Content entries rewritten to the unavailable sentinel.",
})

var parseFailures = promauto.NewCounter(prometheus.CounterOpts{
	Name: "feedsieve_engine_parse_failures_total",
	Help: "Response bodies that failed to parse and passed through untouched.",
})
