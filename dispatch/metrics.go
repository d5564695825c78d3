package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var actionsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "feedsieve_dispatch_actions_total",
	Help: "Number of moderation actions reaching a terminal outcome.",
}, []string{"action", "outcome"})

var actionDeferrals = promauto.NewCounter(prometheus.CounterOpts{
	Name: "feedsieve_dispatch_deferrals_total",
	Help: "Number of actions deferred waiting on an operation id capture.",
})
