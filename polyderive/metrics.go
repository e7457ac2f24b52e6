package polyderive

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	roundsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "polyderive",
			Name:      "rounds_total",
			Help:      "Derivation rounds run, by request kind",
		},
		[]string{"kind"},
	)

	derivedInstancesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "polyderive",
			Name:      "derived_instances_total",
			Help:      "Factor instances obtained from the key derivation provider",
		},
		[]string{"kind"},
	)

	cacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "polyderive",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache lookups per request key, by result",
		},
		[]string{"result"},
	)

	failedRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "polyderive",
			Name:      "failed_runs_total",
			Help:      "Derivation runs that failed, by error code",
		},
		[]string{"code"},
	)
)
