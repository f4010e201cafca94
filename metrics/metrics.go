// Package metrics exposes the node's Prometheus instrumentation: commit
// throughput, gas consumption, response classification, and trie cache
// effectiveness.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CommitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "statenode_commits_total",
		Help: "Total number of StoreTransformation commits.",
	})

	CommitDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name: "statenode_commit_duration_seconds",
		Help: "Time spent applying staged writes to the four tries and the KVS write transaction.",
	})

	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "statenode_requests_total",
		Help: "Total number of requests delivered, by outcome.",
	}, []string{"outcome"}) // rejected, excepted, failed, ok

	GasConsumed = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "statenode_gas_consumed",
		Help: "Gas consumed per response, by bucket.",
	}, []string{"bucket"}) // cpu, ram, storage, penalty

	TrieCacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "statenode_trie_cache_hits_total",
		Help: "Node lookups served from the NodeStore's in-memory cache.",
	})

	TrieCacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "statenode_trie_cache_misses_total",
		Help: "Node lookups that required a key/value store read.",
	})

	SchedulerQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "statenode_scheduler_queue_depth",
		Help: "Number of requests queued ahead of the single-writer scheduler.",
	})
)

func init() {
	prometheus.MustRegister(
		CommitsTotal,
		CommitDuration,
		RequestsTotal,
		GasConsumed,
		TrieCacheHits,
		TrieCacheMisses,
		SchedulerQueueDepth,
	)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
