// Package metrics exposes prometheus counters for the resolution engine.
// The counters register on the default prometheus registry; embedding
// applications that already serve /metrics pick them up automatically, and
// the CLI simply never scrapes them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EnvHits counts lookups satisfied by an environment-variable override.
	EnvHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oxsecrets_env_hits_total",
			Help: "Secret lookups satisfied by an environment-variable override",
		},
		[]string{"backend"},
	)

	// CacheHits counts lookups served from the shared cache.
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oxsecrets_cache_hits_total",
			Help: "Secret lookups served from the in-memory cache",
		},
		[]string{"backend"},
	)

	// CacheMisses counts lookups that missed the cache.
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oxsecrets_cache_misses_total",
			Help: "Secret lookups that missed the in-memory cache",
		},
		[]string{"backend"},
	)

	// Loads counts successful backend cache loads.
	Loads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oxsecrets_backend_loads_total",
			Help: "Successful backend cache-population loads",
		},
		[]string{"backend"},
	)

	// LoadFailures counts backend loads that returned an error.
	LoadFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oxsecrets_backend_load_failures_total",
			Help: "Backend cache-population loads that failed",
		},
		[]string{"backend"},
	)

	// Stores counts successful store operations.
	Stores = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oxsecrets_store_operations_total",
			Help: "Successful secret store operations",
		},
		[]string{"backend"},
	)
)
