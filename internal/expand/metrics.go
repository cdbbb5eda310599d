package expand

import (
	"github.com/vk/snipweave/internal/metrics"
)

const (
	namespace = "snipweave"
	component = "engine"

	// StatusSuccess signifies a finished, usable expansion.
	StatusSuccess = "success"
	// StatusFailure signifies an expansion that produced no output.
	StatusFailure = "failure"

	// CacheEventHit counts reads answered from the cache.
	CacheEventHit = "hit"
	// CacheEventMiss counts reads the cache could not answer.
	CacheEventMiss = "miss"
	// CacheEventShare counts lookups joined to an in-flight call.
	CacheEventShare = "share"
	// CacheEventEvict counts entries displaced by the eviction policy.
	CacheEventEvict = "evict"
)

// ExpansionsTotal counts finished top-level expansions. [status].
var ExpansionsTotal = metrics.MustRegisterCounterVec(
	namespace,
	component,
	"expansions_total",
	"Number of finished top-level expansions.",
	"status",
)

// ExpansionDuration tracks the wall time of top-level expansions.
var ExpansionDuration = metrics.MustRegisterHistogram(
	namespace,
	component,
	"expansion_duration_seconds",
	"Duration of top-level expansions.",
	[]float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
)

// CacheEventsTotal counts cache interactions. [event].
var CacheEventsTotal = metrics.MustRegisterCounterVec(
	namespace,
	component,
	"cache_events_total",
	"Number of cache hits, misses, shared in-flight joins, and evictions.",
	"event",
)

// ConditionsTotal counts raised conditions. [category].
var ConditionsTotal = metrics.MustRegisterCounterVec(
	namespace,
	component,
	"conditions_total",
	"Number of conditions raised during expansion.",
	"category",
)

// InFlightGauge tracks expansions currently in progress.
var InFlightGauge = metrics.MustRegisterGauge(
	namespace,
	component,
	"in_flight_expansions",
	"Number of top-level expansions currently in progress.",
)
