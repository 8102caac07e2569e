// Package metrics holds the Prometheus collectors for the service. They are
// registered on the default registry and served at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RendersTotal counts engine invocations. Outcome is one of
	// "ok", "engine_error", "timeout".
	RendersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wireviz_renders_total",
			Help: "Total number of render requests handed to the engine",
		},
		[]string{"format", "outcome"},
	)

	// RenderDuration observes wall-clock engine time per format.
	RenderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wireviz_render_duration_seconds",
			Help:    "Duration of engine invocations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"format"},
	)

	// RenderCacheHits counts artifacts served straight from Redis.
	RenderCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wireviz_render_cache_hits_total",
			Help: "Total number of render cache hits",
		},
	)

	// RenderCacheMisses counts renders that had to hit the engine.
	RenderCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wireviz_render_cache_misses_total",
			Help: "Total number of render cache misses",
		},
	)

	// DecodeErrors counts rejected PlantUML text-encoding inputs.
	DecodeErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wireviz_plantuml_decode_errors_total",
			Help: "Total number of malformed PlantUML text-encoding inputs",
		},
	)
)
