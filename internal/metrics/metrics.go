// Package metrics exposes Prometheus instrumentation for the research
// control plane.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "deepscout",
		Name:      "sessions_total",
		Help:      "Research sessions by terminal phase.",
	}, []string{"phase"})

	SessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "deepscout",
		Name:      "session_duration_seconds",
		Help:      "Wall-clock duration of research sessions.",
		Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
	})

	ResearchLoops = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "deepscout",
		Name:      "research_loops",
		Help:      "Loops executed per session.",
		Buckets:   []float64{1, 2, 3, 4, 5, 10},
	})

	ProviderCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "deepscout",
		Name:      "provider_calls_total",
		Help:      "Search provider calls by provider and status.",
	}, []string{"provider", "status"})

	DispatchExhausted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "deepscout",
		Name:      "dispatch_exhausted_total",
		Help:      "Queries for which the whole provider chain yielded no hits.",
	})

	SourcesRetained = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "deepscout",
		Name:      "sources_retained",
		Help:      "Sources passing the quality filter per session.",
		Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
	})

	SourcesFiltered = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "deepscout",
		Name:      "sources_filtered",
		Help:      "Sources rejected by the quality filter per session.",
		Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
	})
)
