// Package metrics defines the Prometheus instrumentation for the lead
// qualification engine. Collectors are registered on the default registry via
// promauto and exposed through promhttp in cmd/leadflow.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProviderAttempts counts individual completion attempts per provider.
	ProviderAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadflow_provider_attempts_total",
			Help: "Completion attempts per provider and outcome (success|failure).",
		},
		[]string{"provider", "outcome"},
	)

	// ProviderFailures counts classified per-attempt failures.
	ProviderFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadflow_provider_failures_total",
			Help: "Per-attempt provider failures by retryability classification.",
		},
		[]string{"provider", "retryable"},
	)

	// ProviderExhaustions counts calls where every enabled provider failed.
	ProviderExhaustions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leadflow_provider_exhaustions_total",
			Help: "Calls that failed across all enabled providers.",
		},
	)

	// GenerationDuration observes end-to-end latency of successful generations.
	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "leadflow_generation_duration_seconds",
			Help:    "Latency of successful completion calls.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "mode"},
	)

	// RateLimitDecisions counts admission controller outcomes per key prefix.
	// Outcome is one of: allowed, denied, bypassed, unavailable.
	RateLimitDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadflow_ratelimit_decisions_total",
			Help: "Admission controller decisions per key prefix.",
		},
		[]string{"prefix", "outcome"},
	)

	// ScoringPasses counts pipeline scoring passes.
	// Outcome is "scored" for a parsed assessment, "fallback" for neutral defaults.
	ScoringPasses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadflow_scoring_passes_total",
			Help: "Conversation scoring passes by outcome.",
		},
		[]string{"outcome"},
	)

	// SummaryFailures counts best-effort summaries that could not be generated.
	SummaryFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leadflow_summary_failures_total",
			Help: "Conversation summaries skipped due to provider errors.",
		},
	)
)
