// Package metrics exposes Prometheus collectors for the ingestion service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	challengeSolvesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caseharvester_challenge_solves_total",
			Help: "Total challenge solve attempts, labeled by result.",
		},
		[]string{"result"},
	)

	challengeBufferOccupancy = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "caseharvester_challenge_buffer_occupancy",
			Help: "Number of solved challenge tokens currently buffered.",
		},
	)

	credentialRefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caseharvester_credential_refreshes_total",
			Help: "Total credential refresh attempts, labeled by result.",
		},
		[]string{"result"},
	)

	caseOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caseharvester_case_outcomes_total",
			Help: "Terminal case outcomes, labeled by outcome kind.",
		},
		[]string{"outcome"},
	)

	documentsFetchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caseharvester_documents_fetched_total",
			Help: "Document download completions, labeled by result.",
		},
		[]string{"result"},
	)

	activeCaseWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "caseharvester_active_case_workers",
			Help: "Number of workers currently processing a case.",
		},
	)

	retryDelaysSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "caseharvester_retry_delay_seconds",
			Help:    "Histogram of waits between retry attempts.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30},
		},
	)
)

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveChallengeSolve counts one solve attempt.
func ObserveChallengeSolve(result string) {
	challengeSolvesTotal.WithLabelValues(result).Inc()
}

// SetChallengeBufferOccupancy records the current buffer fill level.
func SetChallengeBufferOccupancy(n int) {
	challengeBufferOccupancy.Set(float64(n))
}

// ObserveCredentialRefresh counts one refresh attempt.
func ObserveCredentialRefresh(result string) {
	credentialRefreshesTotal.WithLabelValues(result).Inc()
}

// ObserveCaseOutcome counts one terminal case outcome.
func ObserveCaseOutcome(outcome string) {
	caseOutcomesTotal.WithLabelValues(outcome).Inc()
}

// ObserveDocumentFetch counts one document download completion.
func ObserveDocumentFetch(result string) {
	documentsFetchedTotal.WithLabelValues(result).Inc()
}

// IncActiveCaseWorkers increments the active case workers gauge.
func IncActiveCaseWorkers() {
	activeCaseWorkers.Inc()
}

// DecActiveCaseWorkers decrements the active case workers gauge.
func DecActiveCaseWorkers() {
	activeCaseWorkers.Dec()
}

// ObserveRetryDelay records one backoff wait.
func ObserveRetryDelay(seconds float64) {
	retryDelaysSeconds.Observe(seconds)
}
