package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/openrecords/caseharvester/internal/progress"
)

// PrometheusSink exports per-outcome counters and case latency via
// Prometheus. It owns its collectors so multiple runs share one registry.
type PrometheusSink struct {
	casesCompleted *prometheus.CounterVec
	caseDuration   *prometheus.HistogramVec
	caseAttempts   *prometheus.HistogramVec
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		casesCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "caseharvester_cases_completed_total",
			Help: "Cases finalized, partitioned by outcome.",
		}, []string{"outcome"}),
		caseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "caseharvester_case_duration_seconds",
			Help:    "Wall time per finalized case.",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"outcome"}),
		caseAttempts: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "caseharvester_case_attempts",
			Help:    "Fetch attempts consumed per finalized case.",
			Buckets: []float64{1, 2, 3, 4, 5},
		}, []string{"outcome"}),
	}
	for _, collector := range []prometheus.Collector{
		s.casesCompleted,
		s.caseDuration,
		s.caseAttempts,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from the event. Safe for concurrent use.
func (s *PrometheusSink) Consume(_ context.Context, evt progress.Event) error {
	outcome := string(evt.Outcome)
	s.casesCompleted.WithLabelValues(outcome).Inc()
	if evt.Dur > 0 {
		s.caseDuration.WithLabelValues(outcome).Observe(evt.Dur.Seconds())
	}
	if evt.Attempts > 0 {
		s.caseAttempts.WithLabelValues(outcome).Observe(float64(evt.Attempts))
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
