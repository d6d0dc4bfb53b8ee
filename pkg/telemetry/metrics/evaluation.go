package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/sentinel/pkg/config"
)

// EvaluationMetrics tracks policy decisions.
//
// Metrics:
//   - sentinel_evaluations_total: decisions by outcome
//   - sentinel_evaluation_duration_seconds: decision latency by outcome
//   - sentinel_rule_hits_total: decisions made by each rule
type EvaluationMetrics struct {
	evaluationsTotal   *prometheus.CounterVec
	evaluationDuration *prometheus.HistogramVec
	ruleHitsTotal      *prometheus.CounterVec
}

// NewEvaluationMetrics creates and registers evaluation metrics.
func NewEvaluationMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *EvaluationMetrics {
	em := &EvaluationMetrics{
		evaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "evaluations_total",
				Help:      "Total number of policy evaluations by outcome",
			},
			[]string{"outcome"},
		),

		evaluationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "evaluation_duration_seconds",
				Help:      "Duration of policy evaluation in seconds",
				Buckets:   cfg.EvaluationDurationBuckets,
			},
			[]string{"outcome"},
		),

		ruleHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "rule_hits_total",
				Help:      "Total number of decisions made by each rule",
			},
			[]string{"rule_id", "outcome"},
		),
	}

	registry.MustRegister(
		em.evaluationsTotal,
		em.evaluationDuration,
		em.ruleHitsTotal,
	)

	return em
}

// RecordEvaluation records a decision and its latency.
func (em *EvaluationMetrics) RecordEvaluation(outcome string, duration time.Duration) {
	em.evaluationsTotal.WithLabelValues(outcome).Inc()
	em.evaluationDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordHit records the rule that decided an evaluation.
func (em *EvaluationMetrics) RecordHit(ruleID, outcome string) {
	em.ruleHitsTotal.WithLabelValues(ruleID, outcome).Inc()
}
