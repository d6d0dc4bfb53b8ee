package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/sentinel/pkg/config"
	"mercator-hq/sentinel/pkg/policy/git"
	"mercator-hq/sentinel/pkg/policy/repository"
)

// otherLabel replaces label values past the cardinality limit.
const otherLabel = "other"

// Collector owns the Prometheus metrics of a Sentinel process. It satisfies
// engine.Observer and repository.Observer, and the HTTP server reports
// requests through ObserveRequest.
//
// A Collector whose config has Enabled=false records nothing.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	evaluationMetrics *EvaluationMetrics
	ruleMetrics       *RuleMetrics
	requestMetrics    *RequestMetrics

	// Limits distinct rule_id label values.
	cardinalityLimiter *CardinalityLimiter
}

// NewCollector creates a collector and registers its metrics with registry.
// If registry is nil a new one is created.
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	evaluator, _ := engine.NewEvaluator(ecfg, repo, logger, engine.WithObserver(collector))
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if cfg == nil {
		cfg = &config.MetricsConfig{Enabled: true}
	}
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if len(cfg.EvaluationDurationBuckets) == 0 {
		cfg.EvaluationDurationBuckets = append([]float64(nil), config.DefaultEvaluationDurationBuckets...)
	}

	return &Collector{
		config:             cfg,
		registry:           registry,
		evaluationMetrics:  NewEvaluationMetrics(cfg, registry),
		ruleMetrics:        NewRuleMetrics(cfg, registry),
		requestMetrics:     NewRequestMetrics(cfg, registry),
		cardinalityLimiter: NewCardinalityLimiter(10000),
	}
}

// ObserveEvaluation records one policy decision. outcome is "allow", "deny"
// or "default"; ruleID is empty for default decisions.
func (c *Collector) ObserveEvaluation(outcome, ruleID string, duration time.Duration) {
	if !c.config.Enabled {
		return
	}

	c.evaluationMetrics.RecordEvaluation(outcome, duration)
	if ruleID != "" {
		if !c.cardinalityLimiter.Allow(ruleID) {
			ruleID = otherLabel
		}
		c.evaluationMetrics.RecordHit(ruleID, outcome)
	}
}

// ObserveLoad records a load or reload of the rule repository.
func (c *Collector) ObserveLoad(result *repository.LoadResult, err error) {
	if !c.config.Enabled {
		return
	}
	c.ruleMetrics.RecordLoad(result, err)
}

// ObserveRequest records one HTTP request. route is the matched route
// pattern, not the raw path.
func (c *Collector) ObserveRequest(method, route string, status int, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.requestMetrics.RecordRequest(method, route, status, duration)
}

// RegisterGitSource exports the clone and pull counters of a git rule
// source. It is a no-op when metrics are disabled.
func (c *Collector) RegisterGitSource(stats func() git.Metrics) error {
	if !c.config.Enabled {
		return nil
	}
	return c.registry.Register(NewGitMetrics(c.config, stats))
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter bounds the number of distinct label values.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a limiter allowing maxCardinality values.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether value is already tracked or fits under the limit.
func (cl *CardinalityLimiter) Allow(value string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[value]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[value]; exists {
		return true
	}
	if len(cl.current) >= cl.maxCardinality {
		return false
	}
	cl.current[value] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
