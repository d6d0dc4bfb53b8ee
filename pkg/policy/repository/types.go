package repository

import (
	"time"

	"mercator-hq/sentinel/pkg/policy/rule"
)

// LoadResult describes one load or reload.
type LoadResult struct {
	// Rules are the admitted rules in traversal order.
	Rules []rule.Rule `json:"-"`

	// RuleCount is len(Rules).
	RuleCount int `json:"rule_count"`

	// DocumentCount is the number of documents visited.
	DocumentCount int `json:"document_count"`

	// Errors are per-document and per-record failures. They never abort a load.
	Errors []error `json:"-"`

	// Warnings are non-fatal findings on admitted rules.
	Warnings []string `json:"warnings,omitempty"`

	// Conditions record notable states that are not errors, such as a
	// missing rules root.
	Conditions []string `json:"conditions,omitempty"`

	// Duration is the wall time of the load.
	Duration time.Duration `json:"duration"`

	// Version identifies the resulting rule set.
	Version string `json:"version"`
}

// Stats summarizes the repository state.
type Stats struct {
	RuleCount    int           `json:"rule_count"`
	Version      string        `json:"version"`
	LoadedAt     time.Time     `json:"loaded_at"`
	LastDuration time.Duration `json:"last_duration"`
	LastErrors   int           `json:"last_errors"`
	Reloads      int           `json:"reloads"`
}

// Observer receives load outcomes, typically for metrics.
type Observer interface {
	ObserveLoad(result *LoadResult, err error)
}

// Option configures a Repository.
type Option func(*Repository)

// WithObserver registers an observer for load outcomes.
func WithObserver(o Observer) Option {
	return func(r *Repository) {
		r.observer = o
	}
}

// WithParser replaces the document parser. Tests use it to inject failures.
func WithParser(parse ParseFunc) Option {
	return func(r *Repository) {
		r.parse = parse
	}
}
