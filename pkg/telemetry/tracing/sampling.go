package tracing

import (
	"fmt"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Sampling strategies determine which traces are recorded and exported.
const (
	// SamplerAlways samples all traces.
	SamplerAlways = "always"

	// SamplerNever samples no traces.
	SamplerNever = "never"

	// SamplerRatio samples a fraction of root traces by trace ID.
	SamplerRatio = "ratio"

	// SamplerParentRatio follows the caller's sampling decision when a
	// parent span is present and falls back to ratio sampling otherwise.
	SamplerParentRatio = "parent_ratio"
)

// createSampler creates a sampler based on the strategy and ratio.
//
// TraceIDRatioBased hashes the trace ID, so every service sampling the same
// trace at the same ratio reaches the same decision:
//
//	telemetry:
//	  tracing:
//	    sampler: ratio
//	    sample_ratio: 0.1
//
// Only parent_ratio is wrapped in ParentBased. The plain strategies apply to
// every span regardless of what an upstream caller decided.
func createSampler(strategy string, ratio float64) (sdktrace.Sampler, error) {
	if err := ValidateSamplingConfig(SamplingConfig{Strategy: strategy, Ratio: ratio}); err != nil {
		return nil, err
	}

	switch strategy {
	case SamplerAlways:
		return sdktrace.AlwaysSample(), nil
	case SamplerNever:
		return sdktrace.NeverSample(), nil
	case SamplerRatio:
		return sdktrace.TraceIDRatioBased(ratio), nil
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio)), nil
	}
}

// SamplingConfig contains configuration for trace sampling.
type SamplingConfig struct {
	// Strategy is one of "always", "never", "ratio" or "parent_ratio".
	Strategy string

	// Ratio is the sampling ratio for the ratio strategies (0.0 to 1.0).
	Ratio float64
}

// ValidateSamplingConfig validates the sampling configuration.
func ValidateSamplingConfig(cfg SamplingConfig) error {
	switch cfg.Strategy {
	case SamplerAlways, SamplerNever:
		return nil
	case SamplerRatio, SamplerParentRatio:
		if cfg.Ratio < 0.0 || cfg.Ratio > 1.0 {
			return fmt.Errorf("sample ratio must be between 0.0 and 1.0, got %f", cfg.Ratio)
		}
		return nil
	default:
		return fmt.Errorf("unknown sampler strategy: %s (valid: always, never, ratio, parent_ratio)", cfg.Strategy)
	}
}
