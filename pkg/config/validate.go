package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All validation errors are collected and
// returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateRules(&cfg.Rules)...)
	errs = append(errs, validateEngine(&cfg.Engine)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{Field: "server.listen_address", Message: "listen address is required"})
	} else if !strings.Contains(cfg.ListenAddress, ":") {
		errs = append(errs, FieldError{Field: "server.listen_address", Message: "listen address must be in host:port format"})
	}

	durations := []struct {
		field string
		value int64
	}{
		{"server.read_timeout", int64(cfg.ReadTimeout)},
		{"server.write_timeout", int64(cfg.WriteTimeout)},
		{"server.idle_timeout", int64(cfg.IdleTimeout)},
		{"server.request_timeout", int64(cfg.RequestTimeout)},
		{"server.shutdown_timeout", int64(cfg.ShutdownTimeout)},
	}
	for _, d := range durations {
		if d.value < 0 {
			errs = append(errs, FieldError{Field: d.field, Message: "timeout must be non-negative"})
		}
	}

	if cfg.MaxBodyBytes < 0 {
		errs = append(errs, FieldError{Field: "server.max_body_bytes", Message: "max body bytes must be non-negative"})
	}
	return errs
}

func validateRules(cfg *RulesConfig) []FieldError {
	var errs []FieldError

	switch cfg.Source {
	case "file":
		for i, p := range cfg.Paths {
			if strings.TrimSpace(p) == "" {
				errs = append(errs, FieldError{Field: fmt.Sprintf("rules.paths[%d]", i), Message: "path cannot be empty"})
			}
		}
	case "sqlite":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{Field: "rules.sqlite.path", Message: "database path is required"})
		}
		if cfg.SQLite.Driver != "sqlite" && cfg.SQLite.Driver != "sqlite3" {
			errs = append(errs, FieldError{
				Field:   "rules.sqlite.driver",
				Message: fmt.Sprintf("invalid driver %q (must be sqlite or sqlite3)", cfg.SQLite.Driver),
			})
		}
	case "redis":
		switch {
		case cfg.Redis.URL == "":
			errs = append(errs, FieldError{Field: "rules.redis.url", Message: "redis url is required"})
		case strings.Contains(cfg.Redis.URL, SecretRefPrefix):
			// Secret references are checked once resolved.
		default:
			if u, err := url.Parse(cfg.Redis.URL); err != nil || (u.Scheme != "redis" && u.Scheme != "rediss") {
				errs = append(errs, FieldError{Field: "rules.redis.url", Message: "redis url must use redis:// or rediss://"})
			}
		}
	case "git":
		errs = append(errs, validateGit(&cfg.Git)...)
	default:
		errs = append(errs, FieldError{
			Field:   "rules.source",
			Message: fmt.Sprintf("invalid source %q (must be file, sqlite, redis, or git)", cfg.Source),
		})
	}

	if cfg.MaxFileSize < 0 {
		errs = append(errs, FieldError{Field: "rules.max_file_size", Message: "max file size must be non-negative"})
	}
	for i, ext := range cfg.Extensions {
		if !strings.HasPrefix(ext, ".") {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("rules.extensions[%d]", i),
				Message: fmt.Sprintf("extension %q must start with a dot", ext),
			})
		}
	}
	if cfg.DebounceInterval < 0 {
		errs = append(errs, FieldError{Field: "rules.debounce_interval", Message: "debounce interval must be non-negative"})
	}
	if cfg.Watch && cfg.Source != "file" {
		errs = append(errs, FieldError{Field: "rules.watch", Message: "watch is only supported for the file source; use reload_schedule"})
	}
	if cfg.ReloadSchedule != "" {
		if _, err := cron.ParseStandard(cfg.ReloadSchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "rules.reload_schedule",
				Message: fmt.Sprintf("invalid cron schedule %q: %v", cfg.ReloadSchedule, err),
			})
		}
	}
	return errs
}

func validateGit(cfg *GitConfig) []FieldError {
	var errs []FieldError

	if cfg.Repository == "" {
		errs = append(errs, FieldError{Field: "rules.git.repository", Message: "repository is required when source is git"})
	}
	if cfg.Branch == "" {
		errs = append(errs, FieldError{Field: "rules.git.branch", Message: "branch is required"})
	}
	if strings.Contains(cfg.Path, "..") {
		errs = append(errs, FieldError{Field: "rules.git.path", Message: "path cannot contain '..'"})
	}
	switch cfg.Auth.Type {
	case "none":
	case "token":
		if cfg.Auth.Token == "" {
			errs = append(errs, FieldError{Field: "rules.git.auth.token", Message: "token is required for token auth"})
		}
	case "ssh":
		if cfg.Auth.SSHKeyPath == "" {
			errs = append(errs, FieldError{Field: "rules.git.auth.ssh_key_path", Message: "ssh key path is required for ssh auth"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "rules.git.auth.type",
			Message: fmt.Sprintf("invalid auth type %q (must be token, ssh, or none)", cfg.Auth.Type),
		})
	}
	if cfg.Timeout < 0 {
		errs = append(errs, FieldError{Field: "rules.git.timeout", Message: "timeout must be non-negative"})
	}
	if cfg.Clone.Depth < 0 {
		errs = append(errs, FieldError{Field: "rules.git.clone.depth", Message: "depth must be non-negative"})
	}
	return errs
}

func validateEngine(cfg *EngineConfig) []FieldError {
	var errs []FieldError

	for i, a := range cfg.DenyActions {
		if strings.TrimSpace(a) == "" {
			errs = append(errs, FieldError{Field: fmt.Sprintf("engine.deny_actions[%d]", i), Message: "action type cannot be empty"})
		}
	}
	if cfg.SlowEvaluationThreshold < 0 {
		errs = append(errs, FieldError{Field: "engine.slow_evaluation_threshold", Message: "threshold must be non-negative"})
	}
	if cfg.MaxTaskRules < 0 {
		errs = append(errs, FieldError{Field: "engine.max_task_rules", Message: "max task rules must be non-negative"})
	}
	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid log level %q (must be debug, info, warn, or error)", cfg.Logging.Level),
		})
	}
	switch cfg.Logging.Format {
	case "json", "text", "console":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid log format %q (must be json, text, or console)", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: "metrics path must start with /"})
	}
	for i := 1; i < len(cfg.Metrics.EvaluationDurationBuckets); i++ {
		if cfg.Metrics.EvaluationDurationBuckets[i] <= cfg.Metrics.EvaluationDurationBuckets[i-1] {
			errs = append(errs, FieldError{Field: "telemetry.metrics.evaluation_duration_buckets", Message: "buckets must be strictly increasing"})
			break
		}
	}

	switch cfg.Tracing.Sampler {
	case "always", "never", "ratio", "parent_ratio":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sampler",
			Message: fmt.Sprintf("invalid sampler %q (must be always, never, ratio, or parent_ratio)", cfg.Tracing.Sampler),
		})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		errs = append(errs, FieldError{Field: "telemetry.tracing.sample_ratio", Message: "sample ratio must be between 0.0 and 1.0"})
	}
	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{Field: "telemetry.tracing.endpoint", Message: "endpoint is required when tracing is enabled"})
	}

	paths := map[string]string{
		"telemetry.health.liveness_path":  cfg.Health.LivenessPath,
		"telemetry.health.readiness_path": cfg.Health.ReadinessPath,
		"telemetry.health.version_path":   cfg.Health.VersionPath,
	}
	for _, field := range []string{"telemetry.health.liveness_path", "telemetry.health.readiness_path", "telemetry.health.version_path"} {
		if !strings.HasPrefix(paths[field], "/") {
			errs = append(errs, FieldError{Field: field, Message: "path must start with /"})
		}
	}
	return errs
}
