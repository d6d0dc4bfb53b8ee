package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultRequestTimeout  = 10 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxBodyBytes    = int64(1048576) // 1MB

	// Rules defaults
	DefaultRulesSource       = "file"
	DefaultRulesDir          = ".sentinel/rules"
	DefaultRulesDiscover     = true
	DefaultRulesMaxFileSize  = int64(10 * 1024 * 1024) // 10MB
	DefaultRulesFollowLinks  = true
	DefaultRulesDebounce     = 100 * time.Millisecond
	DefaultSQLitePath        = "data/rules.db"
	DefaultSQLiteDriver      = "sqlite"
	DefaultSQLiteBusyTimeout = 5 * time.Second
	DefaultRedisPrefix       = "sentinel:rules:"
	DefaultRedisDialTimeout  = 5 * time.Second
	DefaultGitBranch         = "main"
	DefaultGitAuthType       = "none"
	DefaultGitPullOnReload   = true
	DefaultGitTimeout        = 30 * time.Second
	DefaultGitCloneDepth     = 1

	// Engine defaults
	DefaultSlowEvaluationThreshold = 10 * time.Millisecond
	DefaultMaxTaskRules            = 1000

	// Telemetry defaults
	DefaultLoggingLevel     = "info"
	DefaultLoggingFormat    = "json"
	DefaultMetricsEnabled   = true
	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "sentinel"
	DefaultTracingSampler   = "parent_ratio"
	DefaultTracingRatio     = 1.0
	DefaultTracingEndpoint  = "localhost:4317"
	DefaultTracingInsecure  = true
	DefaultTracingTimeout   = 10 * time.Second
	DefaultServiceName      = "sentinel"
	DefaultLivenessPath     = "/health"
	DefaultReadinessPath    = "/ready"
	DefaultVersionPath      = "/version"
	DefaultCheckTimeout     = 5 * time.Second

	// Secrets defaults
	DefaultSecretsEnvPrefix = "SENTINEL_SECRET_"
)

// DefaultRuleExtensions are the document extensions read from disk.
var DefaultRuleExtensions = []string{".yaml", ".yml", ".json"}

// DefaultDenyActions are the action types that deny by default.
var DefaultDenyActions = []string{"BLOCK", "MANDATORY_HUMAN_REVIEW"}

// DefaultEvaluationDurationBuckets are histogram buckets (seconds) sized for
// in-memory rule evaluation.
var DefaultEvaluationDurationBuckets = []float64{0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.05}

// DefaultConfig returns a configuration with every default applied,
// including boolean fields whose default is true. YAML documents are decoded
// on top of it so absent keys keep their defaults.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Rules.Discover = DefaultRulesDiscover
	cfg.Rules.FollowSymlinks = DefaultRulesFollowLinks
	cfg.Rules.Git.PullOnReload = DefaultGitPullOnReload
	cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
	cfg.Telemetry.Tracing.Insecure = DefaultTracingInsecure
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = DefaultMaxBodyBytes
	}

	// Rules defaults
	if cfg.Rules.Source == "" {
		cfg.Rules.Source = DefaultRulesSource
	}
	if cfg.Rules.RulesDir == "" {
		cfg.Rules.RulesDir = DefaultRulesDir
	}
	if len(cfg.Rules.Extensions) == 0 {
		cfg.Rules.Extensions = append([]string(nil), DefaultRuleExtensions...)
	}
	if cfg.Rules.MaxFileSize == 0 {
		cfg.Rules.MaxFileSize = DefaultRulesMaxFileSize
	}
	if cfg.Rules.DebounceInterval == 0 {
		cfg.Rules.DebounceInterval = DefaultRulesDebounce
	}
	if cfg.Rules.SQLite.Path == "" {
		cfg.Rules.SQLite.Path = DefaultSQLitePath
	}
	if cfg.Rules.SQLite.Driver == "" {
		cfg.Rules.SQLite.Driver = DefaultSQLiteDriver
	}
	if cfg.Rules.SQLite.BusyTimeout == 0 {
		cfg.Rules.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}
	if cfg.Rules.Redis.Prefix == "" {
		cfg.Rules.Redis.Prefix = DefaultRedisPrefix
	}
	if cfg.Rules.Redis.DialTimeout == 0 {
		cfg.Rules.Redis.DialTimeout = DefaultRedisDialTimeout
	}
	if cfg.Rules.Git.Branch == "" {
		cfg.Rules.Git.Branch = DefaultGitBranch
	}
	if cfg.Rules.Git.Auth.Type == "" {
		cfg.Rules.Git.Auth.Type = DefaultGitAuthType
	}
	if cfg.Rules.Git.Timeout == 0 {
		cfg.Rules.Git.Timeout = DefaultGitTimeout
	}
	if cfg.Rules.Git.Clone.Depth == 0 {
		cfg.Rules.Git.Clone.Depth = DefaultGitCloneDepth
	}

	// Engine defaults
	if len(cfg.Engine.DenyActions) == 0 {
		cfg.Engine.DenyActions = append([]string(nil), DefaultDenyActions...)
	}
	if cfg.Engine.SlowEvaluationThreshold == 0 {
		cfg.Engine.SlowEvaluationThreshold = DefaultSlowEvaluationThreshold
	}
	if cfg.Engine.MaxTaskRules == 0 {
		cfg.Engine.MaxTaskRules = DefaultMaxTaskRules
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if len(cfg.Telemetry.Metrics.EvaluationDurationBuckets) == 0 {
		cfg.Telemetry.Metrics.EvaluationDurationBuckets = append([]float64(nil), DefaultEvaluationDurationBuckets...)
	}
	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingRatio
	}
	if cfg.Telemetry.Tracing.Endpoint == "" {
		cfg.Telemetry.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if cfg.Telemetry.Tracing.Timeout == 0 {
		cfg.Telemetry.Tracing.Timeout = DefaultTracingTimeout
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultServiceName
	}
	if cfg.Telemetry.Health.LivenessPath == "" {
		cfg.Telemetry.Health.LivenessPath = DefaultLivenessPath
	}
	if cfg.Telemetry.Health.ReadinessPath == "" {
		cfg.Telemetry.Health.ReadinessPath = DefaultReadinessPath
	}
	if cfg.Telemetry.Health.VersionPath == "" {
		cfg.Telemetry.Health.VersionPath = DefaultVersionPath
	}
	if cfg.Telemetry.Health.CheckTimeout == 0 {
		cfg.Telemetry.Health.CheckTimeout = DefaultCheckTimeout
	}

	// Secrets defaults
	if cfg.Secrets.EnvPrefix == "" {
		cfg.Secrets.EnvPrefix = DefaultSecretsEnvPrefix
	}
}
