package config

import "time"

// Config is the root configuration structure for Sentinel.
// It contains all configuration sections for the HTTP server, rule sources,
// the evaluator and telemetry.
type Config struct {
	// Server contains HTTP API server configuration including listen address
	// and timeouts.
	Server ServerConfig `yaml:"server"`

	// Rules contains configuration for where rules are loaded from and how
	// they are kept current.
	Rules RulesConfig `yaml:"rules"`

	// Engine contains evaluator settings.
	Engine EngineConfig `yaml:"engine"`

	// Telemetry contains configuration for observability including logging,
	// metrics, and distributed tracing.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Secrets configures resolution of ${secret:name} references in rule
	// store credentials.
	Secrets SecretsConfig `yaml:"secrets"`
}

// SecretRefPrefix starts a secret reference such as ${secret:redis-url}.
const SecretRefPrefix = "${secret:"

// SecretsConfig contains configuration for secret reference resolution.
// References are resolved from the secrets directory first, then the
// environment.
type SecretsConfig struct {
	// EnvPrefix is prepended to the upper-cased secret name to form the
	// environment variable name.
	// Default: "SENTINEL_SECRET_"
	EnvPrefix string `yaml:"env_prefix"`

	// Dir is a directory holding one file per secret, as mounted by
	// Kubernetes. Files must be 0600 or 0400. Empty disables file secrets.
	Dir string `yaml:"dir"`
}

// ServerConfig contains configuration for the HTTP API server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8080", "0.0.0.0:8080").
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum time to wait for the next request on a
	// keep-alive connection.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// RequestTimeout bounds the handling of a single request.
	// Default: 10s
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// ShutdownTimeout is the grace period for in-flight requests on shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxBodyBytes caps request body size.
	// Default: 1MB
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

// RulesConfig contains configuration for rule sources.
type RulesConfig struct {
	// Source selects the document store.
	// Options: "file", "sqlite", "redis", "git"
	// Default: "file"
	Source string `yaml:"source"`

	// Paths are rule roots (files or directories) when Source is "file".
	// Roots are loaded in the order given.
	Paths []string `yaml:"paths"`

	// Discover searches upward from the working directory for RulesDir
	// when Paths is empty.
	// Default: true
	Discover bool `yaml:"discover"`

	// RulesDir is the directory name searched for by discovery.
	// Default: ".sentinel/rules"
	RulesDir string `yaml:"rules_dir"`

	// Extensions are the document extensions read from disk.
	// Default: [".yaml", ".yml", ".json"]
	Extensions []string `yaml:"extensions"`

	// MaxFileSize is the maximum document size in bytes.
	// Default: 10MB
	MaxFileSize int64 `yaml:"max_file_size"`

	// FollowSymlinks controls whether symlinked documents and directories
	// are read.
	// Default: true
	FollowSymlinks bool `yaml:"follow_symlinks"`

	// Watch reloads rules when files under Paths change.
	// Default: false
	Watch bool `yaml:"watch"`

	// DebounceInterval collapses bursts of file events into one reload.
	// Default: 100ms
	DebounceInterval time.Duration `yaml:"debounce_interval"`

	// ReloadSchedule is a cron expression for periodic reloads.
	// Example: "*/5 * * * *"
	// Default: "" (disabled)
	ReloadSchedule string `yaml:"reload_schedule"`

	// SQLite configures the SQLite document store.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// Redis configures the Redis document store.
	Redis RedisConfig `yaml:"redis"`

	// Git configures the git-backed document source.
	Git GitConfig `yaml:"git"`
}

// SQLiteConfig configures the SQLite rule document store.
type SQLiteConfig struct {
	// Path is the database file path.
	// Default: "data/rules.db"
	Path string `yaml:"path"`

	// Driver selects the database driver.
	// Options: "sqlite" (pure Go), "sqlite3" (cgo)
	// Default: "sqlite"
	Driver string `yaml:"driver"`

	// Prefix restricts loading to documents under a path prefix.
	Prefix string `yaml:"prefix"`

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// RedisConfig configures the Redis rule document store.
type RedisConfig struct {
	// URL is a redis:// or rediss:// connection URL.
	// Example: "redis://localhost:6379/0"
	URL string `yaml:"url"`

	// Prefix is the key prefix for rule documents.
	// Default: "sentinel:rules:"
	Prefix string `yaml:"prefix"`

	// DialTimeout bounds the initial connection.
	// Default: 5s
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// GitConfig configures git-based rule loading.
type GitConfig struct {
	// Repository URL (HTTPS, SSH or a local path).
	// Example: "https://github.com/company/rules.git"
	Repository string `yaml:"repository"`

	// Branch to track.
	// Default: "main"
	Branch string `yaml:"branch"`

	// Path within the repository to rule documents.
	// Default: "" (repository root)
	Path string `yaml:"path"`

	// Auth configures git authentication.
	Auth GitAuthConfig `yaml:"auth"`

	// PullOnReload fetches the remote before every reload.
	// Default: true
	PullOnReload bool `yaml:"pull_on_reload"`

	// Timeout for clone and pull operations.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	// Clone configures repository cloning.
	Clone GitCloneConfig `yaml:"clone"`
}

// GitAuthConfig configures git authentication.
type GitAuthConfig struct {
	// Type: "token", "ssh", "none"
	// Default: "none"
	Type string `yaml:"type"`

	// Token for HTTPS authentication.
	// Required when Type is "token".
	Token string `yaml:"token"`

	// SSHKeyPath for SSH authentication.
	// Required when Type is "ssh".
	SSHKeyPath string `yaml:"ssh_key_path"`

	// SSHKeyPassphrase for encrypted SSH keys.
	SSHKeyPassphrase string `yaml:"ssh_key_passphrase"`
}

// GitCloneConfig configures repository cloning.
type GitCloneConfig struct {
	// Depth for shallow clones (0 = full clone).
	// Default: 1
	Depth int `yaml:"depth"`

	// LocalPath where the repository is cloned.
	// Default: system temp directory
	LocalPath string `yaml:"local_path"`

	// CleanOnStart removes the local clone before cloning.
	// Default: false
	CleanOnStart bool `yaml:"clean_on_start"`
}

// EngineConfig contains evaluator settings.
type EngineConfig struct {
	// DenyActions lists action types that deny.
	// Default: ["BLOCK", "MANDATORY_HUMAN_REVIEW"]
	DenyActions []string `yaml:"deny_actions"`

	// Explain returns the per-rule walk with every HTTP decision.
	// Default: false
	Explain bool `yaml:"explain"`

	// Trace logs every candidate rule outcome at debug level.
	// Default: false
	Trace bool `yaml:"trace"`

	// SlowEvaluationThreshold logs evaluations slower than this.
	// Default: 10ms
	SlowEvaluationThreshold time.Duration `yaml:"slow_evaluation_threshold"`

	// MaxTaskRules caps call-scoped rules per request.
	// Default: 1000
	MaxTaskRules int `yaml:"max_task_rules"`

	// StrictLoad fails startup when any rule document is rejected.
	// Default: false
	StrictLoad bool `yaml:"strict_load"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`

	// Health contains health check configuration.
	Health HealthConfig `yaml:"health"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text", "console"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "sentinel"
	Namespace string `yaml:"namespace"`

	// EvaluationDurationBuckets defines histogram buckets for evaluation
	// latency (seconds).
	// Default: [0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.05]
	EvaluationDurationBuckets []float64 `yaml:"evaluation_duration_buckets"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio", "parent_ratio"
	// Default: "parent_ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS for the collector connection.
	// Default: true
	Insecure bool `yaml:"insecure"`

	// Timeout is the export timeout.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`

	// ServiceName is the service name in traces.
	// Default: "sentinel"
	ServiceName string `yaml:"service_name"`
}

// HealthConfig contains health check endpoint configuration.
type HealthConfig struct {
	// LivenessPath is the path for the liveness probe endpoint.
	// Default: "/health"
	LivenessPath string `yaml:"liveness_path"`

	// ReadinessPath is the path for the readiness probe endpoint.
	// Default: "/ready"
	ReadinessPath string `yaml:"readiness_path"`

	// VersionPath is the path for the version information endpoint.
	// Default: "/version"
	VersionPath string `yaml:"version_path"`

	// CheckTimeout is the timeout for individual component health checks.
	// Default: 5s
	CheckTimeout time.Duration `yaml:"check_timeout"`
}
