package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sentinel.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig_ValidFile(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_address: "0.0.0.0:9090"
  read_timeout: "60s"

rules:
  paths:
    - ./rules
    - ./more-rules
  watch: true

engine:
  deny_actions: [BLOCK]
  explain: true

telemetry:
  logging:
    level: "debug"
    format: "text"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.ListenAddress != "0.0.0.0:9090" {
		t.Errorf("expected listen address %q, got %q", "0.0.0.0:9090", cfg.Server.ListenAddress)
	}
	if cfg.Server.ReadTimeout != 60*time.Second {
		t.Errorf("expected read timeout %v, got %v", 60*time.Second, cfg.Server.ReadTimeout)
	}
	if got := strings.Join(cfg.Rules.Paths, ","); got != "./rules,./more-rules" {
		t.Errorf("expected rule paths in order, got %q", got)
	}
	if !cfg.Rules.Watch {
		t.Error("expected rules.watch to be true")
	}
	if len(cfg.Engine.DenyActions) != 1 || cfg.Engine.DenyActions[0] != "BLOCK" {
		t.Errorf("expected deny actions [BLOCK], got %v", cfg.Engine.DenyActions)
	}
	if cfg.Telemetry.Logging.Level != "debug" {
		t.Errorf("expected logging level %q, got %q", "debug", cfg.Telemetry.Logging.Level)
	}
}

func TestLoadConfig_KeepsTrueDefaults(t *testing.T) {
	path := writeConfig(t, `
rules:
  rules_dir: policies
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if !cfg.Rules.Discover {
		t.Error("expected rules.discover to keep its default of true")
	}
	if !cfg.Telemetry.Metrics.Enabled {
		t.Error("expected telemetry.metrics.enabled to keep its default of true")
	}
	if cfg.Rules.RulesDir != "policies" {
		t.Errorf("expected rules dir %q, got %q", "policies", cfg.Rules.RulesDir)
	}
	if cfg.Server.WriteTimeout != DefaultWriteTimeout {
		t.Errorf("expected default write timeout, got %v", cfg.Server.WriteTimeout)
	}
}

func TestLoadConfig_ExplicitFalse(t *testing.T) {
	path := writeConfig(t, `
rules:
  discover: false
telemetry:
  metrics:
    enabled: false
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Rules.Discover {
		t.Error("expected rules.discover to be false")
	}
	if cfg.Telemetry.Metrics.Enabled {
		t.Error("expected telemetry.metrics.enabled to be false")
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [unclosed")

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for invalid YAML")
	} else if !strings.Contains(err.Error(), "failed to parse") {
		t.Errorf("expected parse error, got %v", err)
	}
}

func TestLoadConfig_ValidationFailure(t *testing.T) {
	path := writeConfig(t, `
rules:
  source: "s3"
telemetry:
  logging:
    level: "verbose"
`)

	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("expected validation error")
	}

	var validationErr ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if len(validationErr.Errors) != 2 {
		t.Errorf("expected 2 field errors, got %d: %v", len(validationErr.Errors), validationErr.Errors)
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_address: "127.0.0.1:8080"
rules:
  paths: [./rules]
`)

	t.Setenv("SENTINEL_SERVER_LISTEN_ADDRESS", "0.0.0.0:7070")
	t.Setenv("SENTINEL_SERVER_READ_TIMEOUT", "5s")
	t.Setenv("SENTINEL_RULES_PATHS", "a, b,,c")
	t.Setenv("SENTINEL_RULES_DISCOVER", "false")
	t.Setenv("SENTINEL_ENGINE_DENY_ACTIONS", "BLOCK,QUARANTINE")
	t.Setenv("SENTINEL_ENGINE_MAX_TASK_RULES", "50")
	t.Setenv("SENTINEL_TELEMETRY_TRACING_SAMPLE_RATIO", "0.25")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.ListenAddress != "0.0.0.0:7070" {
		t.Errorf("expected listen address from env, got %q", cfg.Server.ListenAddress)
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("expected read timeout 5s, got %v", cfg.Server.ReadTimeout)
	}
	if got := strings.Join(cfg.Rules.Paths, ","); got != "a,b,c" {
		t.Errorf("expected rule paths a,b,c, got %q", got)
	}
	if cfg.Rules.Discover {
		t.Error("expected rules.discover overridden to false")
	}
	if got := strings.Join(cfg.Engine.DenyActions, ","); got != "BLOCK,QUARANTINE" {
		t.Errorf("expected deny actions from env, got %q", got)
	}
	if cfg.Engine.MaxTaskRules != 50 {
		t.Errorf("expected max task rules 50, got %d", cfg.Engine.MaxTaskRules)
	}
	if cfg.Telemetry.Tracing.SampleRatio != 0.25 {
		t.Errorf("expected sample ratio 0.25, got %v", cfg.Telemetry.Tracing.SampleRatio)
	}
}

func TestLoadConfigWithEnvOverrides_MalformedValuesIgnored(t *testing.T) {
	path := writeConfig(t, "server:\n  read_timeout: 45s\n")

	t.Setenv("SENTINEL_SERVER_READ_TIMEOUT", "soon")
	t.Setenv("SENTINEL_RULES_WATCH", "maybe")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Server.ReadTimeout != 45*time.Second {
		t.Errorf("expected read timeout from file, got %v", cfg.Server.ReadTimeout)
	}
	if cfg.Rules.Watch {
		t.Error("expected rules.watch to stay false")
	}
}

func TestLoadConfigWithEnvOverrides_InvalidOverride(t *testing.T) {
	path := writeConfig(t, "")
	t.Setenv("SENTINEL_TELEMETRY_LOGGING_FORMAT", "xml")

	_, err := LoadConfigWithEnvOverrides(path)
	if err == nil {
		t.Fatal("expected validation error after env override")
	}
	if !strings.Contains(err.Error(), "after environment overrides") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SENTINEL_RULES_SOURCE", "redis")
	t.Setenv("SENTINEL_RULES_REDIS_URL", "redis://localhost:6379/0")

	cfg, err := LoadDefaults()
	if err != nil {
		t.Fatalf("LoadDefaults() error = %v", err)
	}
	if cfg.Rules.Source != "redis" {
		t.Errorf("expected source redis, got %q", cfg.Rules.Source)
	}
	if cfg.Rules.Redis.Prefix != DefaultRedisPrefix {
		t.Errorf("expected default redis prefix, got %q", cfg.Rules.Redis.Prefix)
	}
}
