package config

import (
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := Validate(cfg); err != nil {
		t.Fatalf("default config is invalid: %v", err)
	}

	if cfg.Server.ListenAddress != DefaultListenAddress {
		t.Errorf("expected listen address %q, got %q", DefaultListenAddress, cfg.Server.ListenAddress)
	}
	if cfg.Rules.Source != "file" {
		t.Errorf("expected source %q, got %q", "file", cfg.Rules.Source)
	}
	if !cfg.Rules.Discover || !cfg.Rules.FollowSymlinks || !cfg.Rules.Git.PullOnReload {
		t.Error("expected true-valued rule defaults")
	}
	if len(cfg.Engine.DenyActions) != 2 {
		t.Errorf("expected 2 deny actions, got %v", cfg.Engine.DenyActions)
	}
	if cfg.Telemetry.Tracing.Enabled {
		t.Error("expected tracing disabled by default")
	}
}

func TestApplyDefaults_PreservesValues(t *testing.T) {
	cfg := &Config{}
	cfg.Server.ListenAddress = "0.0.0.0:1234"
	cfg.Rules.Extensions = []string{".rules"}
	cfg.Engine.MaxTaskRules = 7

	ApplyDefaults(cfg)

	if cfg.Server.ListenAddress != "0.0.0.0:1234" {
		t.Errorf("listen address overwritten: %q", cfg.Server.ListenAddress)
	}
	if len(cfg.Rules.Extensions) != 1 || cfg.Rules.Extensions[0] != ".rules" {
		t.Errorf("extensions overwritten: %v", cfg.Rules.Extensions)
	}
	if cfg.Engine.MaxTaskRules != 7 {
		t.Errorf("max task rules overwritten: %d", cfg.Engine.MaxTaskRules)
	}
	if cfg.Server.ReadTimeout != DefaultReadTimeout {
		t.Errorf("expected default read timeout, got %v", cfg.Server.ReadTimeout)
	}
}

func TestApplyDefaults_Idempotent(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	ApplyDefaults(cfg)

	if len(cfg.Rules.Extensions) != len(DefaultRuleExtensions) {
		t.Errorf("expected %d extensions, got %d", len(DefaultRuleExtensions), len(cfg.Rules.Extensions))
	}
}

func TestApplyDefaults_CopiesSlices(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Engine.DenyActions[0] = "CHANGED"

	if DefaultDenyActions[0] != "BLOCK" {
		t.Errorf("package default mutated: %v", DefaultDenyActions)
	}
}
