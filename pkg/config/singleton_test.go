package config

import (
	"sync"
	"testing"
)

func resetGlobal() {
	globalConfig = nil
	initOnce = *new(sync.Once)
}

func TestInitialize(t *testing.T) {
	resetGlobal()
	defer resetGlobal()

	path := writeConfig(t, "server:\n  listen_address: \"127.0.0.1:9999\"\n")

	if err := Initialize(path); err != nil {
		t.Fatalf("failed to initialize config: %v", err)
	}

	cfg := GetConfig()
	if cfg == nil {
		t.Fatal("expected non-nil config after initialization")
	}
	if cfg.Server.ListenAddress != "127.0.0.1:9999" {
		t.Errorf("expected listen address %q, got %q", "127.0.0.1:9999", cfg.Server.ListenAddress)
	}
}

func TestInitialize_MultipleCallsIgnored(t *testing.T) {
	resetGlobal()
	defer resetGlobal()

	first := writeConfig(t, "server:\n  listen_address: \"127.0.0.1:1111\"\n")
	second := writeConfig(t, "server:\n  listen_address: \"127.0.0.1:2222\"\n")

	if err := Initialize(first); err != nil {
		t.Fatal(err)
	}
	if err := Initialize(second); err != nil {
		t.Fatal(err)
	}

	if got := GetConfig().Server.ListenAddress; got != "127.0.0.1:1111" {
		t.Errorf("expected first config to win, got %q", got)
	}
}

func TestInitialize_EmptyPathUsesDefaults(t *testing.T) {
	resetGlobal()
	defer resetGlobal()

	if err := Initialize(""); err != nil {
		t.Fatalf("Initialize(\"\") error = %v", err)
	}
	if got := GetConfig().Server.ListenAddress; got != DefaultListenAddress {
		t.Errorf("expected default listen address, got %q", got)
	}
}

func TestInitialize_InvalidConfig(t *testing.T) {
	resetGlobal()
	defer resetGlobal()

	bad := writeConfig(t, "rules:\n  source: nowhere\n")
	if err := Initialize(bad); err == nil {
		t.Fatal("expected error for invalid configuration")
	}
	if GetConfig() != nil {
		t.Error("GetConfig() is set after a failed Initialize")
	}
}
