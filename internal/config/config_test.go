package config_test

import (
	"testing"
	"time"

	"github.com/dustingooding/radix-relay/internal/config"
)

func clearRadixEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"RADIX_DB_PATH", "RADIX_RELAY_URL", "RADIX_MODE", "RADIX_VERBOSE", "RADIX_OK_TIMEOUT_MS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearRadixEnv(t)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RelayURL != "wss://relay.radix.example/ws" {
		t.Fatalf("RelayURL = %q, want the default", cfg.RelayURL)
	}
	if cfg.Mode != "internet" {
		t.Fatalf("Mode = %q, want internet", cfg.Mode)
	}
	if cfg.Verbose {
		t.Fatal("Verbose should default to false")
	}
	if cfg.OKTimeout != 15*time.Second {
		t.Fatalf("OKTimeout = %v, want 15s", cfg.OKTimeout)
	}
	if cfg.DBPath == "" {
		t.Fatal("DBPath should never be empty")
	}
}

func TestLoadReadsOverridesFromEnvironment(t *testing.T) {
	clearRadixEnv(t)
	t.Setenv("RADIX_RELAY_URL", "wss://custom.example/ws")
	t.Setenv("RADIX_MODE", "mesh")
	t.Setenv("RADIX_VERBOSE", "true")
	t.Setenv("RADIX_OK_TIMEOUT_MS", "5000")
	t.Setenv("RADIX_DB_PATH", "/tmp/custom.db")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RelayURL != "wss://custom.example/ws" {
		t.Fatalf("RelayURL = %q", cfg.RelayURL)
	}
	if cfg.Mode != "mesh" {
		t.Fatalf("Mode = %q", cfg.Mode)
	}
	if !cfg.Verbose {
		t.Fatal("Verbose should be true")
	}
	if cfg.OKTimeout != 5*time.Second {
		t.Fatalf("OKTimeout = %v, want 5s", cfg.OKTimeout)
	}
	if cfg.DBPath != "/tmp/custom.db" {
		t.Fatalf("DBPath = %q", cfg.DBPath)
	}
}

func TestLoadIgnoresInvalidTimeoutAndBool(t *testing.T) {
	clearRadixEnv(t)
	t.Setenv("RADIX_OK_TIMEOUT_MS", "not-a-number")
	t.Setenv("RADIX_VERBOSE", "not-a-bool")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.OKTimeout != 15*time.Second {
		t.Fatalf("OKTimeout = %v, want the 15s default on invalid input", cfg.OKTimeout)
	}
	if cfg.Verbose {
		t.Fatal("Verbose should fall back to false on invalid input")
	}
}
