package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != DefaultPort {
		t.Errorf("expected default port %q, got %q", DefaultPort, cfg.Port)
	}
	if cfg.HintQueueConcurrency != DefaultHintQueueConcurrency {
		t.Errorf("expected default hint queue concurrency %d, got %d", DefaultHintQueueConcurrency, cfg.HintQueueConcurrency)
	}
}

func TestLoadReadsYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "port: \"9090\"\nlogLevel: debug\nhintQueueConcurrency: 8\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("expected port 9090, got %q", cfg.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected logLevel debug, got %q", cfg.LogLevel)
	}
	if cfg.HintQueueConcurrency != 8 {
		t.Errorf("expected hintQueueConcurrency 8, got %d", cfg.HintQueueConcurrency)
	}
}

func TestEnvOverridesBeatFileAndDefaults(t *testing.T) {
	t.Setenv("PORT", "7070")
	t.Setenv("USE_LEGACY_REFERENCE_IMPLEMENTATION", "true")
	t.Setenv("SHUTDOWN_TIMEOUT", "5s")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "7070" {
		t.Errorf("expected env override port 7070, got %q", cfg.Port)
	}
	if !cfg.UseLegacyReferenceImplementation {
		t.Errorf("expected UseLegacyReferenceImplementation true from env")
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("expected shutdown timeout 5s, got %v", cfg.ShutdownTimeout)
	}
}

func TestEnvOverrideIgnoresInvalidNumbers(t *testing.T) {
	t.Setenv("RATE_LIMIT_PER_MINUTE", "not-a-number")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RateLimitPerMinute != DefaultRateLimitPerMinute {
		t.Errorf("expected invalid env override to be ignored, got %d", cfg.RateLimitPerMinute)
	}
}

func TestMinCapacitySelectsByLegacyFlag(t *testing.T) {
	cfg := &Config{UseLegacyReferenceImplementation: false}
	if cfg.MinCapacity() != 1 {
		t.Errorf("expected strict MinCapacity 1, got %d", cfg.MinCapacity())
	}
	cfg.UseLegacyReferenceImplementation = true
	if cfg.MinCapacity() != 0 {
		t.Errorf("expected legacy MinCapacity 0, got %d", cfg.MinCapacity())
	}
}
