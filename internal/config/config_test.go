package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.ServerPort != ":8080" {
		t.Fatalf("unexpected port: %s", cfg.ServerPort)
	}
	if cfg.AccuracyCeilingM != 50.0 {
		t.Fatalf("unexpected accuracy ceiling: %v", cfg.AccuracyCeilingM)
	}
	if cfg.CrashConfirm() != 10*time.Second {
		t.Fatalf("unexpected confirm window: %v", cfg.CrashConfirm())
	}
	if cfg.Countdown() != 20*time.Second {
		t.Fatalf("unexpected countdown: %v", cfg.Countdown())
	}
	if cfg.NotifyBackoff() != 500*time.Millisecond {
		t.Fatalf("unexpected backoff: %v", cfg.NotifyBackoff())
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("WARN_SPEED_MPS", "30")
	cfg := Load()
	if cfg.WarnSpeedMps != 30 {
		t.Fatalf("env override not applied: %v", cfg.WarnSpeedMps)
	}
}
