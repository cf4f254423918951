package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Addr != ":8080" {
		t.Fatalf("addr: got %q", cfg.Addr)
	}
	if cfg.Sync.ThrottleInterval != 33*time.Millisecond {
		t.Fatalf("throttle: got %v", cfg.Sync.ThrottleInterval)
	}
	if cfg.Sync.PositionEpsilon != 0.1 || cfg.Sync.RotationEpsilon != 0.01 || cfg.Sync.VelocityEpsilon != 0.05 {
		t.Fatalf("epsilons: got %+v", cfg.Sync)
	}
	if cfg.Rate.GeneralMax != 30 || cfg.Rate.GeneralWindow != 60*time.Second {
		t.Fatalf("general rate: got %+v", cfg.Rate)
	}
	if cfg.Rate.PositionMax != 30 || cfg.Rate.PositionWindow != time.Second {
		t.Fatalf("position rate: got %+v", cfg.Rate)
	}
	if cfg.ClientTTL != 60*time.Second {
		t.Fatalf("client ttl: got %v", cfg.ClientTTL)
	}
	if cfg.Auth.Secret != "" {
		t.Fatalf("secret should default empty, got %q", cfg.Auth.Secret)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `
addr: ":9000"
auth:
  secret: file-secret
  timeout: 2s
sync:
  throttleInterval: 50ms
rate:
  generalMax: 10
clientTTL: 30s
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":9000" {
		t.Fatalf("addr: got %q", cfg.Addr)
	}
	if cfg.Auth.Secret != "file-secret" || cfg.Auth.Timeout != 2*time.Second {
		t.Fatalf("auth: got %+v", cfg.Auth)
	}
	if cfg.Sync.ThrottleInterval != 50*time.Millisecond {
		t.Fatalf("throttle: got %v", cfg.Sync.ThrottleInterval)
	}
	// Fields absent from the file keep their defaults.
	if cfg.Sync.PositionEpsilon != 0.1 {
		t.Fatalf("position epsilon should stay default, got %v", cfg.Sync.PositionEpsilon)
	}
	if cfg.Rate.GeneralMax != 10 || cfg.Rate.PositionMax != 30 {
		t.Fatalf("rate: got %+v", cfg.Rate)
	}
	if cfg.ClientTTL != 30*time.Second {
		t.Fatalf("client ttl: got %v", cfg.ClientTTL)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GRIDWALK_ADDR", ":7777")
	t.Setenv("GRIDWALK_JWT_SECRET", "env-secret")
	t.Setenv("GRIDWALK_LOG_LEVEL", "debug")
	t.Setenv("GRIDWALK_AUTH_TIMEOUT", "3s")
	t.Setenv("GRIDWALK_CLIENT_TTL", "90s")
	t.Setenv("GRIDWALK_GENERAL_RATE_MAX", "50")
	t.Setenv("GRIDWALK_POSITION_RATE_MAX", "60")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":7777" {
		t.Fatalf("addr: got %q", cfg.Addr)
	}
	if cfg.Auth.Secret != "env-secret" || cfg.Auth.Timeout != 3*time.Second {
		t.Fatalf("auth: got %+v", cfg.Auth)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("log level: got %q", cfg.Log.Level)
	}
	if cfg.ClientTTL != 90*time.Second {
		t.Fatalf("client ttl: got %v", cfg.ClientTTL)
	}
	if cfg.Rate.GeneralMax != 50 || cfg.Rate.PositionMax != 60 {
		t.Fatalf("rate: got %+v", cfg.Rate)
	}
}

func TestEnvBeatsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("addr: \":9000\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("GRIDWALK_ADDR", ":7777")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":7777" {
		t.Fatalf("env should beat file, got %q", cfg.Addr)
	}
}

func TestInvalidEnvValuesKeepDefaults(t *testing.T) {
	t.Setenv("GRIDWALK_AUTH_TIMEOUT", "soon")
	t.Setenv("GRIDWALK_GENERAL_RATE_MAX", "-4")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Auth.Timeout != 5*time.Second {
		t.Fatalf("auth timeout: got %v", cfg.Auth.Timeout)
	}
	if cfg.Rate.GeneralMax != 30 {
		t.Fatalf("general max: got %d", cfg.Rate.GeneralMax)
	}
}
