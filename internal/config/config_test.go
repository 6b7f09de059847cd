package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Bridge.HTTPPort != 80 || cfg.Bridge.HTTPSPort != 443 {
		t.Errorf("ports = %d/%d", cfg.Bridge.HTTPPort, cfg.Bridge.HTTPSPort)
	}
	if cfg.Bridge.BindAddr != "0.0.0.0" {
		t.Errorf("bind addr = %q", cfg.Bridge.BindAddr)
	}
	if cfg.Hass.Timeout.Duration() != 30*time.Second {
		t.Errorf("hass timeout = %v", cfg.Hass.Timeout.Duration())
	}
	if cfg.Hass.RetryMultiplier != 2.0 {
		t.Errorf("retry multiplier = %v", cfg.Hass.RetryMultiplier)
	}
	if cfg.Database.Path == "" {
		t.Error("no database path derived")
	}
	if cfg.ShutdownTimeout.Duration() != 5*time.Second {
		t.Errorf("shutdown timeout = %v", cfg.ShutdownTimeout.Duration())
	}
}

func TestLoadParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
hass:
  url: http://ha.local:8123
  token: secret
  timeout: 10s
bridge:
  data_dir: /tmp/hueshim-test
  http_port: 8080
  https_port: 8443
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Hass.URL != "http://ha.local:8123" {
		t.Errorf("url = %q", cfg.Hass.URL)
	}
	if cfg.Hass.Timeout.Duration() != 10*time.Second {
		t.Errorf("timeout = %v", cfg.Hass.Timeout.Duration())
	}
	if cfg.Bridge.HTTPPort != 8080 {
		t.Errorf("http port = %d", cfg.Bridge.HTTPPort)
	}
	if cfg.Log.GetLevel() != "debug" {
		t.Errorf("log level = %q", cfg.Log.GetLevel())
	}
	if cfg.Database.Path != filepath.Join("/tmp/hueshim-test", "hueshim.sqlite") {
		t.Errorf("db path = %q", cfg.Database.Path)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("HUESHIM_TEST_TOKEN", "tok123")

	got := expandEnvVars("token: ${HUESHIM_TEST_TOKEN}")
	if got != "token: tok123" {
		t.Errorf("expanded = %q", got)
	}
	got = expandEnvVars("addr: ${HUESHIM_TEST_MISSING:fallback}")
	if got != "addr: fallback" {
		t.Errorf("expanded = %q", got)
	}
}

func TestEnvMirrors(t *testing.T) {
	t.Setenv("HTTP_PORT", "8100")
	t.Setenv("HTTPS_PORT", "8143")
	t.Setenv("VERBOSE", "true")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Bridge.HTTPPort != 8100 {
		t.Errorf("http port = %d", cfg.Bridge.HTTPPort)
	}
	if cfg.Bridge.HTTPSPort != 8143 {
		t.Errorf("https port = %d", cfg.Bridge.HTTPSPort)
	}
	if cfg.Log.GetLevel() != "debug" {
		t.Errorf("log level = %q", cfg.Log.GetLevel())
	}
}

func TestEnvMirrorsYieldToFile(t *testing.T) {
	t.Setenv("HTTP_PORT", "8100")

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("bridge:\n  http_port: 9000\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Bridge.HTTPPort != 9000 {
		t.Errorf("http port = %d, want file value to win", cfg.Bridge.HTTPPort)
	}
}
