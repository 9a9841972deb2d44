package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
api:
  base_url: https://study.example.com
  timeout: 20s
  session_cookie: sid
  session_token: abc
  max_rps: 2.5
sync:
  debounce: 1500ms
  flush_timeout: 4s
retry:
  max_attempts: 3
  base_delay: 500ms
  max_delay: 5s
catalog:
  path: catalog.yaml
state:
  dir: /tmp/studysync
logging:
  development: false
  level: info
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 || cfg.Server.Addr() != "127.0.0.1:9090" {
		t.Fatalf("expected port 9090, got %s", cfg.Server.Addr())
	}
	if cfg.API.BaseURL != "https://study.example.com" || cfg.API.SessionCookie != "sid" || cfg.API.SessionToken != "abc" {
		t.Fatalf("expected api overrides to apply: %+v", cfg.API)
	}
	if cfg.API.Timeout != 20*time.Second || cfg.API.MaxRPS != 2.5 {
		t.Fatalf("expected api timeout and rps overrides: %+v", cfg.API)
	}
	if cfg.Sync.Debounce != 1500*time.Millisecond || cfg.Sync.FlushTimeout != 4*time.Second {
		t.Fatalf("expected sync overrides: %+v", cfg.Sync)
	}
	if cfg.Sync.ProgressTTL != time.Minute || cfg.Sync.StatsTTL != 30*time.Second {
		t.Fatalf("expected cache defaults to survive: %+v", cfg.Sync)
	}
	if cfg.Retry.MaxAttempts != 3 || cfg.Retry.BaseDelay != 500*time.Millisecond {
		t.Fatalf("expected retry overrides: %+v", cfg.Retry)
	}
	if cfg.Catalog.Path != "catalog.yaml" || !cfg.Catalog.Watch || cfg.State.Dir != "/tmp/studysync" {
		t.Fatalf("expected paths to load")
	}
	if cfg.Logging.Development || cfg.Logging.Level != "info" {
		t.Fatalf("expected logging overrides: %+v", cfg.Logging)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Sync.Debounce != 3*time.Second {
		t.Fatalf("expected 3s debounce, got %v", cfg.Sync.Debounce)
	}
	if cfg.Sync.FlushTimeout != 10*time.Second {
		t.Fatalf("expected 10s flush timeout, got %v", cfg.Sync.FlushTimeout)
	}
	if cfg.Notifications.History != 50 {
		t.Fatalf("expected history 50, got %d", cfg.Notifications.History)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Fatalf("expected loopback host, got %s", cfg.Server.Host)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("STUDYSYNC_API_BASE_URL", "https://env.example.com")
	t.Setenv("STUDYSYNC_SYNC_DEBOUNCE", "250ms")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.API.BaseURL != "https://env.example.com" {
		t.Fatalf("expected env base url, got %s", cfg.API.BaseURL)
	}
	if cfg.Sync.Debounce != 250*time.Millisecond {
		t.Fatalf("expected env debounce, got %v", cfg.Sync.Debounce)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	cases := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"base url", func(c *Config) { c.API.BaseURL = "ftp://x" }, "api.base_url"},
		{"relative url", func(c *Config) { c.API.BaseURL = "/api" }, "api.base_url"},
		{"timeout", func(c *Config) { c.API.Timeout = 0 }, "api.timeout"},
		{"rps", func(c *Config) { c.API.MaxRPS = -1 }, "api.max_rps"},
		{"cookie", func(c *Config) { c.API.SessionToken = "t"; c.API.SessionCookie = "" }, "api.session_cookie"},
		{"debounce", func(c *Config) { c.Sync.Debounce = 0 }, "sync.debounce"},
		{"flush timeout", func(c *Config) { c.Sync.FlushTimeout = 0 }, "sync.flush_timeout"},
		{"ttl", func(c *Config) { c.Sync.StatsTTL = 0 }, "TTLs"},
		{"attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }, "retry.max_attempts"},
		{"delays", func(c *Config) { c.Retry.MaxDelay = time.Millisecond }, "retry.max_delay"},
		{"state dir", func(c *Config) { c.State.Dir = " " }, "state.dir"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tc.want)
			}
		})
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}
