package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "crawler.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAndValidate(t *testing.T) {
	path := writeConfig(t, `
instance:
  id: crawler-1
source:
  min_interval: 2s
  max_attempts: 5
universe:
  codes: ["2330", "2317"]
store:
  backend: fs
  dir: /tmp/tdcc-test
scheduler:
  workers: 4
  weeks: 12
  run_deadline: 30m
`)

	cfg, err := LoadAndValidate(path)
	if err != nil {
		t.Fatalf("LoadAndValidate failed: %v", err)
	}

	if cfg.Instance.ID != "crawler-1" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "crawler-1")
	}
	if cfg.Source.MinInterval.Std() != 2*time.Second {
		t.Errorf("MinInterval = %v, want 2s", cfg.Source.MinInterval)
	}
	if cfg.Source.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want 5", cfg.Source.MaxAttempts)
	}
	if cfg.Scheduler.RunDeadline.Std() != 30*time.Minute {
		t.Errorf("RunDeadline = %v, want 30m", cfg.Scheduler.RunDeadline)
	}

	// Defaults fill unset fields.
	if cfg.Source.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want default", cfg.Source.BaseURL)
	}
	if cfg.Source.MaxConcurrency != DefaultMaxConcurrency {
		t.Errorf("MaxConcurrency = %d, want default %d", cfg.Source.MaxConcurrency, DefaultMaxConcurrency)
	}
	if cfg.Source.TLSVerify != "always" {
		t.Errorf("TLSVerify = %q, want %q", cfg.Source.TLSVerify, "always")
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("TDCC_STORE_DIR", "/var/lib/tdcc")

	path := writeConfig(t, `
instance:
  id: crawler-1
store:
  dir: ${TDCC_STORE_DIR}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Store.Dir != "/var/lib/tdcc" {
		t.Errorf("Store.Dir = %q, want expanded env value", cfg.Store.Dir)
	}
}

func TestApplyDefaultsUniverse(t *testing.T) {
	var cfg CrawlerConfig
	cfg.ApplyDefaults()
	if cfg.Universe.URL != DefaultUniverseURL {
		t.Errorf("empty universe did not default to scrape URL, got %q", cfg.Universe.URL)
	}

	var cfg2 CrawlerConfig
	cfg2.Universe.Codes = []string{"2330"}
	cfg2.ApplyDefaults()
	if cfg2.Universe.URL != "" {
		t.Errorf("static universe must not gain a scrape URL, got %q", cfg2.Universe.URL)
	}
}

func TestValidateErrors(t *testing.T) {
	valid := func() *CrawlerConfig {
		cfg := &CrawlerConfig{}
		cfg.Instance.ID = "c1"
		cfg.ApplyDefaults()
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*CrawlerConfig)
	}{
		{"missing instance id", func(c *CrawlerConfig) { c.Instance.ID = "" }},
		{"zero max concurrency", func(c *CrawlerConfig) { c.Source.MaxConcurrency = -1 }},
		{"negative min interval", func(c *CrawlerConfig) { c.Source.MinInterval = Duration(-time.Second) }},
		{"zero max attempts", func(c *CrawlerConfig) { c.Source.MaxAttempts = -1 }},
		{"jitter above one", func(c *CrawlerConfig) { c.Source.BackoffJitter = 1.5 }},
		{"unknown tls policy", func(c *CrawlerConfig) { c.Source.TLSVerify = "sometimes" }},
		{"ca-path without path", func(c *CrawlerConfig) { c.Source.TLSVerify = "ca-path" }},
		{"unknown backend", func(c *CrawlerConfig) { c.Store.Backend = "redis" }},
		{"fs without dir", func(c *CrawlerConfig) { c.Store.Dir = "" }},
		{"postgres without host", func(c *CrawlerConfig) {
			c.Store.Backend = "postgres"
			c.Store.Postgres = PostgresConfig{Port: 5432, Name: "tdcc", User: "u", Password: "p", MaxConns: 4}
			c.Store.Postgres.Host = ""
		}},
		{"postgres min above max", func(c *CrawlerConfig) {
			c.Store.Backend = "postgres"
			c.Store.Postgres = PostgresConfig{Host: "h", Port: 5432, Name: "tdcc", User: "u", Password: "p", MaxConns: 2, MinConns: 5}
		}},
		{"zero workers", func(c *CrawlerConfig) { c.Scheduler.Workers = -1 }},
		{"negative deadline", func(c *CrawlerConfig) { c.Scheduler.RunDeadline = Duration(-time.Minute) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate accepted invalid config")
			}
		})
	}

	if err := valid().Validate(); err != nil {
		t.Errorf("Validate rejected valid config: %v", err)
	}
}
