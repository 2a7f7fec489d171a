package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultBaseURL        = "https://openapi.tdcc.com.tw"
	DefaultSourceTimeout  = 30 * time.Second
	DefaultMaxConcurrency = 4
	DefaultMinInterval    = 1 * time.Second
	DefaultMaxAttempts    = 3
	DefaultBackoffBase    = 1 * time.Second
	DefaultBackoffJitter  = 0.5
	DefaultTLSVerify      = "always"
	DefaultUniverseURL    = "https://moneydj.emega.com.tw/js/StockTable.htm"
	DefaultStoreBackend   = "fs"
	DefaultStoreDir       = "data"
	DefaultDBPort         = 5432
	DefaultDBSSLMode      = "prefer"
	DefaultMaxConns       = 10
	DefaultMinConns       = 2
	DefaultWorkers        = 8
	DefaultWeeks          = 52
)

// ApplyDefaults fills zero values with defaults.
func (c *CrawlerConfig) ApplyDefaults() {
	// Source defaults
	if c.Source.BaseURL == "" {
		c.Source.BaseURL = DefaultBaseURL
	}
	if c.Source.Timeout == 0 {
		c.Source.Timeout = Duration(DefaultSourceTimeout)
	}
	if c.Source.MaxConcurrency == 0 {
		c.Source.MaxConcurrency = DefaultMaxConcurrency
	}
	if c.Source.MinInterval == 0 {
		c.Source.MinInterval = Duration(DefaultMinInterval)
	}
	if c.Source.MaxAttempts == 0 {
		c.Source.MaxAttempts = DefaultMaxAttempts
	}
	if c.Source.BackoffBase == 0 {
		c.Source.BackoffBase = Duration(DefaultBackoffBase)
	}
	if c.Source.BackoffJitter == 0 {
		c.Source.BackoffJitter = DefaultBackoffJitter
	}
	if c.Source.TLSVerify == "" {
		c.Source.TLSVerify = DefaultTLSVerify
	}

	// Universe defaults
	if len(c.Universe.Codes) == 0 && c.Universe.File == "" && c.Universe.URL == "" {
		c.Universe.URL = DefaultUniverseURL
	}

	// Store defaults
	if c.Store.Backend == "" {
		c.Store.Backend = DefaultStoreBackend
	}
	if c.Store.Dir == "" {
		c.Store.Dir = DefaultStoreDir
	}
	if c.Store.Backend == "postgres" {
		if c.Store.Postgres.Port == 0 {
			c.Store.Postgres.Port = DefaultDBPort
		}
		if c.Store.Postgres.SSLMode == "" {
			c.Store.Postgres.SSLMode = DefaultDBSSLMode
		}
		if c.Store.Postgres.MaxConns == 0 {
			c.Store.Postgres.MaxConns = DefaultMaxConns
		}
		if c.Store.Postgres.MinConns == 0 {
			c.Store.Postgres.MinConns = DefaultMinConns
		}
	}

	// Scheduler defaults
	if c.Scheduler.Workers == 0 {
		c.Scheduler.Workers = DefaultWorkers
	}
	if c.Scheduler.Weeks == 0 {
		c.Scheduler.Weeks = DefaultWeeks
	}
}
