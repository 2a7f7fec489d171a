// Package config defines the crawler configuration and its YAML loader.
package config

// CrawlerConfig is the root configuration for a crawler instance.
type CrawlerConfig struct {
	Instance  InstanceConfig  `yaml:"instance"`
	Source    SourceConfig    `yaml:"source"`
	Universe  UniverseConfig  `yaml:"universe"`
	Store     StoreConfig     `yaml:"store"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// InstanceConfig identifies this crawler.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// SourceConfig holds TDCC source and fetch settings.
type SourceConfig struct {
	BaseURL        string   `yaml:"base_url"`
	Timeout        Duration `yaml:"timeout"`
	MaxConcurrency int      `yaml:"max_concurrency"` // global in-flight request cap
	MinInterval    Duration `yaml:"min_interval"`    // minimum spacing between requests
	MaxAttempts    int      `yaml:"max_attempts"`
	BackoffBase    Duration `yaml:"backoff_base"`
	BackoffJitter  float64  `yaml:"backoff_jitter"`
	TLSVerify      string   `yaml:"tls_verify"` // always | ca-path | disabled
	TLSCAPath      string   `yaml:"tls_ca_path"`
}

// UniverseConfig selects the security universe. Exactly one of Codes,
// File, or URL should be set; Codes wins, then File, then URL.
type UniverseConfig struct {
	Codes           []string `yaml:"codes"`
	File            string   `yaml:"file"`
	URL             string   `yaml:"url"`
	ExcludeKeywords []string `yaml:"exclude_keywords"`
}

// StoreConfig selects and configures the snapshot store backend.
type StoreConfig struct {
	Backend  string         `yaml:"backend"` // fs | postgres
	Dir      string         `yaml:"dir"`     // fs root
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds the Postgres connection for the postgres backend.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// SchedulerConfig holds ingestion run settings.
type SchedulerConfig struct {
	Workers     int      `yaml:"workers"`
	Weeks       int      `yaml:"weeks"`        // window length when the CLI gives no explicit dates
	RunDeadline Duration `yaml:"run_deadline"` // 0 = no deadline
	Force       bool     `yaml:"force"`
}
