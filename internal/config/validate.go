package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *CrawlerConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.Source.MaxConcurrency < 1 {
		return errors.New("source.max_concurrency must be >= 1")
	}
	if c.Source.MinInterval < 0 {
		return errors.New("source.min_interval cannot be negative")
	}
	if c.Source.MaxAttempts < 1 {
		return errors.New("source.max_attempts must be >= 1")
	}
	if c.Source.BackoffJitter < 0 || c.Source.BackoffJitter > 1 {
		return fmt.Errorf("source.backoff_jitter must be in [0, 1], got %g", c.Source.BackoffJitter)
	}

	switch c.Source.TLSVerify {
	case "always", "disabled":
	case "ca-path":
		if c.Source.TLSCAPath == "" {
			return errors.New("source.tls_ca_path is required when source.tls_verify is ca-path")
		}
	default:
		return fmt.Errorf("source.tls_verify must be always, ca-path, or disabled, got %q", c.Source.TLSVerify)
	}

	switch c.Store.Backend {
	case "fs":
		if c.Store.Dir == "" {
			return errors.New("store.dir is required for the fs backend")
		}
	case "postgres":
		if err := c.Store.Postgres.validate("store.postgres"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("store.backend must be fs or postgres, got %q", c.Store.Backend)
	}

	if c.Scheduler.Workers < 1 {
		return errors.New("scheduler.workers must be >= 1")
	}
	if c.Scheduler.Weeks < 1 {
		return errors.New("scheduler.weeks must be >= 1")
	}
	if c.Scheduler.RunDeadline < 0 {
		return errors.New("scheduler.run_deadline cannot be negative")
	}

	return nil
}

func (db *PostgresConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
