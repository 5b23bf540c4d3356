package config

import (
	"fmt"
	"strings"
)

// Validate performs business-rule validation on the loaded configuration.
// It must be called after loading; Load calls it automatically.
func (c *Config) Validate() error {
	if err := c.Log.validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if err := c.Catalog.validate(); err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	if err := c.Loader.validate(); err != nil {
		return fmt.Errorf("loader: %w", err)
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("database: min_conns (%d) must not exceed max_conns (%d)", c.Database.MinConns, c.Database.MaxConns)
	}
	return nil
}

func (l *LogConfig) validate() error {
	switch strings.ToLower(l.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("format must be json or text (got %q)", l.Format)
	}
	return nil
}

func (c *CatalogConfig) validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("bucket is required")
	}
	if c.RequestRate <= 0 {
		return fmt.Errorf("request_rate must be > 0 (got %v)", c.RequestRate)
	}
	if c.RequestBurst < 1 {
		return fmt.Errorf("request_burst must be >= 1 (got %d)", c.RequestBurst)
	}
	if !c.Anonymous && (c.AccessKeyID == "") != (c.SecretAccessKey == "") {
		return fmt.Errorf("access_key_id and secret_access_key must be set together")
	}
	return nil
}

func (l *LoaderConfig) validate() error {
	if l.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be > 0 (got %d)", l.BatchSize)
	}
	if l.Workers < 1 {
		return fmt.Errorf("workers must be >= 1 (got %d)", l.Workers)
	}
	if l.FloorYear < 1900 || l.FloorYear > 9999 {
		return fmt.Errorf("floor_year must be in [1900, 9999] (got %d)", l.FloorYear)
	}
	if l.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	return nil
}
