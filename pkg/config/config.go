// Package config loads the core's runtime configuration from the
// environment: a single typed struct, parsed once, read-only afterward.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"

	"github.com/romrossi/relauth/pkg/relauth"
)

// Config holds database connection parameters and the tunable resource
// bounds that convert into a relauth.Limits. The envDefault tags match the
// core's built-in bounds; operators may override any of them.
type Config struct {
	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBPort     string `env:"DB_PORT" envDefault:"5432"`
	DBName     string `env:"DB_NAME" envDefault:"postgres"`
	DBUser     string `env:"DB_USER" envDefault:"postgres"`
	DBPassword string `env:"DB_PASSWORD,required"`
	DBSSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`

	DefaultPageSize            int `env:"RELAUTH_DEFAULT_PAGE_SIZE" envDefault:"100"`
	WriteChunkSize             int `env:"RELAUTH_WRITE_CHUNK_SIZE" envDefault:"3000"`
	DeleteChunkSize            int `env:"RELAUTH_DELETE_CHUNK_SIZE" envDefault:"100"`
	UUIDMappingInsertChunkSize int `env:"RELAUTH_UUID_MAPPING_INSERT_CHUNK_SIZE" envDefault:"15000"`
	TraversalQueryLimit        int `env:"RELAUTH_TRAVERSAL_QUERY_LIMIT" envDefault:"1000"`
}

// Load parses environment variables into a Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}
	return cfg, nil
}

// Limits projects the tunable bounds of Config into a relauth.Limits.
func (c *Config) Limits() relauth.Limits {
	return relauth.Limits{
		WriteChunkSize:             c.WriteChunkSize,
		DeleteChunkSize:            c.DeleteChunkSize,
		UUIDMappingInsertChunkSize: c.UUIDMappingInsertChunkSize,
		TraversalQueryLimit:        c.TraversalQueryLimit,
		DefaultPageSize:            c.DefaultPageSize,
	}
}
