// Package dbconn opens the Postgres connection the rest of the core is
// injected with, instead of stashing it in a package global.
package dbconn

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/romrossi/relauth/pkg/config"
)

// Open builds the Postgres connection string from cfg, opens it, and pings
// it once before returning so callers fail fast on bad credentials rather
// than on the first query.
func Open(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("dbconn: open: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("dbconn: ping: %w", err)
	}

	return db, nil
}
