// Package pgxlease is the multi-host lease store adapter for deployments
// that need a lease store reachable by many processes across machines.
// It uses jackc/pgx/v5's connection pool and applies schema migrations
// with golang-migrate/migrate/v4's iofs source driver against an embedded
// migration set.
package pgxlease

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config configures the connection pool. DSN is a standard libpq
// connection string or URL.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	AutoMigrate     bool
}

// ApplyDefaults fills unset pool-sizing fields.
func (c *Config) ApplyDefaults() {
	if c.MaxConns == 0 {
		c.MaxConns = 10
	}
	if c.MinConns == 0 {
		c.MinConns = 1
	}
	if c.MaxConnLifetime == 0 {
		c.MaxConnLifetime = time.Hour
	}
	if c.MaxConnIdleTime == 0 {
		c.MaxConnIdleTime = 30 * time.Minute
	}
}

// Store implements lease.StoreClient and lease.Bootstrap backed by a
// PostgreSQL connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// Open creates the connection pool, optionally runs migrations, and
// verifies connectivity with a ping.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	cfg.ApplyDefaults()

	if cfg.AutoMigrate {
		if err := runMigrations(cfg.DSN); err != nil {
			return nil, fmt.Errorf("running lease store migrations: %w", err)
		}
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres dsn: %w", err)
	}
	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating postgres connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close closes the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}
