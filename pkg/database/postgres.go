package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/screener/pkg/config"
)

// ErrNotConfigured is returned when DATABASE_URL is empty; the results store is optional
var ErrNotConfigured = errors.New("database not configured")

const applicationName = "screener"

// DB wraps the pgxpool.Pool shared by the result and ledger repositories
// ⭐ SSOT: DB connections are only created in this package
type DB struct {
	Pool *pgxpool.Pool
}

// Migrator creates the tables it owns when missing
type Migrator interface {
	EnsureSchema(ctx context.Context) error
}

// New creates a new database connection pool
// ⭐ SSOT: the only function that calls pgxpool.NewWithConfig()
func New(ctx context.Context, cfg *config.Config) (*DB, error) {
	if !cfg.Database.Enabled() {
		return nil, ErrNotConfigured
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime
	if _, ok := poolConfig.ConnConfig.RuntimeParams["application_name"]; !ok {
		poolConfig.ConnConfig.RuntimeParams["application_name"] = applicationName
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	db := &DB{Pool: pool}
	if err := db.Ready(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return db, nil
}

// Migrate runs each migrator in order and stops at the first failure
func (db *DB) Migrate(ctx context.Context, ms ...Migrator) error {
	for _, m := range ms {
		if err := m.EnsureSchema(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Ready pings the pool with a short deadline. Used by /health.
func (db *DB) Ready(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.Pool.Ping(pingCtx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// Close closes the database connection pool
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}
