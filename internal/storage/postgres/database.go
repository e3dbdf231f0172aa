// Package postgres implements the Persistence Layer (C7): a pgxpool-backed
// store over sources, articles, article_keywords and
// compliance_audit_entries, generalized from the teacher's
// pkg/compliance/storage/postgres package.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"

	"github.com/preventia/preventia-core/internal/domain"
)

// Config holds Database connection parameters (spec.md §6's
// `database.url`/`database.max_connections`).
type Config struct {
	ConnectionString string
	MaxConnections   int32
	ConnectTimeout   time.Duration
	MigrationsPath   string // defaults to "file://migrations"
}

// Database is the Persistence Layer (C7) connection.
type Database struct {
	pool *pgxpool.Pool
	cfg  Config
}

// New opens a connection pool and verifies connectivity.
func New(ctx context.Context, cfg Config) (*Database, error) {
	if cfg.ConnectionString == "" {
		return nil, fmt.Errorf("postgres: connection string is required")
	}
	if cfg.MaxConnections == 0 {
		cfg.MaxConnections = 10
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 30 * time.Second
	}
	if cfg.MigrationsPath == "" {
		cfg.MigrationsPath = "file://migrations"
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse connection string: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConnections
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute
	poolCfg.HealthCheckPeriod = time.Minute

	timeoutCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(timeoutCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create connection pool: %w", err)
	}
	if err := pool.Ping(timeoutCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	return &Database{pool: pool, cfg: cfg}, nil
}

// Close releases the connection pool.
func (db *Database) Close() { db.pool.Close() }

// Ping verifies connectivity.
func (db *Database) Ping(ctx context.Context) error { return db.pool.Ping(ctx) }

// Query exposes the pool's read path to other packages in this module
// (internal/analytics) without leaking the pgxpool dependency itself.
func (db *Database) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return db.pool.Query(ctx, sql, args...)
}

// QueryRow exposes the pool's single-row read path.
func (db *Database) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return db.pool.QueryRow(ctx, sql, args...)
}

// MigrateToLatest applies every pending forward-only migration under
// cfg.MigrationsPath. It writes no audit row itself; MigrateAndAudit
// (migrate.go) wraps it and records the migration_baseline audit row.
func (db *Database) MigrateToLatest(ctx context.Context) error {
	conn, err := db.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("postgres: acquire connection for migration: %w", err)
	}
	defer conn.Release()

	migrationDB, err := sql.Open("postgres", db.cfg.ConnectionString)
	if err != nil {
		return fmt.Errorf("postgres: open migration connection: %w", err)
	}
	defer migrationDB.Close()

	driver, err := postgres.WithInstance(migrationDB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("postgres: create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(db.cfg.MigrationsPath, "postgres", driver)
	if err != nil {
		return fmt.Errorf("postgres: create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("postgres: apply migrations: %w", err)
	}
	return nil
}

// Tx is the transaction contract used by the insert-article +
// create-audit-row atomic operations (spec.md §5).
type Tx interface {
	Exec(ctx context.Context, sql string, args ...interface{}) error
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type pgxTx struct{ tx pgx.Tx }

func (t *pgxTx) Exec(ctx context.Context, query string, args ...interface{}) error {
	_, err := t.tx.Exec(ctx, query, args...)
	return err
}
func (t *pgxTx) QueryRow(ctx context.Context, query string, args ...interface{}) pgx.Row {
	return t.tx.QueryRow(ctx, query, args...)
}
func (t *pgxTx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *pgxTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if err != nil && errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

// BeginTx starts a read-committed transaction.
func (db *Database) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := db.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("postgres: begin transaction: %w", err)
	}
	return &pgxTx{tx: tx}, nil
}

// WithRetry retries fn under PostgreSQL deadlock/serialization-failure
// contention, matching the teacher's ComplianceDatabase.WithRetry policy.
func (db *Database) WithRetry(ctx context.Context, fn func(context.Context) error) error {
	const maxRetries = 3
	const baseDelay = 100 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if isRetryableError(err) && attempt < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				continue
			}
		}
		return err
	}
	return fmt.Errorf("postgres: operation failed after %d retries", maxRetries)
}

func isRetryableError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "deadlock detected") ||
		strings.Contains(msg, "could not serialize access") ||
		strings.Contains(msg, "lock not available")
}

func riskLevelOrEmpty(r domain.RiskLevel) interface{} {
	if r == "" {
		return nil
	}
	return string(r)
}
