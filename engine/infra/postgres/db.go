// Package postgres is the persistence driver: pool setup, schema
// migrations, and the SQL repositories behind the engine's store
// contracts.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lexiscope/lexiscope/pkg/logger"
)

const (
	defaultMaxConns       = 20
	defaultMinConns       = 2
	defaultHealthPeriod   = 30 * time.Second
	defaultConnectTimeout = 5 * time.Second
	defaultPingTimeout    = 3 * time.Second
)

// DBInterface is the minimal query surface repositories need. Both
// pgxpool.Pool and pgxmock.PgxPoolIface satisfy it.
type DBInterface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Config holds connection settings. ConnString wins when set.
type Config struct {
	ConnString string
	Host       string
	Port       string
	User       string
	Password   string
	DBName     string
	SSLMode    string
}

// DB wraps the connection pool.
type DB struct {
	pool *pgxpool.Pool
}

// NewDB opens a pool and verifies connectivity with a bounded ping.
func NewDB(ctx context.Context, cfg *Config) (*DB, error) {
	if cfg == nil {
		return nil, fmt.Errorf("postgres: config is required")
	}
	connString := cfg.ConnString
	if connString == "" {
		connString = fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			orDefault(cfg.Host, "localhost"),
			orDefault(cfg.Port, "5432"),
			orDefault(cfg.User, "postgres"),
			cfg.Password,
			orDefault(cfg.DBName, "lexiscope"),
			orDefault(cfg.SSLMode, "disable"),
		)
	}
	poolCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("postgres: parsing connection string: %w", err)
	}
	poolCfg.MaxConns = defaultMaxConns
	poolCfg.MinConns = defaultMinConns
	poolCfg.HealthCheckPeriod = defaultHealthPeriod
	poolCfg.ConnConfig.ConnectTimeout = defaultConnectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: creating pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: pinging database: %w", err)
	}
	logger.FromContext(ctx).Info("postgres pool ready",
		"host", orDefault(cfg.Host, "localhost"),
		"database", orDefault(cfg.DBName, "lexiscope"))
	return &DB{pool: pool}, nil
}

// Pool exposes the pool for repository construction. pgx types stay inside
// this package and the repositories it builds.
func (d *DB) Pool() *pgxpool.Pool { return d.pool }

// HealthCheck verifies the connection is alive.
func (d *DB) HealthCheck(ctx context.Context) error {
	hctx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err := d.pool.Ping(hctx); err != nil {
		return fmt.Errorf("postgres: health check failed: %w", err)
	}
	return nil
}

func (d *DB) Close(ctx context.Context) {
	d.pool.Close()
	logger.FromContext(ctx).Info("postgres pool closed")
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
