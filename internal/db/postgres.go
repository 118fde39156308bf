package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/smis-school/smis/internal/config"
	"github.com/smis-school/smis/internal/pkg/logger"
	"github.com/smis-school/smis/internal/pkg/resilience"
)

// DBTX is the query surface shared by *pgxpool.Pool, pgx.Tx and pgxmock.
// Repositories depend on it so they run the same inside and outside a
// transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresDB owns the connection pool.
type PostgresDB struct {
	Pool *pgxpool.Pool
}

// NewPostgresDB opens the pool, retrying with backoff while the server is
// not reachable yet.
func NewPostgresDB(ctx context.Context, cfg *config.Config) (*PostgresDB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.GetPostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse pgxpool config: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	poolConfig.BeforeAcquire = func(ctx context.Context, conn *pgx.Conn) bool {
		if err := conn.Ping(ctx); err != nil {
			logger.Warn().Err(err).Msg("Unhealthy connection detected")
			return false
		}
		return true
	}

	log := logger.Component("db")
	retry := connectRetryConfig(ctx, cfg.Database.ConnectRetries)
	retry.OnRetry = func(attempt int, wait time.Duration, err error) {
		log.Warn().Err(err).Int("attempt", attempt).Dur("wait", wait).Msg("Database not reachable, retrying")
	}

	pool, err := resilience.RetryValue(ctx, retry, func(ctx context.Context) (*pgxpool.Pool, error) {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
		if err != nil {
			return nil, err
		}
		if err := pool.Ping(connectCtx); err != nil {
			pool.Close()
			return nil, err
		}
		return pool, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to establish database connection: %w", err)
	}

	log.Info().
		Str("host", cfg.Database.Host).
		Str("database", cfg.Database.DBName).
		Int32("maxConns", poolConfig.MaxConns).
		Msg("Connected to PostgreSQL")
	return &PostgresDB{Pool: pool}, nil
}

// connectBackoff is the wait before the first reconnect attempt.
var connectBackoff = 500 * time.Millisecond

// connectRetryConfig retries every connect failure while parent is live,
// including refused dials and per-attempt timeouts. Rejected credentials and
// a missing database are reported at once.
func connectRetryConfig(parent context.Context, retries int) resilience.RetryConfig {
	retry := resilience.DefaultRetryConfig()
	retry.MaxRetries = retries
	retry.InitialBackoff = connectBackoff
	retry.IsTransient = func(err error) bool {
		if parent.Err() != nil {
			return false
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			return !strings.HasPrefix(pgErr.Code, "28") && pgErr.Code != "3D000"
		}
		return true
	}
	return retry
}

// Ping checks the database is reachable.
func (db *PostgresDB) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

func (db *PostgresDB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// TransactionFn is a function that executes within a transaction
type TransactionFn func(ctx context.Context, tx pgx.Tx) error

// WithTransaction runs fn in a transaction on the pool.
func (db *PostgresDB) WithTransaction(ctx context.Context, fn TransactionFn) error {
	return WithTransaction(ctx, db.Pool, zerolog.Ctx(ctx), fn)
}

// WithTransaction begins a transaction on conn, runs fn, and commits. It rolls
// back when fn returns an error or panics. A 30s timeout applies when ctx has
// no deadline.
func WithTransaction(ctx context.Context, conn DBTX, log *zerolog.Logger, fn TransactionFn) (err error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback(ctx)
			panic(r)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			log.Error().Err(rbErr).Msg("Failed to rollback transaction")
			return fmt.Errorf("%w (rollback error: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
