package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stockflow/stockflow-backend/pkg/config"
	"github.com/stockflow/stockflow-backend/pkg/logger"
)

// DB wraps sqlx.DB. The query helpers defined on DB run inside the
// transaction carried by the context when there is one.
type DB struct {
	*sqlx.DB
	logger     *logger.Logger
	maxRetries int
}

// New creates a new database connection
func New(cfg *config.DatabaseConfig, log *logger.Logger) (*DB, error) {
	db, err := sqlx.Connect("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return Wrap(db, log, cfg.MaxTxRetries), nil
}

// Wrap adapts an existing sqlx handle, e.g. one backed by sqlmock.
func Wrap(db *sqlx.DB, log *logger.Logger, maxRetries int) *DB {
	if log == nil {
		log = logger.Nop()
	}
	return &DB{
		DB:         db,
		logger:     log.WithComponent("database"),
		maxRetries: maxRetries,
	}
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

// Health returns the health status of the database
func (db *DB) Health(ctx context.Context) map[string]string {
	status := map[string]string{
		"status": "up",
	}

	ctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		status["status"] = "down"
		status["error"] = err.Error()
	}

	return status
}

// conn returns the transaction from ctx, or the pool.
func (db *DB) conn(ctx context.Context) sqlx.ExtContext {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return db.DB
}

// GetContext scans a single row into dest
func (db *DB) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return sqlx.GetContext(ctx, db.conn(ctx), dest, query, args...)
}

// SelectContext scans all rows into dest
func (db *DB) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return sqlx.SelectContext(ctx, db.conn(ctx), dest, query, args...)
}

// ExecContext executes a statement
func (db *DB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return db.conn(ctx).ExecContext(ctx, query, args...)
}

// QueryRowxContext queries a single row
func (db *DB) QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row {
	return db.conn(ctx).QueryRowxContext(ctx, query, args...)
}
