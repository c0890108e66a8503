package database

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("stockflow/database")

type txKey struct{}

// txFromContext extracts the transaction from context if present
func txFromContext(ctx context.Context) *sqlx.Tx {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return nil
}

// WithinTransaction runs fn in a transaction stored in the context passed to
// fn. Nested calls join the outer transaction. Serialization failures and
// deadlocks roll back and rerun fn up to the configured number of retries,
// so fn must not have side effects outside the database.
func (db *DB) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	ctx, span := tracer.Start(ctx, "db.transaction")
	defer span.End()

	attempts := 0
	operation := func() error {
		attempts++
		err := db.runTx(ctx, fn)
		if err == nil {
			return nil
		}
		if IsRetryable(err) {
			db.logger.Warn().Err(err).Int("attempt", attempts).Msg("transaction conflict, retrying")
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 20 * time.Millisecond
	policy.MaxInterval = 500 * time.Millisecond
	policy.MaxElapsedTime = 5 * time.Second

	retries := db.maxRetries
	if retries < 0 {
		retries = 0
	}

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(retries)), ctx))

	span.SetAttributes(attribute.Int("db.tx.attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transaction failed")
	}

	return err
}

func (db *DB) runTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
