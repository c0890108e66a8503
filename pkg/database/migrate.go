package database

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

const migrationsTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version    TEXT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Migrate applies every *.sql file in migrations that has not been recorded
// in schema_migrations yet, in lexical order, each in its own transaction.
func (db *DB) Migrate(ctx context.Context, migrations fs.FS) error {
	if _, err := db.DB.ExecContext(ctx, migrationsTable); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	names, err := fs.Glob(migrations, "*.sql")
	if err != nil {
		return fmt.Errorf("failed to list migrations: %w", err)
	}
	sort.Strings(names)

	for _, name := range names {
		version := strings.TrimSuffix(name, ".sql")

		var applied bool
		if err := db.DB.GetContext(ctx, &applied,
			"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", version); err != nil {
			return fmt.Errorf("failed to check migration %s: %w", version, err)
		}
		if applied {
			continue
		}

		body, err := fs.ReadFile(migrations, name)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}

		err = db.WithinTransaction(ctx, func(ctx context.Context) error {
			if _, err := db.ExecContext(ctx, string(body)); err != nil {
				return err
			}
			_, err := db.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", version)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", version, err)
		}

		db.logger.Info().Str("version", version).Msg("migration applied")
	}

	return nil
}
