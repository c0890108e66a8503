// Package testutil provides testing utilities for stockflow services:
// a sqlmock-backed database, a PostgreSQL testcontainer and HTTP helpers.
package testutil

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/stockflow/stockflow-backend/pkg/config"
	"github.com/stockflow/stockflow-backend/pkg/database"
	"github.com/stockflow/stockflow-backend/pkg/logger"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// defaultPostgresImage can be overridden with STOCKFLOW_TEST_POSTGRES_IMAGE.
const defaultPostgresImage = "postgres:15-alpine"

// IntegrationSuite is a throwaway PostgreSQL with the migrations applied.
//
// Usage:
//
//	suite, err := testutil.NewIntegrationSuite(ctx, repository.Migrations)
//	if err != nil {
//	    t.Skipf("postgres container unavailable: %v", err)
//	}
//	defer suite.Cleanup(ctx)
type IntegrationSuite struct {
	DB     *database.DB
	DSN    string
	Logger *logger.Logger

	container *postgres.PostgresContainer
}

// NewIntegrationSuite starts a container and applies the migrations.
func NewIntegrationSuite(ctx context.Context, migrations fs.FS) (*IntegrationSuite, error) {
	image := os.Getenv("STOCKFLOW_TEST_POSTGRES_IMAGE")
	if image == "" {
		image = defaultPostgresImage
	}

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage(image),
		postgres.WithDatabase("stockflow_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	s := &IntegrationSuite{Logger: logger.Nop(), container: container}

	s.DSN, err = container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	// Concurrency tests run many transactions at once, so allow retries.
	s.DB, err = database.New(&config.DatabaseConfig{
		URL:          s.DSN,
		MaxOpenConns: 20,
		MaxIdleConns: 5,
		MaxTxRetries: 5,
	}, s.Logger)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}

	if err := s.DB.Migrate(ctx, migrations); err != nil {
		_ = s.Cleanup(ctx)
		return nil, err
	}

	return s, nil
}

// Truncate empties the given tables between tests
func (s *IntegrationSuite) Truncate(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	_, err := s.DB.DB.ExecContext(ctx, fmt.Sprintf("TRUNCATE %s RESTART IDENTITY CASCADE", strings.Join(tables, ", ")))
	return err
}

// Cleanup closes the database and removes the container
func (s *IntegrationSuite) Cleanup(ctx context.Context) error {
	if s.DB != nil {
		if err := s.DB.Close(); err != nil {
			return err
		}
	}
	return s.container.Terminate(ctx)
}
