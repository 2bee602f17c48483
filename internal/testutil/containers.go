// Package testutil starts throwaway infrastructure containers for integration tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/abgdnv/storefront/migrations"
	"github.com/abgdnv/storefront/pkg/bootstrap"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/nats"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// SkipIntegrationTests is the environment variable that controls whether to skip integration tests.
const SkipIntegrationTests = "STOREFRONT_SKIP_INTEGRATION_TESTS"

const (
	postgresImg = "postgres:17.5-alpine"
	redisImg    = "redis:7.4-alpine"
	natsImg     = "nats:2.11.6-alpine"
)

// SkipIfDisabled skips t when integration tests are switched off.
func SkipIfDisabled(t *testing.T) {
	t.Helper()
	if os.Getenv(SkipIntegrationTests) == "1" {
		t.Skip("Skipping integration tests based on " + SkipIntegrationTests + " env var")
	}
}

// Postgres starts a migrated PostgreSQL container and returns a pool connected to it.
// The container is terminated when t finishes.
func Postgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx, postgresImg,
		postgres.WithDatabase("storefront"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Minute),
		),
	)
	require.NoError(t, err, "Failed to run PostgreSQL container")
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "Failed to get connection string from container")

	require.NoError(t, bootstrap.RunMigrations(migrations.FS, migrations.Dir, connStr), "Failed to apply migrations")

	pool, err := bootstrap.NewDbPool(ctx, connStr, 30*time.Second)
	require.NoError(t, err, "Failed to create pgxpool")
	t.Cleanup(pool.Close)
	return pool
}

// Redis starts a Redis container and returns its host:port address.
func Redis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        redisImg,
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err, "Failed to run Redis container")
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)
	return fmt.Sprintf("%s:%s", host, port.Port())
}

// Nats starts a NATS container with JetStream enabled and returns its connection URL.
func Nats(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := nats.Run(ctx, natsImg)
	require.NoError(t, err, "Failed to run NATS container")
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	return url
}
