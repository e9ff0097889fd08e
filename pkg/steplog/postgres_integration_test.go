//go:build integration

package steplog

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "hestia",
			"POSTGRES_PASSWORD": "hestia",
			"POSTGRES_DB":       "hestia",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	return fmt.Sprintf("host=%s port=%s user=hestia password=hestia dbname=hestia sslmode=disable", host, port.Port())
}

func TestPostgresStepLog(t *testing.T) {
	ctx := context.Background()
	dsn := startPostgres(t)

	log, err := OpenPostgres(ctx, dsn)
	require.NoError(t, err)

	done, err := log.IsCompleted(ctx, "A")
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, log.MarkCompleted(ctx, "A"))
	require.NoError(t, log.MarkCompleted(ctx, "A"))
	require.NoError(t, log.MarkCompleted(ctx, "B"))
	require.NoError(t, log.Close())

	reopened, err := OpenPostgres(ctx, dsn)
	require.NoError(t, err)
	defer reopened.Close()

	names, err := reopened.Completed(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, names)

	removed, err := reopened.Forget(ctx, "A", "Z")
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, removed)

	done, err = reopened.IsCompleted(ctx, "A")
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, reopened.ForgetAll(ctx))
	names, err = reopened.Completed(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
}
