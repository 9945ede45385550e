package database

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"arbradar/internal/model"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	// Define the PostgreSQL container request
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpassword",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp"),
	}

	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "could not start postgres container")
	t.Cleanup(func() {
		if err := pgContainer.Terminate(context.Background()); err != nil {
			t.Logf("could not stop postgres container: %s", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	connStr := "postgres://testuser:testpassword@" + host + ":" + port.Port() + "/testdb"

	// The port may accept connections before the server is ready for queries.
	var repo *PostgresRepository
	require.Eventually(t, func() bool {
		repo, err = NewPostgresRepository(ctx, connStr)
		return err == nil
	}, 30*time.Second, 500*time.Millisecond)
	t.Cleanup(repo.Close)
	return repo.Pool
}

func TestPostgresRepository_LogEvent(t *testing.T) {
	ctx := context.Background()
	repo := &PostgresRepository{Pool: startPostgres(t)}
	require.NoError(t, repo.Migrate(ctx))
	require.NoError(t, repo.Migrate(ctx), "migration is repeatable")

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	first := model.NewEvent(model.LevelInfo, "START scanning", base)
	second := model.NewEvent(model.LevelSignal, "SIGNAL BTC/USDT: Buy Poloniex 99.0000 -> Sell Binance 105.0000 | +6.06%", base.Add(time.Second))

	require.NoError(t, repo.LogEvent(ctx, first))
	require.NoError(t, repo.LogEvent(ctx, second))
	require.NoError(t, repo.LogEvent(ctx, second), "duplicate IDs are ignored")

	events, err := repo.RecentEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, second.ID, events[0].ID)
	assert.Equal(t, model.LevelSignal, events[0].Level)
	assert.Equal(t, second.Message, events[0].Message)
	assert.True(t, second.At.Equal(events[0].At))
	assert.Equal(t, first.ID, events[1].ID)
}
