package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/spec-kit/opsdesk/internal/persistence"
)

// setupPostgres starts a disposable database and applies the migrations.
func setupPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("skipping integration test: TEST_INTEGRATION not set")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("opsdesk_test"),
		postgres.WithUsername("opsdesk"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, persistence.RunMigrations(dsn, zap.NewNop()))

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestPostgresTicketRepository(t *testing.T) {
	pool := setupPostgres(t)
	runTicketRepositoryContract(t, NewPostgresTicketRepository(pool))
}

func TestPostgresTicketHistoryRowsAreImmutable(t *testing.T) {
	pool := setupPostgres(t)
	ctx := context.Background()
	repo := NewPostgresTicketRepository(pool)
	require.NoError(t, repo.Create(ctx, newTicket("trouble", "tr-immutable", 0)))

	_, err := pool.Exec(ctx, `UPDATE ticket_history SET status = 'closed' WHERE ticket_id = $1`, "tr-immutable")
	require.Error(t, err)
}
