//go:build integration

package repositories_test

import (
	"context"
	"io"
	"log"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/BradenHooton/dian-gateway/internal/database"
	"github.com/BradenHooton/dian-gateway/internal/models"
	"github.com/BradenHooton/dian-gateway/internal/repositories"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB starts Postgres in a container and applies the goose migrations
func setupTestDB(t *testing.T) *database.DB {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("facturacion"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	migrationsDir, err := filepath.Abs("../../migrations")
	require.NoError(t, err)

	goose.SetLogger(log.New(io.Discard, "", 0))
	sqlDB := stdlib.OpenDB(*pool.Config().ConnConfig)
	defer sqlDB.Close()
	require.NoError(t, goose.SetDialect("postgres"))
	require.NoError(t, goose.UpContext(ctx, sqlDB, migrationsDir))

	return database.FromPool(pool, slog.New(slog.NewJSONHandler(io.Discard, nil)))
}

func TestRepositories_Integration(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	users := repositories.NewUserRepository(db)
	attempts := repositories.NewLoginAttemptRepository(db)

	t.Run("user lifecycle", func(t *testing.T) {
		created, err := users.Create(ctx, &models.User{
			Email:        " Contador@Example.com ",
			PasswordHash: "$2a$12$hash",
			Name:         "Contador",
			Role:         models.RoleUser,
			Active:       true,
		})
		require.NoError(t, err)
		assert.NotEmpty(t, created.ID)
		assert.Equal(t, "contador@example.com", created.Email)

		byEmail, err := users.GetByEmail(ctx, "CONTADOR@example.com")
		require.NoError(t, err)
		assert.Equal(t, created.ID, byEmail.ID)

		byID, err := users.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "Contador", byID.Name)

		_, err = users.Create(ctx, created)
		assert.ErrorIs(t, err, models.ErrConflict)

		_, err = users.GetByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("login attempt audit", func(t *testing.T) {
		now := time.Now()
		reason := models.FailureInvalidCredentials

		require.NoError(t, attempts.RecordAttempt(ctx, &models.LoginAttempt{
			Email: "a@example.com", IPAddress: "192.168.1.1", Success: false,
			FailureReason: &reason, AttemptTime: now.Add(-2 * time.Minute), ExpiresAt: now.Add(-time.Minute),
		}))
		require.NoError(t, attempts.RecordAttempt(ctx, &models.LoginAttempt{
			Email: "a@example.com", IPAddress: "192.168.1.1", Success: true,
			AttemptTime: now, ExpiresAt: now.Add(time.Hour),
		}))

		recent, err := attempts.ListRecentByIP(ctx, "192.168.1.1", 10)
		require.NoError(t, err)
		require.Len(t, recent, 2)
		assert.True(t, recent[0].Success)
		require.NotNil(t, recent[1].FailureReason)
		assert.Equal(t, reason, *recent[1].FailureReason)

		deleted, err := attempts.DeleteExpired(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted)
	})
}
