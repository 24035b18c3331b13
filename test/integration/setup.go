//go:build integration

package integration

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	handler "github.com/vncsmyrnk/scorepoll/internal/adapters/handler/http"
	"github.com/vncsmyrnk/scorepoll/internal/adapters/idgen"
	repo "github.com/vncsmyrnk/scorepoll/internal/adapters/repository/postgres"
	"github.com/vncsmyrnk/scorepoll/internal/adapters/token"
	"github.com/vncsmyrnk/scorepoll/internal/core/domain"
	"github.com/vncsmyrnk/scorepoll/internal/core/ports"
	"github.com/vncsmyrnk/scorepoll/internal/core/services"
)

const jwtSecret = "test-secret"

type TestApp struct {
	DB             *sql.DB
	Server         *httptest.Server
	Client         *http.Client
	MaintenanceSvc ports.MaintenanceService
	DBContainer    testcontainers.Container
}

func setupPostgresContainer(ctx context.Context) (testcontainers.Container, string, error) {
	pgContainer, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, "", err
	}

	return pgContainer, connStr, nil
}

func setupTestApp(t *testing.T) *TestApp {
	t.Helper()
	ctx := context.Background()

	dbContainer, dbURL, err := setupPostgresContainer(ctx)
	require.NoError(t, err)

	db, err := repo.Connect(ctx, dbURL)
	require.NoError(t, err)

	files, err := repo.MigrationFiles("../../internal/adapters/repository/postgres/migrations", "up.sql")
	require.NoError(t, err)
	require.NoError(t, repo.ApplyMigrations(ctx, db, files))

	store := repo.NewPollRepository(db)
	pollSvc := services.NewPollService(store, idgen.NewUUID())
	voteSvc := services.NewVoteService(store, domain.ScoreRange{})

	router := handler.NewHandler(
		handler.NewPollHandler(pollSvc),
		handler.NewVoteHandler(voteSvc, true),
		handler.NewRPCHandler(pollSvc, voteSvc, true),
		token.NewHS256Verifier([]byte(jwtSecret)),
		[]string{"*"},
	)
	server := httptest.NewServer(router)

	return &TestApp{
		DB:             db,
		Server:         server,
		Client:         server.Client(),
		MaintenanceSvc: services.NewMaintenanceService(store, 4),
		DBContainer:    dbContainer,
	}
}

func (app *TestApp) Teardown(t *testing.T) {
	app.Server.Close()
	app.DB.Close()
	if err := app.DBContainer.Terminate(context.Background()); err != nil {
		t.Logf("failed to terminate container: %v", err)
	}
}

func createToken(t *testing.T, subject string) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(15 * time.Minute).Unix(),
		"iat": time.Now().Unix(),
	}

	signedToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return signedToken
}
