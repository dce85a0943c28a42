//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/dtroode/gcal-connect/database"
	"github.com/dtroode/gcal-connect/internal/encryption"
	"github.com/dtroode/gcal-connect/internal/model"
	repo "github.com/dtroode/gcal-connect/internal/repository/postgres"
)

var dsn string

func TestMain(m *testing.M) {
	ctx := context.Background()
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "postgres:15-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "postgres",
				"POSTGRES_PASSWORD": "password",
				"POSTGRES_DB":       "gcal_connect_test",
			},
			WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	if err != nil {
		panic(err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		panic(err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		panic(err)
	}
	dsn = fmt.Sprintf("postgres://postgres:password@%s:%s/gcal_connect_test?sslmode=disable", host, port.Port())

	if err := database.Migrate(ctx, dsn); err != nil {
		panic(err)
	}

	code := m.Run()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func newRepo(t *testing.T) (*repo.OAuthTokenRepository, *repo.Connection) {
	t.Helper()
	ctx := context.Background()
	conn, err := repo.NewConnection(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	cipher, err := encryption.New("integration-passphrase")
	require.NoError(t, err)

	return repo.NewOAuthTokenRepository(conn, cipher), conn
}

func TestOAuthTokenRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	r, conn := newRepo(t)
	expiry := time.Now().Add(time.Hour).UTC().Truncate(time.Microsecond)

	_, found, err := r.Get(ctx, "u-int")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, r.Upsert(ctx, model.OAuthTokenRecord{
		UserID:       "u-int",
		RefreshToken: "rt-1",
		AccessToken:  "at-1",
		TokenExpiry:  expiry,
		AccountEmail: "u@example.com",
	}))

	var stored string
	require.NoError(t, conn.QueryRow(ctx, `SELECT encrypted_refresh_token FROM google_oauth_tokens WHERE user_id = $1`, "u-int").Scan(&stored))
	assert.NotContains(t, stored, "rt-1")

	rec, found, err := r.Get(ctx, "u-int")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "rt-1", rec.RefreshToken)
	assert.Equal(t, "at-1", rec.AccessToken)
	assert.True(t, expiry.Equal(rec.TokenExpiry))

	newExpiry := expiry.Add(time.Hour)
	require.NoError(t, r.UpdateAccessToken(ctx, "u-int", "at-2", newExpiry))
	rec, _, err = r.Get(ctx, "u-int")
	require.NoError(t, err)
	assert.Equal(t, "at-2", rec.AccessToken)
	assert.Equal(t, "rt-1", rec.RefreshToken)

	require.NoError(t, r.Upsert(ctx, model.OAuthTokenRecord{UserID: "u-int", RefreshToken: "rt-2", AccessToken: "at-3", TokenExpiry: newExpiry}))
	var count int
	require.NoError(t, conn.QueryRow(ctx, `SELECT COUNT(*) FROM google_oauth_tokens WHERE user_id = $1`, "u-int").Scan(&count))
	assert.Equal(t, 1, count)

	require.NoError(t, r.Delete(ctx, "u-int"))
	require.NoError(t, r.Delete(ctx, "u-int"))
	_, found, err = r.Get(ctx, "u-int")
	require.NoError(t, err)
	assert.False(t, found)

	require.ErrorIs(t, r.UpdateAccessToken(ctx, "u-int", "at", newExpiry), model.ErrNotFound)
}

func TestOAuthTokenRepository_RotatedPassphrase(t *testing.T) {
	ctx := context.Background()
	r, conn := newRepo(t)

	require.NoError(t, r.Upsert(ctx, model.OAuthTokenRecord{UserID: "u-rot", RefreshToken: "rt", TokenExpiry: time.Now()}))

	other, err := encryption.New("rotated-passphrase")
	require.NoError(t, err)
	rotated := repo.NewOAuthTokenRepository(conn, other)

	_, found, err := rotated.Get(ctx, "u-rot")
	require.ErrorIs(t, err, model.ErrUndecryptable)
	assert.True(t, found)
}
