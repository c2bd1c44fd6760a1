package timeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/user/clipengine/model"
)

// startPostgres runs a throwaway Postgres container and returns its DSN.
func startPostgres(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres integration test skipped in -short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "clipengine",
			"POSTGRES_PASSWORD": "clipengine",
			"POSTGRES_DB":       "timeline",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)
	return fmt.Sprintf("postgres://clipengine:clipengine@%s:%s/timeline?sslmode=disable", host, port.Port())
}

func TestPostgresStoreMatchesSQLite(t *testing.T) {
	dsn := startPostgres(t)
	ctx := context.Background()

	provider, err := Open(ctx, dsn)
	require.NoError(t, err)
	defer provider.Close()
	store, ok := provider.(*PostgresStore)
	require.True(t, ok)

	f, err := LoadFixture(filepath.Join("testdata", "season.yaml"))
	require.NoError(t, err)
	require.NoError(t, store.Import(ctx, f))
	require.NoError(t, store.Import(ctx, f))

	latest, err := store.Games(ctx, GameQuery{Players: []string{"P1"}, Latest: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"G2", "G1"}, gameIDs(latest))

	events, err := store.Events(ctx, EventQuery{
		GameIDs:    []string{"G1", "G2"},
		Players:    []string{"P1"},
		EventTypes: []model.EventType{model.EventZoneExit},
	})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, []string{"P1", "P7"}, events[0].Participants)
	assert.Equal(t, "RIVAL", events[1].Opponent)
	assert.True(t, events[1].GameDate.Equal(time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)))

	shifts, err := store.Shifts(ctx, ShiftQuery{GameIDs: []string{"G1"}, Players: []string{"P1"}})
	require.NoError(t, err)
	require.Len(t, shifts, 1)

	m, err := store.Manifest(ctx, "G1", 1)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, m.OffsetCorrection, 1e-9)

	_, err = store.Manifest(ctx, "G2", 2)
	var missing *model.ManifestMissingError
	assert.True(t, errors.As(err, &missing))
}
