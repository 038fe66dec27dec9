package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMigrator_PostgresLifecycle(t *testing.T) {
	store := openRawPostgresStoreForIntegrationTest(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	steps := []struct {
		name  string
		apply func() error
		want  MigrationState
	}{
		{name: "reset", apply: func() error { return store.MigrateDown(ctx, 100) }, want: MigrationState{Version: 0, Applied: 0, Pending: 3}},
		{name: "up one", apply: func() error { return store.MigrateUp(ctx, 1) }, want: MigrationState{Version: 1, Applied: 1, Pending: 2}},
		{name: "up rest", apply: func() error { return store.MigrateUp(ctx, 0) }, want: MigrationState{Version: 3, Applied: 3, Pending: 0}},
		{name: "up again is no-op", apply: func() error { return store.MigrateUp(ctx, 0) }, want: MigrationState{Version: 3, Applied: 3, Pending: 0}},
		{name: "down default one", apply: func() error { return store.MigrateDown(ctx, 0) }, want: MigrationState{Version: 2, Applied: 2, Pending: 1}},
		{name: "down two", apply: func() error { return store.MigrateDown(ctx, 2) }, want: MigrationState{Version: 0, Applied: 0, Pending: 3}},
		{name: "down on empty", apply: func() error { return store.MigrateDown(ctx, 1) }, want: MigrationState{Version: 0, Applied: 0, Pending: 3}},
	}

	for _, step := range steps {
		require.NoError(t, step.apply(), step.name)
		state, err := store.MigrationStatus(ctx)
		require.NoError(t, err, step.name)
		require.Equal(t, step.want, state, step.name)
	}
}

func TestMigrator_PostgresDetectsDrift(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := store.DB().ExecContext(ctx, `UPDATE schema_migrations SET checksum = 'tampered' WHERE version = 1`)
	require.NoError(t, err)
	t.Cleanup(func() {
		migrations, loadErr := loadMigrationsFromFS(migrationsFS)
		if loadErr != nil {
			return
		}
		_, _ = store.DB().ExecContext(context.Background(),
			`UPDATE schema_migrations SET checksum = $1 WHERE version = 1`, migrations[0].Checksum)
	})

	err = store.MigrateUp(ctx, 0)
	require.True(t, errors.Is(err, ErrMigrationDrift), "got %v", err)
}

func TestMigrator_GuardsAndUnsupportedDirection(t *testing.T) {
	var nilStore *Store
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.ErrorIs(t, nilStore.MigrateUp(ctx, 0), errStoreNotInitialized)
	require.ErrorIs(t, nilStore.MigrateDown(ctx, 1), errStoreNotInitialized)
	_, err := nilStore.MigrationStatus(ctx)
	require.ErrorIs(t, err, errStoreNotInitialized)

	require.ErrorContains(t, (&Store{}).migrate(ctx, migrationDirection("sideways"), 0), "unsupported migration direction")
}
