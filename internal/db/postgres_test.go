package db

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotQueries_Postgres(t *testing.T) {
	q := newSnapshotQueries(dialectPostgres, "")

	selectSQL, err := q.selectState("default")
	require.NoError(t, err)
	assert.Contains(t, selectSQL, `state::text AS "state"`)
	assert.Contains(t, selectSQL, `FROM "fleet_snapshots"`)
	assert.Contains(t, selectSQL, `'default'`)

	upsertSQL, err := q.upsertState("default", []byte(`{"current_day":1}`), 1)
	require.NoError(t, err)
	assert.Contains(t, upsertSQL, `INSERT INTO "fleet_snapshots"`)
	assert.Contains(t, upsertSQL, `'{"current_day":1}'::jsonb`)
	assert.Contains(t, upsertSQL, `ON CONFLICT (id) DO UPDATE SET`)

	assert.Contains(t, q.createTable(), "JSONB")
}

func TestNewPostgresSnapshotStore_NilPool(t *testing.T) {
	_, err := NewPostgresSnapshotStore(nil, "default", "")
	assert.Error(t, err)
}

// Integration test (requires running PostgreSQL)
func TestPostgresSnapshotStore_Integration(t *testing.T) {
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_DSN not set, skipping integration test")
	}
	ctx := context.Background()
	pool, err := NewPostgresPool(ctx, dsn)
	if err != nil {
		t.Skipf("failed to connect: %v, skipping integration test", err)
	}
	defer pool.Close()

	store, err := NewPostgresSnapshotStore(pool, "integration", "fleet_snapshots_test")
	require.NoError(t, err)
	require.NoError(t, store.EnsureSchema(ctx))
	require.NoError(t, store.Delete(ctx))

	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, ErrSnapshotNotFound)

	snap := sampleSnapshot()
	require.NoError(t, store.Save(ctx, snap))
	snap.CurrentDay++
	require.NoError(t, store.Save(ctx, snap))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, snap, loaded)

	require.NoError(t, store.Delete(ctx))
}
