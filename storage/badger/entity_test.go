package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeinalasali/buildquery/core"
	"github.com/zeinalasali/buildquery/storage"
)

func setupEntityRepo(t *testing.T) storage.EntityRepository {
	t.Helper()

	entities, _, backend, err := NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })
	return entities
}

func TestPutAndGetSnapshot(t *testing.T) {
	entities := setupEntityRepo(t)
	ctx := context.Background()

	snapshot := &core.EntitySnapshot{
		Key:         core.EntityKey{OrgID: 1, Type: core.EntityTypeProject, EntityID: 7},
		Name:        "Riverside Apartments",
		Status:      "active",
		Description: "24-unit residential build",
	}
	require.NoError(t, entities.PutSnapshots(ctx, snapshot))

	got, err := entities.GetSnapshot(ctx, snapshot.Key)
	require.NoError(t, err)
	assert.Equal(t, snapshot, got)

	// Put replaces in place.
	snapshot.Status = "on hold"
	require.NoError(t, entities.PutSnapshots(ctx, snapshot))
	got, err = entities.GetSnapshot(ctx, snapshot.Key)
	require.NoError(t, err)
	assert.Equal(t, "on hold", got.Status)
}

func TestPutSnapshotsRejectsInvalid(t *testing.T) {
	entities := setupEntityRepo(t)

	err := entities.PutSnapshots(context.Background(), &core.EntitySnapshot{})
	assert.ErrorIs(t, err, core.ErrInvalidSnapshot)
}

func TestGetSnapshotMissing(t *testing.T) {
	entities := setupEntityRepo(t)

	_, err := entities.GetSnapshot(context.Background(),
		core.EntityKey{OrgID: 1, Type: core.EntityTypeProject, EntityID: 404})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeleteSnapshot(t *testing.T) {
	entities := setupEntityRepo(t)
	ctx := context.Background()
	key := core.EntityKey{OrgID: 1, Type: core.EntityTypeExpense, EntityID: 3}

	require.NoError(t, entities.PutSnapshots(ctx, &core.EntitySnapshot{Key: key, Name: "Crane rental"}))
	require.NoError(t, entities.DeleteSnapshot(ctx, key))

	_, err := entities.GetSnapshot(ctx, key)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.ErrorIs(t, entities.DeleteSnapshot(ctx, key), storage.ErrNotFound)
}

func TestGetSnapshotsBatch(t *testing.T) {
	entities := setupEntityRepo(t)
	ctx := context.Background()

	keys := make([]core.EntityKey, 0, 3)
	for id := core.ID(1); id <= 3; id++ {
		key := core.EntityKey{OrgID: 1, Type: core.EntityTypeCostItem, EntityID: id}
		keys = append(keys, key)
		require.NoError(t, entities.PutSnapshots(ctx, &core.EntitySnapshot{Key: key, Name: "item"}))
	}

	// Missing keys are skipped, not errors.
	keys = append(keys, core.EntityKey{OrgID: 1, Type: core.EntityTypeCostItem, EntityID: 99})

	snapshots, err := entities.GetSnapshots(ctx, 1, keys)
	require.NoError(t, err)
	assert.Len(t, snapshots, 3)
}

func TestGetSnapshotsRejectsCrossOrgKeys(t *testing.T) {
	entities := setupEntityRepo(t)

	_, err := entities.GetSnapshots(context.Background(), 1, []core.EntityKey{
		{OrgID: 2, Type: core.EntityTypeProject, EntityID: 1},
	})
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)

	_, err = entities.GetSnapshots(context.Background(), 0, nil)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}
