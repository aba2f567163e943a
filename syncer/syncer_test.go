package syncer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeinalasali/buildquery/ai"
	"github.com/zeinalasali/buildquery/ai/mock"
	"github.com/zeinalasali/buildquery/core"
	"github.com/zeinalasali/buildquery/storage"
	"github.com/zeinalasali/buildquery/storage/badger"
)

func setupSynchronizer(t *testing.T) (*Synchronizer, *mock.MockEmbedder, storage.EntityRepository, storage.VectorRepository) {
	t.Helper()

	entities, vectors, backend, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() {
		entities.Close()
		vectors.Close()
		backend.Close()
	})

	embedder := mock.NewMockEmbedder()
	sync, err := NewSynchronizer(entities, vectors, embedder, WithPoolSize(2))
	require.NoError(t, err)
	t.Cleanup(sync.Release)

	return sync, embedder, entities, vectors
}

func projectEvent(op core.ChangeOp, orgID, entityID core.ID, name string) core.EntityChanged {
	key := core.EntityKey{OrgID: orgID, Type: core.EntityTypeProject, EntityID: entityID}
	event := core.EntityChanged{Key: key, Op: op}
	if op != core.OpDelete {
		event.Snapshot = &core.EntitySnapshot{Key: key, Name: name, Status: "active"}
	}
	return event
}

func TestApplyCreateStoresSnapshotAndEmbedding(t *testing.T) {
	sync, _, entities, vectors := setupSynchronizer(t)
	ctx := context.Background()

	event := projectEvent(core.OpCreate, 1, 100, "Riverside Apartments")
	require.NoError(t, sync.Apply(ctx, event))
	sync.Wait()

	snapshot, err := entities.GetSnapshot(ctx, event.Key)
	require.NoError(t, err)
	assert.Equal(t, "Riverside Apartments", snapshot.Name)

	rec, err := vectors.GetEmbedding(ctx, event.Key)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), rec.Version)
	assert.Equal(t, core.EmbeddingFresh, rec.State)
	assert.Equal(t, core.ContentHash(event.Snapshot), rec.ContentHash)
	assert.NotEmpty(t, rec.Vector)
}

func TestApplyUnchangedContentSkipsReembedding(t *testing.T) {
	sync, embedder, _, vectors := setupSynchronizer(t)
	ctx := context.Background()

	event := projectEvent(core.OpCreate, 1, 100, "Riverside Apartments")
	require.NoError(t, sync.Apply(ctx, event))
	sync.Wait()
	require.Equal(t, 1, embedder.CallCount())

	// Same content delivered again, e.g. a redundant update event.
	update := projectEvent(core.OpUpdate, 1, 100, "Riverside Apartments")
	require.NoError(t, sync.Apply(ctx, update))
	sync.Wait()

	assert.Equal(t, 1, embedder.CallCount())
	rec, err := vectors.GetEmbedding(ctx, event.Key)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), rec.Version)
}

func TestApplyChangedContentIncrementsVersion(t *testing.T) {
	sync, _, _, vectors := setupSynchronizer(t)
	ctx := context.Background()

	create := projectEvent(core.OpCreate, 1, 100, "Riverside Apartments")
	require.NoError(t, sync.Apply(ctx, create))
	sync.Wait()

	update := projectEvent(core.OpUpdate, 1, 100, "Riverside Apartments Phase II")
	require.NoError(t, sync.Apply(ctx, update))
	sync.Wait()

	rec, err := vectors.GetEmbedding(ctx, create.Key)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), rec.Version)
	assert.Equal(t, core.ContentHash(update.Snapshot), rec.ContentHash)
	assert.Equal(t, core.EmbeddingFresh, rec.State)
}

func TestApplyEmbedderFailureMarksStaleWithoutFailingWrite(t *testing.T) {
	sync, embedder, entities, vectors := setupSynchronizer(t)
	ctx := context.Background()

	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, ai.ErrProviderUnavailable
	}

	event := projectEvent(core.OpCreate, 1, 100, "Riverside Apartments")
	require.NoError(t, sync.Apply(ctx, event), "embedding failure must not surface to the writer")
	sync.Wait()

	// Snapshot mirror still written.
	_, err := entities.GetSnapshot(ctx, event.Key)
	require.NoError(t, err)

	rec, err := vectors.GetEmbedding(ctx, event.Key)
	require.NoError(t, err)
	assert.Equal(t, core.EmbeddingStale, rec.State)
	assert.Empty(t, rec.Vector)

	// Stale records never show up in similarity results.
	candidates, err := vectors.QuerySimilar(ctx, 1, 0, mock.DeterministicVector("query", mock.DefaultDim), 5)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestApplyFailureThenRecoveryRefreshesRecord(t *testing.T) {
	sync, embedder, _, vectors := setupSynchronizer(t)
	ctx := context.Background()

	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, ai.ErrProviderUnavailable
	}
	create := projectEvent(core.OpCreate, 1, 100, "Riverside Apartments")
	require.NoError(t, sync.Apply(ctx, create))
	sync.Wait()

	embedder.EmbedTextFunc = nil
	update := projectEvent(core.OpUpdate, 1, 100, "Riverside Apartments")
	require.NoError(t, sync.Apply(ctx, update))
	sync.Wait()

	rec, err := vectors.GetEmbedding(ctx, create.Key)
	require.NoError(t, err)
	assert.Equal(t, core.EmbeddingFresh, rec.State)
	assert.Equal(t, uint64(2), rec.Version)
	assert.NotEmpty(t, rec.Vector)
}

func TestApplyDeleteRemovesBothRecords(t *testing.T) {
	sync, _, entities, vectors := setupSynchronizer(t)
	ctx := context.Background()

	create := projectEvent(core.OpCreate, 1, 100, "Riverside Apartments")
	require.NoError(t, sync.Apply(ctx, create))
	sync.Wait()

	del := projectEvent(core.OpDelete, 1, 100, "")
	require.NoError(t, sync.Apply(ctx, del))
	sync.Wait()

	_, err := entities.GetSnapshot(ctx, create.Key)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = vectors.GetEmbedding(ctx, create.Key)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Re-delivered deletes are a no-op, not an error.
	assert.NoError(t, sync.Apply(ctx, del))
}

// gatedEmbedder stalls embed calls whose text contains the marker until the
// gate opens, so tests can hold a refresh inside its provider call while
// newer events land.
type gatedEmbedder struct {
	entered chan struct{}
	gate    chan struct{}
	marker  string
}

func newGatedEmbedder(marker string) *gatedEmbedder {
	return &gatedEmbedder{
		entered: make(chan struct{}, 1),
		gate:    make(chan struct{}),
		marker:  marker,
	}
}

func (e *gatedEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if strings.Contains(text, e.marker) {
		e.entered <- struct{}{}
		<-e.gate
	}
	return mock.DeterministicVector(text, mock.DefaultDim), nil
}

func (e *gatedEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = mock.DeterministicVector(text, mock.DefaultDim)
	}
	return vectors, nil
}

func setupGatedSynchronizer(t *testing.T, marker string) (*Synchronizer, *gatedEmbedder, storage.EntityRepository, storage.VectorRepository) {
	t.Helper()

	entities, vectors, backend, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() {
		entities.Close()
		vectors.Close()
		backend.Close()
	})

	embedder := newGatedEmbedder(marker)
	sync, err := NewSynchronizer(entities, vectors, embedder, WithPoolSize(2))
	require.NoError(t, err)
	t.Cleanup(sync.Release)

	return sync, embedder, entities, vectors
}

func TestApplyConcurrentUpdateKeepsNewestContent(t *testing.T) {
	sync, embedder, _, vectors := setupGatedSynchronizer(t, "status: tendering")
	ctx := context.Background()

	key := core.EntityKey{OrgID: 1, Type: core.EntityTypeProject, EntityID: 100}
	old := &core.EntitySnapshot{Key: key, Name: "Riverside Apartments", Status: "tendering"}
	require.NoError(t, sync.Apply(ctx, core.EntityChanged{Key: key, Op: core.OpCreate, Snapshot: old}))

	// The first refresh is now stuck inside its provider call.
	<-embedder.entered

	updated := &core.EntitySnapshot{Key: key, Name: "Riverside Apartments", Status: "active"}
	require.NoError(t, sync.Apply(ctx, core.EntityChanged{Key: key, Op: core.OpUpdate, Snapshot: updated}))

	// Let the newer refresh land before releasing the stalled one.
	require.Eventually(t, func() bool {
		rec, err := vectors.GetEmbedding(ctx, key)
		return err == nil && rec.ContentHash == core.ContentHash(updated)
	}, 2*time.Second, 5*time.Millisecond)

	close(embedder.gate)
	sync.Wait()

	rec, err := vectors.GetEmbedding(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, core.ContentHash(updated), rec.ContentHash,
		"a stalled refresh for older content must not overwrite the newer embedding")
	assert.Equal(t, core.EmbeddingFresh, rec.State)
	assert.Equal(t, uint64(1), rec.Version)
}

func TestApplyDeleteWinsOverInFlightRefresh(t *testing.T) {
	sync, embedder, entities, vectors := setupGatedSynchronizer(t, "Riverside Apartments")
	ctx := context.Background()

	create := projectEvent(core.OpCreate, 1, 100, "Riverside Apartments")
	require.NoError(t, sync.Apply(ctx, create))
	<-embedder.entered

	// Delete lands while the create's refresh is still embedding.
	require.NoError(t, sync.Apply(ctx, projectEvent(core.OpDelete, 1, 100, "")))

	close(embedder.gate)
	sync.Wait()

	_, err := vectors.GetEmbedding(ctx, create.Key)
	assert.ErrorIs(t, err, storage.ErrNotFound,
		"an in-flight refresh must not resurrect a deleted entity's embedding")
	_, err = entities.GetSnapshot(ctx, create.Key)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestApplyRejectsInvalidEvents(t *testing.T) {
	sync, _, _, _ := setupSynchronizer(t)
	ctx := context.Background()

	missingOrg := core.EntityChanged{
		Key: core.EntityKey{Type: core.EntityTypeProject, EntityID: 100},
		Op:  core.OpCreate,
		Snapshot: &core.EntitySnapshot{
			Key: core.EntityKey{Type: core.EntityTypeProject, EntityID: 100},
		},
	}
	assert.ErrorIs(t, sync.Apply(ctx, missingOrg), core.ErrMissingOrg)

	key := core.EntityKey{OrgID: 1, Type: core.EntityTypeProject, EntityID: 100}
	createWithoutSnapshot := core.EntityChanged{Key: key, Op: core.OpCreate}
	assert.ErrorIs(t, sync.Apply(ctx, createWithoutSnapshot), core.ErrInvalidEvent)

	deleteWithSnapshot := core.EntityChanged{
		Key: key, Op: core.OpDelete, Snapshot: &core.EntitySnapshot{Key: key},
	}
	assert.ErrorIs(t, sync.Apply(ctx, deleteWithSnapshot), core.ErrInvalidEvent)
}

func TestNewSynchronizerRequiresDependencies(t *testing.T) {
	entities, vectors, backend, err := badger.NewMemoryStores()
	require.NoError(t, err)
	defer func() {
		entities.Close()
		vectors.Close()
		backend.Close()
	}()

	_, err = NewSynchronizer(nil, vectors, mock.NewMockEmbedder())
	assert.ErrorIs(t, err, ErrEntityRepositoryRequired)

	_, err = NewSynchronizer(entities, nil, mock.NewMockEmbedder())
	assert.ErrorIs(t, err, ErrVectorRepositoryRequired)

	_, err = NewSynchronizer(entities, vectors, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)
}
