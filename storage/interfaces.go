package storage

import (
	"context"

	"github.com/zeinalasali/buildquery/core"
)

// EntityRepository mirrors the system of record's entity snapshots locally so
// the context assembler can hydrate retrieval candidates with one batched
// read. Implementations must be thread-safe and support concurrent access.
type EntityRepository interface {
	// PutSnapshots stores or replaces one or more entity snapshots.
	PutSnapshots(ctx context.Context, snapshots ...*core.EntitySnapshot) error

	// DeleteSnapshot removes a snapshot by key.
	// Returns ErrNotFound if the snapshot doesn't exist.
	DeleteSnapshot(ctx context.Context, key core.EntityKey) error

	// GetSnapshot retrieves a single snapshot by key.
	// Returns ErrNotFound if the snapshot doesn't exist.
	GetSnapshot(ctx context.Context, key core.EntityKey) (*core.EntitySnapshot, error)

	// GetSnapshots retrieves multiple snapshots in one batched read.
	// Missing keys are skipped silently: a candidate whose source record
	// vanished is an expected race, not an error. All keys must belong to
	// orgID.
	GetSnapshots(ctx context.Context, orgID core.ID, keys []core.EntityKey) ([]*core.EntitySnapshot, error)

	// Close closes the repository and releases resources.
	Close() error
}

// VectorRepository persists embedding records and answers top-K similarity
// queries. The org predicate is part of every operation's key or scan prefix,
// so no cross-tenant vector is ever compared or returned.
// Implementations must be thread-safe and provide atomic upsert/delete per key.
type VectorRepository interface {
	// UpsertEmbedding stores a record keyed by its EntityKey using version
	// compare-and-swap: the write succeeds only when the currently stored
	// version equals expectedVersion (0 when no record exists), otherwise
	// ErrVersionConflict. rec.Version must be expectedVersion+1.
	UpsertEmbedding(ctx context.Context, rec *core.EmbeddingRecord, expectedVersion uint64) error

	// DeleteEmbedding tombstones the record for a key. Deleting a missing
	// key is a no-op so delete events can be re-delivered safely.
	DeleteEmbedding(ctx context.Context, key core.EntityKey) error

	// GetEmbedding retrieves the record for a key.
	// Returns ErrNotFound if no record exists.
	GetEmbedding(ctx context.Context, key core.EntityKey) (*core.EmbeddingRecord, error)

	// MarkStale flags the record for a key as stale without touching its
	// vector or version. Returns ErrNotFound if no record exists.
	MarkStale(ctx context.Context, key core.EntityKey) error

	// QuerySimilar returns up to k candidates nearest to vector under cosine
	// similarity, scoped to orgID and, when typeFilter is non-zero, to that
	// entity type. Stale and vectorless records are excluded. Results are
	// ordered by score descending, ties broken by entity id ascending.
	// An empty result is normal, not an error.
	QuerySimilar(ctx context.Context, orgID core.ID, typeFilter core.EntityType, vector []float32, k int) ([]core.RetrievalCandidate, error)

	// ScanEmbeddings returns up to limit records for an org in key order,
	// starting strictly after the given key (zero key starts from the
	// beginning). Used by maintenance passes such as reindexing.
	ScanEmbeddings(ctx context.Context, orgID core.ID, after core.EntityKey, limit int) ([]*core.EmbeddingRecord, error)

	// CountEmbeddings returns the number of stored records for an org.
	CountEmbeddings(ctx context.Context, orgID core.ID) (int, error)

	// Close closes the repository and releases resources.
	Close() error
}

// CheckpointRepository persists resumable progress for maintenance tasks.
type CheckpointRepository interface {
	// SaveCheckpoint persists a checkpoint for a task.
	SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error

	// LoadCheckpoint retrieves the checkpoint for a task.
	// Returns nil, nil if no checkpoint exists.
	LoadCheckpoint(ctx context.Context, task string) (*core.Checkpoint, error)

	// DeleteCheckpoint removes the checkpoint for a task, if any.
	DeleteCheckpoint(ctx context.Context, task string) error
}
