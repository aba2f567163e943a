// Copyright 2026 Zein Alasali
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package syncer

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/zeinalasali/buildquery/ai"
	"github.com/zeinalasali/buildquery/core"
	"github.com/zeinalasali/buildquery/storage"
)

// maxUpsertAttempts bounds the compare-and-swap loop when concurrent refreshes
// race on the same key. The loser re-reads and retries; beyond this many
// conflicts the record is marked stale for the next maintenance pass.
const maxUpsertAttempts = 4

// Synchronizer applies entity lifecycle events to the snapshot mirror and the
// vector store. Snapshot writes happen synchronously on the caller's
// goroutine; embedding refreshes run asynchronously on a worker pool so the
// business write path never blocks on, or fails because of, a provider call.
type Synchronizer struct {
	entities storage.EntityRepository
	vectors  storage.VectorRepository
	embedder ai.Embedder
	pool     *ants.Pool
	wg       sync.WaitGroup
	logger   *slog.Logger
}

// Option configures a Synchronizer.
type Option func(*Synchronizer) error

// WithPoolSize sets the worker pool size for embedding refreshes.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(s *Synchronizer) error {
		if size < 1 {
			size = 1
		}
		if s.pool != nil {
			s.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		s.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Synchronizer) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewSynchronizer creates a new Synchronizer.
func NewSynchronizer(
	entities storage.EntityRepository,
	vectors storage.VectorRepository,
	embedder ai.Embedder,
	opts ...Option,
) (*Synchronizer, error) {
	if entities == nil {
		return nil, ErrEntityRepositoryRequired
	}
	if vectors == nil {
		return nil, ErrVectorRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	s := &Synchronizer{
		entities: entities,
		vectors:  vectors,
		embedder: embedder,
		pool:     pool,
		logger:   slog.Default().With("component", "syncer"),
	}

	for _, opt := range opts {
		if optErr := opt(s); optErr != nil {
			s.Release()
			return nil, optErr
		}
	}

	return s, nil
}

// Apply processes one EntityChanged event. The snapshot mirror is updated
// before Apply returns; the embedding refresh is scheduled on the worker pool.
// An embedding failure never propagates back to the caller: the record is
// marked stale instead and excluded from retrieval until refreshed.
//
// Events for the same key must be delivered in order by the caller; the
// version compare-and-swap on the vector store resolves any races that remain.
func (s *Synchronizer) Apply(ctx context.Context, event core.EntityChanged) error {
	if err := core.ValidateEvent(event); err != nil {
		return err
	}

	switch event.Op {
	case core.OpDelete:
		return s.applyDelete(ctx, event.Key)
	default:
		return s.applyUpsert(ctx, event.Snapshot)
	}
}

// applyDelete removes the snapshot mirror and tombstones the embedding.
// Both halves are idempotent so a re-delivered delete is harmless.
func (s *Synchronizer) applyDelete(ctx context.Context, key core.EntityKey) error {
	if err := s.entities.DeleteSnapshot(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	return s.vectors.DeleteEmbedding(ctx, key)
}

// applyUpsert mirrors the snapshot synchronously and schedules the embedding
// refresh asynchronously.
func (s *Synchronizer) applyUpsert(ctx context.Context, snapshot *core.EntitySnapshot) error {
	if err := s.entities.PutSnapshots(ctx, snapshot); err != nil {
		return err
	}

	// The worker is handed only the key: it re-reads the mirror itself, so
	// a refresh scheduled for this event converges on whatever content is
	// newest by the time it runs.
	key := snapshot.Key
	s.wg.Add(1)
	err := s.pool.Submit(func() {
		defer s.wg.Done()
		s.refreshEmbedding(context.Background(), key)
	})
	if err != nil {
		s.wg.Done()
		return err
	}
	return nil
}

// refreshEmbedding brings the stored embedding in line with the entity's
// current canonical text. Runs on the worker pool.
//
// Every attempt re-reads the snapshot mirror instead of trusting the event
// that scheduled it: mirror writes are synchronous and in order, so a worker
// scheduled for an older event converges on the newest content rather than
// overwriting it, and a worker racing a delete tombstones instead of
// resurrecting the embedding.
func (s *Synchronizer) refreshEmbedding(ctx context.Context, key core.EntityKey) {
	for attempt := 1; attempt <= maxUpsertAttempts; attempt++ {
		snapshot, err := s.entities.GetSnapshot(ctx, key)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				s.tombstone(ctx, key)
				return
			}
			s.logger.Error("error reading snapshot mirror", "key", key, "err", err)
			return
		}
		text := core.CanonicalText(snapshot)
		hash := core.IDFromContent(text)

		current, expected, err := s.currentVersion(ctx, key)
		if err != nil {
			s.logger.Error("error reading embedding record", "key", key, "err", err)
			return
		}

		// Unchanged content with a fresh vector needs no provider call.
		if current != nil && current.ContentHash == hash && current.State == core.EmbeddingFresh {
			return
		}

		vec, err := s.embedder.EmbedText(ctx, text)
		if err != nil {
			s.logger.Warn("embedding failed, marking record stale", "key", key, "err", err)
			s.markStale(ctx, key, hash, current, expected)
			return
		}

		// The provider call can outlive several newer events for this key.
		// Re-check the mirror before writing: publishing anything but its
		// current content as fresh would serve an outdated vector.
		latest, err := s.entities.GetSnapshot(ctx, key)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				s.tombstone(ctx, key)
				return
			}
			s.logger.Error("error reading snapshot mirror", "key", key, "err", err)
			return
		}
		if core.ContentHash(latest) != hash {
			continue
		}

		rec := &core.EmbeddingRecord{
			Key:         key,
			ContentHash: hash,
			Vector:      ai.NormalizeVector(vec),
			Version:     expected + 1,
			State:       core.EmbeddingFresh,
		}
		err = s.vectors.UpsertEmbedding(ctx, rec, expected)
		if err != nil {
			if !errors.Is(err, storage.ErrVersionConflict) {
				s.logger.Error("error storing embedding record", "key", key, "err", err)
				return
			}
			// Lost the race; re-read and try again against the new version.
			s.logger.Debug("embedding upsert conflict, retrying", "key", key, "attempt", attempt)
			continue
		}

		// A delete or newer write can slip in between the re-check and the
		// upsert. Look once more: clear the record if the entity vanished,
		// go around again if newer content landed.
		latest, err = s.entities.GetSnapshot(ctx, key)
		if errors.Is(err, storage.ErrNotFound) {
			s.tombstone(ctx, key)
			return
		}
		if err != nil || core.ContentHash(latest) == hash {
			return
		}
	}

	s.logger.Warn("embedding upsert attempts exhausted, marking record stale", "key", key)
	if err := s.vectors.MarkStale(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.logger.Error("error marking embedding stale", "key", key, "err", err)
	}
}

// tombstone removes any embedding left behind for a deleted entity.
// Idempotent, so racing the delete path itself is harmless.
func (s *Synchronizer) tombstone(ctx context.Context, key core.EntityKey) {
	if err := s.vectors.DeleteEmbedding(ctx, key); err != nil {
		s.logger.Error("error removing embedding for deleted entity", "key", key, "err", err)
	}
}

// currentVersion reads the stored record for a key.
// Returns the record (nil when absent) and the version to CAS against.
func (s *Synchronizer) currentVersion(ctx context.Context, key core.EntityKey) (*core.EmbeddingRecord, uint64, error) {
	current, err := s.vectors.GetEmbedding(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, 0, nil
		}
		return nil, 0, err
	}
	return current, current.Version, nil
}

// markStale records that the entity's embedding no longer matches its content.
// When a record exists it is flagged in place; when none exists yet a
// vectorless stale placeholder is written so the reindexer can find it.
func (s *Synchronizer) markStale(ctx context.Context, key core.EntityKey, hash core.ID, current *core.EmbeddingRecord, expected uint64) {
	var err error
	if current != nil {
		err = s.vectors.MarkStale(ctx, key)
	} else {
		err = s.vectors.UpsertEmbedding(ctx, &core.EmbeddingRecord{
			Key:         key,
			ContentHash: hash,
			Version:     expected + 1,
			State:       core.EmbeddingStale,
		}, expected)
	}
	if err != nil && !errors.Is(err, storage.ErrVersionConflict) {
		s.logger.Error("error marking embedding stale", "key", key, "err", err)
	}
}

// Wait blocks until all scheduled embedding refreshes have completed.
// Intended for tests and for graceful shutdown.
func (s *Synchronizer) Wait() {
	s.wg.Wait()
}

// Release releases the worker pool.
// The synchronizer must not be used after calling Release.
func (s *Synchronizer) Release() {
	if s.pool != nil {
		s.pool.Release()
	}
}
