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

package reindex

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/zeinalasali/buildquery/ai"
	"github.com/zeinalasali/buildquery/core"
	"github.com/zeinalasali/buildquery/storage"
)

// Config holds configuration for a reindexing run.
type Config struct {
	// BatchSize is the number of embedding records scanned per batch
	BatchSize int

	// ReportInterval is how often to report progress (number of records)
	ReportInterval int

	// MaxRetries is the maximum number of attempts per embedding batch
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Reindexer re-embeds every entity an organization has on record.
// Records whose snapshot vanished are tombstoned; records whose embedding
// cannot be regenerated are marked stale rather than failing the run.
type Reindexer struct {
	entities    storage.EntityRepository
	vectors     storage.VectorRepository
	checkpoints storage.CheckpointRepository
	embedder    ai.Embedder
	config      *Config
	progress    io.Writer
	logger      *slog.Logger
}

// NewReindexer creates a new reindexer.
// progress: where to write progress output (typically os.Stderr)
func NewReindexer(
	entities storage.EntityRepository,
	vectors storage.VectorRepository,
	checkpoints storage.CheckpointRepository,
	embedder ai.Embedder,
	config *Config,
	progress io.Writer,
) (*Reindexer, error) {
	if entities == nil {
		return nil, ErrEntityRepositoryRequired
	}
	if vectors == nil {
		return nil, ErrVectorRepositoryRequired
	}
	if checkpoints == nil {
		return nil, ErrCheckpointRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Reindexer{
		entities:    entities,
		vectors:     vectors,
		checkpoints: checkpoints,
		embedder:    embedder,
		config:      config,
		progress:    progress,
		logger:      slog.Default().With("component", "reindexer"),
	}, nil
}

// taskName derives the checkpoint task id for an org's reindex run.
func taskName(orgID core.ID) string {
	return fmt.Sprintf("reindex:%d", orgID)
}

// Run reindexes all of orgID's embedding records. If a previous run was
// interrupted its checkpoint is picked up and scanning resumes after the last
// completed key. The checkpoint is cleared on successful completion.
func (r *Reindexer) Run(ctx context.Context, orgID core.ID) error {
	if orgID == 0 {
		return core.ErrMissingOrg
	}

	total, err := r.vectors.CountEmbeddings(ctx, orgID)
	if err != nil {
		return fmt.Errorf("failed to count embedding records: %w", err)
	}
	if total == 0 {
		fmt.Fprintf(r.progress, "No embedding records found for org %d\n", orgID)
		return nil
	}

	task := taskName(orgID)
	var after core.EntityKey
	processed := 0
	if checkpoint, err := r.checkpoints.LoadCheckpoint(ctx, task); err != nil {
		return fmt.Errorf("failed to load checkpoint: %w", err)
	} else if checkpoint != nil {
		after = checkpoint.LastKey
		processed = checkpoint.Processed
		r.logger.Info("resuming reindex from checkpoint",
			"org", orgID, "processed", processed, "lastKey", after)
	}

	fmt.Fprintf(r.progress, "Reindexing %d records for org %d (batch size: %d)\n",
		total, orgID, r.config.BatchSize)
	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	if processed > 0 {
		tracker.Increment(processed)
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		records, err := r.vectors.ScanEmbeddings(ctx, orgID, after, r.config.BatchSize)
		if err != nil {
			return fmt.Errorf("failed to scan embedding records: %w", err)
		}
		if len(records) == 0 {
			break
		}

		if err := r.processBatch(ctx, orgID, records); err != nil {
			return err
		}

		after = records[len(records)-1].Key
		processed += len(records)
		tracker.Increment(len(records))

		err = r.checkpoints.SaveCheckpoint(ctx, &core.Checkpoint{
			Task:      task,
			LastKey:   after,
			Processed: processed,
		})
		if err != nil {
			return fmt.Errorf("failed to save checkpoint: %w", err)
		}
	}

	if err := r.checkpoints.DeleteCheckpoint(ctx, task); err != nil {
		return fmt.Errorf("failed to clear checkpoint: %w", err)
	}

	tracker.Finish()
	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reindex complete. Processed %d records in %v\n",
		processed, elapsed.Round(time.Second))
	return nil
}

// processBatch re-embeds one batch of records. Vanished entities are
// tombstoned; an exhausted embedding retry budget marks the whole batch stale
// and moves on.
func (r *Reindexer) processBatch(ctx context.Context, orgID core.ID, records []*core.EmbeddingRecord) error {
	live := make([]*core.EmbeddingRecord, 0, len(records))
	texts := make([]string, 0, len(records))
	hashes := make([]core.ID, 0, len(records))

	for _, rec := range records {
		snapshot, err := r.entities.GetSnapshot(ctx, rec.Key)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				r.logger.Debug("source entity vanished, tombstoning embedding", "key", rec.Key)
				if err := r.vectors.DeleteEmbedding(ctx, rec.Key); err != nil {
					return fmt.Errorf("failed to tombstone embedding: %w", err)
				}
				continue
			}
			return fmt.Errorf("failed to read snapshot: %w", err)
		}

		text := core.CanonicalText(snapshot)
		live = append(live, rec)
		texts = append(texts, text)
		hashes = append(hashes, core.IDFromContent(text))
	}

	if len(live) == 0 {
		return nil
	}

	var embeddings [][]float32
	err := retryWithBackoff(ctx, func() error {
		var err error
		embeddings, err = r.embedder.EmbedTexts(ctx, texts)
		return err
	}, r.config.MaxRetries, r.config.RetryDelay)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.logger.Warn("embedding batch failed, marking records stale",
			"org", orgID, "records", len(live), "err", err)
		for _, rec := range live {
			if err := r.vectors.MarkStale(ctx, rec.Key); err != nil && !errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("failed to mark record stale: %w", err)
			}
		}
		return nil
	}
	if len(embeddings) != len(live) {
		return fmt.Errorf("embedding count mismatch: expected %d, got %d", len(live), len(embeddings))
	}

	for i, rec := range live {
		updated := &core.EmbeddingRecord{
			Key:         rec.Key,
			ContentHash: hashes[i],
			Vector:      ai.NormalizeVector(embeddings[i]),
			Version:     rec.Version + 1,
			State:       core.EmbeddingFresh,
		}
		err := r.vectors.UpsertEmbedding(ctx, updated, rec.Version)
		if err != nil {
			// A concurrent refresh already advanced this record; its
			// vector is newer than ours, so keep it.
			if errors.Is(err, storage.ErrVersionConflict) {
				r.logger.Debug("skipping record updated concurrently", "key", rec.Key)
				continue
			}
			return fmt.Errorf("failed to store embedding record: %w", err)
		}
	}

	return nil
}
