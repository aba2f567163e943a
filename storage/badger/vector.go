package badger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/zeinalasali/buildquery/core"
	"github.com/zeinalasali/buildquery/storage"
)

// VectorRepository implements storage.VectorRepository for BadgerDB.
//
// Similarity search is a brute-force scan over the org's key range, scoring
// each stored vector by dot product (vectors are normalized on write, so dot
// product equals cosine similarity). Tenancy is enforced by the scan prefix
// itself, not by filtering results.
type VectorRepository struct {
	backend *Backend
}

var _ storage.VectorRepository = (*VectorRepository)(nil)

// NewVectorRepository creates a new VectorRepository.
func NewVectorRepository(backend *Backend) (*VectorRepository, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend required")
	}
	return &VectorRepository{backend: backend}, nil
}

// Close releases repository resources.
func (r *VectorRepository) Close() error {
	return nil
}

// UpsertEmbedding stores a record using version compare-and-swap.
func (r *VectorRepository) UpsertEmbedding(ctx context.Context, rec *core.EmbeddingRecord, expectedVersion uint64) error {
	if rec == nil {
		return fmt.Errorf("%w: nil record", storage.ErrInvalidQuery)
	}
	if err := core.ValidateKey(rec.Key); err != nil {
		return fmt.Errorf("%w: %w", storage.ErrInvalidQuery, err)
	}
	if rec.Version != expectedVersion+1 {
		return fmt.Errorf("%w: version %d does not follow expected %d",
			storage.ErrInvalidQuery, rec.Version, expectedVersion)
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeEmbeddingKey(rec.Key)

		current, err := r.readEmbedding(tx, key)
		if err != nil {
			return err
		}

		var currentVersion uint64
		if current != nil {
			currentVersion = current.Version
		}
		if currentVersion != expectedVersion {
			return fmt.Errorf("%w: stored version %d, expected %d",
				storage.ErrVersionConflict, currentVersion, expectedVersion)
		}

		rec.UpdatedAt = time.Now().UTC()
		if err := tx.Set(key, storage.MarshalEmbeddingRecord(rec)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// DeleteEmbedding tombstones the record for a key. Idempotent.
func (r *VectorRepository) DeleteEmbedding(ctx context.Context, key core.EntityKey) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Delete(makeEmbeddingKey(key)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetEmbedding retrieves the record for a key.
func (r *VectorRepository) GetEmbedding(ctx context.Context, key core.EntityKey) (*core.EmbeddingRecord, error) {
	var rec *core.EmbeddingRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		rec, err = r.readEmbedding(tx, makeEmbeddingKey(key))
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, storage.ErrNotFound
	}
	return rec, nil
}

// MarkStale flags the record for a key as stale, keeping vector and version.
func (r *VectorRepository) MarkStale(ctx context.Context, key core.EntityKey) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		bkey := makeEmbeddingKey(key)
		rec, err := r.readEmbedding(tx, bkey)
		if err != nil {
			return err
		}
		if rec == nil {
			return storage.ErrNotFound
		}
		if rec.State == core.EmbeddingStale {
			return nil
		}
		rec.State = core.EmbeddingStale
		rec.UpdatedAt = time.Now().UTC()
		if err := tx.Set(bkey, storage.MarshalEmbeddingRecord(rec)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// QuerySimilar returns the top k fresh candidates for an org under cosine similarity.
func (r *VectorRepository) QuerySimilar(ctx context.Context, orgID core.ID, typeFilter core.EntityType, vector []float32, k int) ([]core.RetrievalCandidate, error) {
	if orgID == 0 {
		return nil, fmt.Errorf("%w: %w", storage.ErrInvalidQuery, core.ErrMissingOrg)
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive", storage.ErrInvalidQuery)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", storage.ErrInvalidQuery)
	}

	prefix := makeEmbeddingOrgPrefix(orgID)
	if typeFilter != 0 {
		if err := core.ValidateEntityType(typeFilter); err != nil {
			return nil, fmt.Errorf("%w: %w", storage.ErrInvalidQuery, err)
		}
		prefix = makeEmbeddingOrgTypePrefix(orgID, typeFilter)
	}

	var candidates []core.RetrievalCandidate
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var rec *core.EmbeddingRecord
			err := iter.Item().Value(func(val []byte) error {
				var err error
				rec, err = storage.UnmarshalEmbeddingRecord(val)
				return err
			})
			if err != nil {
				return err
			}

			// Stale records are never served as current context.
			if rec == nil || rec.State != core.EmbeddingFresh || len(rec.Vector) == 0 {
				continue
			}

			candidates = append(candidates, core.RetrievalCandidate{
				Key:   rec.Key,
				Score: dotProduct(vector, rec.Vector),
			})
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	// Sort by similarity descending, ties by entity id ascending for determinism.
	slices.SortFunc(candidates, func(a, b core.RetrievalCandidate) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		if a.Key.EntityID < b.Key.EntityID {
			return -1
		}
		if a.Key.EntityID > b.Key.EntityID {
			return 1
		}
		return 0
	})

	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates, nil
}

// ScanEmbeddings returns up to limit records for an org in key order,
// starting strictly after the given key.
func (r *VectorRepository) ScanEmbeddings(ctx context.Context, orgID core.ID, after core.EntityKey, limit int) ([]*core.EmbeddingRecord, error) {
	if orgID == 0 {
		return nil, fmt.Errorf("%w: %w", storage.ErrInvalidQuery, core.ErrMissingOrg)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", storage.ErrInvalidQuery)
	}

	prefix := makeEmbeddingOrgPrefix(orgID)
	var records []*core.EmbeddingRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		start := prefix
		skipFirst := false
		if after != (core.EntityKey{}) {
			start = makeEmbeddingKey(after)
			skipFirst = true
		}

		for iter.Seek(start); iter.Valid(); iter.Next() {
			if skipFirst {
				skipFirst = false
				if slices.Equal(iter.Item().Key(), start) {
					continue
				}
			}
			var rec *core.EmbeddingRecord
			err := iter.Item().Value(func(val []byte) error {
				var err error
				rec, err = storage.UnmarshalEmbeddingRecord(val)
				return err
			})
			if err != nil {
				return err
			}
			records = append(records, rec)
			if len(records) == limit {
				return nil
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// CountEmbeddings returns the number of stored records for an org.
func (r *VectorRepository) CountEmbeddings(ctx context.Context, orgID core.ID) (int, error) {
	if orgID == 0 {
		return 0, fmt.Errorf("%w: %w", storage.ErrInvalidQuery, core.ErrMissingOrg)
	}

	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeEmbeddingOrgPrefix(orgID)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// readEmbedding reads and unmarshals a record inside a transaction.
// Returns nil, nil when the key does not exist.
func (r *VectorRepository) readEmbedding(tx *badger.Txn, key []byte) (*core.EmbeddingRecord, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var rec *core.EmbeddingRecord
	err = item.Value(func(val []byte) error {
		var err error
		rec, err = storage.UnmarshalEmbeddingRecord(val)
		return err
	})
	return rec, err
}

// dotProduct calculates the dot product of two vectors.
func dotProduct(a, b []float32) float32 {
	var sum float32
	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}
	for i := 0; i < minLen; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
