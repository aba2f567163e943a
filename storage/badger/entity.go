package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/zeinalasali/buildquery/core"
	"github.com/zeinalasali/buildquery/storage"
)

// EntityRepository implements storage.EntityRepository for BadgerDB.
type EntityRepository struct {
	backend *Backend
}

var _ storage.EntityRepository = (*EntityRepository)(nil)

// NewEntityRepository creates a new EntityRepository.
func NewEntityRepository(backend *Backend) (*EntityRepository, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend required")
	}
	return &EntityRepository{backend: backend}, nil
}

// Close releases repository resources.
func (r *EntityRepository) Close() error {
	return nil
}

// PutSnapshots stores or replaces one or more entity snapshots.
func (r *EntityRepository) PutSnapshots(ctx context.Context, snapshots ...*core.EntitySnapshot) error {
	for _, snapshot := range snapshots {
		if err := core.ValidateSnapshot(snapshot); err != nil {
			return err
		}
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, snapshot := range snapshots {
			key := makeEntityKey(snapshot.Key)
			if err := tx.Set(key, storage.MarshalSnapshot(snapshot)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// DeleteSnapshot removes a snapshot by key.
func (r *EntityRepository) DeleteSnapshot(ctx context.Context, key core.EntityKey) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		bkey := makeEntityKey(key)
		if _, err := tx.Get(bkey); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		if err := tx.Delete(bkey); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetSnapshot retrieves a single snapshot by key.
func (r *EntityRepository) GetSnapshot(ctx context.Context, key core.EntityKey) (*core.EntitySnapshot, error) {
	var snapshot *core.EntitySnapshot
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeEntityKey(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var err error
			snapshot, err = storage.UnmarshalSnapshot(val)
			return err
		})
	}, false)
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

// GetSnapshots retrieves multiple snapshots in one batched read.
// Keys outside orgID are rejected; missing keys are skipped silently.
func (r *EntityRepository) GetSnapshots(ctx context.Context, orgID core.ID, keys []core.EntityKey) ([]*core.EntitySnapshot, error) {
	if orgID == 0 {
		return nil, fmt.Errorf("%w: %w", storage.ErrInvalidQuery, core.ErrMissingOrg)
	}
	for _, key := range keys {
		if key.OrgID != orgID {
			return nil, fmt.Errorf("%w: key %s outside org %d", storage.ErrInvalidQuery, key, orgID)
		}
	}

	snapshots := make([]*core.EntitySnapshot, 0, len(keys))
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, key := range keys {
			item, err := tx.Get(makeEntityKey(key))
			if err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					continue
				}
				return err
			}
			var snapshot *core.EntitySnapshot
			err = item.Value(func(val []byte) error {
				var err error
				snapshot, err = storage.UnmarshalSnapshot(val)
				return err
			})
			if err != nil {
				return err
			}
			snapshots = append(snapshots, snapshot)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return snapshots, nil
}
