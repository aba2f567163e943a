package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validKey() EntityKey {
	return EntityKey{OrgID: 1, Type: EntityTypeProject, EntityID: 10}
}

func TestValidateKey(t *testing.T) {
	assert.NoError(t, ValidateKey(validKey()))

	assert.ErrorIs(t, ValidateKey(EntityKey{Type: EntityTypeProject, EntityID: 10}), ErrMissingOrg)
	assert.ErrorIs(t, ValidateKey(EntityKey{OrgID: 1, EntityID: 10}), ErrInvalidEntityType)
	assert.ErrorIs(t, ValidateKey(EntityKey{OrgID: 1, Type: EntityTypeProject}), ErrMissingEntityID)
}

func TestValidateSnapshot(t *testing.T) {
	assert.NoError(t, ValidateSnapshot(&EntitySnapshot{Key: validKey()}))
	assert.ErrorIs(t, ValidateSnapshot(nil), ErrInvalidSnapshot)
	assert.ErrorIs(t, ValidateSnapshot(&EntitySnapshot{}), ErrInvalidSnapshot)
}

func TestValidateEvent(t *testing.T) {
	key := validKey()

	assert.NoError(t, ValidateEvent(EntityChanged{
		Key: key, Op: OpCreate, Snapshot: &EntitySnapshot{Key: key},
	}))
	assert.NoError(t, ValidateEvent(EntityChanged{Key: key, Op: OpDelete}))

	// Create and update require a snapshot with a matching key.
	assert.ErrorIs(t, ValidateEvent(EntityChanged{Key: key, Op: OpUpdate}), ErrMissingSnapshot)
	mismatched := EntityChanged{
		Key: key, Op: OpCreate,
		Snapshot: &EntitySnapshot{Key: EntityKey{OrgID: 1, Type: EntityTypeProject, EntityID: 11}},
	}
	assert.ErrorIs(t, ValidateEvent(mismatched), ErrInvalidEvent)

	// Delete must not carry a snapshot.
	assert.ErrorIs(t, ValidateEvent(EntityChanged{
		Key: key, Op: OpDelete, Snapshot: &EntitySnapshot{Key: key},
	}), ErrInvalidEvent)

	assert.ErrorIs(t, ValidateEvent(EntityChanged{Key: key, Op: ChangeOp(42)}), ErrInvalidChangeOp)
}

func TestValidateEntityType(t *testing.T) {
	assert.NoError(t, ValidateEntityType(EntityTypeProject))
	assert.NoError(t, ValidateEntityType(EntityTypeExpense))
	assert.ErrorIs(t, ValidateEntityType(EntityType(0)), ErrInvalidEntityType)
	assert.ErrorIs(t, ValidateEntityType(EntityType(9)), ErrInvalidEntityType)
}
