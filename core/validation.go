package core

import "fmt"

// ValidateKey validates an EntityKey according to domain rules.
//
// Validation rules:
//   - OrgID must be set (tenant scoping is mandatory everywhere)
//   - Type must be a known EntityType
//   - EntityID must be set
func ValidateKey(key EntityKey) error {
	if key.OrgID == 0 {
		return ErrMissingOrg
	}
	if err := ValidateEntityType(key.Type); err != nil {
		return err
	}
	if key.EntityID == 0 {
		return ErrMissingEntityID
	}
	return nil
}

// ValidateSnapshot validates an EntitySnapshot according to domain rules.
//
// Field contents are NOT validated beyond the key: every descriptive field is
// optional by design, and the canonicalizer renders missing fields as empty.
func ValidateSnapshot(snapshot *EntitySnapshot) error {
	if snapshot == nil {
		return fmt.Errorf("%w: snapshot is nil", ErrInvalidSnapshot)
	}
	if err := ValidateKey(snapshot.Key); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}
	return nil
}

// ValidateEvent validates an EntityChanged event according to domain rules.
//
// Validation rules:
//   - Key must be valid
//   - Op must be a known ChangeOp
//   - Create and Update must carry a snapshot whose key matches the event key
//   - Delete must not carry a snapshot
func ValidateEvent(event EntityChanged) error {
	if err := ValidateKey(event.Key); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}

	switch event.Op {
	case OpCreate, OpUpdate:
		if event.Snapshot == nil {
			return fmt.Errorf("%w: %w", ErrInvalidEvent, ErrMissingSnapshot)
		}
		if event.Snapshot.Key != event.Key {
			return fmt.Errorf("%w: snapshot key %s does not match event key %s",
				ErrInvalidEvent, event.Snapshot.Key, event.Key)
		}
	case OpDelete:
		if event.Snapshot != nil {
			return fmt.Errorf("%w: delete event must not carry a snapshot", ErrInvalidEvent)
		}
	default:
		return fmt.Errorf("%w: %w: value %d", ErrInvalidEvent, ErrInvalidChangeOp, event.Op)
	}

	return nil
}

// ValidateEntityType validates that an EntityType has a known value.
func ValidateEntityType(t EntityType) error {
	switch t {
	case EntityTypeProject, EntityTypeCostItem, EntityTypeExpense:
		return nil
	default:
		return fmt.Errorf("%w: value %d", ErrInvalidEntityType, t)
	}
}
