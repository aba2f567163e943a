package core

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// Org and entity ids are assigned by the business subsystem; content hashes
// are derived locally with IDFromContent.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// EntityType identifies the kind of business record an entity key refers to.
type EntityType int

const (
	// EntityTypeProject represents a construction project.
	EntityTypeProject EntityType = iota + 1
	// EntityTypeCostItem represents a budgeted line item within a project.
	EntityTypeCostItem
	// EntityTypeExpense represents an actual recorded cost.
	EntityTypeExpense
)

func (t EntityType) String() string {
	switch t {
	case EntityTypeProject:
		return "project"
	case EntityTypeCostItem:
		return "cost item"
	case EntityTypeExpense:
		return "expense"
	default:
		return fmt.Sprintf("entity_type(%d)", int(t))
	}
}

// ChangeOp identifies the lifecycle operation carried by an EntityChanged event.
type ChangeOp int

const (
	// OpCreate indicates the entity was created.
	OpCreate ChangeOp = iota + 1
	// OpUpdate indicates the entity was modified.
	OpUpdate
	// OpDelete indicates the entity was removed.
	OpDelete
)

// EntityKey uniquely identifies a business record across all organizations.
// Tenant scoping is carried in OrgID; it participates in every storage key.
type EntityKey struct {
	OrgID    ID
	Type     EntityType
	EntityID ID
}

func (k EntityKey) String() string {
	return fmt.Sprintf("%d/%d/%d", k.OrgID, k.Type, k.EntityID)
}

// EntitySnapshot is a point-in-time copy of a business record, as carried by
// EntityChanged events and mirrored into local storage for context hydration.
// Every field is optional; zero values canonicalize to empty (see CanonicalText),
// which keeps the canonical form stable regardless of which fields are set.
type EntitySnapshot struct {
	Key         EntityKey
	Name        string
	Description string
	Status      string
	ProjectName string
	Category    string
	Amount      float64
	Currency    string
	Quantity    float64
	Unit        string
	Notes       string
}

// EmbeddingState tracks whether a stored embedding reflects the current
// canonical text of its source entity.
type EmbeddingState int

const (
	// EmbeddingFresh means the vector was produced from the entity's current canonical text.
	EmbeddingFresh EmbeddingState = iota + 1
	// EmbeddingStale means a refresh failed after exhausting its retry budget;
	// the record is excluded from retrieval until refreshed.
	EmbeddingStale
)

// EmbeddingRecord is the persisted (vector, metadata) pair for one entity.
// Unique per EntityKey; Version strictly increases on every re-embedding and
// is enforced by compare-and-swap on upsert.
type EmbeddingRecord struct {
	Key         EntityKey
	ContentHash ID
	Vector      []float32
	Version     uint64
	State       EmbeddingState
	UpdatedAt   time.Time
}

// EntityChanged is the lifecycle event emitted by the business subsystem.
// Snapshot is present for create and update, nil for delete.
type EntityChanged struct {
	Key      EntityKey
	Op       ChangeOp
	Snapshot *EntitySnapshot
}

// RetrievalCandidate is one ranked hit from a similarity query.
// Score is cosine similarity in [-1, 1]. Ephemeral, never persisted.
type RetrievalCandidate struct {
	Key   EntityKey
	Score float32
}

// ContextEntry is one hydrated entity inside a context bundle. The snapshot is
// retained so downstream steps can aggregate over the hydrated record without
// re-reading storage.
type ContextEntry struct {
	Key      EntityKey
	Summary  string
	Score    float32
	Tokens   int
	Snapshot *EntitySnapshot
}

// ContextBundle is the ordered, budgeted context supplied to answer generation.
// Entries are ordered by retrieval score descending.
type ContextBundle struct {
	Entries     []ContextEntry
	TotalTokens int
}

// EntityIDs returns the entity ids of all bundled entries, in bundle order.
// These are the only ids eligible to appear as citations.
func (b *ContextBundle) EntityIDs() []ID {
	ids := make([]ID, len(b.Entries))
	for i, e := range b.Entries {
		ids[i] = e.Key.EntityID
	}
	return ids
}

// AnswerResult is the response returned to the caller of the orchestrator.
// Citations are a strict subset of the entity ids supplied as context.
// Degraded is set whenever any partial failure shaped the answer.
type AnswerResult struct {
	Text      string
	Citations []ID
	Degraded  bool
}

// Checkpoint records resumable progress for a long-running maintenance task
// such as a reindex pass.
type Checkpoint struct {
	Task      string
	LastKey   EntityKey
	Processed int
	UpdatedAt time.Time
}
