package badger

import (
	"encoding/binary"
	"fmt"

	"github.com/zeinalasali/buildquery/core"
)

// Key prefixes for different data types
const (
	embeddingPrefix  = "embrec"
	entityPrefix     = "entrec"
	checkpointPrefix = "chkpt"
)

// Composite keys encode org, entity type, and entity id as fixed-width
// BigEndian fields so that lexicographic iteration doubles as a hard tenant
// filter: an org-scoped prefix scan can never touch another org's records.

// makeEmbeddingKey generates a key for an embedding record.
// Format: prefix:org:type:id
func makeEmbeddingKey(key core.EntityKey) []byte {
	return makeCompositeKey(embeddingPrefix, key)
}

// makeEmbeddingOrgPrefix generates the scan prefix covering one org's embeddings.
func makeEmbeddingOrgPrefix(orgID core.ID) []byte {
	return makeOrgPrefix(embeddingPrefix, orgID)
}

// makeEmbeddingOrgTypePrefix generates the scan prefix covering one org's
// embeddings of a single entity type.
func makeEmbeddingOrgTypePrefix(orgID core.ID, entityType core.EntityType) []byte {
	return makeOrgTypePrefix(embeddingPrefix, orgID, entityType)
}

// makeEntityKey generates a key for an entity snapshot.
// Format: prefix:org:type:id
func makeEntityKey(key core.EntityKey) []byte {
	return makeCompositeKey(entityPrefix, key)
}

// makeCheckpointKey generates a key for a maintenance task checkpoint.
func makeCheckpointKey(task string) []byte {
	return []byte(fmt.Sprintf("%s:%s", checkpointPrefix, task))
}

func makeCompositeKey(prefix string, key core.EntityKey) []byte {
	prefixBytes := []byte(prefix + ":")
	buf := make([]byte, len(prefixBytes)+24)
	offset := copy(buf, prefixBytes)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(key.OrgID))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(key.Type))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(key.EntityID))
	return buf
}

func makeOrgPrefix(prefix string, orgID core.ID) []byte {
	prefixBytes := []byte(prefix + ":")
	buf := make([]byte, len(prefixBytes)+8)
	offset := copy(buf, prefixBytes)
	binary.BigEndian.PutUint64(buf[offset:], uint64(orgID))
	return buf
}

func makeOrgTypePrefix(prefix string, orgID core.ID, entityType core.EntityType) []byte {
	prefixBytes := []byte(prefix + ":")
	buf := make([]byte, len(prefixBytes)+16)
	offset := copy(buf, prefixBytes)
	binary.BigEndian.PutUint64(buf[offset:], uint64(orgID))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(entityType))
	return buf
}
