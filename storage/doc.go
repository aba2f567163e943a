// Package storage defines repository interfaces for the entity snapshot
// mirror, the vector index, and maintenance checkpoints, plus the binary
// serialization helpers shared by implementations. The badger subpackage
// provides the BadgerDB-backed implementation.
package storage
