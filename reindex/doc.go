// Package reindex rebuilds an organization's embeddings from its mirrored
// snapshots, repairing stale records and tombstoning records whose source
// entity vanished. Progress is checkpointed so an interrupted run resumes
// where it stopped.
package reindex
