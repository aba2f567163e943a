// Package syncer keeps the vector store aligned with entity lifecycle events.
//
// The Synchronizer mirrors entity snapshots into local storage synchronously
// and refreshes embeddings asynchronously on a worker pool, so the business
// write path never waits on (or fails because of) an embedding provider.
package syncer
