// Package core defines the domain model shared by every component: entity
// keys and snapshots, embedding records, retrieval candidates, context
// bundles, and the canonical-text rules that tie them together.
package core
