// Package retrieve turns natural-language questions into ranked,
// tenant-scoped candidate sets via embedding similarity search.
package retrieve
