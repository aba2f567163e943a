package retrieve

import "github.com/zeinalasali/buildquery/core"

// Monitor provides hooks to observe the retrieval process.
// Implement this interface to track intermediate steps during retrieval,
// e.g. for CLI diagnostics or relevance debugging.
type Monitor interface {
	Start(orgID core.ID, query string)
	AfterQueryEmbedding(dimensions int)
	AfterSimilaritySearch(candidates []core.RetrievalCandidate)
	Finish(candidates []core.RetrievalCandidate)
}

// noopMonitor is a no-op implementation of Monitor.
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ core.ID, _ string)                          {}
func (n *noopMonitor) AfterQueryEmbedding(_ int)                          {}
func (n *noopMonitor) AfterSimilaritySearch(_ []core.RetrievalCandidate)  {}
func (n *noopMonitor) Finish(_ []core.RetrievalCandidate)                 {}
