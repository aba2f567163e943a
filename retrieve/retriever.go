// Copyright 2026 Zein Alasali
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package retrieve

import (
	"context"
	"log/slog"
	"strings"

	"github.com/zeinalasali/buildquery/ai"
	"github.com/zeinalasali/buildquery/core"
	"github.com/zeinalasali/buildquery/storage"
)

// DefaultK is the candidate count used when the caller passes k <= 0.
const DefaultK = 5

// Retriever answers "which entities are most relevant to this question"
// for a single organization. Results from a small or empty corpus may be
// fewer than k, including none at all; that is a normal outcome.
type Retriever struct {
	vectors  storage.VectorRepository
	embedder ai.Embedder
	logger   *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// NewRetriever creates a new Retriever.
func NewRetriever(vectors storage.VectorRepository, embedder ai.Embedder, opts ...Option) (*Retriever, error) {
	if vectors == nil {
		return nil, ErrVectorRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	r := &Retriever{
		vectors:  vectors,
		embedder: embedder,
		logger:   slog.Default().With("component", "retriever"),
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Retrieve returns up to k candidates for the query, scoped to orgID and,
// when typeFilter is non-zero, to that entity type. Results are ordered by
// similarity descending with ties broken by entity id ascending, so the same
// corpus and query always produce the same ranking.
func (r *Retriever) Retrieve(ctx context.Context, orgID core.ID, typeFilter core.EntityType, query string, k int) ([]core.RetrievalCandidate, error) {
	return r.RetrieveWithMonitor(ctx, orgID, typeFilter, query, k, nil)
}

// RetrieveWithMonitor is Retrieve with observation hooks at each stage.
func (r *Retriever) RetrieveWithMonitor(ctx context.Context, orgID core.ID, typeFilter core.EntityType, query string, k int, monitor Monitor) ([]core.RetrievalCandidate, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	if orgID == 0 {
		return nil, core.ErrMissingOrg
	}
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if k <= 0 {
		k = DefaultK
	}

	monitor.Start(orgID, query)

	vec, err := r.embedder.EmbedText(ctx, query)
	if err != nil {
		r.logger.Error("error embedding query", "org", orgID, "err", err)
		return nil, err
	}
	vec = ai.NormalizeVector(vec)
	monitor.AfterQueryEmbedding(len(vec))

	candidates, err := r.vectors.QuerySimilar(ctx, orgID, typeFilter, vec, k)
	if err != nil {
		r.logger.Error("error querying similar embeddings", "org", orgID, "err", err)
		return nil, err
	}
	monitor.AfterSimilaritySearch(candidates)

	r.logger.Debug("retrieval complete", "org", orgID, "requested", k, "returned", len(candidates))
	monitor.Finish(candidates)
	return candidates, nil
}
