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

package answer

import (
	"context"
	"log/slog"

	"github.com/zeinalasali/buildquery/core"
	"github.com/zeinalasali/buildquery/storage"
)

// DefaultTokenBudget is the context budget used when the caller passes 0.
const DefaultTokenBudget = 2048

// Assembler hydrates ranked retrieval candidates into a token-budgeted
// context bundle. Snapshots are fetched in one batched read; candidates whose
// source record vanished between retrieval and hydration are dropped silently.
type Assembler struct {
	entities storage.EntityRepository
	logger   *slog.Logger
}

// NewAssembler creates a new Assembler.
func NewAssembler(entities storage.EntityRepository) (*Assembler, error) {
	if entities == nil {
		return nil, ErrEntityRepositoryRequired
	}
	return &Assembler{
		entities: entities,
		logger:   slog.Default().With("component", "assembler"),
	}, nil
}

// Assemble builds a context bundle from candidates, preserving their ranking
// order. A summary either fits the remaining budget whole or is skipped;
// summaries are never truncated, and a skip does not stop the scan because a
// shorter lower-ranked summary may still fit.
func (a *Assembler) Assemble(ctx context.Context, orgID core.ID, candidates []core.RetrievalCandidate, tokenBudget int) (*core.ContextBundle, error) {
	if tokenBudget <= 0 {
		tokenBudget = DefaultTokenBudget
	}

	bundle := &core.ContextBundle{}
	if len(candidates) == 0 {
		return bundle, nil
	}

	keys := make([]core.EntityKey, len(candidates))
	for i, c := range candidates {
		keys[i] = c.Key
	}
	snapshots, err := a.entities.GetSnapshots(ctx, orgID, keys)
	if err != nil {
		return nil, err
	}
	byKey := make(map[core.EntityKey]*core.EntitySnapshot, len(snapshots))
	for _, s := range snapshots {
		byKey[s.Key] = s
	}

	for _, c := range candidates {
		snapshot, ok := byKey[c.Key]
		if !ok {
			a.logger.Debug("candidate snapshot vanished, dropping", "key", c.Key)
			continue
		}

		summary := snapshot.Summary()
		tokens := EstimateTokens(summary)
		if bundle.TotalTokens+tokens > tokenBudget {
			continue
		}

		bundle.Entries = append(bundle.Entries, core.ContextEntry{
			Key:      c.Key,
			Summary:  summary,
			Score:    c.Score,
			Tokens:   tokens,
			Snapshot: snapshot,
		})
		bundle.TotalTokens += tokens
	}

	return bundle, nil
}
