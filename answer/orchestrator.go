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
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/zeinalasali/buildquery/ai"
	"github.com/zeinalasali/buildquery/core"
	"github.com/zeinalasali/buildquery/retrieve"
)

// FallbackAnswer is returned when answer generation fails outright.
// It carries no citations so a degraded reply can never misattribute facts.
const FallbackAnswer = "I could not generate an answer right now. Please try again in a moment."

// maxAnswerTokens bounds the completion length for a single answer.
const maxAnswerTokens = 512

// QueryOptions holds optional parameters for Answer.
// The zero value asks a single-step question with default limits.
type QueryOptions struct {
	TypeFilter   core.EntityType // Restrict retrieval to one entity type (0 = all)
	K            int             // Candidate count (0 = retrieve.DefaultK)
	TokenBudget  int             // Context budget (0 = DefaultTokenBudget)
	Conversation []string        // Prior conversation turns, oldest first
	MultiStep    bool            // Allow a multi-step plan for compound questions
}

// Orchestrator runs the full question-to-answer flow: retrieve, assemble,
// prompt, complete, and extract citations. Partial failures degrade the
// answer rather than failing the request; only an unusable question (missing
// org, empty text) is an error.
type Orchestrator struct {
	retriever *retrieve.Retriever
	assembler *Assembler
	completer ai.Completer
	logger    *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		return nil
	}
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(retriever *retrieve.Retriever, assembler *Assembler, completer ai.Completer, opts ...Option) (*Orchestrator, error) {
	if retriever == nil {
		return nil, ErrRetrieverRequired
	}
	if assembler == nil {
		return nil, ErrAssemblerRequired
	}
	if completer == nil {
		return nil, ErrCompleterRequired
	}

	o := &Orchestrator{
		retriever: retriever,
		assembler: assembler,
		completer: completer,
		logger:    slog.Default().With("component", "orchestrator"),
	}

	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	return o, nil
}

// Answer responds to a natural-language question scoped to one organization.
//
// Compound questions take the multi-step path only when the caller opts in
// via MultiStep and the query itself looks compound; everything else runs the
// single retrieve-assemble-complete pass.
func (o *Orchestrator) Answer(ctx context.Context, orgID core.ID, query string, opts *QueryOptions) (*core.AnswerResult, error) {
	if opts == nil {
		opts = &QueryOptions{}
	}
	if orgID == 0 {
		return nil, core.ErrMissingOrg
	}
	if strings.TrimSpace(query) == "" {
		return nil, retrieve.ErrEmptyQuery
	}

	if opts.MultiStep && IsCompound(query) {
		graph := BuildCompoundGraph(query, opts.TypeFilter, opts.K)
		return o.RunPlan(ctx, orgID, graph, opts)
	}
	return o.answerSimple(ctx, orgID, query, opts)
}

// answerSimple is the single-step path: one retrieval, one bundle, one
// completion.
func (o *Orchestrator) answerSimple(ctx context.Context, orgID core.ID, query string, opts *QueryOptions) (*core.AnswerResult, error) {
	degraded := false
	bundle := &core.ContextBundle{}

	candidates, err := o.retriever.Retrieve(ctx, orgID, opts.TypeFilter, query, opts.K)
	if err != nil {
		o.logger.Warn("retrieval failed, answering without context", "org", orgID, "err", err)
		degraded = true
	} else {
		bundle, err = o.assembler.Assemble(ctx, orgID, candidates, opts.TokenBudget)
		if err != nil {
			o.logger.Warn("context assembly failed, answering without context", "org", orgID, "err", err)
			bundle = &core.ContextBundle{}
			degraded = true
		}
	}

	prompt := BuildPrompt(bundle, query, opts.Conversation)
	text, err := o.completer.Complete(ctx, prompt, maxAnswerTokens)
	if err != nil {
		o.logger.Error("completion failed, returning fallback answer", "org", orgID, "err", err)
		return &core.AnswerResult{Text: FallbackAnswer, Degraded: true}, nil
	}

	return &core.AnswerResult{
		Text:      text,
		Citations: ParseCitations(text, bundle.EntityIDs()),
		Degraded:  degraded,
	}, nil
}

// nodeResult is the output of one executed plan node.
type nodeResult struct {
	bundle    *core.ContextBundle
	text      string
	citations []core.ID
	failed    bool
}

// RunPlan executes a plan graph in dependency order. A failed node poisons
// its dependents (merge nodes excepted, which tolerate partial failure), and
// the outputs of the terminal nodes form the answer. Degraded is set when any
// node failed along the way.
func (o *Orchestrator) RunPlan(ctx context.Context, orgID core.ID, graph *Graph, opts *QueryOptions) (*core.AnswerResult, error) {
	if opts == nil {
		opts = &QueryOptions{}
	}
	if orgID == 0 {
		return nil, core.ErrMissingOrg
	}
	if graph == nil || graph.Len() == 0 {
		return nil, ErrEmptyGraph
	}

	sorted, err := graph.topoSort()
	if err != nil {
		return nil, err
	}

	results := make(map[string]*nodeResult, len(sorted))
	anyFailed := false
	for _, node := range sorted {
		result := o.runNode(ctx, orgID, node, results, opts)
		results[node.ID] = result
		if result.failed {
			anyFailed = true
			o.logger.Warn("plan node failed", "org", orgID, "node", node.ID)
		}
	}

	// Merge terminal outputs into the final answer.
	var texts []string
	var citations []core.ID
	seen := make(map[core.ID]bool)
	for _, id := range graph.terminals() {
		result := results[id]
		if result.failed || result.text == "" {
			continue
		}
		texts = append(texts, result.text)
		for _, c := range result.citations {
			if !seen[c] {
				seen[c] = true
				citations = append(citations, c)
			}
		}
	}

	if len(texts) == 0 {
		return &core.AnswerResult{Text: FallbackAnswer, Degraded: true}, nil
	}
	return &core.AnswerResult{
		Text:      strings.Join(texts, "\n\n"),
		Citations: citations,
		Degraded:  anyFailed,
	}, nil
}

// runNode executes a single plan node against its dependencies' results.
func (o *Orchestrator) runNode(ctx context.Context, orgID core.ID, node *Node, results map[string]*nodeResult, opts *QueryOptions) *nodeResult {
	// Merge nodes tolerate failed inputs; everything else is poisoned by them.
	if node.Kind != NodeMerge {
		for _, dep := range node.Deps {
			if results[dep].failed {
				return &nodeResult{failed: true}
			}
		}
	}

	switch node.Kind {
	case NodeRetrieve:
		return o.runRetrieveNode(ctx, orgID, node, opts)
	case NodeAggregate:
		return o.runAggregateNode(node, results)
	case NodeConclude:
		return o.runConcludeNode(ctx, node, results, opts)
	case NodeMerge:
		return o.runMergeNode(node, results)
	default:
		o.logger.Error("unknown plan node kind", "node", node.ID, "kind", int(node.Kind))
		return &nodeResult{failed: true}
	}
}

func (o *Orchestrator) runRetrieveNode(ctx context.Context, orgID core.ID, node *Node, opts *QueryOptions) *nodeResult {
	candidates, err := o.retriever.Retrieve(ctx, orgID, node.TypeFilter, node.Query, node.K)
	if err != nil {
		o.logger.Warn("plan retrieval failed", "node", node.ID, "err", err)
		return &nodeResult{failed: true}
	}
	bundle, err := o.assembler.Assemble(ctx, orgID, candidates, opts.TokenBudget)
	if err != nil {
		o.logger.Warn("plan assembly failed", "node", node.ID, "err", err)
		return &nodeResult{failed: true}
	}
	return &nodeResult{bundle: bundle, citations: bundle.EntityIDs()}
}

func (o *Orchestrator) runAggregateNode(node *Node, results map[string]*nodeResult) *nodeResult {
	var entries []core.ContextEntry
	for _, dep := range node.Deps {
		if results[dep].bundle != nil {
			entries = append(entries, results[dep].bundle.Entries...)
		}
	}

	var sum float64
	counted := 0
	var citations []core.ID
	for _, entry := range entries {
		if entry.Snapshot == nil {
			continue
		}
		sum += entry.Snapshot.Amount
		counted++
		citations = append(citations, entry.Key.EntityID)
	}

	var text string
	switch node.Agg {
	case AggSum:
		text = fmt.Sprintf("sum of amounts across %d records: %s", counted, strconv.FormatFloat(sum, 'f', 2, 64))
	case AggCount:
		text = fmt.Sprintf("matching records: %d", counted)
	case AggAvg:
		avg := 0.0
		if counted > 0 {
			avg = sum / float64(counted)
		}
		text = fmt.Sprintf("average amount across %d records: %s", counted, strconv.FormatFloat(avg, 'f', 2, 64))
	default:
		return &nodeResult{failed: true}
	}

	return &nodeResult{text: text, citations: citations}
}

func (o *Orchestrator) runConcludeNode(ctx context.Context, node *Node, results map[string]*nodeResult, opts *QueryOptions) *nodeResult {
	// Union the dependency bundles (deduplicated by key) and collect
	// computed facts from aggregate steps.
	merged := &core.ContextBundle{}
	seenKeys := make(map[core.EntityKey]bool)
	var facts []string
	for _, dep := range node.Deps {
		result := results[dep]
		if result.bundle != nil {
			for _, entry := range result.bundle.Entries {
				if seenKeys[entry.Key] {
					continue
				}
				seenKeys[entry.Key] = true
				merged.Entries = append(merged.Entries, entry)
				merged.TotalTokens += entry.Tokens
			}
		} else if result.text != "" {
			facts = append(facts, result.text)
		}
	}

	prompt := BuildPlanPrompt(merged, facts, node.Query, opts.Conversation)
	text, err := o.completer.Complete(ctx, prompt, maxAnswerTokens)
	if err != nil {
		o.logger.Error("plan completion failed", "node", node.ID, "err", err)
		return &nodeResult{failed: true}
	}

	return &nodeResult{
		bundle:    merged,
		text:      text,
		citations: ParseCitations(text, merged.EntityIDs()),
	}
}

func (o *Orchestrator) runMergeNode(node *Node, results map[string]*nodeResult) *nodeResult {
	var texts []string
	var citations []core.ID
	seen := make(map[core.ID]bool)
	for _, dep := range node.Deps {
		result := results[dep]
		if result.failed {
			continue
		}
		if result.text != "" {
			texts = append(texts, result.text)
		}
		for _, c := range result.citations {
			if !seen[c] {
				seen[c] = true
				citations = append(citations, c)
			}
		}
	}

	if len(texts) == 0 && len(citations) == 0 {
		return &nodeResult{failed: true}
	}
	return &nodeResult{text: strings.Join(texts, "\n\n"), citations: citations}
}
