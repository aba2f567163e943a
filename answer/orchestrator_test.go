package answer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeinalasali/buildquery/ai"
	"github.com/zeinalasali/buildquery/ai/mock"
	"github.com/zeinalasali/buildquery/core"
	"github.com/zeinalasali/buildquery/retrieve"
	"github.com/zeinalasali/buildquery/storage"
	"github.com/zeinalasali/buildquery/storage/badger"
)

type orchestratorFixture struct {
	orchestrator *Orchestrator
	embedder     *mock.MockEmbedder
	completer    *mock.MockCompleter
	entities     storage.EntityRepository
	vectors      storage.VectorRepository
}

func setupOrchestrator(t *testing.T) *orchestratorFixture {
	t.Helper()

	entities, vectors, backend, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() {
		entities.Close()
		vectors.Close()
		backend.Close()
	})

	embedder := mock.NewMockEmbedder()
	completer := mock.NewMockCompleter()

	retriever, err := retrieve.NewRetriever(vectors, embedder)
	require.NoError(t, err)
	assembler, err := NewAssembler(entities)
	require.NoError(t, err)
	orchestrator, err := NewOrchestrator(retriever, assembler, completer)
	require.NoError(t, err)

	return &orchestratorFixture{
		orchestrator: orchestrator,
		embedder:     embedder,
		completer:    completer,
		entities:     entities,
		vectors:      vectors,
	}
}

// seedEntity stores a snapshot and a fresh embedding whose vector embeds the
// snapshot's canonical text, matching what the synchronizer would produce.
func (f *orchestratorFixture) seedEntity(t *testing.T, snapshot *core.EntitySnapshot) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.entities.PutSnapshots(ctx, snapshot))

	text := core.CanonicalText(snapshot)
	rec := &core.EmbeddingRecord{
		Key:         snapshot.Key,
		ContentHash: core.IDFromContent(text),
		Vector:      mock.DeterministicVector(text, mock.DefaultDim),
		Version:     1,
		State:       core.EmbeddingFresh,
	}
	require.NoError(t, f.vectors.UpsertEmbedding(ctx, rec, 0))
}

func TestAnswerCitesOnlyBundledEntities(t *testing.T) {
	f := setupOrchestrator(t)
	ctx := context.Background()

	f.seedEntity(t, &core.EntitySnapshot{
		Key:    core.EntityKey{OrgID: 1, Type: core.EntityTypeCostItem, EntityID: 10},
		Name:   "Foundation concrete",
		Amount: 42000, Currency: "USD",
	})

	// Model cites one real entry and one id it made up.
	f.completer.CompleteFunc = func(ctx context.Context, prompt string, maxTokens int) (string, error) {
		return "Foundation concrete is budgeted at 42000 USD [id:10], see also [id:555].", nil
	}

	result, err := f.orchestrator.Answer(ctx, 1, "foundation concrete budget", nil)
	require.NoError(t, err)
	assert.False(t, result.Degraded)
	assert.Equal(t, []core.ID{10}, result.Citations)
}

func TestAnswerFallbackOnCompleterFailure(t *testing.T) {
	f := setupOrchestrator(t)
	ctx := context.Background()

	f.seedEntity(t, &core.EntitySnapshot{
		Key:  core.EntityKey{OrgID: 1, Type: core.EntityTypeProject, EntityID: 10},
		Name: "Riverside Apartments",
	})
	f.completer.CompleteFunc = func(ctx context.Context, prompt string, maxTokens int) (string, error) {
		return "", ai.ErrProviderUnavailable
	}

	result, err := f.orchestrator.Answer(ctx, 1, "riverside status", nil)
	require.NoError(t, err, "completer failure degrades the answer, it does not fail the request")
	assert.Equal(t, FallbackAnswer, result.Text)
	assert.True(t, result.Degraded)
	assert.Empty(t, result.Citations)
}

func TestAnswerDegradesWhenRetrievalFails(t *testing.T) {
	f := setupOrchestrator(t)
	ctx := context.Background()

	f.embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, ai.ErrProviderUnavailable
	}
	f.completer.CompleteFunc = func(ctx context.Context, prompt string, maxTokens int) (string, error) {
		return "I do not have records to answer that.", nil
	}

	result, err := f.orchestrator.Answer(ctx, 1, "anything at all", nil)
	require.NoError(t, err)
	assert.True(t, result.Degraded)
	assert.Empty(t, result.Citations)
	assert.Contains(t, f.completer.LastPrompt(), "(no matching records found)")
}

func TestAnswerEmptyCorpusIsNotDegraded(t *testing.T) {
	f := setupOrchestrator(t)

	result, err := f.orchestrator.Answer(context.Background(), 1, "any projects?", nil)
	require.NoError(t, err)
	assert.False(t, result.Degraded)
	assert.Empty(t, result.Citations)
}

func TestAnswerRejectsMissingOrg(t *testing.T) {
	f := setupOrchestrator(t)

	_, err := f.orchestrator.Answer(context.Background(), 0, "question", nil)
	assert.ErrorIs(t, err, core.ErrMissingOrg)

	_, err = f.orchestrator.Answer(context.Background(), 1, "  ", nil)
	assert.ErrorIs(t, err, retrieve.ErrEmptyQuery)
}

func TestAnswerMultiStepRunsCompoundPlan(t *testing.T) {
	f := setupOrchestrator(t)
	ctx := context.Background()

	f.seedEntity(t, &core.EntitySnapshot{
		Key:    core.EntityKey{OrgID: 1, Type: core.EntityTypeExpense, EntityID: 20},
		Name:   "Concrete delivery", Amount: 4000, Currency: "USD",
	})
	f.seedEntity(t, &core.EntitySnapshot{
		Key:    core.EntityKey{OrgID: 1, Type: core.EntityTypeExpense, EntityID: 21},
		Name:   "Rebar order", Amount: 2000, Currency: "USD",
	})

	var concludePrompt string
	f.completer.CompleteFunc = func(ctx context.Context, prompt string, maxTokens int) (string, error) {
		concludePrompt = prompt
		return "Total recorded spend is 6000.00 USD [id:20] [id:21].", nil
	}

	result, err := f.orchestrator.Answer(ctx, 1, "total spent on materials", &QueryOptions{MultiStep: true})
	require.NoError(t, err)
	assert.False(t, result.Degraded)
	assert.ElementsMatch(t, []core.ID{20, 21}, result.Citations)

	// The concluding step sees the computed sum from the aggregate branch.
	assert.Contains(t, concludePrompt, "- computed: sum of amounts across 2 records: 6000.00")
	assert.Equal(t, 1, f.completer.CallCount(), "compound plan has exactly one completion step")
}

func TestRunPlanFailureIsolatedToBranch(t *testing.T) {
	f := setupOrchestrator(t)
	ctx := context.Background()

	f.seedEntity(t, &core.EntitySnapshot{
		Key:  core.EntityKey{OrgID: 1, Type: core.EntityTypeProject, EntityID: 30},
		Name: "Riverside Apartments",
	})

	// Second embedding call (the failing branch's retrieval) errors out.
	calls := 0
	f.embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		calls++
		if calls > 1 {
			return nil, ai.ErrProviderUnavailable
		}
		return mock.DeterministicVector(text, mock.DefaultDim), nil
	}
	f.completer.CompleteFunc = func(ctx context.Context, prompt string, maxTokens int) (string, error) {
		return "Riverside Apartments is on record [id:30].", nil
	}

	g := NewGraph()
	require.NoError(t, g.Add(&Node{ID: "good", Kind: NodeRetrieve, Query: "riverside"}))
	require.NoError(t, g.Add(&Node{ID: "bad", Kind: NodeRetrieve, Query: "other"}))
	require.NoError(t, g.Add(&Node{ID: "summary", Kind: NodeConclude, Query: "riverside", Deps: []string{"good"}}))
	require.NoError(t, g.Add(&Node{ID: "poisoned", Kind: NodeAggregate, Agg: AggCount, Deps: []string{"bad"}}))
	require.NoError(t, g.Add(&Node{ID: "merged", Kind: NodeMerge, Deps: []string{"summary", "poisoned"}}))

	result, err := f.orchestrator.RunPlan(ctx, 1, g, nil)
	require.NoError(t, err)
	assert.True(t, result.Degraded, "a failed branch marks the answer degraded")
	assert.Equal(t, []core.ID{30}, result.Citations, "the healthy branch still contributes")
}

func TestRunPlanAllBranchesFailedReturnsFallback(t *testing.T) {
	f := setupOrchestrator(t)

	f.embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, ai.ErrProviderUnavailable
	}

	g := NewGraph()
	require.NoError(t, g.Add(&Node{ID: "only", Kind: NodeRetrieve, Query: "anything"}))

	result, err := f.orchestrator.RunPlan(context.Background(), 1, g, nil)
	require.NoError(t, err)
	assert.Equal(t, FallbackAnswer, result.Text)
	assert.True(t, result.Degraded)
	assert.Empty(t, result.Citations)
}
