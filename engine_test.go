package buildquery

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeinalasali/buildquery/ai/mock"
	"github.com/zeinalasali/buildquery/answer"
	"github.com/zeinalasali/buildquery/core"
)

func setupEngine(t *testing.T) (*Engine, *mock.MockProvider) {
	t.Helper()

	provider := mock.NewMockProvider().(*mock.MockProvider)
	engine, err := NewEngine("", WithInMemory(), WithProvider(provider))
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })

	return engine, provider
}

func applyCreate(t *testing.T, engine *Engine, snapshot *core.EntitySnapshot) {
	t.Helper()
	sync, err := engine.NewSynchronizer()
	require.NoError(t, err)
	defer sync.Release()

	require.NoError(t, sync.Apply(context.Background(), core.EntityChanged{
		Key:      snapshot.Key,
		Op:       core.OpCreate,
		Snapshot: snapshot,
	}))
	sync.Wait()
}

func TestEngineEventToAnswerFlow(t *testing.T) {
	engine, provider := setupEngine(t)
	ctx := context.Background()

	applyCreate(t, engine, &core.EntitySnapshot{
		Key:         core.EntityKey{OrgID: 1, Type: core.EntityTypeCostItem, EntityID: 7},
		Name:        "Pour foundation",
		ProjectName: "Riverside Apartments",
		Amount:      42000, Currency: "USD",
	})

	provider.GetMockCompleter().CompleteFunc = func(ctx context.Context, prompt string, maxTokens int) (string, error) {
		return "Pouring the foundation is budgeted at 42000 USD [id:7].", nil
	}

	answerer, err := engine.NewAnswerer()
	require.NoError(t, err)

	result, err := answerer.Answer(ctx, 1, "how much does the foundation pour cost?", nil)
	require.NoError(t, err)
	assert.False(t, result.Degraded)
	assert.Equal(t, []core.ID{7}, result.Citations)

	// The prompt carried the entity's summary as context.
	assert.Contains(t, provider.GetMockCompleter().LastPrompt(), "Pour foundation")
}

func TestEngineAnswersAreTenantScoped(t *testing.T) {
	engine, provider := setupEngine(t)
	ctx := context.Background()

	applyCreate(t, engine, &core.EntitySnapshot{
		Key:  core.EntityKey{OrgID: 1, Type: core.EntityTypeProject, EntityID: 1},
		Name: "Riverside Apartments",
	})
	applyCreate(t, engine, &core.EntitySnapshot{
		Key:  core.EntityKey{OrgID: 2, Type: core.EntityTypeProject, EntityID: 2},
		Name: "Riverside Apartments",
	})

	answerer, err := engine.NewAnswerer()
	require.NoError(t, err)

	_, err = answerer.Answer(ctx, 2, "riverside apartments", nil)
	require.NoError(t, err)

	// Only org 2's entity may appear in the prompt context.
	prompt := provider.GetMockCompleter().LastPrompt()
	assert.Contains(t, prompt, "[id:2]")
	assert.NotContains(t, prompt, "[id:1]")
}

func TestEngineReindexAfterProviderOutage(t *testing.T) {
	engine, _ := setupEngine(t)
	ctx := context.Background()

	applyCreate(t, engine, &core.EntitySnapshot{
		Key:  core.EntityKey{OrgID: 1, Type: core.EntityTypeExpense, EntityID: 5},
		Name: "Concrete delivery",
	})

	key := core.EntityKey{OrgID: 1, Type: core.EntityTypeExpense, EntityID: 5}
	require.NoError(t, engine.VectorRepository().MarkStale(ctx, key))

	reindexer, err := engine.NewReindexer(nil, io.Discard)
	require.NoError(t, err)
	require.NoError(t, reindexer.Run(ctx, 1))

	rec, err := engine.VectorRepository().GetEmbedding(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, core.EmbeddingFresh, rec.State)
	assert.Equal(t, uint64(2), rec.Version)

	// The repaired record serves retrieval again.
	retriever, err := engine.NewRetriever()
	require.NoError(t, err)
	candidates, err := retriever.Retrieve(ctx, 1, 0, "concrete delivery", 5)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, core.ID(5), candidates[0].Key.EntityID)
}

func TestEngineMultiStepAnswer(t *testing.T) {
	engine, provider := setupEngine(t)
	ctx := context.Background()

	applyCreate(t, engine, &core.EntitySnapshot{
		Key:      core.EntityKey{OrgID: 1, Type: core.EntityTypeExpense, EntityID: 11},
		Name:     "Concrete delivery",
		Amount:   4000,
		Currency: "USD",
	})
	applyCreate(t, engine, &core.EntitySnapshot{
		Key:      core.EntityKey{OrgID: 1, Type: core.EntityTypeExpense, EntityID: 12},
		Name:     "Rebar order",
		Amount:   2000,
		Currency: "USD",
	})

	provider.GetMockCompleter().CompleteFunc = func(ctx context.Context, prompt string, maxTokens int) (string, error) {
		return "Total recorded spend is 6000.00 USD [id:11] [id:12].", nil
	}

	answerer, err := engine.NewAnswerer()
	require.NoError(t, err)

	result, err := answerer.Answer(ctx, 1, "what is the total spent so far?", &answer.QueryOptions{MultiStep: true})
	require.NoError(t, err)
	assert.False(t, result.Degraded)
	assert.ElementsMatch(t, []core.ID{11, 12}, result.Citations)
	assert.Contains(t, provider.GetMockCompleter().LastPrompt(), "sum of amounts across 2 records: 6000.00")
}
