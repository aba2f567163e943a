package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigAppliesOptions(t *testing.T) {
	cfg := NewConfig(
		WithHost("http://ai.local"),
		WithEmbeddingModel("text-embedding-3-small"),
		WithCompletionModel("gpt-4o-mini"),
		WithAPIKey("sk-test"),
		WithDimensions(768),
	)

	assert.Equal(t, "http://ai.local", cfg.EmbeddingHost)
	assert.Equal(t, "http://ai.local", cfg.CompletionHost)
	assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
	assert.Equal(t, "gpt-4o-mini", cfg.CompletionModel)
	assert.Equal(t, "sk-test", cfg.APIKey)
	assert.Equal(t, 768, cfg.Dimensions)
}

func TestNormalizeAddsV1SuffixAndDefaultKey(t *testing.T) {
	cfg := NewConfig(WithHost("http://localhost:11434/"), WithAPIKey(""))
	cfg.Normalize()

	assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	assert.Equal(t, "http://localhost:11434/v1", cfg.CompletionHost)
	assert.Equal(t, "none", cfg.APIKey)

	// Already-normalized hosts are left alone.
	cfg.Normalize()
	assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
}

func TestValidateCatchesMissingFields(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.EmbeddingModel = ""
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Dimensions = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.MaxInputChars = -1
	assert.Error(t, cfg.Validate())
}

func TestTruncateForEmbedding(t *testing.T) {
	assert.Equal(t, "hello", TruncateForEmbedding("hello", 10))
	assert.Equal(t, "hel", TruncateForEmbedding("hello", 3))
	assert.Equal(t, "hello", TruncateForEmbedding("hello", 0), "non-positive limit disables truncation")

	// Cut lands on a rune boundary, never inside a multi-byte rune.
	assert.Equal(t, "héł", TruncateForEmbedding("héłło", 3))
}

func TestNormalizeVector(t *testing.T) {
	v := NormalizeVector([]float32{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	zero := NormalizeVector([]float32{0, 0, 0})
	assert.Equal(t, []float32{0, 0, 0}, zero)

	assert.Empty(t, NormalizeVector(nil))
}
