package answer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/zeinalasali/buildquery/core"
)

func TestBuildPromptIncludesContextAndQuestion(t *testing.T) {
	bundle := &core.ContextBundle{
		Entries: []core.ContextEntry{
			{Key: core.EntityKey{OrgID: 1, Type: core.EntityTypeExpense, EntityID: 42}, Summary: "expense 42 \"Concrete\""},
		},
	}

	prompt := BuildPrompt(bundle, "How much was the concrete?", []string{"User: hi"})
	assert.Contains(t, prompt, "[id:42] expense 42 \"Concrete\"")
	assert.Contains(t, prompt, "Question: How much was the concrete?")
	assert.Contains(t, prompt, "Earlier conversation:\nUser: hi")
}

func TestBuildPromptEmptyContext(t *testing.T) {
	prompt := BuildPrompt(&core.ContextBundle{}, "anything", nil)
	assert.Contains(t, prompt, "(no matching records found)")
}

func TestBuildPlanPromptRendersFacts(t *testing.T) {
	prompt := BuildPlanPrompt(&core.ContextBundle{}, []string{"sum of amounts across 2 records: 6000.00"}, "total?", nil)
	assert.Contains(t, prompt, "- computed: sum of amounts across 2 records: 6000.00")
	assert.NotContains(t, prompt, "(no matching records found)")
}

func TestParseCitationsFiltersAndDeduplicates(t *testing.T) {
	allowed := []core.ID{1, 2, 3}
	text := "The pour finished [id:2]. Cost was high [id:2] per records [id:7] and [id:1]."

	citations := ParseCitations(text, allowed)
	assert.Equal(t, []core.ID{2, 1}, citations)
}

func TestParseCitationsNoMarkers(t *testing.T) {
	assert.Empty(t, ParseCitations("no citations here", []core.ID{1}))
	assert.Empty(t, ParseCitations("[id:5]", nil))
}
