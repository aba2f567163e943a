package answer

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/zeinalasali/buildquery/core"
)

const systemInstructions = `You are an assistant for a construction project tracker.
Answer the question using ONLY the numbered context entries below. Do not use outside knowledge.

Rules:
- After every statement drawn from a context entry, cite it as [id:<entity id>] using the id shown for that entry.
- Never cite an id that does not appear in the context.
- If the context does not contain enough information to answer, say so plainly instead of guessing.
- Keep the answer short and factual. Amounts and quantities must be copied exactly from the context.`

// BuildPrompt renders the full completion prompt: instructions, optional
// prior conversation turns, the context entries, and the question.
func BuildPrompt(bundle *core.ContextBundle, query string, conversation []string) string {
	return buildPrompt(bundle, nil, query, conversation)
}

// BuildPlanPrompt is BuildPrompt with computed facts from earlier plan steps
// included in the context section.
func BuildPlanPrompt(bundle *core.ContextBundle, facts []string, query string, conversation []string) string {
	return buildPrompt(bundle, facts, query, conversation)
}

func buildPrompt(bundle *core.ContextBundle, facts []string, query string, conversation []string) string {
	var b strings.Builder
	b.WriteString(systemInstructions)
	b.WriteString("\n\n")

	if len(conversation) > 0 {
		b.WriteString("Earlier conversation:\n")
		for _, turn := range conversation {
			b.WriteString(turn)
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}

	b.WriteString("Context:\n")
	if (bundle == nil || len(bundle.Entries) == 0) && len(facts) == 0 {
		b.WriteString("(no matching records found)\n")
	} else {
		if bundle != nil {
			for _, entry := range bundle.Entries {
				b.WriteString("- [id:")
				b.WriteString(strconv.FormatUint(uint64(entry.Key.EntityID), 10))
				b.WriteString("] ")
				b.WriteString(entry.Summary)
				b.WriteByte('\n')
			}
		}
		for _, fact := range facts {
			b.WriteString("- computed: ")
			b.WriteString(fact)
			b.WriteByte('\n')
		}
	}

	b.WriteString("\nQuestion: ")
	b.WriteString(query)
	b.WriteString("\nAnswer:")
	return b.String()
}

var citationPattern = regexp.MustCompile(`\[id:(\d+)\]`)

// ParseCitations extracts the [id:N] markers from generated text, keeping
// only ids present in allowed and deduplicating while preserving first-seen
// order. Anything the model cites outside its context is discarded, which
// keeps citations a strict subset of the supplied entries.
func ParseCitations(text string, allowed []core.ID) []core.ID {
	allowedSet := make(map[core.ID]bool, len(allowed))
	for _, id := range allowed {
		allowedSet[id] = true
	}

	var citations []core.ID
	seen := make(map[core.ID]bool)
	for _, match := range citationPattern.FindAllStringSubmatch(text, -1) {
		raw, err := strconv.ParseUint(match[1], 10, 64)
		if err != nil {
			continue
		}
		id := core.ID(raw)
		if !allowedSet[id] || seen[id] {
			continue
		}
		seen[id] = true
		citations = append(citations, id)
	}
	return citations
}
