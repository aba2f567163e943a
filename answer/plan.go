package answer

import (
	"strings"

	"github.com/zeinalasali/buildquery/core"
)

// Stop words to drop when inspecting a query for planning hints.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true, "what": true, "how": true, "much": true,
}

// compoundHints are query words suggesting the question needs computation or
// cross-record comparison on top of plain retrieval.
var compoundHints = map[string]bool{
	"total":     true,
	"sum":       true,
	"average":   true,
	"overall":   true,
	"combined":  true,
	"compare":   true,
	"versus":    true,
	"vs":        true,
	"spent":     true,
	"remaining": true,
}

// tokenizeAndFilter splits text into words, lowercases, trims punctuation,
// and removes stop words.
func tokenizeAndFilter(text string) []string {
	words := strings.Fields(text)
	filtered := make([]string, 0, len(words))

	for _, word := range words {
		cleaned := strings.ToLower(strings.Trim(word, ".,!?;:'\"-()[]{}"))
		if cleaned != "" && !stopWords[cleaned] {
			filtered = append(filtered, cleaned)
		}
	}

	return filtered
}

// IsCompound reports whether a query looks like it needs a multi-step plan
// rather than a single retrieve-and-answer pass. Purely lexical; it errs on
// the side of false so simple questions keep the cheap path.
func IsCompound(query string) bool {
	for _, word := range tokenizeAndFilter(query) {
		if compoundHints[word] {
			return true
		}
	}
	return false
}

// BuildCompoundGraph constructs the standard plan for a compound question:
// one general evidence retrieval, one expense-focused retrieval feeding a
// sum, and a concluding step over both branches. Deterministic for a given
// query so repeated questions execute identically.
func BuildCompoundGraph(query string, typeFilter core.EntityType, k int) *Graph {
	g := NewGraph()

	// Errors are impossible here: ids are unique literals and every dep
	// references an earlier node.
	g.Add(&Node{
		ID:         "evidence",
		Kind:       NodeRetrieve,
		Query:      query,
		TypeFilter: typeFilter,
		K:          k,
	})
	g.Add(&Node{
		ID:         "expense-figures",
		Kind:       NodeRetrieve,
		Query:      query,
		TypeFilter: core.EntityTypeExpense,
		K:          k,
	})
	g.Add(&Node{
		ID:   "expense-total",
		Kind: NodeAggregate,
		Agg:  AggSum,
		Deps: []string{"expense-figures"},
	})
	g.Add(&Node{
		ID:    "conclusion",
		Kind:  NodeConclude,
		Query: query,
		Deps:  []string{"evidence", "expense-total"},
	})

	return g
}
