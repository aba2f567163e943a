package answer

// EstimateTokens approximates the token count of text as one token per four
// bytes, rounded up. Deliberately crude: the budget it serves is a guardrail
// against oversized prompts, not an exact accounting. Monotonic in length.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}
