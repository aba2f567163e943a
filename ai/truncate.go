package ai

// TruncateForEmbedding bounds text sent to the embedding service.
// Text longer than maxRunes is cut at exactly maxRunes runes, counted from
// the start; no word-boundary adjustment is made, so the cut point depends
// only on the input and the limit. Truncation at a rune boundary keeps the
// result valid UTF-8.
func TruncateForEmbedding(text string, maxRunes int) string {
	if maxRunes <= 0 {
		return text
	}
	count := 0
	for i := range text {
		if count == maxRunes {
			return text[:i]
		}
		count++
	}
	return text
}
