package chunker

import "strings"

// tokensPerWord approximates subword tokenisation of English prose.
const tokensPerWord = 1.33

// EstimateTokens gives a rough token count from the word count.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	words := len(strings.Fields(text))
	tokens := int(float64(words) * tokensPerWord)
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}

// CountWords is the whitespace token count used for fine-tuning cost
// estimates.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// Truncate keeps whole lines of text while the estimate stays within
// maxTokens. The first line is always kept, cut to maxTokens words' worth.
func Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 || EstimateTokens(text) <= maxTokens {
		return text
	}
	lines := strings.Split(text, "\n")
	var sb strings.Builder
	used := 0
	for i, line := range lines {
		n := EstimateTokens(line)
		if used+n > maxTokens {
			if i == 0 {
				words := strings.Fields(line)
				keep := int(float64(maxTokens) / tokensPerWord)
				if keep > len(words) {
					keep = len(words)
				}
				return strings.Join(words[:keep], " ")
			}
			break
		}
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(line)
		used += n
	}
	return sb.String()
}
