package llm

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Request is a single-turn chat completion.
type Request struct {
	System      string
	Prompt      string
	Temperature float32
	TopP        float32
	MaxTokens   int
}

// Completer is a chat-completion backend.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
	Model() string
}

// Scorer rates an answer to a question with a reward model, returning the
// per-attribute log probabilities (helpfulness, correctness, ...).
type Scorer interface {
	Score(ctx context.Context, question, answer string) (map[string]float64, error)
}

// ErrEmptyResponse is returned when a backend answers without content.
var ErrEmptyResponse = errors.New("llm: empty response")

// RetryableError indicates a transient failure that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, Truncate(e.Message, 200))
}

var codeBlockRe = regexp.MustCompile("(?s)^```(?:json|yaml)?\\s*(.*?)\\s*```$")

// StripCodeBlock removes a surrounding markdown code fence.
func StripCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}

// ExtractJSONObject returns the text from the first '{' to the last '}'.
func ExtractJSONObject(s string) (string, bool) {
	s = StripCodeBlock(s)
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return "", false
	}
	return s[start : end+1], true
}

// Truncate shortens s to n bytes, marking the cut.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
