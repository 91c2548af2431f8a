package qagen

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultThreshold is the minimum similarity between an answer and its
// source text.
const DefaultThreshold = 0.5

var (
	ErrQuestionLength = errors.New("question length out of range")
	ErrAnswerLength   = errors.New("answer length out of range")
	ErrInjection      = errors.New("prompt injection pattern")
	ErrLowSimilarity  = errors.New("answer not grounded in segment")
)

var injectionPattern = regexp.MustCompile(
	`(?i)(ignore\s+(previous|all|above)|system\s*prompt|you\s+are\s+now|` +
		`act\s+as\s+|pretend\s+|forget\s+(everything|all)|` +
		`new\s+instructions)`,
)

const (
	minQuestionLen = 5
	maxQuestionLen = 500
	minAnswerLen   = 3
	maxAnswerLen   = 4000
)

// ValidatePair checks a question and its two scored answers. It returns
// nil when the pair can go into the dataset; otherwise the error wraps one
// of the Err* reasons above.
func ValidatePair(question string, a, b string, simA, simB, threshold float64) error {
	q := strings.TrimSpace(question)
	if n := utf8.RuneCountInString(q); n < minQuestionLen || n > maxQuestionLen {
		return fmt.Errorf("%w: %d", ErrQuestionLength, n)
	}
	for _, s := range []string{q, a, b} {
		if injectionPattern.MatchString(s) {
			return fmt.Errorf("%w in %q", ErrInjection, truncate(s, 60))
		}
	}
	for _, ans := range []string{a, b} {
		if n := utf8.RuneCountInString(strings.TrimSpace(ans)); n < minAnswerLen || n > maxAnswerLen {
			return fmt.Errorf("%w: %d", ErrAnswerLength, n)
		}
	}
	if simA < threshold || simB < threshold {
		return fmt.Errorf("%w: %.2f/%.2f < %.2f", ErrLowSimilarity, simA, simB, threshold)
	}
	return nil
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
