package qagen

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrMissingResponseB is returned when a reply has no RESPONSE B marker.
	ErrMissingResponseB = errors.New("qagen: reply has no RESPONSE B")
	// ErrEmptyResponse is returned when either answer is blank.
	ErrEmptyResponse = errors.New("qagen: empty response")
)

var (
	questionPrefixRe = regexp.MustCompile(`^(?:[-*\x{2022}]\s*|(?:Q(?:uestion)?\s*)?\d+\s*[.):-]\s*|Q(?:uestion)?\s*[.:]\s*)+`)
	responseARe      = regexp.MustCompile(`(?i)\**\s*RESPONSE\s+A\s*\**\s*:\s*\**`)
	responseBRe      = regexp.MustCompile(`(?i)\**\s*RESPONSE\s+B\s*\**\s*:\s*\**`)
)

// ParseQuestions splits a question reply into at most n questions (n <= 0
// keeps all). List markers and numbering are stripped; blank lines,
// headings ending in ':' and repeats are dropped.
func ParseQuestions(reply string, n int) []string {
	var out []string
	seen := make(map[string]bool)
	for _, line := range strings.Split(reply, "\n") {
		q := strings.TrimSpace(strings.Trim(strings.TrimSpace(line), "*"))
		q = strings.TrimSpace(questionPrefixRe.ReplaceAllString(q, ""))
		q = strings.TrimSpace(strings.Trim(q, "*"))
		if q == "" || strings.HasSuffix(q, ":") {
			continue
		}
		key := strings.ToLower(q)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, q)
		if n > 0 && len(out) == n {
			break
		}
	}
	return out
}

// ParseResponses splits a "RESPONSE A: ... RESPONSE B: ..." reply.
func ParseResponses(reply string) (a, b string, err error) {
	loc := responseBRe.FindStringIndex(reply)
	if loc == nil {
		return "", "", ErrMissingResponseB
	}
	a = strings.TrimSpace(responseARe.ReplaceAllString(reply[:loc[0]], ""))
	b = strings.TrimSpace(reply[loc[1]:])
	if a == "" || b == "" {
		return "", "", ErrEmptyResponse
	}
	return a, b, nil
}
