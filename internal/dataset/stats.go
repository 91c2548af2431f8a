package dataset

import (
	"bufio"
	"io"
	"strings"

	"github.com/dgallion1/synthtune/internal/chunker"
)

// DefaultPricePerToken is the per-token training price used by estimates.
const DefaultPricePerToken = 0.0001

// Estimate is the rough training cost of a set of JSONL files.
type Estimate struct {
	Tokens int     `json:"tokens"`
	Cost   float64 `json:"cost"`
}

// EstimateCost counts whitespace-separated tokens across every line of
// files and prices them. A non-positive price uses DefaultPricePerToken.
func EstimateCost(price float64, files ...io.Reader) (Estimate, error) {
	if price <= 0 {
		price = DefaultPricePerToken
	}
	var est Estimate
	for _, f := range files {
		br := bufio.NewReader(f)
		for {
			line, err := br.ReadString('\n')
			est.Tokens += chunker.CountWords(line)
			if err == io.EOF {
				break
			}
			if err != nil {
				return Estimate{}, err
			}
		}
	}
	est.Cost = float64(est.Tokens) * price
	return est, nil
}

// Summary describes a prompt/completion set.
type Summary struct {
	Examples           int     `json:"examples"`
	Segments           int     `json:"segments"`
	AvgPromptWords     float64 `json:"avg_prompt_words"`
	AvgCompletionWords float64 `json:"avg_completion_words"`
	MaxCompletionWords int     `json:"max_completion_words"`
	EstimatedTokens    int     `json:"estimated_tokens"`
}

// Analyze summarises examples.
func Analyze(examples []Example) Summary {
	s := Summary{Examples: len(examples)}
	if len(examples) == 0 {
		return s
	}
	segments := make(map[string]struct{})
	var promptWords, completionWords int
	for _, e := range examples {
		if first, _, ok := strings.Cut(e.Prompt, "\n"); ok {
			if seg, ok := strings.CutPrefix(first, "Segment: "); ok {
				segments[seg] = struct{}{}
			}
		}
		pw := chunker.CountWords(e.Prompt)
		cw := chunker.CountWords(e.Completion)
		promptWords += pw
		completionWords += cw
		s.MaxCompletionWords = max(s.MaxCompletionWords, cw)
		s.EstimatedTokens += chunker.EstimateTokens(e.Prompt) + chunker.EstimateTokens(e.Completion)
	}
	s.Segments = len(segments)
	s.AvgPromptWords = float64(promptWords) / float64(len(examples))
	s.AvgCompletionWords = float64(completionWords) / float64(len(examples))
	return s
}
