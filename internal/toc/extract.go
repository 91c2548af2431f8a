package toc

import (
	"context"
	"fmt"
	"strings"

	"github.com/dgallion1/synthtune/internal/chunker"
	"github.com/dgallion1/synthtune/internal/diag"
	"github.com/dgallion1/synthtune/internal/document"
	"github.com/dgallion1/synthtune/internal/llm"
)

// maxPromptTokens bounds the document excerpt sent for extraction.
const maxPromptTokens = 3000

const extractionSystem = "You are an expert in document analysis and structuring."

const extractionPrompt = `Extract the table of contents of the following employee handbook excerpt.

Return a JSON object mapping each top-level section title to either:
- the page number where it starts, as a string, when it has no subsections, or
- an object mapping each subsection title to the page number where it starts, as a string.

Keep titles exactly as they are written in the document and list them in document order.
If a page number is unknown use "". If there is no explicit table of contents, infer the
section structure from the headings in the text.

Respond with ONLY the JSON object, no other text.

Document excerpt:

%s`

// ExtractWithLLM asks c for the hierarchy of the first pages of a document.
func ExtractWithLLM(ctx context.Context, c llm.Completer, pages []document.Page) (*Hierarchy, []diag.Diagnostic, error) {
	var sb strings.Builder
	for _, p := range pages {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		fmt.Fprintf(&sb, "--- page %d ---\n%s\n", p.Number, p.Text)
	}
	excerpt := chunker.Truncate(sb.String(), maxPromptTokens)
	if strings.TrimSpace(excerpt) == "" {
		return nil, nil, fmt.Errorf("toc extraction: %w", ErrEmptyHierarchy)
	}

	out, err := llm.CompleteWithRetry(ctx, c, llm.Request{
		System:      extractionSystem,
		Prompt:      fmt.Sprintf(extractionPrompt, excerpt),
		Temperature: 0.2,
		MaxTokens:   4096,
	}, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("toc extraction: %w", err)
	}
	obj, ok := llm.ExtractJSONObject(out)
	if !ok {
		return nil, nil, fmt.Errorf("toc extraction: no JSON object in response (raw: %s)", llm.Truncate(out, 200))
	}
	return Parse([]byte(obj), FormatJSON)
}
