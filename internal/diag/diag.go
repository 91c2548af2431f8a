package diag

import "fmt"

// Kind classifies a non-fatal problem found while loading a title
// hierarchy or segmenting a document.
type Kind string

const (
	PageExtractionGap       Kind = "page_extraction_gap"
	NoMatchableContent      Kind = "no_matchable_content"
	MalformedHierarchyEntry Kind = "malformed_hierarchy_entry"
	RecurringTitle          Kind = "recurring_title"
	SegmentTruncated        Kind = "segment_truncated"
)

// Diagnostic is a single data-quality event. Page and Title are zero when
// they do not apply.
type Diagnostic struct {
	Kind    Kind   `json:"kind"`
	Page    int    `json:"page,omitempty"`
	Title   string `json:"title,omitempty"`
	Message string `json:"message"`
}

func (d Diagnostic) String() string {
	switch {
	case d.Page > 0 && d.Title != "":
		return fmt.Sprintf("%s: page %d: %q: %s", d.Kind, d.Page, d.Title, d.Message)
	case d.Page > 0:
		return fmt.Sprintf("%s: page %d: %s", d.Kind, d.Page, d.Message)
	case d.Title != "":
		return fmt.Sprintf("%s: %q: %s", d.Kind, d.Title, d.Message)
	}
	return fmt.Sprintf("%s: %s", d.Kind, d.Message)
}

// Count returns how many diagnostics of kind k are in ds.
func Count(ds []Diagnostic, k Kind) int {
	n := 0
	for _, d := range ds {
		if d.Kind == k {
			n++
		}
	}
	return n
}

// Strings renders ds for job progress and CLI output.
func Strings(ds []Diagnostic) []string {
	out := make([]string, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.String())
	}
	return out
}
