package segment

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultMaxParagraphs is the paragraph count above which a segment is
// split into parts.
const DefaultMaxParagraphs = 10

// paragraphSep is the delimiter written between paragraphs.
const paragraphSep = "\n\n"

var blankLineRe = regexp.MustCompile(`\n[ \t\r\f\v]*\n`)

// Paragraphs splits body on blank lines. Paragraphs that are empty after
// trimming are dropped; the rest keep their inner line breaks.
func Paragraphs(body string) []string {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	var out []string
	for _, p := range blankLineRe.Split(body, -1) {
		p = strings.Trim(p, "\n")
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

// NormalizeParagraphs rewrites every blank-line run in body as a single
// empty line.
func NormalizeParagraphs(body string) string {
	return strings.Join(Paragraphs(body), paragraphSep)
}

// PartTitle is the key of the k-th (1-based) part of a split segment.
func PartTitle(title string, k int) string {
	return fmt.Sprintf("%s - Part %d", title, k)
}

// Split breaks s into consecutive parts of at most threshold paragraphs,
// titled "{title} - Part {k}" and sharing the original page range. A
// segment with threshold or fewer paragraphs, or a threshold below 1, is
// returned unchanged.
//
// Joining the part bodies with a blank line gives NormalizeParagraphs(s.Body).
func Split(s Segment, threshold int) []Segment {
	if threshold < 1 {
		return []Segment{s}
	}
	paras := Paragraphs(s.Body)
	if len(paras) <= threshold {
		return []Segment{s}
	}
	parts := make([]Segment, 0, (len(paras)+threshold-1)/threshold)
	for i := 0; i < len(paras); i += threshold {
		end := min(i+threshold, len(paras))
		parts = append(parts, Segment{
			Title:     PartTitle(s.Title, len(parts)+1),
			Body:      strings.Join(paras[i:end], paragraphSep),
			StartPage: s.StartPage,
			EndPage:   s.EndPage,
			Matched:   s.Matched,
		})
	}
	return parts
}

// Join reassembles split parts into one body.
func Join(parts []Segment) string {
	bodies := make([]string, len(parts))
	for i, p := range parts {
		bodies[i] = p.Body
	}
	return strings.Join(bodies, paragraphSep)
}
