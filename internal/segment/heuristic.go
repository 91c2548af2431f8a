package segment

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dgallion1/synthtune/internal/document"
	"github.com/dgallion1/synthtune/internal/toc"
)

const (
	maxHeadingRunes = 80
	maxHeadingWords = 10
)

var (
	numberedHeadingRe = regexp.MustCompile(`^(\d+(?:\.\d+)*)\.?\s+(\p{Lu}.*)$`)
	pageNumberRe      = regexp.MustCompile(`(?i)^(?:page\s+)?\d+(?:\s+of\s+\d+)?$|^-\s*\d+\s*-$`)
	minorWords        = map[string]bool{
		"a": true, "an": true, "and": true, "as": true, "at": true, "by": true, "for": true,
		"in": true, "of": true, "on": true, "or": true, "the": true, "to": true, "with": true,
	}
)

// DiscoverHeadings builds a flat hierarchy from lines that look like
// headings, for documents whose declared titles matched nothing. A line
// qualifies when it is short and either numbered ("3.2 Open Door Policy"),
// upper case, or a Title Case line standing alone between blank lines.
// Table-of-contents lines, page numbers and running headers are ignored.
// It returns nil when nothing qualifies.
func DiscoverHeadings(pages []document.Page) *toc.Hierarchy {
	running := runningLines(pages)
	h := &toc.Hierarchy{}
	seen := make(map[string]bool)

	for _, p := range pages {
		lines := splitLines(p.Text)
		for i, raw := range lines {
			line := strings.TrimSpace(Normalize(raw))
			if line == "" || running[fold(line)] {
				continue
			}
			title, ok := headingTitle(line, blankAt(lines, i-1) && blankAt(lines, i+1))
			if !ok {
				continue
			}
			key := fold(title)
			if seen[key] {
				continue
			}
			seen[key] = true
			h.Sections = append(h.Sections, toc.Section{Title: title, PageHint: p.Number})
		}
	}
	if len(h.Sections) == 0 {
		return nil
	}
	return h
}

func headingTitle(line string, standalone bool) (string, bool) {
	n := utf8.RuneCountInString(line)
	if n < 3 || n > maxHeadingRunes || pageNumberRe.MatchString(line) {
		return "", false
	}
	// Sentences end in punctuation; headings rarely do.
	if strings.ContainsAny(line[len(line)-1:], ".,;!?") {
		return "", false
	}
	if _, ok := toc.ParseLine(line); ok {
		return "", false
	}
	if m := numberedHeadingRe.FindStringSubmatch(line); m != nil {
		title := stripHeading(m[2])
		if plausibleTitle(title) {
			return title, true
		}
		return "", false
	}
	title := stripHeading(line)
	if !plausibleTitle(title) {
		return "", false
	}
	if upperCase(title) {
		return title, true
	}
	if standalone && titleCase(title) {
		return title, true
	}
	return "", false
}

// plausibleTitle rejects long lines and fragments without letters.
func plausibleTitle(s string) bool {
	words := strings.Fields(s)
	if len(words) == 0 || len(words) > maxHeadingWords {
		return false
	}
	letters := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			letters++
		}
	}
	return letters >= 2
}

func upperCase(s string) bool {
	hasUpper := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			hasUpper = true
		}
	}
	return hasUpper
}

// titleCase reports whether every word other than short connectives starts
// with an upper-case letter or a digit.
func titleCase(s string) bool {
	for i, w := range strings.Fields(s) {
		r, _ := utf8.DecodeRuneInString(w)
		if unicode.IsUpper(r) || unicode.IsDigit(r) {
			continue
		}
		if i > 0 && minorWords[strings.ToLower(w)] {
			continue
		}
		if !unicode.IsLetter(r) {
			continue
		}
		return false
	}
	return true
}

func blankAt(lines []string, i int) bool {
	return i < 0 || i >= len(lines) || strings.TrimSpace(lines[i]) == ""
}

// runningLines finds lines repeated on at least half of the non-empty
// pages, such as running headers and footers. Documents under three pages
// have none.
func runningLines(pages []document.Page) map[string]bool {
	counts := make(map[string]int)
	nonEmpty := 0
	for _, p := range pages {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		nonEmpty++
		onPage := make(map[string]bool)
		for _, l := range splitLines(p.Text) {
			if k := fold(l); k != "" && !onPage[k] {
				onPage[k] = true
				counts[k]++
			}
		}
	}
	out := make(map[string]bool)
	if nonEmpty < 3 {
		return out
	}
	for k, n := range counts {
		if 2*n >= nonEmpty {
			out[k] = true
		}
	}
	return out
}
