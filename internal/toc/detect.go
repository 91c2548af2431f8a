package toc

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/dgallion1/synthtune/internal/document"
)

// DefaultScanPages is how many leading pages Detect inspects.
const DefaultScanPages = 10

var (
	tocHeadingRe = regexp.MustCompile(`(?im)^\s*(?:table\s+of\s+contents|contents|toc)\s*$`)
	// "3.2 Open Door Policy ........ 12" or "Benefits      7"
	tocLineRe = regexp.MustCompile(`^(\s*)(?:(\d+(?:\.\d+)*)\.?\s+)?(\S.*?)\s*(?:\.{2,}|…+|(?:\s\.){2,}|\s{2,}|\t)\s*\.?\s*(\d{1,4})\s*$`)
	letterRe  = regexp.MustCompile(`\p{L}`)
)

// TOCLine is one parsed "title .... page" line.
type TOCLine struct {
	Title  string
	Page   int
	Depth  int // 1 for sections, 2+ for nested entries
	Indent int
}

// ParseLine parses a single table-of-contents line.
func ParseLine(line string) (TOCLine, bool) {
	m := tocLineRe.FindStringSubmatch(strings.TrimRight(line, " \t\r"))
	if m == nil {
		return TOCLine{}, false
	}
	title := strings.TrimRight(collapse(m[3]), " .")
	if title == "" || !letterRe.MatchString(title) {
		return TOCLine{}, false
	}
	page, err := strconv.Atoi(m[4])
	if err != nil {
		return TOCLine{}, false
	}
	depth := 1
	if m[2] != "" {
		depth = strings.Count(m[2], ".") + 1
	}
	return TOCLine{Title: title, Page: page, Depth: depth, Indent: indentWidth(m[1])}, true
}

func indentWidth(s string) int {
	w := 0
	for _, r := range s {
		if r == '\t' {
			w += 4
		} else {
			w++
		}
	}
	return w
}

// IsTOCPage reports whether text looks like a table-of-contents page: a
// contents heading with at least two entries, or a page dominated by
// "title .... page" lines.
func IsTOCPage(text string) bool {
	entries, nonEmpty := 0, 0
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		nonEmpty++
		if _, ok := ParseLine(line); ok {
			entries++
		}
	}
	if tocHeadingRe.MatchString(text) && entries >= 2 {
		return true
	}
	return entries >= 5 && entries*2 >= nonEmpty
}

// ParseLines builds a hierarchy from table-of-contents text. Numbered
// entries nest by their numbering depth; unnumbered entries nest when they
// are indented further than the preceding section.
func ParseLines(text string) *Hierarchy {
	h := &Hierarchy{}
	sectionIndent := -1
	for _, line := range strings.Split(text, "\n") {
		tl, ok := ParseLine(line)
		if !ok {
			continue
		}
		nested := tl.Depth > 1 || (tl.Depth == 1 && sectionIndent >= 0 && tl.Indent > sectionIndent+1 && !numbered(line))
		if nested && len(h.Sections) > 0 {
			last := &h.Sections[len(h.Sections)-1]
			last.Subsections = append(last.Subsections, Entry{Title: tl.Title, PageHint: tl.Page})
			continue
		}
		h.Sections = append(h.Sections, Section{Title: tl.Title, PageHint: tl.Page})
		sectionIndent = tl.Indent
	}
	return h
}

func numbered(line string) bool {
	m := tocLineRe.FindStringSubmatch(strings.TrimRight(line, " \t\r"))
	return m != nil && m[2] != ""
}

// Detection is the result of scanning a document for its own contents pages.
type Detection struct {
	Hierarchy *Hierarchy
	Pages     []int // page numbers holding the table of contents
}

// Detect scans the first maxPages pages for table-of-contents pages and
// parses them. A page directly after a contents page is treated as a
// continuation when it has at least three entries. It returns nil when no
// contents page is found.
func Detect(pages []document.Page, maxPages int) *Detection {
	if maxPages <= 0 {
		maxPages = DefaultScanPages
	}
	var (
		found []int
		texts []string
		prev  = -1
	)
	for i, p := range pages {
		if i >= maxPages {
			break
		}
		isTOC := IsTOCPage(p.Text)
		if !isTOC && prev == p.Number-1 && countEntries(p.Text) >= 3 {
			isTOC = true
		}
		if isTOC {
			found = append(found, p.Number)
			texts = append(texts, p.Text)
			prev = p.Number
		}
	}
	if len(found) == 0 {
		return nil
	}
	h, _ := Clean(ParseLines(strings.Join(texts, "\n")))
	if h.Len() == 0 {
		return nil
	}
	return &Detection{Hierarchy: h, Pages: found}
}

func countEntries(text string) int {
	n := 0
	for _, line := range strings.Split(text, "\n") {
		if _, ok := ParseLine(line); ok {
			n++
		}
	}
	return n
}
