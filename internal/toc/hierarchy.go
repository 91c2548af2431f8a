package toc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dgallion1/synthtune/internal/diag"
)

// ErrEmptyHierarchy is returned by loaders when no usable title survives.
var ErrEmptyHierarchy = errors.New("toc: hierarchy has no titles")

// Hierarchy is the ordered section/subsection structure of a document.
type Hierarchy struct {
	Sections []Section
}

// Section is a top-level title with optional subsections.
type Section struct {
	Title       string
	PageHint    int // 0 when unknown
	Subsections []Entry
}

// Entry is a subsection title.
type Entry struct {
	Title    string
	PageHint int
}

// Len returns the number of titles at both levels.
func (h *Hierarchy) Len() int {
	if h == nil {
		return 0
	}
	n := 0
	for _, s := range h.Sections {
		n += 1 + len(s.Subsections)
	}
	return n
}

// Titles lists every title in declaration order, sections before their
// subsections.
func (h *Hierarchy) Titles() []string {
	if h == nil {
		return nil
	}
	out := make([]string, 0, h.Len())
	for _, s := range h.Sections {
		out = append(out, s.Title)
		for _, e := range s.Subsections {
			out = append(out, e.Title)
		}
	}
	return out
}

// Clean drops empty titles and case-insensitive duplicates within a level,
// returning a new hierarchy and one diagnostic per dropped entry.
func Clean(h *Hierarchy) (*Hierarchy, []diag.Diagnostic) {
	var diags []diag.Diagnostic
	out := &Hierarchy{}
	if h == nil {
		return out, nil
	}
	seenSections := make(map[string]bool)
	for _, s := range h.Sections {
		title := collapse(s.Title)
		subs := cleanEntries(title, s.Subsections, &diags)
		switch {
		case title == "" && len(subs) == 0:
			diags = append(diags, malformed("", "empty section title"))
			continue
		case title == "":
			// Keep the subsections; the section itself cannot be matched.
			diags = append(diags, malformed("", "empty section title; subsections kept"))
		case seenSections[strings.ToLower(title)]:
			diags = append(diags, malformed(title, "duplicate section title dropped"))
			continue
		}
		if title != "" {
			seenSections[strings.ToLower(title)] = true
		}
		out.Sections = append(out.Sections, Section{Title: title, PageHint: s.PageHint, Subsections: subs})
	}
	return out, diags
}

func cleanEntries(section string, in []Entry, diags *[]diag.Diagnostic) []Entry {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]Entry, 0, len(in))
	for _, e := range in {
		title := collapse(e.Title)
		if title == "" {
			*diags = append(*diags, malformed(section, "empty subsection title"))
			continue
		}
		key := strings.ToLower(title)
		if seen[key] {
			*diags = append(*diags, malformed(title, fmt.Sprintf("duplicate subsection under %q dropped", section)))
			continue
		}
		seen[key] = true
		out = append(out, Entry{Title: title, PageHint: e.PageHint})
	}
	return out
}

// MarshalJSON writes the nested mapping shape in declaration order:
// {"Section": {"Sub": "3"}, "Leaf Section": "7"}.
func (h *Hierarchy) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, s := range h.Sections {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeKey(&buf, s.Title)
		if len(s.Subsections) == 0 {
			writeHint(&buf, s.PageHint)
			continue
		}
		buf.WriteByte('{')
		for j, e := range s.Subsections {
			if j > 0 {
				buf.WriteByte(',')
			}
			writeKey(&buf, e.Title)
			writeHint(&buf, e.PageHint)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts every shape Parse accepts and discards diagnostics.
func (h *Hierarchy) UnmarshalJSON(data []byte) error {
	parsed, _, err := Parse(data, FormatJSON)
	if err != nil {
		return err
	}
	*h = *parsed
	return nil
}

func writeKey(buf *bytes.Buffer, key string) {
	k, _ := json.Marshal(key)
	buf.Write(k)
	buf.WriteByte(':')
}

func writeHint(buf *bytes.Buffer, hint int) {
	if hint <= 0 {
		buf.WriteString(`""`)
		return
	}
	buf.WriteString(strconv.Quote(strconv.Itoa(hint)))
}

func malformed(title, msg string) diag.Diagnostic {
	return diag.Diagnostic{Kind: diag.MalformedHierarchyEntry, Title: title, Message: msg}
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
