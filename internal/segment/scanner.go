package segment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dgallion1/synthtune/internal/diag"
	"github.com/dgallion1/synthtune/internal/document"
)

// ErrNoPatterns is returned when a scan is started without patterns.
var ErrNoPatterns = errors.New("segment: no title patterns")

// DefaultMaxSegmentBytes caps the body of a single segment.
const DefaultMaxSegmentBytes = 4 << 20

// DuplicatePolicy decides what happens when a title closes a second
// segment.
type DuplicatePolicy int

const (
	// DuplicateSuffix keeps every occurrence, keying later ones "Title (2)",
	// "Title (3)" and so on.
	DuplicateSuffix DuplicatePolicy = iota
	// DuplicateOverwrite replaces the earlier segment in place.
	DuplicateOverwrite
	// DuplicateMerge appends the later body to the earlier segment and
	// widens its page range.
	DuplicateMerge
)

func (p DuplicatePolicy) String() string {
	switch p {
	case DuplicateOverwrite:
		return "overwrite"
	case DuplicateMerge:
		return "merge"
	}
	return "suffix"
}

// ParseDuplicatePolicy reads "suffix", "overwrite" or "merge".
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "suffix":
		return DuplicateSuffix, nil
	case "overwrite":
		return DuplicateOverwrite, nil
	case "merge":
		return DuplicateMerge, nil
	}
	return DuplicateSuffix, fmt.Errorf("unknown duplicate policy %q", s)
}

// Precedence decides which pattern wins when several match one line.
type Precedence int

const (
	// LongestMatch prefers the longest matching title, then declaration
	// order. "Policy Against Violence" beats "Policy".
	LongestMatch Precedence = iota
	// DeclarationOrder takes the first matching pattern.
	DeclarationOrder
)

// ParsePrecedence reads "longest" or "declaration".
func ParsePrecedence(s string) (Precedence, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "longest":
		return LongestMatch, nil
	case "declaration", "order":
		return DeclarationOrder, nil
	}
	return LongestMatch, fmt.Errorf("unknown precedence %q", s)
}

// Options controls a scan. The zero value gives the default behaviour.
type Options struct {
	// MaxParagraphs is the oversize split threshold. Zero means
	// DefaultMaxParagraphs; negative disables splitting.
	MaxParagraphs int
	// MaxSegmentBytes bounds one segment's body. Zero means
	// DefaultMaxSegmentBytes; negative disables the limit.
	MaxSegmentBytes int
	Duplicates      DuplicatePolicy
	Precedence      Precedence
	// UsePageHints rejects a match on a page before the title's hint plus
	// PageOffset. Offsets absorb front matter that the TOC numbering skips.
	UsePageHints bool
	PageOffset   int
	// SkipPages are page numbers never scanned, such as the TOC itself.
	SkipPages []int
	Logger    *slog.Logger
}

func (o Options) maxParagraphs() int {
	if o.MaxParagraphs == 0 {
		return DefaultMaxParagraphs
	}
	return o.MaxParagraphs
}

func (o Options) maxSegmentBytes() int {
	if o.MaxSegmentBytes == 0 {
		return DefaultMaxSegmentBytes
	}
	return o.MaxSegmentBytes
}

// Result is the outcome of a scan. An empty Table is a valid result and
// carries a NoMatchableContent diagnostic.
type Result struct {
	Table        *Table
	Diagnostics  []diag.Diagnostic
	PagesScanned int
	PagesSkipped int
}

// Scanner walks pages in order and cuts them into segments at title
// lines. A Scanner holds the state of one document and must not be shared;
// the Patterns it reads may be.
type Scanner struct {
	patterns Patterns
	opts     Options
	log      *slog.Logger
	skip     map[int]bool

	table *Table
	diags []diag.Diagnostic

	open      bool
	title     string
	start     int
	lines     []string
	size      int
	truncated bool

	lastPage int
	scanned  int
	skipped  int
}

// NewScanner returns a scanner over patterns. Patterns are tried longest
// title first unless opts.Precedence is DeclarationOrder.
func NewScanner(patterns Patterns, opts Options) *Scanner {
	ordered := append(Patterns(nil), patterns...)
	if opts.Precedence == LongestMatch {
		sort.SliceStable(ordered, func(i, j int) bool {
			return utf8.RuneCountInString(ordered[i].Title) > utf8.RuneCountInString(ordered[j].Title)
		})
	}
	log := opts.Logger
	if log == nil {
		log = discard
	}
	skip := make(map[int]bool, len(opts.SkipPages))
	for _, n := range opts.SkipPages {
		skip[n] = true
	}
	return &Scanner{
		patterns: ordered,
		opts:     opts,
		log:      log,
		skip:     skip,
		table:    &Table{},
	}
}

// Feed scans one page. Pages must be fed in increasing page order.
func (s *Scanner) Feed(p document.Page) {
	if s.skip[p.Number] {
		s.skipped++
		s.log.Debug("skipping page", "page", p.Number)
		return
	}
	if strings.TrimSpace(p.Text) == "" {
		s.skipped++
		s.log.Info("page has no extractable text", "page", p.Number)
		s.diags = append(s.diags, diag.Diagnostic{Kind: diag.PageExtractionGap, Page: p.Number, Message: "page has no extractable text"})
		return
	}
	s.scanned++
	s.lastPage = p.Number

	for _, line := range splitLines(p.Text) {
		if pat := s.match(line, p.Number); pat != nil {
			s.close(p.Number)
			s.open = true
			s.title = pat.Title
			s.start = p.Number
			s.log.Debug("title matched", "title", pat.Title, "page", p.Number)
			continue
		}
		if s.open {
			s.appendLine(strings.TrimRightFunc(line, unicode.IsSpace), p.Number)
		}
	}
}

func (s *Scanner) match(line string, page int) *Pattern {
	if strings.TrimSpace(line) == "" {
		return nil
	}
	norm := Normalize(line)
	for i := range s.patterns {
		p := &s.patterns[i]
		if s.opts.UsePageHints && p.PageHint > 0 && page < p.PageHint+s.opts.PageOffset {
			continue
		}
		if p.Matcher.Match(norm) {
			return p
		}
	}
	return nil
}

func (s *Scanner) appendLine(line string, page int) {
	if s.truncated {
		return
	}
	if limit := s.opts.maxSegmentBytes(); limit > 0 && s.size+len(line)+1 > limit {
		s.truncated = true
		s.log.Warn("segment exceeds size limit; truncating", "title", s.title, "page", page, "limit", limit)
		s.diags = append(s.diags, diag.Diagnostic{
			Kind:    diag.SegmentTruncated,
			Page:    page,
			Title:   s.title,
			Message: fmt.Sprintf("body exceeds %d bytes; remaining lines dropped", limit),
		})
		return
	}
	s.lines = append(s.lines, line)
	s.size += len(line) + 1
}

// close emits the open segment ending on page end, if it has a body.
func (s *Scanner) close(end int) {
	if !s.open {
		return
	}
	body := joinBody(s.lines)
	title, start := s.title, s.start
	s.open, s.title, s.lines, s.size, s.truncated = false, "", nil, 0, false
	if body == "" {
		s.log.Debug("discarding empty segment", "title", title, "page", start)
		return
	}
	s.add(Segment{Title: title, Body: body, StartPage: start, EndPage: end, Matched: title})
}

func (s *Scanner) add(seg Segment) {
	prev, seen := s.table.Get(seg.Title)
	if !seen {
		s.table.Set(seg)
		return
	}
	s.diags = append(s.diags, diag.Diagnostic{
		Kind:    diag.RecurringTitle,
		Page:    seg.StartPage,
		Title:   seg.Title,
		Message: fmt.Sprintf("title already matched on page %d; policy %s", prev.StartPage, s.opts.Duplicates),
	})
	s.log.Warn("recurring title", "title", seg.Title, "page", seg.StartPage, "policy", s.opts.Duplicates.String())

	switch s.opts.Duplicates {
	case DuplicateOverwrite:
		s.table.Set(seg)
	case DuplicateMerge:
		prev.Body += paragraphSep + seg.Body
		prev.StartPage = min(prev.StartPage, seg.StartPage)
		prev.EndPage = max(prev.EndPage, seg.EndPage)
		s.table.Set(prev)
	default:
		seg.Title = nextFreeKey(s.table, seg.Title)
		s.table.Set(seg)
	}
}

// nextFreeKey returns the first "title (n)", n >= 2, not yet in t.
func nextFreeKey(t *Table, title string) string {
	for n := 2; ; n++ {
		if k := fmt.Sprintf("%s (%d)", title, n); !t.Has(k) {
			return k
		}
	}
}

// Finish closes the last segment, splits oversized ones and returns the
// result. The scanner must not be fed afterwards.
func (s *Scanner) Finish() Result {
	s.close(s.lastPage)

	out := &Table{}
	threshold := s.opts.maxParagraphs()
	for _, seg := range s.table.Segments() {
		parts := Split(seg, threshold)
		if len(parts) > 1 {
			s.log.Debug("split oversized segment", "title", seg.Title, "parts", len(parts))
		}
		for _, p := range parts {
			if out.Has(p.Title) {
				taken := p.Title
				p.Title = nextFreeKey(out, taken)
				s.log.Warn("segment key already taken", "title", taken, "key", p.Title)
				s.diags = append(s.diags, diag.Diagnostic{
					Kind:    diag.RecurringTitle,
					Page:    p.StartPage,
					Title:   taken,
					Message: fmt.Sprintf("key already used by another segment; stored as %q", p.Title),
				})
			}
			out.Set(p)
		}
	}
	if out.Len() == 0 {
		s.diags = append(s.diags, diag.Diagnostic{Kind: diag.NoMatchableContent, Message: "no title matched any page"})
	}
	return Result{
		Table:        out,
		Diagnostics:  s.diags,
		PagesScanned: s.scanned,
		PagesSkipped: s.skipped,
	}
}

// Scan segments pages against patterns. Pages are processed in page
// number order regardless of their order in the slice.
func Scan(pages []document.Page, patterns Patterns, opts Options) (Result, error) {
	return ScanContext(context.Background(), pages, patterns, opts)
}

// ScanContext is Scan with cancellation checked between pages.
func ScanContext(ctx context.Context, pages []document.Page, patterns Patterns, opts Options) (Result, error) {
	if len(patterns) == 0 {
		return Result{}, ErrNoPatterns
	}
	sorted := append([]document.Page(nil), pages...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Number < sorted[j].Number })

	sc := NewScanner(patterns, opts)
	for _, p := range sorted {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		sc.Feed(p)
	}
	return sc.Finish(), nil
}

// joinBody joins lines with surrounding blank lines removed.
func joinBody(lines []string) string {
	i, j := 0, len(lines)
	for i < j && strings.TrimSpace(lines[i]) == "" {
		i++
	}
	for j > i && strings.TrimSpace(lines[j-1]) == "" {
		j--
	}
	return strings.Join(lines[i:j], "\n")
}
