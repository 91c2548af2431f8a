package segment

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/dgallion1/synthtune/internal/diag"
	"github.com/dgallion1/synthtune/internal/toc"
)

// ErrNilHierarchy is returned by Compile when no hierarchy is supplied.
var ErrNilHierarchy = errors.New("segment: nil hierarchy")

// Scope selects which hierarchy titles become patterns.
type Scope int

const (
	// ScopeLeaves compiles subsections plus sections that have none.
	ScopeLeaves Scope = iota
	// ScopeSubsections compiles subsections only.
	ScopeSubsections
	// ScopeAll compiles every section and subsection.
	ScopeAll
)

// ParseScope reads "leaves", "subsections" or "all".
func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "leaves":
		return ScopeLeaves, nil
	case "subsections":
		return ScopeSubsections, nil
	case "all":
		return ScopeAll, nil
	}
	return ScopeLeaves, fmt.Errorf("unknown scope %q", s)
}

// Matcher reports whether a line is a heading for one title. Lines are
// passed through Normalize before Match is called.
type Matcher interface {
	Match(line string) bool
}

// Strategy builds the Matcher for a declared title.
type Strategy interface {
	Matcher(title string) (Matcher, error)
}

// Pattern is a compiled title.
type Pattern struct {
	Title    string
	Section  string // parent section; empty for top-level titles
	PageHint int
	Matcher  Matcher
}

// Patterns is an ordered, immutable list of compiled titles. It is safe to
// share across concurrent scans.
type Patterns []Pattern

// Titles returns the pattern titles in order.
func (ps Patterns) Titles() []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Title
	}
	return out
}

// CompileOptions controls Compile. The zero value compiles leaf titles
// with RegexStrategy.
type CompileOptions struct {
	Scope    Scope
	Strategy Strategy
	Logger   *slog.Logger
}

// Compile turns a hierarchy into ordered patterns: sections in declared
// order, subsections in declared order within each. Empty titles and
// repeated titles are skipped with a diagnostic.
func Compile(h *toc.Hierarchy, opts CompileOptions) (Patterns, []diag.Diagnostic, error) {
	if h == nil {
		return nil, nil, ErrNilHierarchy
	}
	strategy := opts.Strategy
	if strategy == nil {
		strategy = RegexStrategy{}
	}
	log := opts.Logger
	if log == nil {
		log = discard
	}

	var (
		patterns Patterns
		diags    []diag.Diagnostic
		seen     = make(map[string]bool)
	)
	add := func(title, section string, hint int) error {
		title = strings.TrimSpace(title)
		if title == "" {
			log.Warn("skipping empty title", "section", section)
			diags = append(diags, diag.Diagnostic{Kind: diag.MalformedHierarchyEntry, Title: section, Message: "empty title skipped"})
			return nil
		}
		key := fold(title)
		if seen[key] {
			log.Warn("skipping repeated title", "title", title)
			diags = append(diags, diag.Diagnostic{Kind: diag.MalformedHierarchyEntry, Title: title, Message: "title declared more than once; compiled once"})
			return nil
		}
		m, err := strategy.Matcher(title)
		if err != nil {
			return fmt.Errorf("compile %q: %w", title, err)
		}
		seen[key] = true
		patterns = append(patterns, Pattern{Title: title, Section: section, PageHint: hint, Matcher: m})
		return nil
	}

	for _, sec := range h.Sections {
		leaf := len(sec.Subsections) == 0
		if opts.Scope == ScopeAll || (opts.Scope == ScopeLeaves && leaf) {
			if err := add(sec.Title, "", sec.PageHint); err != nil {
				return nil, diags, err
			}
		}
		for _, sub := range sec.Subsections {
			if err := add(sub.Title, sec.Title, sub.PageHint); err != nil {
				return nil, diags, err
			}
		}
	}
	return patterns, diags, nil
}

// RegexStrategy matches a line when, after an optional leading section
// number, it equals the title or starts with it followed by whitespace, a
// colon or end of line. Case and inner whitespace runs are ignored.
type RegexStrategy struct{}

func (RegexStrategy) Matcher(title string) (Matcher, error) {
	re, err := titleRegexp(title)
	if err != nil {
		return nil, err
	}
	return regexMatcher{re: re}, nil
}

func titleRegexp(title string) (*regexp.Regexp, error) {
	words := strings.Fields(Normalize(title))
	if len(words) == 0 {
		return nil, errors.New("empty title")
	}
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	return regexp.Compile(`(?i)^\s*(?:\d+(?:\.\d+)*\.?\s*)?` + strings.Join(words, `\s+`) + `(?:[\s:]|$)`)
}

type regexMatcher struct {
	re *regexp.Regexp
}

func (m regexMatcher) Match(line string) bool {
	return m.re.MatchString(line)
}

// DefaultFuzzyThreshold is the similarity FuzzyStrategy uses when none is set.
const DefaultFuzzyThreshold = 0.85

// FuzzyStrategy accepts everything RegexStrategy does, plus heading lines
// whose Levenshtein similarity to the title reaches Threshold. It tolerates
// OCR slips and dropped characters in extracted text.
type FuzzyStrategy struct {
	Threshold float64
}

func (s FuzzyStrategy) Matcher(title string) (Matcher, error) {
	re, err := titleRegexp(title)
	if err != nil {
		return nil, err
	}
	threshold := s.Threshold
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultFuzzyThreshold
	}
	t := fold(title)
	return &fuzzyMatcher{
		exact:     regexMatcher{re: re},
		title:     t,
		titleLen:  utf8.RuneCountInString(t),
		threshold: threshold,
	}, nil
}

type fuzzyMatcher struct {
	exact     regexMatcher
	title     string
	titleLen  int
	threshold float64
}

func (m *fuzzyMatcher) Match(line string) bool {
	if m.exact.Match(line) {
		return true
	}
	cand := fold(stripHeading(line))
	if cand == "" {
		return false
	}
	n := utf8.RuneCountInString(cand)
	longest, shortest := max(n, m.titleLen), min(n, m.titleLen)
	// The distance is at least the length difference.
	if float64(shortest)/float64(longest) < m.threshold {
		return false
	}
	d := levenshtein.ComputeDistance(m.title, cand)
	return 1-float64(d)/float64(longest) >= m.threshold
}

// ResolverFunc maps a heading line to one of the declared titles, for
// example from a lookup table produced by a language model.
type ResolverFunc func(line string) (title string, ok bool)

// ResolverStrategy delegates matching to Resolve. Only a resolved title
// equal (case-insensitively) to the pattern's title matches.
type ResolverStrategy struct {
	Resolve ResolverFunc
}

func (s ResolverStrategy) Matcher(title string) (Matcher, error) {
	if s.Resolve == nil {
		return nil, errors.New("resolver strategy without a resolver")
	}
	return resolverMatcher{title: fold(title), resolve: s.Resolve}, nil
}

type resolverMatcher struct {
	title   string
	resolve ResolverFunc
}

func (m resolverMatcher) Match(line string) bool {
	t, ok := m.resolve(line)
	return ok && fold(t) == m.title
}

// LookupResolver resolves lines through a heading-line to title table.
// Keys are compared after stripping numbering and folding case.
func LookupResolver(table map[string]string) ResolverFunc {
	idx := make(map[string]string, len(table))
	for line, title := range table {
		idx[fold(stripHeading(line))] = title
	}
	return func(line string) (string, bool) {
		t, ok := idx[fold(stripHeading(line))]
		return t, ok
	}
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))
