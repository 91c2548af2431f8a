package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dgallion1/synthtune/internal/diag"
	"github.com/dgallion1/synthtune/internal/document"
	"github.com/dgallion1/synthtune/internal/llm"
	"github.com/dgallion1/synthtune/internal/segment"
	"github.com/dgallion1/synthtune/internal/toc"
)

// ErrNoHierarchy is returned when no table of contents could be found or
// inferred for a document.
var ErrNoHierarchy = errors.New("no table of contents found")

// Hierarchy sources, in the order they are tried.
const (
	SourceUploaded   = "uploaded"
	SourceHeadings   = "headings"
	SourceDetected   = "detected"
	SourceLLM        = "llm"
	SourceDiscovered = "discovered"
)

// Resolution is the hierarchy chosen for a document.
type Resolution struct {
	Hierarchy   *toc.Hierarchy
	Source      string
	SkipPages   []int // contents pages found in the document
	Diagnostics []diag.Diagnostic
}

// ResolveHierarchy picks the title hierarchy for doc: the uploaded one,
// then styled headings, then a detected contents page, then LLM
// extraction when tocLLM is set, then heading discovery. Detected contents
// pages of multi-page documents are always reported for skipping.
func ResolveHierarchy(ctx context.Context, doc *document.Document, uploaded *toc.Hierarchy, tocLLM llm.Completer, scanPages int, log *slog.Logger) (Resolution, error) {
	var res Resolution
	var detected *toc.Detection
	if len(doc.Pages) > 1 {
		detected = toc.Detect(doc.Pages, scanPages)
		if detected != nil {
			res.SkipPages = detected.Pages
		}
	}

	switch {
	case uploaded.Len() > 0:
		res.Hierarchy, res.Source = uploaded, SourceUploaded
		return res, nil
	case len(doc.Headings) > 0:
		if h := toc.FromHeadings(doc.Headings); h.Len() > 0 {
			res.Hierarchy, res.Source = h, SourceHeadings
			return res, nil
		}
	}
	if detected != nil {
		res.Hierarchy, res.Source = detected.Hierarchy, SourceDetected
		return res, nil
	}

	if tocLLM != nil {
		h, diags, err := toc.ExtractWithLLM(ctx, tocLLM, doc.Head(scanPages))
		if err == nil && h.Len() > 0 {
			res.Hierarchy, res.Source = h, SourceLLM
			res.Diagnostics = diags
			return res, nil
		}
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if log != nil {
			log.Warn("llm toc extraction failed, discovering headings", "error", err)
		}
	}

	if h := segment.DiscoverHeadings(doc.Pages); h != nil {
		res.Hierarchy, res.Source = h, SourceDiscovered
		return res, nil
	}
	return res, ErrNoHierarchy
}

// SegmentDocument compiles res and scans doc. When nothing matches and the
// hierarchy did not already come from heading discovery, it retries with
// discovered headings and updates res accordingly. A hierarchy with no
// titles in scope yields an empty table with diagnostics, not an error.
func SegmentDocument(ctx context.Context, doc *document.Document, res *Resolution, s Settings, log *slog.Logger) (segment.Result, error) {
	run := func(h *toc.Hierarchy) (segment.Result, error) {
		patterns, diags, err := segment.Compile(h, segment.CompileOptions{
			Scope:    s.Scope,
			Strategy: s.strategy(),
			Logger:   log,
		})
		if err != nil {
			return segment.Result{}, err
		}
		if len(patterns) == 0 {
			return segment.Result{
				Table: &segment.Table{},
				Diagnostics: append(diags,
					diag.Diagnostic{Kind: diag.MalformedHierarchyEntry, Message: "hierarchy has no titles in the selected scope"},
					diag.Diagnostic{Kind: diag.NoMatchableContent, Message: "no title patterns to match"},
				),
			}, nil
		}
		opts := s.Segment
		opts.SkipPages = res.SkipPages
		opts.Logger = log
		result, err := segment.ScanContext(ctx, doc.Pages, patterns, opts)
		if err != nil {
			return segment.Result{}, err
		}
		result.Diagnostics = append(diags, result.Diagnostics...)
		return result, nil
	}

	result, err := run(res.Hierarchy)
	if err != nil {
		return result, err
	}
	if result.Table.Len() > 0 || res.Source == SourceDiscovered {
		return result, nil
	}

	h := segment.DiscoverHeadings(doc.Pages)
	if h == nil {
		return result, nil
	}
	if log != nil {
		log.Info("no segments matched, retrying with discovered headings", "source", res.Source, "headings", h.Len())
	}
	retry, err := run(h)
	if err != nil {
		return result, err
	}
	if retry.Table.Len() == 0 {
		return result, nil
	}
	retry.Diagnostics = append(result.Diagnostics, retry.Diagnostics...)
	res.Hierarchy, res.Source = h, SourceDiscovered
	return retry, nil
}

// Report is the outcome of a synchronous segmentation run.
type Report struct {
	Title        string            `json:"title"`
	Source       string            `json:"toc_source"`
	Table        *segment.Table    `json:"segments"`
	Diagnostics  []diag.Diagnostic `json:"diagnostics"`
	Missing      []string          `json:"missing"`
	PagesScanned int               `json:"pages_scanned"`
	PagesSkipped int               `json:"pages_skipped"`
}

// Segment resolves a hierarchy for doc and segments it in one call.
func Segment(ctx context.Context, doc *document.Document, uploaded *toc.Hierarchy, tocLLM llm.Completer, s Settings, log *slog.Logger) (Report, error) {
	res, err := ResolveHierarchy(ctx, doc, uploaded, tocLLM, s.TOCScanPages, log)
	if err != nil {
		return Report{}, err
	}
	result, err := SegmentDocument(ctx, doc, &res, s, log)
	if err != nil {
		return Report{}, err
	}
	return Report{
		Title:        doc.Title,
		Source:       res.Source,
		Table:        result.Table,
		Diagnostics:  append(res.Diagnostics, result.Diagnostics...),
		Missing:      s.Missing(res.Hierarchy, result.Table),
		PagesScanned: result.PagesScanned,
		PagesSkipped: result.PagesSkipped,
	}, nil
}

// Missing lists the titles of h that produced no segment in t.
func (s Settings) Missing(h *toc.Hierarchy, t *segment.Table) []string {
	patterns, _, err := segment.Compile(h, segment.CompileOptions{Scope: s.Scope, Strategy: s.strategy()})
	if err != nil {
		return nil
	}
	return segment.Missing(patterns, t)
}
