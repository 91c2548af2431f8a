package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/dgallion1/synthtune/internal/config"
	"github.com/dgallion1/synthtune/internal/llm"
	"github.com/dgallion1/synthtune/internal/parser"
	"github.com/dgallion1/synthtune/internal/pipeline"
	"github.com/dgallion1/synthtune/internal/segment"
	"github.com/dgallion1/synthtune/internal/toc"
	"github.com/spf13/cobra"
)

func segmentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "segment",
		Short: "Split a handbook into titled segments",
		Long: `Split a handbook into segments keyed by the titles of its table of contents.

The hierarchy comes from --toc when given, otherwise from the document's
own headings or contents pages, then from an LLM when --llm is set, and
finally from heading discovery.

Example:
  synthtune segment --file handbook.pdf --toc toc.json --out segments.json
  synthtune segment --file handbook.pdf --scope all --duplicates merge`,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			tocPath, _ := cmd.Flags().GetString("toc")
			out, _ := cmd.Flags().GetString("out")
			useLLM, _ := cmd.Flags().GetBool("llm")

			if file == "" {
				return fmt.Errorf("--file flag is required")
			}
			log := newLogger(cmd)
			cfg := config.Load()
			settings, err := segmentSettings(cmd, pipeline.SettingsFromConfig(cfg))
			if err != nil {
				return err
			}

			doc, err := parser.ParseFile(file, settings.Parser)
			if err != nil {
				return err
			}
			h, err := loadTOC(tocPath)
			if err != nil {
				return err
			}
			tocLLM, closeLLM, err := tocCompleter(cfg, useLLM)
			if err != nil {
				return err
			}
			defer closeLLM()

			report, err := pipeline.Segment(cmd.Context(), doc, h, tocLLM, settings, log)
			if err != nil {
				return err
			}

			w, err := openOutput(out)
			if err != nil {
				return err
			}
			defer w.Close()
			if _, err := report.Table.WriteTo(w); err != nil {
				return fmt.Errorf("write segments: %w", err)
			}

			printDiagnostics(report.Diagnostics)
			if len(report.Missing) > 0 {
				fmt.Fprintf(os.Stderr, "no segment for %d title(s): %s\n", len(report.Missing), strings.Join(report.Missing, "; "))
			}
			fmt.Fprintf(os.Stderr, "%d segment(s) from %s hierarchy, %d page(s) scanned, %d skipped\n",
				report.Table.Len(), report.Source, report.PagesScanned, report.PagesSkipped)
			return nil
		},
	}

	cmd.Flags().StringP("file", "f", "", "Handbook to segment (pdf, docx, md, html, txt)")
	cmd.Flags().StringP("toc", "t", "", "Title hierarchy file (JSON or YAML)")
	cmd.Flags().StringP("out", "o", "", "Output segments file (default stdout)")
	cmd.Flags().Bool("llm", false, "Extract the hierarchy with the configured LLM when none is found")
	addSegmentFlags(cmd)
	return cmd
}

func tocCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "toc",
		Short: "Print the title hierarchy found for a handbook",
		Long: `Resolve the title hierarchy of a handbook without segmenting it.

The result can be edited and passed back with segment --toc.

Example:
  synthtune toc --file handbook.pdf --out toc.json
  synthtune toc --file handbook.pdf --llm`,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			out, _ := cmd.Flags().GetString("out")
			useLLM, _ := cmd.Flags().GetBool("llm")
			scanPages, _ := cmd.Flags().GetInt("scan-pages")

			if file == "" {
				return fmt.Errorf("--file flag is required")
			}
			log := newLogger(cmd)
			cfg := config.Load()

			doc, err := parser.ParseFile(file, parser.Options{FallbackPdftotext: cfg.PDFFallbackPdftotext})
			if err != nil {
				return err
			}
			tocLLM, closeLLM, err := tocCompleter(cfg, useLLM)
			if err != nil {
				return err
			}
			defer closeLLM()

			res, err := pipeline.ResolveHierarchy(cmd.Context(), doc, nil, tocLLM, scanPages, log)
			if err != nil {
				return err
			}

			w, err := openOutput(out)
			if err != nil {
				return err
			}
			defer w.Close()
			if err := writeJSON(w, res.Hierarchy); err != nil {
				return fmt.Errorf("write toc: %w", err)
			}

			printDiagnostics(res.Diagnostics)
			fmt.Fprintf(os.Stderr, "%d title(s) from %s hierarchy", res.Hierarchy.Len(), res.Source)
			if len(res.SkipPages) > 0 {
				fmt.Fprintf(os.Stderr, ", contents on page(s) %v", res.SkipPages)
			}
			fmt.Fprintln(os.Stderr)
			return nil
		},
	}

	cmd.Flags().StringP("file", "f", "", "Handbook to inspect")
	cmd.Flags().StringP("out", "o", "", "Output hierarchy file (default stdout)")
	cmd.Flags().Bool("llm", false, "Extract the hierarchy with the configured LLM when none is found")
	cmd.Flags().Int("scan-pages", toc.DefaultScanPages, "Leading pages searched for a table of contents")
	return cmd
}

func addSegmentFlags(cmd *cobra.Command) {
	cmd.Flags().Int("max-paragraphs", segment.DefaultMaxParagraphs, "Split segments with more paragraphs than this (negative disables)")
	cmd.Flags().Bool("fuzzy", false, "Match titles by edit distance instead of exact prefix")
	cmd.Flags().String("scope", "leaves", "Titles to match (leaves, subsections, all)")
	cmd.Flags().String("duplicates", "suffix", "Recurring title policy (suffix, overwrite, merge)")
	cmd.Flags().String("precedence", "longest", "Competing match policy (longest, declaration)")
	cmd.Flags().Bool("page-hints", false, "Reject matches before a title's page number")
	cmd.Flags().Int("page-offset", 0, "Added to page hints to absorb unnumbered front matter")
}

func segmentSettings(cmd *cobra.Command, s pipeline.Settings) (pipeline.Settings, error) {
	maxParagraphs, _ := cmd.Flags().GetInt("max-paragraphs")
	fuzzy, _ := cmd.Flags().GetBool("fuzzy")
	scope, _ := cmd.Flags().GetString("scope")
	duplicates, _ := cmd.Flags().GetString("duplicates")
	precedence, _ := cmd.Flags().GetString("precedence")
	pageHints, _ := cmd.Flags().GetBool("page-hints")
	pageOffset, _ := cmd.Flags().GetInt("page-offset")

	var err error
	if s.Scope, err = segment.ParseScope(scope); err != nil {
		return s, err
	}
	if s.Segment.Duplicates, err = segment.ParseDuplicatePolicy(duplicates); err != nil {
		return s, err
	}
	if s.Segment.Precedence, err = segment.ParsePrecedence(precedence); err != nil {
		return s, err
	}
	if cmd.Flags().Changed("max-paragraphs") {
		s.Segment.MaxParagraphs = maxParagraphs
	}
	if cmd.Flags().Changed("fuzzy") {
		s.Fuzzy = fuzzy
	}
	s.Segment.UsePageHints = pageHints
	s.Segment.PageOffset = pageOffset
	return s, nil
}

func loadTOC(path string) (*toc.Hierarchy, error) {
	if path == "" {
		return nil, nil
	}
	h, diags, err := toc.LoadFile(path)
	if err != nil {
		return nil, err
	}
	printDiagnostics(diags)
	return h, nil
}

// tocCompleter returns the configured contents-extraction client when
// enabled, and a func releasing it.
func tocCompleter(cfg config.Config, enabled bool) (llm.Completer, func(), error) {
	if !enabled {
		return nil, func() {}, nil
	}
	clients, err := pipeline.NewClients(cfg)
	if err != nil {
		return nil, nil, err
	}
	return clients.TOC, clients.Close, nil
}
