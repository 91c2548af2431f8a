package parser

import (
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"strings"

	"github.com/dgallion1/synthtune/internal/document"
	pdflib "github.com/ledongthuc/pdf"
)

// PDFParser handles PDF files one page at a time. It tries the Go library
// first, then falls back to pdftotext if enabled. A page whose text cannot
// be read comes back empty rather than failing the document.
type PDFParser struct {
	FallbackPdftotext bool
}

func (p *PDFParser) Parse(r io.Reader, filename string) (*document.Document, error) {
	// ledongthuc/pdf requires a ReadSeeker+size, so we write to a temp file.
	tmp, err := os.CreateTemp("", "synthtune-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	pages, err := extractPDFPages(tmpPath)
	if p.FallbackPdftotext && (err != nil || allEmpty(pages)) {
		if text, ferr := extractPdftotext(tmpPath); ferr == nil {
			pages, err = document.SplitPages(text), nil
		} else if err == nil {
			err = ferr
		}
	}
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}

	return &document.Document{
		Title: titleFor(filename, ".pdf", ".PDF"),
		Pages: pages,
	}, nil
}

func extractPDFPages(path string) (pages []document.Page, err error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fonts := make(map[string]*pdflib.Font)
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		pages = append(pages, document.Page{Number: i, Text: readPage(reader.Page(i), fonts)})
	}
	return pages, nil
}

// readPage returns the text of one page, or "" when it cannot be read.
// The PDF library panics on some malformed content streams.
func readPage(page pdflib.Page, fonts map[string]*pdflib.Font) (text string) {
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()
	if page.V.IsNull() {
		return ""
	}
	if rows, err := page.GetTextByRow(); err == nil {
		if t := rowsText(rows); strings.TrimSpace(t) != "" {
			return t
		}
	}
	for _, name := range page.Fonts() {
		if _, ok := fonts[name]; !ok {
			f := page.Font(name)
			fonts[name] = &f
		}
	}
	t, err := page.GetPlainText(fonts)
	if err != nil {
		return ""
	}
	return t
}

// paragraphGap is the vertical gap, in line heights, read as a paragraph
// break.
const paragraphGap = 1.8

// rowsText lays out text rows top to bottom, writing a blank line between
// rows further apart than paragraphGap.
func rowsText(rows pdflib.Rows) string {
	var sb strings.Builder
	var prevPos int64
	var prevSize float64
	for _, row := range rows {
		line := rowText(row.Content)
		if strings.TrimSpace(line) == "" {
			continue
		}
		size := rowFontSize(row.Content)
		if sb.Len() > 0 {
			sb.WriteByte('\n')
			gap := math.Abs(float64(prevPos - row.Position))
			if prevSize > 0 && gap > paragraphGap*prevSize {
				sb.WriteByte('\n')
			}
		}
		sb.WriteString(line)
		prevPos, prevSize = row.Position, size
	}
	return sb.String()
}

// rowText joins the glyph runs of a row, inserting a space where the
// horizontal gap between runs is wider than a fraction of the font size.
func rowText(texts pdflib.TextHorizontal) string {
	var sb strings.Builder
	var prev *pdflib.Text
	for i := range texts {
		t := &texts[i]
		if prev != nil && !strings.HasSuffix(prev.S, " ") && !strings.HasPrefix(t.S, " ") {
			gap := t.X - (prev.X + prev.W)
			if gap > 0.15*math.Max(prev.FontSize, 1) {
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(t.S)
		prev = t
	}
	return strings.TrimRight(sb.String(), " ")
}

func rowFontSize(texts pdflib.TextHorizontal) float64 {
	size := 0.0
	for _, t := range texts {
		size = math.Max(size, t.FontSize)
	}
	return size
}

func allEmpty(pages []document.Page) bool {
	for _, p := range pages {
		if strings.TrimSpace(p.Text) != "" {
			return false
		}
	}
	return true
}

func extractPdftotext(path string) (string, error) {
	cmd := exec.Command("pdftotext", "-layout", path, "-")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w", err)
	}
	return string(out), nil
}
