package parser

import (
	"bufio"
	"io"
	"strings"

	"github.com/dgallion1/synthtune/internal/document"
)

// TextParser handles plain text files. Form feeds separate pages, as in
// pdftotext output.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*document.Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var sb strings.Builder
	for scanner.Scan() {
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	doc := &document.Document{Title: titleFor(filename, ".txt")}
	text := sb.String()
	if strings.TrimSpace(text) == "" {
		return doc, nil
	}
	doc.Pages = document.SplitPages(text)
	return doc, nil
}
