package document

import "strings"

// Document is a parsed source file as an ordered list of pages.
type Document struct {
	Title string // Document title (from metadata or filename)
	Pages []Page
	// Headings are the styled headings of structured formats (Markdown,
	// HTML, DOCX) in document order. PDF and text sources leave it empty.
	Headings []Heading
}

// Heading is a styled heading. Level 1 is the outermost.
type Heading struct {
	Level int
	Title string
	Page  int
}

// Page is the extracted text of one source page. Number is 1-based; Text is
// empty when the page had no extractable text.
type Page struct {
	Number int
	Text   string
}

// Head returns at most the first n pages.
func (d *Document) Head(n int) []Page {
	if n <= 0 || n >= len(d.Pages) {
		return d.Pages
	}
	return d.Pages[:n]
}

// Text joins all page text, separating pages with a form feed.
func (d *Document) Text() string {
	return JoinPages(d.Pages)
}

// EmptyPages returns the numbers of pages with no text.
func (d *Document) EmptyPages() []int {
	var out []int
	for _, p := range d.Pages {
		if strings.TrimSpace(p.Text) == "" {
			out = append(out, p.Number)
		}
	}
	return out
}

// JoinPages concatenates page text with form feeds between pages.
func JoinPages(pages []Page) string {
	var sb strings.Builder
	for i, p := range pages {
		if i > 0 {
			sb.WriteString("\f")
		}
		sb.WriteString(p.Text)
	}
	return sb.String()
}

// SplitPages splits text on form feeds into 1-based pages. A trailing form
// feed does not produce an extra page.
func SplitPages(text string) []Page {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, "\f")
	if len(parts) > 1 && strings.TrimSpace(parts[len(parts)-1]) == "" {
		parts = parts[:len(parts)-1]
	}
	pages := make([]Page, 0, len(parts))
	for i, p := range parts {
		pages = append(pages, Page{Number: i + 1, Text: p})
	}
	return pages
}
