package parser

import (
	"strings"
	"testing"
)

func TestMarkdownParser_HeadingsOnTheirOwnLines(t *testing.T) {
	input := `# Title

Intro text.

## Section A

Section A content
wraps here.

### Subsection A1

Subsection A1 content.

## Section B

Section B content.
`
	p := &MarkdownParser{}
	doc, err := p.Parse(strings.NewReader(input), "doc.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if doc.Title != "doc" {
		t.Errorf("expected title %q, got %q", "doc", doc.Title)
	}
	if len(doc.Pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(doc.Pages))
	}
	want := "Title\n\nIntro text.\n\nSection A\n\nSection A content\nwraps here.\n\nSubsection A1\n\nSubsection A1 content.\n\nSection B\n\nSection B content."
	if doc.Pages[0].Text != want {
		t.Errorf("expected %q, got %q", want, doc.Pages[0].Text)
	}

	if len(doc.Headings) != 4 {
		t.Fatalf("expected 4 headings, got %d", len(doc.Headings))
	}
	if h := doc.Headings[2]; h.Level != 3 || h.Title != "Subsection A1" {
		t.Errorf("unexpected heading %+v", h)
	}
}

func TestMarkdownParser_InlineMarkupAndLists(t *testing.T) {
	input := "## Pay & *Benefits*\n\n- Paid **leave**\n- Health `plan`\n"
	p := &MarkdownParser{}
	doc, err := p.Parse(strings.NewReader(input), "b.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "Pay & Benefits\n\nPaid leave\nHealth plan"
	if doc.Pages[0].Text != want {
		t.Errorf("expected %q, got %q", want, doc.Pages[0].Text)
	}
	if doc.Headings[0].Title != "Pay & Benefits" {
		t.Errorf("expected heading %q, got %q", "Pay & Benefits", doc.Headings[0].Title)
	}
}

func TestMarkdownParser_CodeBlocks(t *testing.T) {
	input := "# API Reference\n\nList of endpoints:\n\n```\nGET /api/users\nPOST /api/users\n```\n\nMore text after code.\n"

	p := &MarkdownParser{}
	doc, err := p.Parse(strings.NewReader(input), "api.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text := doc.Pages[0].Text
	if !strings.Contains(text, "GET /api/users\nPOST /api/users") {
		t.Errorf("expected code block content in text, got %q", text)
	}
	if !strings.HasSuffix(text, "More text after code.") {
		t.Errorf("expected post-code text, got %q", text)
	}
}

func TestMarkdownParser_EmptyInput(t *testing.T) {
	p := &MarkdownParser{}
	doc, err := p.Parse(strings.NewReader(""), "empty.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Pages) != 0 {
		t.Errorf("expected 0 pages for empty input, got %d", len(doc.Pages))
	}
}

func TestMarkdownParser_TitleStripping(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"readme.md", "readme"},
		{"notes.markdown", "notes"},
		{"plain.md", "plain"},
	}
	p := &MarkdownParser{}
	for _, tt := range tests {
		doc, err := p.Parse(strings.NewReader("text"), tt.filename)
		if err != nil {
			t.Fatalf("unexpected error for %s: %v", tt.filename, err)
		}
		if doc.Title != tt.want {
			t.Errorf("filename=%q: expected title %q, got %q", tt.filename, tt.want, doc.Title)
		}
	}
}
