package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestForFile(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"a.txt", "*parser.TextParser"},
		{"a.MD", "*parser.MarkdownParser"},
		{"a.htm", "*parser.HTMLParser"},
		{"a.pdf", "*parser.PDFParser"},
		{"a.docx", "*parser.DOCXParser"},
	}
	for _, tt := range tests {
		p, err := ForFile(tt.name, Options{})
		if err != nil {
			t.Fatalf("ForFile(%q): %v", tt.name, err)
		}
		if got := typeName(p); got != tt.want {
			t.Errorf("ForFile(%q): expected %s, got %s", tt.name, tt.want, got)
		}
	}
	if _, err := ForFile("a.csv", Options{}); err == nil {
		t.Error("expected error for unsupported extension")
	}

	p, _ := ForFile("a.pdf", Options{FallbackPdftotext: true})
	if !p.(*PDFParser).FallbackPdftotext {
		t.Error("expected pdftotext fallback to be passed through")
	}
}

func TestIsSupportedExtension(t *testing.T) {
	if !IsSupportedExtension("Handbook.PDF") {
		t.Error("expected .PDF to be supported")
	}
	if IsSupportedExtension("sheet.xlsx") {
		t.Error("expected .xlsx to be unsupported")
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "handbook.txt")
	if err := os.WriteFile(path, []byte("Leave\nTake time off.\fConduct\nBehave."), 0o644); err != nil {
		t.Fatal(err)
	}
	doc, err := ParseFile(path, Options{})
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if doc.Title != "handbook" || len(doc.Pages) != 2 {
		t.Errorf("unexpected document %+v", doc)
	}
}

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}
