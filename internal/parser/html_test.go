package parser

import (
	"strings"
	"testing"
)

func TestHTMLParser(t *testing.T) {
	input := `<html><head><title>ACME Handbook</title><style>p{}</style></head>
<body>
<nav>Home | About</nav>
<h1>Policies</h1>
<h2>Open Door
  Policy</h2>
<p>We value
   honesty.</p>
<ul><li>Talk to your manager</li><li>Talk to HR</li></ul>
<script>var x = 1;</script>
</body></html>`

	p := &HTMLParser{}
	doc, err := p.Parse(strings.NewReader(input), "handbook.html")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title != "ACME Handbook" {
		t.Errorf("expected title from <title>, got %q", doc.Title)
	}
	want := "Policies\n\nOpen Door Policy\n\nWe value honesty.\n\nTalk to your manager\n\nTalk to HR"
	if len(doc.Pages) != 1 || doc.Pages[0].Text != want {
		t.Fatalf("expected %q, got %+v", want, doc.Pages)
	}
	if len(doc.Headings) != 2 || doc.Headings[1].Level != 2 || doc.Headings[1].Title != "Open Door Policy" {
		t.Errorf("unexpected headings %+v", doc.Headings)
	}
}

func TestHTMLParser_TitleFromFilename(t *testing.T) {
	p := &HTMLParser{}
	doc, err := p.Parse(strings.NewReader("<p>hi</p>"), "page.htm")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title != "page" {
		t.Errorf("expected %q, got %q", "page", doc.Title)
	}
}
