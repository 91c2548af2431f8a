package toc

import (
	"strings"
	"testing"

	"github.com/dgallion1/synthtune/internal/document"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		line  string
		ok    bool
		title string
		page  int
		depth int
	}{
		{"Introduction ........ 3", true, "Introduction", 3, 1},
		{"1.2 Open Door Policy ..... 4", true, "Open Door Policy", 4, 2},
		{"3. Benefits\t12", true, "Benefits", 12, 1},
		{"Pay & Benefits     7", true, "Pay & Benefits", 7, 1},
		{"Leave of Absence … 9", true, "Leave of Absence", 9, 1},
		{"We value honesty.", false, "", 0, 0},
		{"Open Door Policy", false, "", 0, 0},
		{"........ 3", false, "", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, ok := ParseLine(tt.line)
			if ok != tt.ok {
				t.Fatalf("expected ok=%v, got %v (%+v)", tt.ok, ok, got)
			}
			if !ok {
				return
			}
			if got.Title != tt.title || got.Page != tt.page || got.Depth != tt.depth {
				t.Errorf("expected %q/%d/%d, got %q/%d/%d", tt.title, tt.page, tt.depth, got.Title, got.Page, got.Depth)
			}
		})
	}
}

const tocPage = `Table of Contents
Introduction ........ 3
1.1 Welcome ........ 3
1.2 Open Door Policy ........ 4
Benefits ........ 7`

func TestIsTOCPage(t *testing.T) {
	if !IsTOCPage(tocPage) {
		t.Error("expected contents page to be detected")
	}
	if IsTOCPage("Introduction\nWelcome to the company. We are glad you are here.\n") {
		t.Error("expected body page not to be detected")
	}
	dense := strings.Repeat("Some Section ..... 4\n", 6) + "footer"
	if !IsTOCPage(dense) {
		t.Error("expected page of entries without a heading to be detected")
	}
}

func TestParseLines_NumberingNests(t *testing.T) {
	h := ParseLines(tocPage)
	if got := strings.Join(h.Titles(), "|"); got != "Introduction|Welcome|Open Door Policy|Benefits" {
		t.Fatalf("unexpected titles %s", got)
	}
	if len(h.Sections) != 2 || len(h.Sections[0].Subsections) != 2 {
		t.Fatalf("expected Introduction with 2 subsections, got %+v", h.Sections)
	}
	if h.Sections[0].Subsections[1].PageHint != 4 {
		t.Errorf("expected hint 4, got %d", h.Sections[0].Subsections[1].PageHint)
	}
}

func TestParseLines_IndentationNests(t *testing.T) {
	text := "Policies .... 5\n    Leave .... 5\n    Conduct .... 6\nBenefits .... 8\n"
	h := ParseLines(text)
	if len(h.Sections) != 2 {
		t.Fatalf("expected 2 sections, got %+v", h.Sections)
	}
	subs := h.Sections[0].Subsections
	if len(subs) != 2 || subs[0].Title != "Leave" || subs[1].Title != "Conduct" {
		t.Errorf("expected Leave and Conduct under Policies, got %+v", subs)
	}
}

func TestDetect(t *testing.T) {
	pages := []document.Page{
		{Number: 1, Text: "ACME Employee Handbook\n2024"},
		{Number: 2, Text: tocPage},
		{Number: 3, Text: "Conduct ........ 9\nSafety ........ 11\nLeave ........ 12"},
		{Number: 4, Text: "Introduction\nWelcome aboard."},
	}
	d := Detect(pages, 0)
	if d == nil {
		t.Fatal("expected detection")
	}
	if len(d.Pages) != 2 || d.Pages[0] != 2 || d.Pages[1] != 3 {
		t.Errorf("expected pages [2 3], got %v", d.Pages)
	}
	if got := strings.Join(d.Hierarchy.Titles(), "|"); got != "Introduction|Welcome|Open Door Policy|Benefits|Conduct|Safety|Leave" {
		t.Errorf("unexpected titles %s", got)
	}
}

func TestDetect_NoContents(t *testing.T) {
	pages := []document.Page{{Number: 1, Text: "Just prose."}, {Number: 2, Text: ""}}
	if d := Detect(pages, 5); d != nil {
		t.Errorf("expected nil, got %+v", d)
	}
}

func TestDetect_RespectsPageLimit(t *testing.T) {
	pages := []document.Page{
		{Number: 1, Text: "Cover"},
		{Number: 2, Text: tocPage},
	}
	if d := Detect(pages, 1); d != nil {
		t.Errorf("expected nil when contents page is past the limit, got %v", d.Pages)
	}
}

func TestFromHeadings(t *testing.T) {
	hs := []document.Heading{
		{Level: 1, Title: "Employee Handbook", Page: 1},
		{Level: 2, Title: "Introduction", Page: 1},
		{Level: 3, Title: "Open Door Policy", Page: 1},
		{Level: 4, Title: "Escalation", Page: 1},
		{Level: 2, Title: "Benefits", Page: 1},
	}
	h := FromHeadings(hs)
	if got := strings.Join(h.Titles(), "|"); got != "Introduction|Open Door Policy|Escalation|Benefits" {
		t.Errorf("unexpected titles %s", got)
	}
	if len(h.Sections) != 2 || len(h.Sections[0].Subsections) != 2 {
		t.Errorf("expected 2 sections with Introduction holding 2 entries, got %+v", h.Sections)
	}

	flat := FromHeadings([]document.Heading{{Level: 2, Title: "A"}, {Level: 2, Title: "B"}})
	if got := strings.Join(flat.Titles(), "|"); got != "A|B" {
		t.Errorf("expected A|B, got %s", got)
	}
	if FromHeadings(nil) != nil {
		t.Error("expected nil for no headings")
	}
}
