package segment

import (
	"strings"
	"testing"

	"github.com/dgallion1/synthtune/internal/document"
)

func TestDiscoverHeadings(t *testing.T) {
	pages := pagesOf(strings.Join([]string{
		"ACME Handbook",
		"",
		"BENEFITS ........ 4",
		"1. Introduction",
		"Welcome to the company.",
		"",
		"EMPLOYMENT BASICS",
		"Some text here that is a sentence.",
		"",
		"Open Door Policy",
		"",
		"We value honesty.",
		"",
		"Page 3 of 10",
		"",
	}, "\n"))

	h := DiscoverHeadings(pages)
	if h == nil {
		t.Fatal("expected headings")
	}
	want := []string{"ACME Handbook", "Introduction", "EMPLOYMENT BASICS", "Open Door Policy"}
	got := h.Titles()
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("expected %q, got %q", want, got)
	}
	for _, s := range h.Sections {
		if s.PageHint != 1 || len(s.Subsections) != 0 {
			t.Errorf("%s: expected flat entry with page 1, got %+v", s.Title, s)
		}
	}
}

func TestDiscoverHeadings_IgnoresRunningHeaders(t *testing.T) {
	pages := pagesOf(
		"ACME CORP HANDBOOK\nGeneral text on page one.",
		"ACME CORP HANDBOOK\n\nBENEFITS\nWe pay well.",
		"ACME CORP HANDBOOK\nMore text.",
		"ACME CORP HANDBOOK\nEven more text.",
	)
	h := DiscoverHeadings(pages)
	if h == nil {
		t.Fatal("expected headings")
	}
	if got := h.Titles(); len(got) != 1 || got[0] != "BENEFITS" {
		t.Fatalf("expected [BENEFITS], got %q", got)
	}
	if h.Sections[0].PageHint != 2 {
		t.Errorf("expected page hint 2, got %d", h.Sections[0].PageHint)
	}
}

func TestDiscoverHeadings_FeedsScanner(t *testing.T) {
	pages := []document.Page{
		{Number: 1, Text: "1. Leave\nTake time off.\n2. Conduct\nBehave."},
	}
	h := DiscoverHeadings(pages)
	res := run(t, pages, compile(t, h), Options{})
	assertKeys(t, res.Table, "Leave", "Conduct")
	assertSegment(t, res.Table, "Conduct", "Behave.", 1, 1)
}

func TestDiscoverHeadings_NothingFound(t *testing.T) {
	if h := DiscoverHeadings(pagesOf("just a sentence.", "")); h != nil {
		t.Errorf("expected nil, got %v", h.Titles())
	}
}
