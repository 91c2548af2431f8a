package parser

import (
	"testing"

	pdflib "github.com/ledongthuc/pdf"
)

func glyphs(y int64, size float64, runs ...string) *pdflib.Row {
	row := &pdflib.Row{Position: y}
	x := 0.0
	for _, r := range runs {
		if r == "_" {
			x += size
			continue
		}
		w := float64(len(r)) * size * 0.5
		row.Content = append(row.Content, pdflib.Text{FontSize: size, X: x, Y: float64(y), W: w, S: r})
		x += w
	}
	return row
}

func TestRowText_InsertsSpacesAtGaps(t *testing.T) {
	row := glyphs(700, 10, "Open", "_", "Door", "_", "Pol", "icy")
	if got := rowText(row.Content); got != "Open Door Policy" {
		t.Errorf("expected %q, got %q", "Open Door Policy", got)
	}
}

func TestRowsText_BlankLineOnParagraphGap(t *testing.T) {
	rows := pdflib.Rows{
		glyphs(700, 10, "Open", "_", "Door"),
		glyphs(688, 10, "We", "_", "value"),
		glyphs(650, 10, "More"),
		glyphs(640, 10, " "),
	}
	want := "Open Door\nWe value\n\nMore"
	if got := rowsText(rows); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
