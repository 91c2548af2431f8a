package toc

import "github.com/dgallion1/synthtune/internal/document"

// FromHeadings builds a hierarchy from styled headings. The outermost
// level present becomes the sections and the next level their subsections;
// deeper headings are listed under their section. A lone outermost heading
// followed by others is taken as the document title and skipped.
// It returns nil when there are no headings.
func FromHeadings(hs []document.Heading) *Hierarchy {
	if len(hs) == 0 {
		return nil
	}
	top := hs[0].Level
	for _, h := range hs {
		top = min(top, h.Level)
	}
	count := 0
	for _, h := range hs {
		if h.Level == top {
			count++
		}
	}
	if count == 1 && len(hs) > 1 && hs[0].Level == top {
		hs = hs[1:]
		top = hs[0].Level
		for _, h := range hs {
			top = min(top, h.Level)
		}
	}

	out := &Hierarchy{}
	for _, h := range hs {
		if h.Level == top || len(out.Sections) == 0 {
			out.Sections = append(out.Sections, Section{Title: h.Title, PageHint: h.Page})
			continue
		}
		last := &out.Sections[len(out.Sections)-1]
		last.Subsections = append(last.Subsections, Entry{Title: h.Title, PageHint: h.Page})
	}
	cleaned, _ := Clean(out)
	return cleaned
}
