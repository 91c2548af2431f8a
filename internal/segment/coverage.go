package segment

import "strings"

// Missing lists the pattern titles that produced no segment in t, in
// pattern order. A segment counts for the title it was matched under, so
// "Leave (2)" and "Leave - Part 3" cover "Leave". Segments read from JSON
// only count for their own key.
func Missing(patterns Patterns, t *Table) []string {
	found := make(map[string]bool, t.Len())
	for _, seg := range t.Segments() {
		found[strings.ToLower(seg.Title)] = true
		if seg.Matched != "" {
			found[strings.ToLower(seg.Matched)] = true
		}
	}
	var out []string
	for _, p := range patterns {
		if !found[strings.ToLower(p.Title)] {
			out = append(out, p.Title)
		}
	}
	return out
}
