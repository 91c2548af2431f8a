package segment

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// PDF extractors emit ligatures, typographic quotes and non-breaking spaces
// that a typed title never contains.
var typographic = strings.NewReplacer(
	"\u2018", "'", "\u2019", "'", "\u201a", "'", "\u2032", "'",
	"\u201c", `"`, "\u201d", `"`, "\u201e", `"`, "\u2033", `"`,
	"\u2010", "-", "\u2011", "-", "\u2012", "-", "\u2013", "-", "\u2014", "-", "\u2212", "-",
	"\u00a0", " ", "\u200b", "",
)

// Normalize prepares a line or title for matching: NFKC composition plus
// folding of typographic punctuation. Case is left alone.
func Normalize(s string) string {
	return typographic.Replace(norm.NFKC.String(s))
}

var folder = cases.Fold()

// fold is the case-insensitive key for a title.
func fold(s string) string {
	return folder.String(strings.Join(strings.Fields(Normalize(s)), " "))
}

var (
	headingPrefixRe = regexp.MustCompile(`^\s*(?:\d+(?:\.\d+)*(?:\.\s*|\s+))?`)
	headingSuffix   = " \t:.-"
)

// stripHeading removes a leading section number and trailing punctuation
// and collapses inner whitespace.
func stripHeading(line string) string {
	s := headingPrefixRe.ReplaceAllString(line, "")
	s = strings.TrimRight(s, headingSuffix)
	return strings.Join(strings.Fields(s), " ")
}

// splitLines splits page text into lines, accepting \r\n and bare \r.
func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.Split(text, "\n")
}
