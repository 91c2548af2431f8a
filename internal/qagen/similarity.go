package qagen

import (
	"math"
	"regexp"
	"strings"
)

var termRe = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

func terms(s string) map[string]float64 {
	tf := make(map[string]float64)
	for _, t := range termRe.FindAllString(strings.ToLower(s), -1) {
		tf[t]++
	}
	return tf
}

// Similarity is the cosine of the TF-IDF vectors of a and b, with the
// vocabulary and document frequencies taken from the pair itself and a
// smoothed idf of ln((1+n)/(1+df))+1. It is 0 when either side has no
// terms.
func Similarity(a, b string) float64 {
	ta, tb := terms(a), terms(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	const n = 2.0
	idf := func(term string) float64 {
		df := 0.0
		if ta[term] > 0 {
			df++
		}
		if tb[term] > 0 {
			df++
		}
		return math.Log((1+n)/(1+df)) + 1
	}

	var dot, na, nb float64
	for term, c := range ta {
		w := c * idf(term)
		na += w * w
		if cb, ok := tb[term]; ok {
			dot += w * cb * idf(term)
		}
	}
	for term, c := range tb {
		w := c * idf(term)
		nb += w * w
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
