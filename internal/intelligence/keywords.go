package intelligence

import (
	"sort"
	"strings"
	"unicode"
)

// minKeywordLength drops short tokens such as sizes and units.
const minKeywordLength = 3

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "from": true, "this": true,
	"that": true, "your": true, "you": true, "our": true, "are": true, "was": true,
	"new": true, "best": true, "top": true, "set": true, "pack": true, "pcs": true,
	"edition": true, "version": true, "size": true, "inch": true, "large": true,
	"small": true, "medium": true, "mini": true, "pro": true, "max": true, "plus": true,
	"men": true, "women": true, "kids": true, "unisex": true, "black": true, "white": true,
	"free": true, "sale": true, "off": true, "all": true, "one": true, "two": true,
	"oz": true, "ml": true, "in": true, "of": true, "to": true, "by": true, "a": true,
}

// TopKeywords returns the n most frequent non-stop-word terms across titles.
// Ties are broken alphabetically.
func TopKeywords(titles []string, n int) []string {
	counts := make(map[string]int)
	for _, title := range titles {
		seen := make(map[string]bool)
		for _, token := range tokenize(title) {
			if seen[token] {
				continue
			}
			seen[token] = true
			counts[token]++
		}
	}

	terms := make([]string, 0, len(counts))
	for term := range counts {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if counts[terms[i]] != counts[terms[j]] {
			return counts[terms[i]] > counts[terms[j]]
		}
		return terms[i] < terms[j]
	})

	if n > 0 && len(terms) > n {
		terms = terms[:n]
	}
	return terms
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) < minKeywordLength || stopWords[f] || isNumeric(f) {
			continue
		}
		out = append(out, f)
	}
	return out
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
