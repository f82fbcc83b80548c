// Package titles normalizes the noisy strings produced by scene-release
// naming, RSS feeds, and upload catalogs into canonical, comparable
// periodical titles, and scores title similarity for duplicate detection.
package titles

import (
	"regexp"
	"strings"
	"unicode"
)

// Well-known titles whose canonical casing can't be derived from
// title-casing alone. Keys are the cleaned title, lowercased.
var overrides = map[string]string{
	"pc gamer":   "PC Gamer",
	"pc world":   "PC World",
	"pc magazin": "PC Magazin",
	"gq":         "GQ",
	"2600":       "2600",
	"mad":        "MAD",
}

var (
	issueNumberRE = regexp.MustCompile(`(?i)\b(?:no\.?|issue)\s*\d+\b`)
	yearMonthRE   = regexp.MustCompile(`\b(?:19|20)\d{2}[-/.](?:0?[1-9]|1[0-2])\b`)
	yearRE        = regexp.MustCompile(`\b(?:19|20)\d{2}\b`)

	releaseKeywordRE = regexp.MustCompile(`(?i)(^|[\s.-])(german|french|hybrid|magazine|ebook|pdf|epub|retail|readnfo|repack|unpack|dirfix)([\s.-]|$)`)
	leadingUnpackRE  = regexp.MustCompile(`(?i)^unpack_`)

	groupXpostRE = regexp.MustCompile(`(?i)-[a-z0-9]+-xpost$`)
	hashXpostRE  = regexp.MustCompile(`(?i)\[[0-9a-f]+\]-xpost$`)
	xpostRE      = regexp.MustCompile(`(?i)-xpost$`)

	camelSplitRE = regexp.MustCompile(`([a-z])([A-Z])`)

	trailingMagRE = regexp.MustCompile(`(?i)\s+mag(azine|\.)?$`)

	whitespaceRE = regexp.MustCompile(`\s+`)
)

// Clean collapses a raw release string to a canonical title. The
// transformation sequence is order-sensitive and always runs in full; no
// step is skipped based on the outcome of a later one. Clean is
// deterministic, stateless, and idempotent.
func Clean(raw string) string {
	s := raw

	// 1. Issue and date tokens.
	s = issueNumberRE.ReplaceAllString(s, " ")
	s = yearMonthRE.ReplaceAllString(s, " ")
	s = yearRE.ReplaceAllString(s, " ")

	// 2. Release keywords. Applied repeatedly because adjacent keywords
	// share a delimiter.
	s = leadingUnpackRE.ReplaceAllString(s, "")
	for {
		next := releaseKeywordRE.ReplaceAllString(s, "$1$3")
		if next == s {
			break
		}
		s = next
	}

	// 3. Trailing release-group tags.
	s = strings.TrimSpace(s)
	s = groupXpostRE.ReplaceAllString(s, "")
	s = hashXpostRE.ReplaceAllString(s, "")
	s = xpostRE.ReplaceAllString(s, "")

	// 4. Separator normalization.
	s = strings.ReplaceAll(s, ".", " ")
	s = strings.ReplaceAll(s, "_", " ")
	s = whitespaceRE.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	// 5. Split camelCase words.
	s = camelSplitRE.ReplaceAllString(s, "$1 $2")

	// 6. Trailing "Magazine"/"Mag".
	s = trailingMagRE.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)

	// 7. Acronym override table.
	if canonical, ok := overrides[strings.ToLower(s)]; ok {
		return canonical
	}

	// 8. Title-case. The remainder of each word keeps its casing so that
	// embedded acronyms survive.
	return titleCase(s)
}

// Similarity returns a token-set similarity score in 0..100 between two
// strings. Tokens are compared lowercased as a multiset, so word order is
// irrelevant and repeated words count once per occurrence.
func Similarity(a, b string) int {
	tokensA := tokenize(a)
	tokensB := tokenize(b)
	if len(tokensA) == 0 && len(tokensB) == 0 {
		return 100
	}
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	counts := map[string]int{}
	totalA := 0
	for _, t := range tokensA {
		counts[t]++
		totalA++
	}
	common := 0
	totalB := 0
	for _, t := range tokensB {
		totalB++
		if counts[t] > 0 {
			counts[t]--
			common++
		}
	}

	return 100 * 2 * common / (totalA + totalB)
}

// Matches reports whether two strings score at or above the threshold.
func Matches(a, b string, threshold int) bool {
	return Similarity(a, b) >= threshold
}

func tokenize(s string) []string {
	return strings.Fields(strings.ToLower(s))
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
