// Package dedup computes the group keys used to recognize "same issue"
// across differently formatted release titles, and answers the two
// questions the orchestrator and importer ask before doing work: has this
// been submitted already, and is it already in the library.
package dedup

import (
	"strings"
)

// Month abbreviations are folded to full names so that "Dec 2023" and
// "December 2023" produce the same key.
var monthAliases = map[string]string{
	"jan":  "january",
	"feb":  "february",
	"mar":  "march",
	"apr":  "april",
	"jun":  "june",
	"jul":  "july",
	"aug":  "august",
	"sep":  "september",
	"sept": "september",
	"oct":  "october",
	"nov":  "november",
	"dec":  "december",
}

// GroupKey reduces a release title to a short normalized string usable as
// an O(1) equality key. Lowercase the title, expand month abbreviations,
// keep the first three tokens longer than two characters, and join them
// with dashes.
func GroupKey(title string) string {
	tokens := strings.Fields(strings.ToLower(title))

	kept := make([]string, 0, 3)
	for _, token := range tokens {
		token = strings.Trim(token, ".,-_()[]")
		if full, ok := monthAliases[token]; ok {
			token = full
		}
		if len(token) <= 2 {
			continue
		}
		kept = append(kept, token)
		if len(kept) == 3 {
			break
		}
	}

	return strings.Join(kept, "-")
}
