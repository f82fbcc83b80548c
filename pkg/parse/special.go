package parse

import "strings"

// Substrings that mark a release as a special edition rather than a
// regular issue. Matching is case-insensitive substring containment, so
// "special" also covers the seasonal "summer special" forms and
// "collector" covers both the apostrophed and plain spellings.
var specialEditionMarkers = []string{
	"special",
	"annual",
	"collector",
	"holiday",
	"christmas",
	"anniversary",
	"yearbook",
	"best of",
	"commemorative",
	"supplement",
	"bookazine",
}

// IsSpecialEdition reports whether the string carries a special-edition
// marker.
func IsSpecialEdition(s string) bool {
	lower := strings.ToLower(s)
	for _, marker := range specialEditionMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
