package importer

import (
	"strings"

	"github.com/newsrack/newsrack/pkg/models"
)

// categoryKeywords maps title keywords to catalog categories. Order
// matters: the first category with a matching keyword wins.
var categoryKeywords = []struct {
	category string
	keywords []string
}{
	{models.CategoryComics, []string{"comic", "comix", "manga", "graphic novel"}},
	{models.CategoryNews, []string{"newspaper", "times", "daily", "herald", "gazette", "tribune", "chronicle", "observer", "news"}},
	{models.CategoryArticles, []string{"journal", "bulletin", "quarterly"}},
}

// Categorize maps a normalized title to its category, defaulting to
// Magazines when no keyword matches.
func Categorize(title string) string {
	lower := strings.ToLower(title)
	for _, entry := range categoryKeywords {
		for _, keyword := range entry.keywords {
			if strings.Contains(lower, keyword) {
				return entry.category
			}
		}
	}
	return models.CategoryMagazines
}
