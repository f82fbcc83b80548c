package parse

import (
	"path/filepath"
	"strings"

	"github.com/newsrack/newsrack/pkg/titles"
)

// ParsedFile is the full metadata extracted from a file path: the stem
// parse plus language and country derived from the whole path.
type ParsedFile struct {
	ParsedFilename
	Language string
	Country  string
}

// ParseFile extracts issue metadata from a full file path. The stem is
// parsed against the pattern catalog; when the stem carries no title the
// directory chain is consulted. The final title is normalized, and
// language and country are detected over the whole path so that folder
// structure like ".../German/Stern/2024/..." counts.
func ParseFile(path, categoryPrefix string) ParsedFile {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	parsed := ParsedFile{
		ParsedFilename: ParseFilename(stem),
		Language:       DetectLanguage(path),
		Country:        DetectCountry(path),
	}

	if parsed.Title == "" {
		parsed.Title = TitleFromPath(path, categoryPrefix)
	}
	if parsed.Title != "" {
		parsed.Title = titles.Clean(parsed.Title)
	}
	if !parsed.IsSpecialEdition {
		parsed.IsSpecialEdition = IsSpecialEdition(path)
	}

	return parsed
}
