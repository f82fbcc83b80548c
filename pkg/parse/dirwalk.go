package parse

import (
	"path/filepath"
	"strconv"
	"strings"
)

// Directory names that never name a periodical. Download staging areas,
// app data dirs, and category folders are skipped when walking up a path
// looking for a title.
var systemFolders = map[string]bool{
	"downloads": true,
	"download":  true,
	"complete":  true,
	"incoming":  true,
	"data":      true,
	"local":     true,
	"cache":     true,
	"config":    true,
	"logs":      true,
	"tmp":       true,
	"temp":      true,
	".covers":   true,
}

// TitleFromPath walks up the directory chain of a file path looking for a
// directory whose name plausibly is the periodical title. Category
// folders with the configured prefix, system folders, language names, and
// plausible years are skipped. Returns "" when no candidate survives.
func TitleFromPath(path, categoryPrefix string) string {
	dir := filepath.Dir(path)
	for dir != "" {
		base := filepath.Base(dir)
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		if candidate := base; isTitleCandidate(candidate, categoryPrefix) {
			return candidate
		}
		dir = parent
	}
	return ""
}

func isTitleCandidate(name, categoryPrefix string) bool {
	if name == "" || name == "." || name == string(filepath.Separator) {
		return false
	}
	if categoryPrefix != "" && strings.HasPrefix(name, categoryPrefix) {
		return false
	}
	lower := strings.ToLower(name)
	if systemFolders[lower] {
		return false
	}
	if _, isLanguage := languageNames[lower]; isLanguage {
		return false
	}
	if isPlausibleYear(name) {
		return false
	}
	// Volume folders like "Vol5" or "Volume 12".
	if volumeRE.MatchString(name) && len(volumeRE.FindString(name)) == len(name) {
		return false
	}
	return true
}

// isPlausibleYear reports whether a directory name is a year in
// [1900, 2100]. "2600" is outside that range and remains a valid title.
func isPlausibleYear(name string) bool {
	if len(name) != 4 {
		return false
	}
	year, err := strconv.Atoi(name)
	if err != nil {
		return false
	}
	return year >= 1900 && year <= 2100
}
