package parse

import (
	"regexp"
	"strings"
)

// DefaultLanguage is assumed when nothing in the name says otherwise.
const DefaultLanguage = "English"

// Uppercase release-style language codes. Matched case-sensitively so
// that ordinary words like "de" or "it" inside a title don't trigger.
var languageCodes = map[string]string{
	"DE": "German",
	"FR": "French",
	"ES": "Spanish",
	"IT": "Italian",
	"PT": "Portuguese",
	"NL": "Dutch",
	"PL": "Polish",
	"RU": "Russian",
	"JP": "Japanese",
	"ZH": "Chinese",
	"KR": "Korean",
}

// Full language names, matched case-insensitively.
var languageNames = map[string]string{
	"german":     "German",
	"french":     "French",
	"spanish":    "Spanish",
	"italian":    "Italian",
	"portuguese": "Portuguese",
	"dutch":      "Dutch",
	"polish":     "Polish",
	"russian":    "Russian",
	"japanese":   "Japanese",
	"chinese":    "Chinese",
	"korean":     "Korean",
	"english":    "English",
}

var languageTokenRE = regexp.MustCompile(`[A-Za-z]+`)

// DetectLanguage finds the language signalled by a filename or path
// segment. Uppercase codes win over full names; the default is English.
func DetectLanguage(s string) string {
	for _, token := range languageTokenRE.FindAllString(s, -1) {
		if lang, ok := languageCodes[token]; ok {
			return lang
		}
	}
	for _, token := range languageTokenRE.FindAllString(s, -1) {
		if lang, ok := languageNames[strings.ToLower(token)]; ok {
			return lang
		}
	}
	return DefaultLanguage
}
