// Package parse extracts structured issue metadata from filenames and the
// directories that contain them. The filename stem is tried against an
// ordered pattern catalog; directory context fills in whatever the stem
// could not provide.
package parse

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Pattern names, in catalog order. The matched pattern is recorded on the
// parse result so import decisions can be audited later.
const (
	PatternTitleDashMonYear = "title_dash_monyear"
	PatternDotSeparated     = "dot_separated"
	PatternTitleMonthYear   = "title_month_year"
	PatternTitleYearMonth   = "title_year_month"
	PatternDateOnly         = "date_only"
	PatternYearOnly         = "year_only"
	PatternFallback         = "fallback"
)

// ParsedFilename is the result of parsing a filename stem.
type ParsedFilename struct {
	Title            string
	IssueDate        time.Time
	IssueNumber      *int
	Volume           *int
	Year             int
	MonthName        string
	IsSpecialEdition bool
	MatchedPattern   string
	// Confidence is false for the fallback pattern, whose title and date
	// are placeholders.
	Confidence bool
}

const monthAlternation = `january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sep|sept|oct|nov|dec`

var (
	// {Title} - {MonAbbr}{Year}, e.g. "Wired Magazine - Dec2006".
	titleDashMonYearRE = regexp.MustCompile(`(?i)^(.+?)\s*-\s*(` + monthAlternation + `)\s?((?:19|20)\d{2})$`)

	// {Title}.{Month}.{Year}, dot-separated scene-release style. Trailing
	// release tags after the year are tolerated.
	dotSeparatedRE = regexp.MustCompile(`(?i)^(.+)\.(` + monthAlternation + `)\.((?:19|20)\d{2})(?:[.-].*)?$`)

	// {Title} {Month} {Year} with full or abbreviated month.
	titleMonthYearRE = regexp.MustCompile(`(?i)^(.+?)\s+(` + monthAlternation + `)\s+((?:19|20)\d{2})$`)

	// {Title} {YYYY}-{MM}.
	titleYearMonthRE = regexp.MustCompile(`^(.+?)\s+((?:19|20)\d{2})-(0?[1-9]|1[0-2])$`)

	// Date-only stem: {Month}{Year} or {Month} {Year}.
	dateOnlyRE = regexp.MustCompile(`(?i)^(` + monthAlternation + `)\s?((?:19|20)\d{2})$`)

	// Year anywhere in the stem.
	yearAnywhereRE = regexp.MustCompile(`\b((?:19|20)\d{2})\b`)

	volumeRE = regexp.MustCompile(`(?i)\bvol\.?\s*(\d+)\b`)
	issueRE  = regexp.MustCompile(`(?i)\b(?:no|issue|nr)\.?\s*(\d+)\b`)
)

var monthNumbers = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may": time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

// ParseFilename parses a filename stem (no directory, no extension)
// against the pattern catalog. The first matching pattern wins. Patterns
// that carry no title leave Title empty; the caller is expected to fill it
// from directory context.
func ParseFilename(stem string) ParsedFilename {
	parsed := ParsedFilename{Confidence: true}
	parsed.IsSpecialEdition = IsSpecialEdition(stem)

	if v := volumeRE.FindStringSubmatch(stem); v != nil {
		n, _ := strconv.Atoi(v[1])
		parsed.Volume = &n
	}
	if v := issueRE.FindStringSubmatch(stem); v != nil {
		n, _ := strconv.Atoi(v[1])
		parsed.IssueNumber = &n
	}

	if m := titleDashMonYearRE.FindStringSubmatch(stem); m != nil {
		parsed.MatchedPattern = PatternTitleDashMonYear
		parsed.Title = strings.TrimSpace(m[1])
		fillDate(&parsed, m[2], m[3])
		return parsed
	}

	if m := dotSeparatedRE.FindStringSubmatch(stem); m != nil {
		parsed.MatchedPattern = PatternDotSeparated
		parsed.Title = strings.TrimSpace(strings.ReplaceAll(m[1], ".", " "))
		fillDate(&parsed, m[2], m[3])
		return parsed
	}

	if m := titleMonthYearRE.FindStringSubmatch(stem); m != nil {
		parsed.MatchedPattern = PatternTitleMonthYear
		parsed.Title = strings.TrimSpace(m[1])
		fillDate(&parsed, m[2], m[3])
		return parsed
	}

	if m := titleYearMonthRE.FindStringSubmatch(stem); m != nil {
		parsed.MatchedPattern = PatternTitleYearMonth
		parsed.Title = strings.TrimSpace(m[1])
		year, _ := strconv.Atoi(m[2])
		monthNum, _ := strconv.Atoi(m[3])
		parsed.Year = year
		parsed.MonthName = time.Month(monthNum).String()
		parsed.IssueDate = time.Date(year, time.Month(monthNum), 1, 0, 0, 0, 0, time.UTC)
		return parsed
	}

	if m := dateOnlyRE.FindStringSubmatch(stem); m != nil {
		// Title must come from the directory walk.
		parsed.MatchedPattern = PatternDateOnly
		fillDate(&parsed, m[1], m[2])
		return parsed
	}

	if m := yearAnywhereRE.FindStringSubmatch(stem); m != nil {
		// Year with no month. Whatever text surrounds the year is the
		// title; a bare year leaves the title to the directory walk.
		parsed.MatchedPattern = PatternYearOnly
		year, _ := strconv.Atoi(m[1])
		parsed.Year = year
		parsed.IssueDate = time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		parsed.Title = strings.TrimSpace(yearAnywhereRE.ReplaceAllString(stem, " "))
		return parsed
	}

	// Fallback: raw stem as title, current date as placeholder.
	parsed.MatchedPattern = PatternFallback
	parsed.Title = strings.TrimSpace(stem)
	parsed.IssueDate = time.Now().UTC().Truncate(24 * time.Hour)
	parsed.Confidence = false
	return parsed
}

func fillDate(parsed *ParsedFilename, month, year string) {
	y, _ := strconv.Atoi(year)
	m := monthNumbers[strings.ToLower(month)]
	parsed.Year = y
	parsed.MonthName = m.String()
	parsed.IssueDate = time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}
