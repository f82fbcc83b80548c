package importer

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/newsrack/newsrack/pkg/fileutils"
	"github.com/newsrack/newsrack/pkg/parse"
)

// organizePath builds the canonical library path for a parsed issue. When
// an organization pattern is configured it is substituted; otherwise the
// default category/title/year layout applies. The returned path does not
// account for collisions; callers pass it through fileutils.UniquePath.
func (imp *Importer) organizePath(parsed parse.ParsedFile, category, ext string) string {
	if imp.cfg.OrganizationPattern != "" {
		return imp.patternPath(parsed, category, ext)
	}

	safe := fileutils.SafeTitle(parsed.Title)
	year := parsed.Year
	if year == 0 {
		year = parsed.IssueDate.Year()
	}

	dir := filepath.Join(imp.cfg.OrganizeDir, imp.cfg.CategoryPrefix+category, safe)
	if parsed.Volume != nil {
		dir = filepath.Join(dir, fmt.Sprintf("Vol%d", *parsed.Volume))
	}
	dir = filepath.Join(dir, fmt.Sprintf("%d", year))

	parts := []string{safe}
	if parsed.Volume != nil {
		parts = append(parts, fmt.Sprintf("Vol%d", *parsed.Volume))
	}
	if parsed.IssueNumber != nil {
		parts = append(parts, fmt.Sprintf("No%d", *parsed.IssueNumber))
	}
	if parsed.MonthName != "" {
		parts = append(parts, fmt.Sprintf("%s%d", parsed.MonthName[:3], year))
	} else {
		parts = append(parts, fmt.Sprintf("%d", year))
	}

	return filepath.Join(dir, strings.Join(parts, " - ")+ext)
}

// patternPath substitutes the configured organization pattern. The pattern
// is rooted at the organize directory and uses forward slashes.
func (imp *Importer) patternPath(parsed parse.ParsedFile, category, ext string) string {
	year := parsed.Year
	if year == 0 {
		year = parsed.IssueDate.Year()
	}

	issue := ""
	if parsed.IssueNumber != nil {
		issue = fmt.Sprintf("%d", *parsed.IssueNumber)
	}
	volume := ""
	if parsed.Volume != nil {
		volume = fmt.Sprintf("%d", *parsed.Volume)
	}

	replacer := strings.NewReplacer(
		"{category}", category,
		"{title}", fileutils.SafeTitle(parsed.Title),
		"{language}", parsed.Language,
		"{year}", fmt.Sprintf("%d", year),
		"{month}", fmt.Sprintf("%02d", int(parsed.IssueDate.Month())),
		"{day}", fmt.Sprintf("%02d", parsed.IssueDate.Day()),
		"{issue}", issue,
		"{volume}", volume,
	)

	relative := filepath.FromSlash(replacer.Replace(imp.cfg.OrganizationPattern))
	return filepath.Join(imp.cfg.OrganizeDir, relative) + ext
}
