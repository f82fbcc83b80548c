// Package fileutils provides filesystem-safe naming and file movement for
// the organized library tree.
package fileutils

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var (
	invalidCharsRE = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	multiSpaceRE   = regexp.MustCompile(`\s+`)
)

// SafeTitle makes a title usable as a file or directory name. Invalid
// filesystem characters are removed, whitespace is collapsed, and
// trailing dots are trimmed since Windows rejects them.
func SafeTitle(title string) string {
	name := invalidCharsRE.ReplaceAllString(title, "")
	name = multiSpaceRE.ReplaceAllString(name, " ")
	name = strings.Trim(name, " .")
	if len(name) > 200 {
		name = strings.Trim(name[:200], " .")
	}
	if name == "" {
		name = "Unknown"
	}
	return name
}

// UniquePath returns path unchanged if nothing exists there, otherwise a
// variant with a timestamp suffix before the extension. The nanosecond
// component keeps two imports of the same issue in the same second from
// colliding.
func UniquePath(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}

	dir := filepath.Dir(path)
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(filepath.Base(path), ext)

	stamp := time.Now().UTC().Format("20060102T150405.000000000")
	return filepath.Join(dir, fmt.Sprintf("%s (%s)%s", stem, stamp, ext))
}

// WithinDir reports whether path resolves to a location inside dir. Used
// to reject organize targets that escape the library root through "..".
func WithinDir(dir, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
