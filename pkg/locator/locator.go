// Package locator resolves client-reported download paths to real files.
// The download client and this process may see the filesystem through
// different mount points, so a reported path is a hint, not an address.
package locator

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultSearchDepth bounds the breadth-first search below the downloads
// directory.
const DefaultSearchDepth = 3

var issueExtensions = map[string]bool{
	".pdf":  true,
	".epub": true,
}

type Locator struct {
	downloadDir string
	searchDepth int
}

func New(downloadDir string) *Locator {
	return &Locator{downloadDir: downloadDir, searchDepth: DefaultSearchDepth}
}

// Find resolves a client-reported path. An absolute path that exists is
// used directly (directories yield their first issue file). Otherwise
// the basename is searched for under the downloads directory, breadth
// first, up to the search depth. Returns "" when nothing is found.
func (l *Locator) Find(reported string) string {
	if reported == "" {
		return ""
	}

	if filepath.IsAbs(reported) {
		if info, err := os.Stat(reported); err == nil {
			if !info.IsDir() {
				return reported
			}
			if found := firstIssueFile(reported); found != "" {
				return found
			}
		}
	}

	return l.searchByName(filepath.Base(reported))
}

// searchByName walks the downloads directory breadth first looking for an
// entry with the given name.
func (l *Locator) searchByName(name string) string {
	type level struct {
		dir   string
		depth int
	}
	queue := []level{{dir: l.downloadDir, depth: 0}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		entries, err := os.ReadDir(current.dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			full := filepath.Join(current.dir, entry.Name())
			if entry.Name() == name {
				if !entry.IsDir() {
					return full
				}
				if found := firstIssueFile(full); found != "" {
					return found
				}
			}
			if entry.IsDir() && current.depth+1 < l.searchDepth {
				queue = append(queue, level{dir: full, depth: current.depth + 1})
			}
		}
	}

	return ""
}

// firstIssueFile returns the first pdf or epub under dir, walking
// depth-first in lexical order.
func firstIssueFile(dir string) string {
	found := ""
	filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || found != "" {
			return filepath.SkipAll
		}
		if d.IsDir() {
			return nil
		}
		if issueExtensions[strings.ToLower(filepath.Ext(path))] {
			found = path
			return filepath.SkipAll
		}
		return nil
	})
	return found
}
