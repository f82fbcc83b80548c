// Package htmlutil sanitizes the HTML fragments that indexer and feed
// descriptions arrive as, producing plain text safe to store and display.
package htmlutil

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// Tags that create a visual break. Closing one of them (or hitting a
// void br/hr) emits a newline so paragraph structure survives stripping.
var blockTags = map[string]bool{
	"p": true, "div": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "pre": true, "ul": true, "ol": true, "table": true,
}

var skipTags = map[string]bool{
	"script": true, "style": true, "head": true,
}

var multiSpaceRE = regexp.MustCompile(`[ \t]{2,}`)

// StripTags reduces an HTML fragment to plain text. Block-level tags
// become newlines, script and style bodies are dropped entirely, and
// entities are decoded by the tokenizer. Whitespace inside a line is
// collapsed and blank lines are removed.
func StripTags(fragment string) string {
	if fragment == "" {
		return ""
	}

	tokenizer := html.NewTokenizer(strings.NewReader(fragment))
	var out strings.Builder
	skipDepth := 0

	for {
		tokenType := tokenizer.Next()
		if tokenType == html.ErrorToken {
			break
		}
		switch tokenType {
		case html.TextToken:
			if skipDepth == 0 {
				out.WriteString(string(tokenizer.Text()))
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := tokenizer.TagName()
			tag := string(name)
			if skipTags[tag] && tokenType == html.StartTagToken {
				skipDepth++
			}
			if tag == "br" || tag == "hr" {
				out.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			tag := string(name)
			if skipTags[tag] && skipDepth > 0 {
				skipDepth--
			}
			if blockTags[tag] {
				out.WriteByte('\n')
			}
		}
	}

	lines := strings.Split(out.String(), "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(multiSpaceRE.ReplaceAllString(line, " "))
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
