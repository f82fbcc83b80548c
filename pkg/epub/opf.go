// Package epub reads issue metadata and cover images out of EPUB
// periodicals by parsing the OPF package document.
package epub

import (
	"archive/zip"
	"encoding/xml"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Metadata is what an EPUB periodical tells us about itself.
type Metadata struct {
	Title         string
	Language      string
	Publisher     string
	Description   string
	IssueDate     *time.Time
	CoverFilepath string
	CoverMimeType string
	CoverData     []byte
}

type opfPackage struct {
	XMLName  xml.Name `xml:"package"`
	Version  string   `xml:"version,attr"`
	Metadata struct {
		Title []struct {
			Text string `xml:",chardata"`
			ID   string `xml:"id,attr"`
		} `xml:"title"`
		Language    string `xml:"language"`
		Publisher   string `xml:"publisher"`
		Description string `xml:"description"`
		Date        string `xml:"date"`
		Meta        []struct {
			Text     string `xml:",chardata"`
			Name     string `xml:"name,attr"`
			Content  string `xml:"content,attr"`
			Refines  string `xml:"refines,attr"`
			Property string `xml:"property,attr"`
		} `xml:"meta"`
	} `xml:"metadata"`
	Manifest struct {
		Item []struct {
			ID         string `xml:"id,attr"`
			Href       string `xml:"href,attr"`
			MediaType  string `xml:"media-type,attr"`
			Properties string `xml:"properties,attr"`
		} `xml:"item"`
	} `xml:"manifest"`
}

// Parse opens an EPUB file and extracts its metadata, including the cover
// image bytes when a cover can be located.
func Parse(path string) (*Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()

	stats, err := f.Stat()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	zipReader, err := zip.NewReader(f, stats.Size())
	if err != nil {
		return nil, errors.WithStack(err)
	}

	var meta *Metadata
	for _, file := range zipReader.File {
		if filepath.Ext(file.Name) == ".opf" {
			r, err := file.Open()
			if err != nil {
				return nil, errors.WithStack(err)
			}
			meta, err = ParseOPF(file.Name, r)
			r.Close()
			if err != nil {
				return nil, err
			}
			break
		}
	}
	if meta == nil {
		return nil, errors.New("no opf file found")
	}

	if meta.CoverFilepath != "" {
		for _, file := range zipReader.File {
			if file.Name == meta.CoverFilepath {
				r, err := file.Open()
				if err != nil {
					return nil, errors.WithStack(err)
				}
				b, err := io.ReadAll(r)
				r.Close()
				if err != nil {
					return nil, errors.WithStack(err)
				}
				meta.CoverData = b
				break
			}
		}
	}

	return meta, nil
}

// ParseOPF parses a package document. The cover is resolved in order of
// preference: a manifest item with the cover-image property, the item
// named by a meta cover entry, an image item whose href contains "cover",
// then the first image item in the manifest.
func ParseOPF(filename string, r io.Reader) (*Metadata, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	pkg := &opfPackage{}
	if err := xml.Unmarshal(b, pkg); err != nil {
		return nil, errors.WithStack(err)
	}

	// Manifest hrefs are relative to the OPF file's own directory.
	basePath := filepath.Dir(filename)
	if basePath == "." {
		basePath = ""
	} else {
		basePath += "/"
	}

	metaProperties := map[string]map[string]string{}
	metaContent := map[string]string{}
	for _, m := range pkg.Metadata.Meta {
		if m.Refines != "" {
			key := strings.TrimPrefix(m.Refines, "#")
			if _, ok := metaProperties[key]; !ok {
				metaProperties[key] = map[string]string{}
			}
			metaProperties[key][m.Property] = m.Text
		} else if m.Content != "" {
			metaContent[m.Name] = m.Content
		}
	}

	title := ""
	if len(pkg.Metadata.Title) == 1 {
		title = pkg.Metadata.Title[0].Text
	} else if len(pkg.Metadata.Title) > 1 {
		for _, t := range pkg.Metadata.Title {
			if t.ID != "" && metaProperties[t.ID]["title-type"] == "main" {
				title = t.Text
				break
			}
		}
	}

	meta := &Metadata{
		Title:       title,
		Language:    pkg.Metadata.Language,
		Publisher:   pkg.Metadata.Publisher,
		Description: pkg.Metadata.Description,
	}

	if pkg.Metadata.Date != "" {
		if parsed, ok := parseOPFDate(pkg.Metadata.Date); ok {
			meta.IssueDate = &parsed
		}
	}

	coverID := metaContent["cover"]
	var coverProperty, coverByID, coverByName, firstImage int = -1, -1, -1, -1
	for i, item := range pkg.Manifest.Item {
		isImage := strings.HasPrefix(item.MediaType, "image/")
		if strings.Contains(item.Properties, "cover-image") && coverProperty == -1 {
			coverProperty = i
		}
		if coverID != "" && item.ID == coverID && coverByID == -1 {
			coverByID = i
		}
		if isImage && strings.Contains(strings.ToLower(item.Href), "cover") && coverByName == -1 {
			coverByName = i
		}
		if isImage && firstImage == -1 {
			firstImage = i
		}
	}

	chosen := -1
	for _, candidate := range []int{coverProperty, coverByID, coverByName, firstImage} {
		if candidate != -1 {
			chosen = candidate
			break
		}
	}
	if chosen != -1 {
		item := pkg.Manifest.Item[chosen]
		meta.CoverFilepath = basePath + item.Href
		meta.CoverMimeType = item.MediaType
	}

	return meta, nil
}

var opfDateLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02",
	"2006-01",
	"2006",
}

func parseOPFDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range opfDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
