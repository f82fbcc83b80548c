package epub

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOPF = `<?xml version="1.0" encoding="utf-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="uid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>Wired</dc:title>
    <dc:language>en</dc:language>
    <dc:publisher>Condé Nast</dc:publisher>
    <dc:description>Tech monthly.</dc:description>
    <dc:date>2023-12-01</dc:date>
    <meta name="cover" content="cover-image"/>
  </metadata>
  <manifest>
    <item id="cover-image" href="images/cover.jpg" media-type="image/jpeg"/>
    <item id="page1" href="page1.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
</package>`

func writeTestEPUB(t *testing.T, opf string, extraFiles map[string][]byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "issue.epub")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := zip.NewWriter(f)
	entry, err := w.Create("OEBPS/content.opf")
	require.NoError(t, err)
	_, err = entry.Write([]byte(opf))
	require.NoError(t, err)

	for name, data := range extraFiles {
		entry, err := w.Create(name)
		require.NoError(t, err)
		_, err = entry.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	return path
}

func TestParse(t *testing.T) {
	t.Parallel()

	coverBytes := []byte{0xFF, 0xD8, 0xFF, 0xE0}
	path := writeTestEPUB(t, testOPF, map[string][]byte{
		"OEBPS/images/cover.jpg": coverBytes,
	})

	meta, err := Parse(path)
	require.NoError(t, err)

	assert.Equal(t, "Wired", meta.Title)
	assert.Equal(t, "en", meta.Language)
	assert.Equal(t, "Condé Nast", meta.Publisher)
	assert.Equal(t, "Tech monthly.", meta.Description)
	require.NotNil(t, meta.IssueDate)
	assert.Equal(t, time.Date(2023, time.December, 1, 0, 0, 0, 0, time.UTC), *meta.IssueDate)
	assert.Equal(t, "OEBPS/images/cover.jpg", meta.CoverFilepath)
	assert.Equal(t, "image/jpeg", meta.CoverMimeType)
	assert.Equal(t, coverBytes, meta.CoverData)
}

func TestParse_NoOPF(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "broken.epub")
	f, err := os.Create(path)
	require.NoError(t, err)
	w := zip.NewWriter(f)
	entry, err := w.Create("mimetype")
	require.NoError(t, err)
	_, err = entry.Write([]byte("application/epub+zip"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	_, err = Parse(path)
	assert.Error(t, err)
}

func TestParseOPF_CoverSelection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		opf      string
		expected string
	}{
		{
			name: "cover-image property preferred",
			opf: `<package version="3.0"><metadata><title>X</title></metadata><manifest>
				<item id="a" href="first.png" media-type="image/png"/>
				<item id="b" href="art.jpg" media-type="image/jpeg" properties="cover-image"/>
			</manifest></package>`,
			expected: "art.jpg",
		},
		{
			name: "meta cover entry resolves by id",
			opf: `<package version="2.0"><metadata><title>X</title><meta name="cover" content="b"/></metadata><manifest>
				<item id="a" href="first.png" media-type="image/png"/>
				<item id="b" href="chosen.jpg" media-type="image/jpeg"/>
			</manifest></package>`,
			expected: "chosen.jpg",
		},
		{
			name: "image named cover wins over first image",
			opf: `<package version="2.0"><metadata><title>X</title></metadata><manifest>
				<item id="a" href="spread.png" media-type="image/png"/>
				<item id="b" href="images/Cover.jpg" media-type="image/jpeg"/>
			</manifest></package>`,
			expected: "images/Cover.jpg",
		},
		{
			name: "first image as fallback",
			opf: `<package version="2.0"><metadata><title>X</title></metadata><manifest>
				<item id="p" href="page.xhtml" media-type="application/xhtml+xml"/>
				<item id="a" href="spread.png" media-type="image/png"/>
			</manifest></package>`,
			expected: "spread.png",
		},
		{
			name: "no images",
			opf: `<package version="2.0"><metadata><title>X</title></metadata><manifest>
				<item id="p" href="page.xhtml" media-type="application/xhtml+xml"/>
			</manifest></package>`,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta, err := ParseOPF("content.opf", strings.NewReader(tt.opf))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, meta.CoverFilepath)
		})
	}
}
