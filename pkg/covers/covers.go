// Package covers extracts cover images from issue files and maintains the
// cover cache directory. PDF covers are rendered from page 1 through
// pdfium; EPUB covers come out of the archive itself.
package covers

import (
	"bytes"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klippa-app/go-pdfium"
	"github.com/klippa-app/go-pdfium/requests"
	"github.com/klippa-app/go-pdfium/webassembly"
	"github.com/newsrack/newsrack/pkg/config"
	"github.com/newsrack/newsrack/pkg/epub"
	"github.com/pkg/errors"
	"golang.org/x/image/draw"

	// Register decoders for the image formats EPUB covers arrive in.
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// CoverDirName is the directory under the organize root that holds
// extracted covers.
const CoverDirName = ".covers"

// maxCoverWidth bounds stored covers; anything wider is downscaled.
const maxCoverWidth = 1200

type Extractor struct {
	cfg  *config.Config
	pool pdfium.Pool
}

// NewExtractor initializes the pdfium worker pool. The pool is shared by
// every render; pdfium itself is not thread-safe, so the pool serializes
// access.
func NewExtractor(cfg *config.Config) (*Extractor, error) {
	pool, err := webassembly.Init(webassembly.Config{
		MinIdle:  1,
		MaxIdle:  1,
		MaxTotal: 1,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize pdf renderer")
	}
	return &Extractor{cfg: cfg, pool: pool}, nil
}

func (e *Extractor) Close() error {
	if e.pool == nil {
		return nil
	}
	return errors.WithStack(e.pool.Close())
}

// CoverDir returns the cover cache directory.
func (e *Extractor) CoverDir() string {
	return filepath.Join(e.cfg.OrganizeDir, CoverDirName)
}

// CoverPathFor returns the cache path a cover for the given issue file
// would be written to.
func (e *Extractor) CoverPathFor(issuePath string) string {
	stem := strings.TrimSuffix(filepath.Base(issuePath), filepath.Ext(issuePath))
	return filepath.Join(e.CoverDir(), stem+".jpg")
}

// Extract produces a JPEG cover for an issue file and returns the cover
// path. Unsupported or coverless files return "" without error; a cover
// is a nice-to-have, never an import blocker.
func (e *Extractor) Extract(issuePath string) (string, error) {
	var img image.Image
	var err error

	switch strings.ToLower(filepath.Ext(issuePath)) {
	case ".pdf":
		img, err = e.renderPDFPage(issuePath)
	case ".epub":
		img, err = epubCover(issuePath)
	default:
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if img == nil {
		return "", nil
	}

	coverPath := e.CoverPathFor(issuePath)
	if err := e.writeJPEG(coverPath, img); err != nil {
		return "", err
	}
	return coverPath, nil
}

// renderPDFPage rasterizes page 1 at the configured DPI.
func (e *Extractor) renderPDFPage(path string) (image.Image, error) {
	instance, err := e.pool.GetInstance(30 * time.Second)
	if err != nil {
		return nil, errors.Wrap(err, "failed to acquire pdf renderer")
	}
	defer instance.Close()

	doc, err := instance.OpenDocument(&requests.OpenDocument{FilePath: &path})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open pdf %s", path)
	}
	defer instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{Document: doc.Document})

	render, err := instance.RenderPageInDPI(&requests.RenderPageInDPI{
		DPI: e.cfg.CoverDPIHigh,
		Page: requests.Page{
			ByIndex: &requests.PageByIndex{
				Document: doc.Document,
				Index:    0,
			},
		},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to render pdf page for %s", path)
	}

	return render.Result.Image, nil
}

func epubCover(path string) (image.Image, error) {
	meta, err := epub.Parse(path)
	if err != nil {
		return nil, err
	}
	if len(meta.CoverData) == 0 {
		return nil, nil
	}

	img, _, err := image.Decode(bytes.NewReader(meta.CoverData))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode epub cover for %s", path)
	}
	return img, nil
}

// writeJPEG scales the image down to the width bound and encodes it at
// the configured quality. The encode always produces RGB output, so CMYK
// or paletted sources normalize here.
func (e *Extractor) writeJPEG(coverPath string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(coverPath), 0o755); err != nil {
		return errors.WithStack(err)
	}

	img = scaleDown(img, maxCoverWidth)

	f, err := os.Create(coverPath)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()

	quality := e.cfg.CoverQualityHigh
	if quality == 0 {
		quality = jpeg.DefaultQuality
	}
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: quality}); err != nil {
		return errors.Wrap(err, "failed to encode cover jpeg")
	}
	return nil
}

// scaleDown resizes img to at most maxWidth, preserving aspect ratio.
func scaleDown(img image.Image, maxWidth int) image.Image {
	bounds := img.Bounds()
	if bounds.Dx() <= maxWidth {
		return img
	}

	ratio := float64(maxWidth) / float64(bounds.Dx())
	height := int(float64(bounds.Dy()) * ratio)
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
