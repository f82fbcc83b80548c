// Package imports exposes the import pipeline over HTTP for files the
// operator wants to catalog without waiting for a folder scan.
package imports

import (
	"github.com/labstack/echo/v4"
	"github.com/newsrack/newsrack/pkg/importer"
)

// RegisterRoutesWithGroup registers the manual import route on an
// already-guarded route group.
func RegisterRoutesWithGroup(g *echo.Group, imp *importer.Importer) {
	h := &handler{
		importer: imp,
	}

	g.POST("", h.create)
}
