package tracking

import (
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

// RegisterRoutesWithGroup registers the tracking routes on an
// already-guarded route group.
func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB) {
	trackingService := NewService(db)

	h := &handler{
		trackingService: trackingService,
	}

	g.POST("", h.create)
	g.GET("/:id", h.retrieve)
	g.GET("", h.list)
	g.POST("/:id", h.update)
	g.DELETE("/:id", h.delete)
}
