package periodicals

import (
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

// RegisterRoutesWithGroup registers the periodical routes on an
// already-guarded route group.
func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB) {
	periodicalService := NewService(db)

	h := &handler{
		periodicalService: periodicalService,
	}

	g.GET("/:id", h.retrieve)
	g.GET("", h.list)
	g.POST("/:id", h.update)
	g.DELETE("/:id", h.delete)
}
