package submissions

import (
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

// RegisterRoutesWithGroup registers the submission routes on an
// already-guarded route group.
func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB) {
	submissionService := NewService(db)

	h := &handler{
		submissionService: submissionService,
	}

	g.GET("/stats", h.stats)
	g.GET("/:id", h.retrieve)
	g.GET("", h.list)
	g.POST("/:id/retry", h.retry)
}
