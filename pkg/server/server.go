// Package server wires every HTTP route into a single echo instance.
package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/newsrack/newsrack/pkg/auth"
	"github.com/newsrack/newsrack/pkg/binder"
	"github.com/newsrack/newsrack/pkg/config"
	"github.com/newsrack/newsrack/pkg/errcodes"
	"github.com/newsrack/newsrack/pkg/importer"
	"github.com/newsrack/newsrack/pkg/imports"
	"github.com/newsrack/newsrack/pkg/monitor"
	"github.com/newsrack/newsrack/pkg/periodicals"
	"github.com/newsrack/newsrack/pkg/submissions"
	"github.com/newsrack/newsrack/pkg/system"
	"github.com/newsrack/newsrack/pkg/tracking"
	"github.com/newsrack/newsrack/pkg/worker"
	"github.com/robinjoseph08/golib/echo/v4/health"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"
	"github.com/robinjoseph08/golib/echo/v4/middleware/recovery"
	"github.com/uptrace/bun"
)

func New(cfg *config.Config, db *bun.DB, imp *importer.Importer, mon *monitor.Monitor, scheduler *worker.Scheduler) *http.Server {
	e := echo.New()

	e.Binder = binder.New()

	e.Use(logger.Middleware())
	e.Use(recovery.Middleware())
	e.Use(middleware.CORS())

	health.RegisterRoutes(e)

	authService := auth.RegisterRoutes(e, db, cfg.JWTSecret)
	authMiddleware := auth.NewMiddleware(authService)

	registerProtectedRoutes(e, db, authMiddleware, imp, mon, scheduler)

	echo.NotFoundHandler = notFoundHandler
	e.HTTPErrorHandler = errcodes.NewHandler().Handle

	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort),
		Handler:           e,
		ReadHeaderTimeout: 3 * time.Second,
	}
}

// registerProtectedRoutes registers every route that sits behind the
// session cookie.
func registerProtectedRoutes(e *echo.Echo, db *bun.DB, authMiddleware *auth.Middleware, imp *importer.Importer, mon *monitor.Monitor, scheduler *worker.Scheduler) {
	periodicalsGroup := e.Group("/periodicals")
	periodicalsGroup.Use(authMiddleware.Authenticate)
	periodicals.RegisterRoutesWithGroup(periodicalsGroup, db)

	trackingGroup := e.Group("/tracking")
	trackingGroup.Use(authMiddleware.Authenticate)
	tracking.RegisterRoutesWithGroup(trackingGroup, db)

	submissionsGroup := e.Group("/submissions")
	submissionsGroup.Use(authMiddleware.Authenticate)
	submissions.RegisterRoutesWithGroup(submissionsGroup, db)

	importsGroup := e.Group("/imports")
	importsGroup.Use(authMiddleware.Authenticate)
	imports.RegisterRoutesWithGroup(importsGroup, imp)

	systemGroup := e.Group("/system")
	systemGroup.Use(authMiddleware.Authenticate)
	system.RegisterRoutesWithGroup(systemGroup, scheduler, mon)
}

func notFoundHandler(c echo.Context) error {
	c.SetPath("/:path")
	return errcodes.NotFound("Page")
}
