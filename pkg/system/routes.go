// Package system exposes read-only operational state: the background
// task schedule and the monitor's run counters.
package system

import (
	"github.com/labstack/echo/v4"
	"github.com/newsrack/newsrack/pkg/monitor"
	"github.com/newsrack/newsrack/pkg/worker"
)

// RegisterRoutesWithGroup registers the system routes on an
// already-guarded route group.
func RegisterRoutesWithGroup(g *echo.Group, scheduler *worker.Scheduler, mon *monitor.Monitor) {
	h := &handler{
		scheduler: scheduler,
		monitor:   mon,
	}

	g.GET("/tasks", h.tasks)
	g.GET("/stats", h.stats)
}
