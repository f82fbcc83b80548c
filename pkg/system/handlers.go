package system

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/newsrack/newsrack/pkg/monitor"
	"github.com/newsrack/newsrack/pkg/worker"
	"github.com/pkg/errors"
)

type handler struct {
	scheduler *worker.Scheduler
	monitor   *monitor.Monitor
}

func (h *handler) tasks(c echo.Context) error {
	return errors.WithStack(c.JSON(http.StatusOK, h.scheduler.Status()))
}

func (h *handler) stats(c echo.Context) error {
	return errors.WithStack(c.JSON(http.StatusOK, h.monitor.Stats()))
}
