package submissions

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/newsrack/newsrack/pkg/errcodes"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/pointerutil"
)

type handler struct {
	submissionService *Service
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Submission")
	}

	submission, err := h.submissionService.RetrieveSubmission(ctx, RetrieveSubmissionOptions{
		ID: &id,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, submission))
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListSubmissionsQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	submissions, total, err := h.submissionService.ListSubmissionsWithTotal(ctx, ListSubmissionsOptions{
		Limit:      pointerutil.Int(params.Limit),
		Offset:     pointerutil.Int(params.Offset),
		TrackingID: params.TrackingID,
		Statuses:   params.Status,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	resp := map[string]any{
		"data":   submissions,
		"total":  total,
		"limit":  params.Limit,
		"offset": params.Offset,
	}
	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) retry(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Submission")
	}

	submission, err := h.submissionService.RetrySubmission(ctx, id)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, submission))
}

func (h *handler) stats(c echo.Context) error {
	ctx := c.Request().Context()

	stats, err := h.submissionService.SubmissionStats(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, stats))
}
