package tracking

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/newsrack/newsrack/pkg/errcodes"
	"github.com/newsrack/newsrack/pkg/models"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/pointerutil"
)

type handler struct {
	trackingService *Service
}

func (h *handler) create(c echo.Context) error {
	ctx := c.Request().Context()

	params := CreateTrackingPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	tracking := &models.Tracking{
		Title:            params.Title,
		Publisher:        params.Publisher,
		ISSN:             params.ISSN,
		Language:         "English",
		Category:         models.CategoryMagazines,
		FirstPublishYear: params.FirstPublishYear,
		TrackAllEditions: params.TrackAllEditions,
		TrackNewOnly:     params.TrackNewOnly,
		DeleteFromClient: params.DeleteFromClient,
	}
	if params.OLID != nil {
		tracking.OLID = *params.OLID
	}
	if params.Language != nil {
		tracking.Language = *params.Language
	}
	if params.Category != nil {
		tracking.Category = *params.Category
	}
	if params.SelectedEditions != nil {
		tracking.SelectedEditionsParsed = params.SelectedEditions
	}
	if params.SelectedYears != nil {
		tracking.SelectedYearsParsed = params.SelectedYears
	}

	if err := h.trackingService.CreateTracking(ctx, tracking); err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, tracking))
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Tracking")
	}

	tracking, err := h.trackingService.RetrieveTracking(ctx, RetrieveTrackingOptions{
		ID: &id,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, tracking))
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListTrackingQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	tracked, total, err := h.trackingService.ListTrackingWithTotal(ctx, ListTrackingOptions{
		Limit:      pointerutil.Int(params.Limit),
		Offset:     pointerutil.Int(params.Offset),
		ActiveOnly: params.Active,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	resp := map[string]any{
		"data":   tracked,
		"total":  total,
		"limit":  params.Limit,
		"offset": params.Offset,
	}
	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) update(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Tracking")
	}

	params := UpdateTrackingPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	tracking, err := h.trackingService.RetrieveTracking(ctx, RetrieveTrackingOptions{
		ID: &id,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	columns := []string{}
	if params.Title != nil {
		tracking.Title = *params.Title
		columns = append(columns, "title")
	}
	if params.Publisher != nil {
		tracking.Publisher = params.Publisher
		columns = append(columns, "publisher")
	}
	if params.Language != nil {
		tracking.Language = *params.Language
		columns = append(columns, "language")
	}
	if params.Category != nil {
		tracking.Category = *params.Category
		columns = append(columns, "category")
	}
	if params.TrackAllEditions != nil {
		tracking.TrackAllEditions = *params.TrackAllEditions
		columns = append(columns, "track_all_editions")
	}
	if params.TrackNewOnly != nil {
		tracking.TrackNewOnly = *params.TrackNewOnly
		columns = append(columns, "track_new_only")
	}
	if params.SelectedEditions != nil {
		tracking.SelectedEditionsParsed = *params.SelectedEditions
		columns = append(columns, "selected_editions")
	}
	if params.SelectedYears != nil {
		tracking.SelectedYearsParsed = *params.SelectedYears
		columns = append(columns, "selected_years")
	}
	if params.DeleteFromClient != nil {
		tracking.DeleteFromClient = *params.DeleteFromClient
		columns = append(columns, "delete_from_client_on_completion")
	}

	err = h.trackingService.UpdateTracking(ctx, tracking, UpdateTrackingOptions{Columns: columns})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, tracking))
}

func (h *handler) delete(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Tracking")
	}

	if err := h.trackingService.DeleteTracking(ctx, id); err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.NoContent(http.StatusNoContent))
}
