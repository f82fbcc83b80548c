package periodicals

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/newsrack/newsrack/pkg/errcodes"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/pointerutil"
)

type handler struct {
	periodicalService *Service
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Periodical")
	}

	periodical, err := h.periodicalService.RetrievePeriodical(ctx, RetrievePeriodicalOptions{
		ID: &id,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, periodical))
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListPeriodicalsQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	opts := ListPeriodicalsOptions{
		Limit:    pointerutil.Int(params.Limit),
		Offset:   pointerutil.Int(params.Offset),
		Title:    params.Title,
		Language: params.Language,
		Year:     params.Year,
	}

	periodicals, total, err := h.periodicalService.ListPeriodicalsWithTotal(ctx, opts)
	if err != nil {
		return errors.WithStack(err)
	}

	resp := map[string]any{
		"data":   periodicals,
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
		return errcodes.NotFound("Periodical")
	}

	params := UpdatePeriodicalPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	periodical, err := h.periodicalService.RetrievePeriodical(ctx, RetrievePeriodicalOptions{
		ID: &id,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	columns := []string{}
	if params.Title != nil {
		periodical.Title = *params.Title
		columns = append(columns, "title")
	}
	if params.Publisher != nil {
		periodical.Publisher = params.Publisher
		columns = append(columns, "publisher")
	}
	if params.Language != nil {
		periodical.Language = *params.Language
		columns = append(columns, "language")
	}
	if params.ISSN != nil {
		periodical.ISSN = params.ISSN
		columns = append(columns, "issn")
	}

	err = h.periodicalService.UpdatePeriodical(ctx, periodical, UpdatePeriodicalOptions{Columns: columns})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, periodical))
}

func (h *handler) delete(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Periodical")
	}

	params := DeletePeriodicalQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	err = h.periodicalService.DeletePeriodical(ctx, id, DeletePeriodicalOptions{
		DeleteFile: params.DeleteFile,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.NoContent(http.StatusNoContent))
}
