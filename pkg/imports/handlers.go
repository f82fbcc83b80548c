package imports

import (
	"net/http"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/newsrack/newsrack/pkg/errcodes"
	"github.com/newsrack/newsrack/pkg/importer"
	"github.com/pkg/errors"
)

type handler struct {
	importer *importer.Importer
}

func (h *handler) create(c echo.Context) error {
	ctx := c.Request().Context()

	params := CreateImportPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	if _, err := os.Stat(params.Path); err != nil {
		return errcodes.NotFound("File")
	}

	result, err := h.importer.ImportFile(ctx, params.Path, importer.Options{
		SkipOrganize: params.SkipOrganize,
		TrackingMode: params.TrackingMode,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	if result.SkippedDuplicate {
		return errcodes.Duplicate("Periodical")
	}

	return errors.WithStack(c.JSON(http.StatusCreated, result.Periodical))
}
