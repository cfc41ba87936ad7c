package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/parcel-intake/internal/core/domain"
	"github.com/99minutos/parcel-intake/internal/core/ports"
)

// MaxLabelImageBytes bounds one uploaded label photo.
const MaxLabelImageBytes = 8 << 20

// ScanLabel handles POST /v1/batches/:id/labels.
//
// @Summary      Merge a photographed label into a batch
// @Description  Reads the label photo with OCR and merges the tracking numbers found with source LABEL.
// @Tags         batches
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        id     path      string  true   "Batch id"
// @Param        image  formData  file    true   "Label photo (JPEG or PNG)"
// @Param        notes  formData  string  false  "Notes applied to every number found"
// @Success      200    {object}  scanResponse
// @Failure      400    {object}  errorResponse
// @Failure      413    {object}  errorResponse
// @Failure      422    {object}  errorResponse
// @Failure      503    {object}  errorResponse
// @Router       /v1/batches/{id}/labels [post]
func (h *BatchHandler) ScanLabel(c echo.Context) error {
	start := time.Now()

	op, err := ctxOperator(c)
	if err != nil {
		return err
	}

	fh, err := c.FormFile("image")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "image is required")
	}
	if fh.Size > MaxLabelImageBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "image too large")
	}
	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "image is unreadable")
	}
	defer f.Close()

	img, err := io.ReadAll(io.LimitReader(f, MaxLabelImageBytes+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "image is unreadable")
	}
	if len(img) > MaxLabelImageBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "image too large")
	}

	notes := c.FormValue("notes")
	if len(notes) > 500 {
		return echo.NewHTTPError(http.StatusBadRequest, "notes must be at most 500 characters")
	}

	res, err := h.service.ScanLabel(c.Request().Context(), ports.ScanLabelInput{
		BatchID:  c.Param("id"),
		Image:    img,
		Notes:    notes,
		Operator: op,
	})
	observeScan(string(domain.SourceLabel), "label", start, res, err)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toScanResponse(res))
}
