package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/parcel-intake/internal/api/metrics"
	"github.com/99minutos/parcel-intake/internal/core/domain"
	"github.com/99minutos/parcel-intake/internal/core/ports"
)

// TrackingHandler serves the stateless extraction preview.
type TrackingHandler struct {
	service ports.IntakeService
}

func NewTrackingHandler(service ports.IntakeService) *TrackingHandler {
	return &TrackingHandler{service: service}
}

// Extract handles POST /v1/tracking/extract.
//
// @Summary      Extract tracking numbers from text
// @Description  Finds every tracking number candidate in scanner, camera or pasted label text without touching a batch. Text without candidates returns an empty list.
// @Tags         tracking
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      extractRequest  true  "Raw text"
// @Success      200   {object}  extractResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Router       /v1/tracking/extract [post]
func (h *TrackingHandler) Extract(c echo.Context) error {
	start := time.Now()

	var req extractRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}

	found := h.service.Extract(c.Request().Context(), req.Text)

	metrics.ExtractDuration.WithLabelValues("extract").Observe(time.Since(start).Seconds())
	observeCandidates(found)

	return c.JSON(http.StatusOK, toExtractResponse(found))
}

func observeCandidates(found []domain.ParsedTrackingNumber) {
	for _, p := range found {
		metrics.CandidatesTotal.WithLabelValues(string(p.Carrier), string(p.Confidence)).Inc()
	}
}
