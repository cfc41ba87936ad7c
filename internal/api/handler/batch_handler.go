package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/parcel-intake/internal/api/metrics"
	"github.com/99minutos/parcel-intake/internal/core/domain"
	"github.com/99minutos/parcel-intake/internal/core/ports"
)

// BatchHandler handles HTTP requests for receiving batches.
type BatchHandler struct {
	service ports.IntakeService
}

func NewBatchHandler(service ports.IntakeService) *BatchHandler {
	return &BatchHandler{service: service}
}

// Open handles POST /v1/batches.
//
// @Summary      Open a receiving batch
// @Description  Verifies the recipient with the receiving service and starts an empty batch owned by the caller.
// @Tags         batches
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      openBatchRequest  true  "Recipient"
// @Success      201   {object}  batchResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Failure      502   {object}  errorResponse
// @Router       /v1/batches [post]
func (h *BatchHandler) Open(c echo.Context) error {
	op, err := ctxOperator(c)
	if err != nil {
		return err
	}

	var req openBatchRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}

	batch, err := h.service.OpenBatch(c.Request().Context(), ports.OpenBatchInput{
		RecipientID: req.RecipientID,
		Operator:    op,
	})
	if err != nil {
		return err
	}

	c.Response().Header().Set(echo.HeaderLocation, batchPath(batch.ID))
	return c.JSON(http.StatusCreated, toBatchResponse(batch))
}

// List handles GET /v1/batches.
//
// @Summary      List receiving batches
// @Description  Operators see their own batches only; admins see all.
// @Tags         batches
// @Produce      json
// @Security     BearerAuth
// @Param        recipient_id  query     string  false  "Filter by recipient"
// @Param        status        query     string  false  "open or submitted"
// @Param        page          query     int     false  "Page number (default 1)"
// @Param        limit         query     int     false  "Page size (default 20, max 100)"
// @Success      200           {object}  listBatchesResponse
// @Failure      400           {object}  errorResponse
// @Failure      401           {object}  errorResponse
// @Router       /v1/batches [get]
func (h *BatchHandler) List(c echo.Context) error {
	op, err := ctxOperator(c)
	if err != nil {
		return err
	}

	var q listBatchesQuery
	if err := bindValid(c, &q); err != nil {
		return err
	}

	res, err := h.service.ListBatches(c.Request().Context(), ports.ListBatchesInput{
		Operator:    op,
		RecipientID: q.RecipientID,
		Status:      q.Status,
		Page:        q.Page,
		Limit:       q.Limit,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toListResponse(res))
}

// Get handles GET /v1/batches/:id.
//
// @Summary      Get a batch with its entries
// @Tags         batches
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Batch id"
// @Success      200  {object}  batchResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /v1/batches/{id} [get]
func (h *BatchHandler) Get(c echo.Context) error {
	batch, err := h.load(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toBatchResponse(batch))
}

// Summary handles GET /v1/batches/:id/summary.
//
// @Summary      Carrier mix of a batch
// @Description  Counts per carrier, e.g. "UPS × 2, USPS × 1", and how many entries need a manual check.
// @Tags         batches
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Batch id"
// @Success      200  {object}  carrierMixResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /v1/batches/{id}/summary [get]
func (h *BatchHandler) Summary(c echo.Context) error {
	batch, err := h.load(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toCarrierMixResponse(batch))
}

// Scan handles POST /v1/batches/:id/scans.
//
// @Summary      Merge a scan into a batch
// @Description  Extracts tracking numbers from one scan or paste event and adds the ones not yet in the batch. Duplicates are reported back. Text without candidates is not an error.
// @Tags         batches
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string       true  "Batch id"
// @Param        body  body      scanRequest  true  "Scan event"
// @Success      200   {object}  scanResponse
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /v1/batches/{id}/scans [post]
func (h *BatchHandler) Scan(c echo.Context) error {
	start := time.Now()

	op, err := ctxOperator(c)
	if err != nil {
		return err
	}

	var req scanRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}

	res, err := h.service.Scan(c.Request().Context(), toScanInput(req, op))
	observeScan(req.Source, "scan", start, res, err)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toScanResponse(res))
}

// UpdateNotes handles PATCH /v1/batches/:id/entries/:tracking_number.
//
// @Summary      Set the notes of a batch entry
// @Tags         batches
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id               path      string        true  "Batch id"
// @Param        tracking_number  path      string        true  "Tracking number"
// @Param        body             body      entryRequest  true  "Notes"
// @Success      200              {object}  batchResponse
// @Failure      400              {object}  errorResponse
// @Failure      404              {object}  errorResponse
// @Failure      409              {object}  errorResponse
// @Router       /v1/batches/{id}/entries/{tracking_number} [patch]
func (h *BatchHandler) UpdateNotes(c echo.Context) error {
	op, req, err := h.entry(c)
	if err != nil {
		return err
	}

	batch, err := h.service.UpdateNotes(c.Request().Context(), toEntryInput(req, op))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toBatchResponse(batch))
}

// RemoveEntry handles DELETE /v1/batches/:id/entries/:tracking_number.
//
// @Summary      Remove a tracking number from a batch
// @Tags         batches
// @Produce      json
// @Security     BearerAuth
// @Param        id               path      string  true  "Batch id"
// @Param        tracking_number  path      string  true  "Tracking number"
// @Success      200              {object}  batchResponse
// @Failure      404              {object}  errorResponse
// @Failure      409              {object}  errorResponse
// @Router       /v1/batches/{id}/entries/{tracking_number} [delete]
func (h *BatchHandler) RemoveEntry(c echo.Context) error {
	op, req, err := h.entry(c)
	if err != nil {
		return err
	}

	batch, err := h.service.RemoveEntry(c.Request().Context(), toEntryInput(req, op))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toBatchResponse(batch))
}

// Submit handles POST /v1/batches/:id/submit.
//
// @Summary      Submit a batch to the receiving service
// @Description  Records every entry with its notes, notifies the recipient and closes the batch.
// @Tags         batches
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Batch id"
// @Success      200  {object}  submitResponse
// @Failure      404  {object}  errorResponse
// @Failure      409  {object}  errorResponse
// @Failure      422  {object}  errorResponse
// @Failure      502  {object}  errorResponse
// @Router       /v1/batches/{id}/submit [post]
func (h *BatchHandler) Submit(c echo.Context) error {
	op, err := ctxOperator(c)
	if err != nil {
		return err
	}

	res, err := h.service.Submit(c.Request().Context(), ports.BatchRef{BatchID: c.Param("id"), Operator: op})
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues("error").Inc()
		return err
	}
	metrics.SubmissionsTotal.WithLabelValues("ok").Inc()
	return c.JSON(http.StatusOK, toSubmitResponse(res))
}

func (h *BatchHandler) load(c echo.Context) (*domain.Batch, error) {
	op, err := ctxOperator(c)
	if err != nil {
		return nil, err
	}
	return h.service.GetBatch(c.Request().Context(), ports.BatchRef{BatchID: c.Param("id"), Operator: op})
}

func (h *BatchHandler) entry(c echo.Context) (domain.Operator, entryRequest, error) {
	op, err := ctxOperator(c)
	if err != nil {
		return domain.Operator{}, entryRequest{}, err
	}

	var req entryRequest
	if err := c.Bind(&req); err != nil {
		return domain.Operator{}, entryRequest{}, echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	req.TrackingNumber = strings.ToUpper(req.TrackingNumber)
	if err := c.Validate(&req); err != nil {
		return domain.Operator{}, entryRequest{}, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return op, req, nil
}

// observeScan records the outcome of one scan event.
func observeScan(source, operation string, start time.Time, res *ports.ScanResult, err error) {
	metrics.ExtractDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())

	result := "error"
	if err == nil {
		switch {
		case res.NoneDetected():
			result = "none_detected"
		case len(res.Added) == 0:
			result = "duplicates_only"
		default:
			result = "added"
		}
		observeCandidates(res.Detected)
		metrics.DuplicatesTotal.Add(float64(len(res.Duplicates)))
	}
	metrics.ScansTotal.WithLabelValues(source, result).Inc()
}
