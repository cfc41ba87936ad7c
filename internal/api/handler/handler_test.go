package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/parcel-intake/internal/api/middleware"
	"github.com/99minutos/parcel-intake/internal/core/domain"
	"github.com/99minutos/parcel-intake/internal/core/ports"
	"github.com/99minutos/parcel-intake/internal/core/tracking"
)

// stubIntakeService lets each test override only the calls it exercises.
type stubIntakeService struct {
	openFn      func(ctx context.Context, in ports.OpenBatchInput) (*domain.Batch, error)
	getFn       func(ctx context.Context, ref ports.BatchRef) (*domain.Batch, error)
	listFn      func(ctx context.Context, in ports.ListBatchesInput) (*ports.ListBatchesResult, error)
	scanFn      func(ctx context.Context, in ports.ScanInput) (*ports.ScanResult, error)
	scanLabelFn func(ctx context.Context, in ports.ScanLabelInput) (*ports.ScanResult, error)
	notesFn     func(ctx context.Context, in ports.EntryInput) (*domain.Batch, error)
	removeFn    func(ctx context.Context, in ports.EntryInput) (*domain.Batch, error)
	submitFn    func(ctx context.Context, ref ports.BatchRef) (*ports.SubmitResult, error)
}

func (s *stubIntakeService) Extract(_ context.Context, text string) []domain.ParsedTrackingNumber {
	return tracking.Extract(text)
}
func (s *stubIntakeService) OpenBatch(ctx context.Context, in ports.OpenBatchInput) (*domain.Batch, error) {
	return s.openFn(ctx, in)
}
func (s *stubIntakeService) GetBatch(ctx context.Context, ref ports.BatchRef) (*domain.Batch, error) {
	return s.getFn(ctx, ref)
}
func (s *stubIntakeService) ListBatches(ctx context.Context, in ports.ListBatchesInput) (*ports.ListBatchesResult, error) {
	return s.listFn(ctx, in)
}
func (s *stubIntakeService) Scan(ctx context.Context, in ports.ScanInput) (*ports.ScanResult, error) {
	return s.scanFn(ctx, in)
}
func (s *stubIntakeService) ScanLabel(ctx context.Context, in ports.ScanLabelInput) (*ports.ScanResult, error) {
	return s.scanLabelFn(ctx, in)
}
func (s *stubIntakeService) UpdateNotes(ctx context.Context, in ports.EntryInput) (*domain.Batch, error) {
	return s.notesFn(ctx, in)
}
func (s *stubIntakeService) RemoveEntry(ctx context.Context, in ports.EntryInput) (*domain.Batch, error) {
	return s.removeFn(ctx, in)
}
func (s *stubIntakeService) Submit(ctx context.Context, ref ports.BatchRef) (*ports.SubmitResult, error) {
	return s.submitFn(ctx, ref)
}

func newContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(middleware.CtxOperatorID, "op_ana")
	c.Set(middleware.CtxRole, domain.RoleOperator)
	return c, rec
}

func withParams(c echo.Context, kv ...string) {
	var names, values []string
	for i := 0; i+1 < len(kv); i += 2 {
		names = append(names, kv[i])
		values = append(values, kv[i+1])
	}
	c.SetParamNames(names...)
	c.SetParamValues(values...)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("invalid json %q: %v", rec.Body.String(), err)
	}
}

func httpCode(err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return 0
}

func sampleBatch() *domain.Batch {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return &domain.Batch{
		ID:          "b1",
		RecipientID: "cust_77",
		OperatorID:  "op_ana",
		Status:      domain.BatchOpen,
		Entries: []domain.BatchEntry{
			{TrackingNumber: "1Z999AA10123456784", Carrier: domain.CarrierUPS, Confidence: domain.ConfidenceHigh, Source: domain.SourceCamera, AddedAt: now},
			{TrackingNumber: "1Z5R89390357567127", Carrier: domain.CarrierUPS, Confidence: domain.ConfidenceHigh, Source: domain.SourceCamera, AddedAt: now},
			{TrackingNumber: "AB12CD345678", Carrier: domain.CarrierUnknown, Confidence: domain.ConfidenceMedium, Source: domain.SourceKeyboard, AddedAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ---------------------------------------------------------------------------
// Extract
// ---------------------------------------------------------------------------

func TestTrackingHandler_Extract(t *testing.T) {
	h := NewTrackingHandler(&stubIntakeService{})
	c, rec := newContext(http.MethodPost, "/v1/tracking/extract", `{"text":"TRACKING #: 1Z 999 AA1 01 2345 6784 and 9400111899223100000000"}`)

	if err := h.Extract(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp extractResponse
	decode(t, rec, &resp)
	if len(resp.Candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %+v", resp.Candidates)
	}
	if resp.Candidates[0].TrackingNumber != "1Z999AA10123456784" || resp.Candidates[0].Carrier != "UPS" {
		t.Errorf("unexpected first candidate %+v", resp.Candidates[0])
	}
	if resp.Summary != "UPS × 1, USPS × 1" {
		t.Errorf("unexpected summary %q", resp.Summary)
	}
	if resp.NoneDetected {
		t.Error("expected candidates")
	}
}

func TestTrackingHandler_Extract_NothingFound(t *testing.T) {
	h := NewTrackingHandler(&stubIntakeService{})
	c, rec := newContext(http.MethodPost, "/v1/tracking/extract", `{"text":"random notes, no tracking here"}`)

	if err := h.Extract(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	var resp extractResponse
	decode(t, rec, &resp)
	if !resp.NoneDetected || len(resp.Candidates) != 0 {
		t.Fatalf("expected none detected, got %+v", resp)
	}
}

func TestTrackingHandler_Extract_MissingText(t *testing.T) {
	h := NewTrackingHandler(&stubIntakeService{})
	c, _ := newContext(http.MethodPost, "/v1/tracking/extract", `{}`)

	err := h.Extract(c)
	if httpCode(err) != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
	if !strings.Contains(err.Error(), "text is required") {
		t.Errorf("unexpected message: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Batches
// ---------------------------------------------------------------------------

func TestBatchHandler_Open(t *testing.T) {
	stub := &stubIntakeService{
		openFn: func(_ context.Context, in ports.OpenBatchInput) (*domain.Batch, error) {
			if in.RecipientID != "cust_77" || in.Operator.ID != "op_ana" {
				t.Fatalf("unexpected input %+v", in)
			}
			b := sampleBatch()
			b.Entries = nil
			return b, nil
		},
	}
	c, rec := newContext(http.MethodPost, "/v1/batches", `{"recipient_id":"cust_77"}`)

	if err := NewBatchHandler(stub).Open(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if loc := rec.Header().Get(echo.HeaderLocation); loc != "/v1/batches/b1" {
		t.Errorf("unexpected location %q", loc)
	}

	var resp batchResponse
	decode(t, rec, &resp)
	if resp.ID != "b1" || resp.Status != "open" || resp.Entries == nil {
		t.Errorf("unexpected body %+v", resp)
	}
}

func TestBatchHandler_Open_ValidationAndClaims(t *testing.T) {
	h := NewBatchHandler(&stubIntakeService{})

	c, _ := newContext(http.MethodPost, "/v1/batches", `{}`)
	if code := httpCode(h.Open(c)); code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}

	c, _ = newContext(http.MethodPost, "/v1/batches", `{"recipient_id":"cust_77"}`)
	c.Set(middleware.CtxOperatorID, nil)
	if code := httpCode(h.Open(c)); code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
}

func TestBatchHandler_Open_ServiceErrorPropagates(t *testing.T) {
	stub := &stubIntakeService{
		openFn: func(context.Context, ports.OpenBatchInput) (*domain.Batch, error) {
			return nil, domain.ErrRecipientUnverified
		},
	}
	c, _ := newContext(http.MethodPost, "/v1/batches", `{"recipient_id":"ghost"}`)

	err := NewBatchHandler(stub).Open(c)
	if !errors.Is(err, domain.ErrRecipientUnverified) {
		t.Fatalf("expected ErrRecipientUnverified, got %v", err)
	}
}

func TestBatchHandler_List(t *testing.T) {
	stub := &stubIntakeService{
		listFn: func(_ context.Context, in ports.ListBatchesInput) (*ports.ListBatchesResult, error) {
			if in.Status != "open" || in.Page != 2 || in.Limit != 5 || in.Operator.ID != "op_ana" {
				t.Fatalf("unexpected input %+v", in)
			}
			return &ports.ListBatchesResult{
				Items: []ports.BatchSummary{{ID: "b1", Count: 3, CarrierMix: "UPS × 2, UNKNOWN × 1"}},
				Total: 6, Page: 2, Limit: 5, TotalPages: 2,
			}, nil
		},
	}
	c, rec := newContext(http.MethodGet, "/v1/batches?status=open&page=2&limit=5", "")

	if err := NewBatchHandler(stub).List(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	var resp listBatchesResponse
	decode(t, rec, &resp)
	if resp.Total != 6 || len(resp.Items) != 1 || resp.Items[0].CarrierMix != "UPS × 2, UNKNOWN × 1" {
		t.Errorf("unexpected body %+v", resp)
	}
}

func TestBatchHandler_List_BadStatus(t *testing.T) {
	c, _ := newContext(http.MethodGet, "/v1/batches?status=lost", "")

	if code := httpCode(NewBatchHandler(&stubIntakeService{}).List(c)); code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
}

func TestBatchHandler_Summary(t *testing.T) {
	stub := &stubIntakeService{
		getFn: func(_ context.Context, ref ports.BatchRef) (*domain.Batch, error) {
			if ref.BatchID != "b1" {
				t.Fatalf("unexpected ref %+v", ref)
			}
			return sampleBatch(), nil
		},
	}
	c, rec := newContext(http.MethodGet, "/v1/batches/b1/summary", "")
	withParams(c, "id", "b1")

	if err := NewBatchHandler(stub).Summary(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	var resp carrierMixResponse
	decode(t, rec, &resp)
	if resp.CarrierMix != "UPS × 2, UNKNOWN × 1" {
		t.Errorf("unexpected carrier mix %q", resp.CarrierMix)
	}
	if resp.ByCarrier["UPS"] != 2 || resp.ByCarrier["UNKNOWN"] != 1 {
		t.Errorf("unexpected counts %v", resp.ByCarrier)
	}
	if resp.NeedsReview != 1 || resp.Count != 3 {
		t.Errorf("unexpected body %+v", resp)
	}
}

func TestBatchHandler_Scan(t *testing.T) {
	stub := &stubIntakeService{
		scanFn: func(_ context.Context, in ports.ScanInput) (*ports.ScanResult, error) {
			if in.BatchID != "b1" || in.Source != domain.SourceCamera || in.Notes != "dock 3" {
				t.Fatalf("unexpected input %+v", in)
			}
			found := tracking.Extract(in.Text)
			return &ports.ScanResult{
				BatchID:    "b1",
				Detected:   found,
				Added:      []domain.BatchEntry{{TrackingNumber: found[1].TrackingNumber, Carrier: found[1].Carrier, Confidence: found[1].Confidence, Source: in.Source}},
				Duplicates: []string{found[0].TrackingNumber},
				Summary:    "UPS × 2",
			}, nil
		},
	}
	c, rec := newContext(http.MethodPost, "/v1/batches/b1/scans", `{"text":"1Z999AA10123456784 1Z5R89390357567127","source":"CAMERA","notes":"dock 3"}`)
	withParams(c, "id", "b1")

	if err := NewBatchHandler(stub).Scan(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	var resp scanResponse
	decode(t, rec, &resp)
	if len(resp.Detected) != 2 || len(resp.Added) != 1 || len(resp.Duplicates) != 1 {
		t.Fatalf("unexpected body %+v", resp)
	}
	if resp.Message != "1 added, 1 already in batch" {
		t.Errorf("unexpected message %q", resp.Message)
	}
}

func TestBatchHandler_Scan_NoneDetected(t *testing.T) {
	stub := &stubIntakeService{
		scanFn: func(_ context.Context, in ports.ScanInput) (*ports.ScanResult, error) {
			return &ports.ScanResult{BatchID: in.BatchID}, nil
		},
	}
	c, rec := newContext(http.MethodPost, "/v1/batches/b1/scans", `{"text":"hello","source":"KEYBOARD"}`)
	withParams(c, "id", "b1")

	if err := NewBatchHandler(stub).Scan(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	var resp scanResponse
	decode(t, rec, &resp)
	if !resp.NoneDetected || resp.Message != "no tracking numbers detected" {
		t.Errorf("unexpected body %+v", resp)
	}
	if resp.Duplicates == nil || resp.Added == nil {
		t.Error("empty lists must render as []")
	}
}

func TestBatchHandler_Scan_InvalidSource(t *testing.T) {
	c, _ := newContext(http.MethodPost, "/v1/batches/b1/scans", `{"text":"1Z999AA10123456784","source":"FAX"}`)
	withParams(c, "id", "b1")

	err := NewBatchHandler(&stubIntakeService{}).Scan(c)
	if httpCode(err) != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
	if !strings.Contains(err.Error(), "source must be one of") {
		t.Errorf("unexpected message: %v", err)
	}
}

func TestBatchHandler_UpdateNotes_NormalizesTrackingNumber(t *testing.T) {
	stub := &stubIntakeService{
		notesFn: func(_ context.Context, in ports.EntryInput) (*domain.Batch, error) {
			if in.TrackingNumber != "1Z999AA10123456784" || in.Notes != "crushed" {
				t.Fatalf("unexpected input %+v", in)
			}
			return sampleBatch(), nil
		},
	}
	c, rec := newContext(http.MethodPatch, "/v1/batches/b1/entries/1z999aa10123456784", `{"notes":"crushed"}`)
	withParams(c, "id", "b1", "tracking_number", "1z999aa10123456784")

	if err := NewBatchHandler(stub).UpdateNotes(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestBatchHandler_RemoveEntry_RejectsBadNumber(t *testing.T) {
	c, _ := newContext(http.MethodDelete, "/v1/batches/b1/entries/1Z-999", "")
	withParams(c, "id", "b1", "tracking_number", "1Z-999")

	if code := httpCode(NewBatchHandler(&stubIntakeService{}).RemoveEntry(c)); code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
}

func TestBatchHandler_Submit(t *testing.T) {
	at := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)
	stub := &stubIntakeService{
		submitFn: func(_ context.Context, ref ports.BatchRef) (*ports.SubmitResult, error) {
			return &ports.SubmitResult{BatchID: ref.BatchID, ReceiptID: "rcpt_1", Recorded: 3, Notified: true, SubmittedAt: at}, nil
		},
	}
	c, rec := newContext(http.MethodPost, "/v1/batches/b1/submit", "")
	withParams(c, "id", "b1")

	if err := NewBatchHandler(stub).Submit(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	var resp submitResponse
	decode(t, rec, &resp)
	if resp.ReceiptID != "rcpt_1" || resp.Recorded != 3 || !resp.Notified {
		t.Errorf("unexpected body %+v", resp)
	}
}

// ---------------------------------------------------------------------------
// Labels
// ---------------------------------------------------------------------------

func multipartBody(t *testing.T, image []byte, notes string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if image != nil {
		part, err := w.CreateFormFile("image", "label.jpg")
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		_, _ = part.Write(image)
	}
	if notes != "" {
		_ = w.WriteField("notes", notes)
	}
	_ = w.Close()
	return &buf, w.FormDataContentType()
}

func TestBatchHandler_ScanLabel(t *testing.T) {
	stub := &stubIntakeService{
		scanLabelFn: func(_ context.Context, in ports.ScanLabelInput) (*ports.ScanResult, error) {
			if in.BatchID != "b1" || string(in.Image) != "jpeg-bytes" || in.Notes != "wet box" {
				t.Fatalf("unexpected input %+v", in)
			}
			found := tracking.Extract("1Z999AA10123456784")
			return &ports.ScanResult{
				BatchID:  "b1",
				Detected: found,
				Added:    []domain.BatchEntry{{TrackingNumber: found[0].TrackingNumber, Source: domain.SourceLabel}},
				Summary:  "UPS × 1",
			}, nil
		},
	}
	body, ct := multipartBody(t, []byte("jpeg-bytes"), "wet box")
	c, rec := newContext(http.MethodPost, "/v1/batches/b1/labels", "")
	req := httptest.NewRequest(http.MethodPost, "/v1/batches/b1/labels", body)
	req.Header.Set(echo.HeaderContentType, ct)
	c.SetRequest(req)
	withParams(c, "id", "b1")

	if err := NewBatchHandler(stub).ScanLabel(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	var resp scanResponse
	decode(t, rec, &resp)
	if len(resp.Added) != 1 || resp.Added[0].Source != "LABEL" || resp.Message != "1 added" {
		t.Errorf("unexpected body %+v", resp)
	}
}

func TestBatchHandler_ScanLabel_MissingImage(t *testing.T) {
	body, ct := multipartBody(t, nil, "notes only")
	c, _ := newContext(http.MethodPost, "/v1/batches/b1/labels", "")
	req := httptest.NewRequest(http.MethodPost, "/v1/batches/b1/labels", body)
	req.Header.Set(echo.HeaderContentType, ct)
	c.SetRequest(req)
	withParams(c, "id", "b1")

	if code := httpCode(NewBatchHandler(&stubIntakeService{}).ScanLabel(c)); code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
}

// ---------------------------------------------------------------------------
// Health
// ---------------------------------------------------------------------------

func TestHealthHandler_Readiness(t *testing.T) {
	h := NewHealthHandler(map[string]Check{
		"mongodb": func(context.Context) error { return nil },
		"redis":   func(context.Context) error { return errors.New("connection refused") },
	})
	c, rec := newContext(http.MethodGet, "/health/ready", "")

	if err := h.Readiness(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}

	var resp readinessResponse
	decode(t, rec, &resp)
	if resp.Status != "degraded" || resp.Dependencies["mongodb"].Status != "ok" || resp.Dependencies["redis"].Error != "connection refused" {
		t.Errorf("unexpected body %+v", resp)
	}
}

func TestHealthHandler_Liveness(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/health", "")

	if err := NewHealthHandler(nil).Liveness(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
