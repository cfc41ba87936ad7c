package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/parcel-intake/internal/api/middleware"
	"github.com/99minutos/parcel-intake/internal/core/domain"
	"github.com/99minutos/parcel-intake/internal/core/ports"
	"github.com/99minutos/parcel-intake/internal/core/tracking"
)

const testSecret = "router-secret"

type routerStub struct {
	ports.IntakeService
}

func (routerStub) Extract(_ context.Context, text string) []domain.ParsedTrackingNumber {
	return tracking.Extract(text)
}

func (routerStub) GetBatch(_ context.Context, ref ports.BatchRef) (*domain.Batch, error) {
	if ref.BatchID == "mine" {
		return &domain.Batch{ID: "mine", OperatorID: ref.Operator.ID, Status: domain.BatchOpen}, nil
	}
	return nil, domain.ErrBatchNotFound
}

// The prometheus middleware registers collectors globally, so the router is
// built once for the whole package.
var (
	routerOnce sync.Once
	testRouter *echo.Echo
)

func router() *echo.Echo {
	routerOnce.Do(func() {
		testRouter = NewRouter(Deps{
			Service:   routerStub{},
			JWTSecret: testSecret,
			Logger:    zerolog.Nop(),
		})
	})
	return testRouter
}

func bearer(t *testing.T, sub, role string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.OperatorClaims{
		Role:             role,
		RegisteredClaims: jwt.RegisteredClaims{Subject: sub},
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return "Bearer " + signed
}

func serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router().ServeHTTP(rec, req)
	return rec
}

func TestRouter_HealthIsPublic(t *testing.T) {
	rec := serve(httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRouter_MetricsIsPublic(t *testing.T) {
	rec := serve(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRouter_ExtractRequiresToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/tracking/extract", strings.NewReader(`{"text":"1Z999AA10123456784"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	rec := serve(req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"error"`) {
		t.Errorf("expected error envelope, got %s", rec.Body.String())
	}
}

func TestRouter_ExtractWithToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/tracking/extract", strings.NewReader(`{"text":"1Z999AA10123456784"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderAuthorization, bearer(t, "op_ana", domain.RoleOperator))

	rec := serve(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"carrier":"UPS"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestRouter_UnknownRoleForbidden(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/batches/mine", nil)
	req.Header.Set(echo.HeaderAuthorization, bearer(t, "op_ana", "viewer"))

	if rec := serve(req); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestRouter_DomainErrorsMapped(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/batches/other", nil)
	req.Header.Set(echo.HeaderAuthorization, bearer(t, "op_ana", domain.RoleOperator))

	rec := serve(req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "batch not found") {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}
