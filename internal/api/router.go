package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/99minutos/parcel-intake/internal/api/handler"
	"github.com/99minutos/parcel-intake/internal/api/middleware"
	"github.com/99minutos/parcel-intake/internal/core/domain"
	"github.com/99minutos/parcel-intake/internal/core/ports"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Service   ports.IntakeService
	Checks    map[string]handler.Check
	JWTSecret string
	Logger    zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Logger)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(middleware.RequestLogger(d.Logger))
	e.Use(echoprometheus.NewMiddleware("intake"))

	// --- Operational endpoints (no auth required) ---
	health := handler.NewHealthHandler(d.Checks)
	e.GET("/health", health.Liveness)
	e.GET("/health/ready", health.Readiness)
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// --- API v1 ---
	trackingHandler := handler.NewTrackingHandler(d.Service)
	batchHandler := handler.NewBatchHandler(d.Service)

	v1 := e.Group("/v1",
		middleware.Auth(d.JWTSecret),
		middleware.RBAC(domain.RoleAdmin, domain.RoleOperator),
	)

	v1.POST("/tracking/extract", trackingHandler.Extract, echomiddleware.BodyLimit("1M"))

	batches := v1.Group("/batches")
	batches.POST("", batchHandler.Open)
	batches.GET("", batchHandler.List)
	batches.GET("/:id", batchHandler.Get)
	batches.GET("/:id/summary", batchHandler.Summary)
	batches.POST("/:id/scans", batchHandler.Scan, echomiddleware.BodyLimit("1M"))
	batches.POST("/:id/labels", batchHandler.ScanLabel, echomiddleware.BodyLimit("10M"))
	batches.PATCH("/:id/entries/:tracking_number", batchHandler.UpdateNotes)
	batches.DELETE("/:id/entries/:tracking_number", batchHandler.RemoveEntry)
	batches.POST("/:id/submit", batchHandler.Submit)

	return e
}
