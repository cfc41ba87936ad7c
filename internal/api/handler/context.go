package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/parcel-intake/internal/api/middleware"
	"github.com/99minutos/parcel-intake/internal/core/domain"
)

// ctxOperator reads the operator injected by the Auth middleware. Both the
// id and the role must be present; presence proves the middleware ran.
func ctxOperator(c echo.Context) (domain.Operator, error) {
	id, _ := c.Get(middleware.CtxOperatorID).(string)
	role, _ := c.Get(middleware.CtxRole).(string)
	if id == "" || role == "" {
		return domain.Operator{}, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	return domain.Operator{ID: id, Role: role}, nil
}

// bindValid binds the request into req and runs the registered validator.
func bindValid(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}
