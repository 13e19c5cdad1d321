// Package routes assembles the HTTP surface of the dedup engine
package routes

import (
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/Ramsey-B/clover/pkg/middleware"
	"github.com/Ramsey-B/clover/pkg/routes/dedupe"
	"github.com/Ramsey-B/clover/pkg/routes/health"
	"github.com/Ramsey-B/clover/pkg/routes/tenant"
)

// NewRouter builds the echo instance with the full middleware stack and all
// route groups mounted. checker may be nil to skip the health endpoints.
func NewRouter(serviceName string, logger ectologger.Logger, checker *health.Checker) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomiddleware.Recover())
	e.Use(otelecho.Middleware(serviceName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))
	e.HTTPErrorHandler = middleware.Error(logger)

	api := e.Group("/api/v1")
	dedupe.Register(api.Group("/dedupe"))
	tenant.Register(api)

	if checker != nil {
		checker.RegisterRoutes(e)
	}

	return e
}
