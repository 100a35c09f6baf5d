package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-allotment/internal/handler"
	"github.com/iliyamo/seat-allotment/internal/middleware"
)

// RegisterAdmin registers ADMIN-scoped endpoints under /v1/admin.  cache
// wraps the read-only statistics routes; pass nil to serve them uncached.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, jwtSecret string, cache echo.MiddlewareFunc) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(middleware.RoleAdmin),
	)
	var cached []echo.MiddlewareFunc
	if cache != nil {
		cached = append(cached, cache)
	}

	// ---- Rounds ----
	g.POST("/rounds", h.CreateRound)
	g.POST("/rounds/:id/run", h.RunRound)
	g.POST("/allotment/trigger", h.Trigger)

	// ---- Reporting ----
	g.GET("/rounds/:id/allotments", h.RoundAllotments)
	g.GET("/rounds/:id/statistics", h.RoundStatistics, cached...)
	g.GET("/statistics", h.Statistics, cached...)
	g.GET("/courses", h.Courses, cached...)

	// ---- Allotments ----
	g.POST("/allotments/:id/cancel", h.Cancel)
}
