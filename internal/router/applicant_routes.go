package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-allotment/internal/handler"
	"github.com/iliyamo/seat-allotment/internal/middleware"
)

// RegisterApplicant registers applicant endpoints under /v1.  All routes
// require a valid JWT and the STUDENT role.  limit guards the seat
// decision routes; pass nil to leave them unlimited.
func RegisterApplicant(e *echo.Echo, h *handler.ApplicantHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(middleware.RoleStudent),
	)
	var decide []echo.MiddlewareFunc
	if limit != nil {
		decide = append(decide, limit)
	}

	g.GET("/allotments/me", h.MyAllotment)
	g.POST("/allotments/:id/accept", h.Accept, decide...)
	g.POST("/allotments/:id/reject", h.Reject, decide...)

	g.GET("/rounds", h.ListRounds)
	g.GET("/rounds/:id", h.GetRound)
}
