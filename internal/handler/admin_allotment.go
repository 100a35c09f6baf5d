package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-allotment/internal/service"
)

// AdminHandler exposes round management, allotment runs and reporting to
// users with the ADMIN role.
type AdminHandler struct {
	Service  AllotmentService
	OnChange invalidate
}

// NewAdminHandler panics if svc is nil.
func NewAdminHandler(svc AllotmentService, onChange invalidate) *AdminHandler {
	if svc == nil {
		panic("nil service passed to NewAdminHandler")
	}
	return &AdminHandler{Service: svc, OnChange: onChange}
}

func (h *AdminHandler) adminID(c echo.Context) (id uint64, ok bool, err error) {
	id, ok = currentUser(c)
	if !ok {
		return 0, false, c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	return id, true, nil
}

// CreateRound handles POST /v1/admin/rounds.  Dates are RFC 3339.  An
// existing round with the same number is returned as is.
func (h *AdminHandler) CreateRound(c echo.Context) error {
	adminID, ok, err := h.adminID(c)
	if !ok {
		return err
	}
	var body struct {
		RoundNumber        int       `json:"round_number"`
		StartDate          time.Time `json:"start_date"`
		EndDate            time.Time `json:"end_date"`
		AcceptanceDeadline time.Time `json:"acceptance_deadline"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	r, err := h.Service.CreateRound(c.Request().Context(), adminID, body.RoundNumber, body.StartDate, body.EndDate, body.AcceptanceDeadline)
	if err != nil {
		return writeError(c, err)
	}
	h.OnChange.run(c)
	return c.JSON(http.StatusCreated, echo.Map{"round": r})
}

// RunRound handles POST /v1/admin/rounds/:id/run.
func (h *AdminHandler) RunRound(c echo.Context) error {
	adminID, ok, err := h.adminID(c)
	if !ok {
		return err
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid round id")
	}
	res, err := h.Service.RunAllotment(c.Request().Context(), adminID, id)
	return h.runResponse(c, res, err)
}

// Trigger handles POST /v1/admin/allotment/trigger with
// {"round_number": n}.  The round is created with the default window when
// it does not exist yet.
func (h *AdminHandler) Trigger(c echo.Context) error {
	adminID, ok, err := h.adminID(c)
	if !ok {
		return err
	}
	var body struct {
		RoundNumber int `json:"round_number"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.RoundNumber < 1 {
		return badRequest(c, "round_number must be positive")
	}
	res, err := h.Service.TriggerAllotment(c.Request().Context(), adminID, body.RoundNumber)
	return h.runResponse(c, res, err)
}

// runResponse always returns the run result; the status reflects its
// outcome.
func (h *AdminHandler) runResponse(c echo.Context, res service.RunResult, err error) error {
	if err != nil {
		return c.JSON(statusFor(res.ErrorKind), res)
	}
	h.OnChange.run(c)
	return c.JSON(http.StatusOK, res)
}

// RoundAllotments handles GET /v1/admin/rounds/:id/allotments.
func (h *AdminHandler) RoundAllotments(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid round id")
	}
	list, err := h.Service.RoundAllotments(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"allotments": list, "count": len(list)})
}

// RoundStatistics handles GET /v1/admin/rounds/:id/statistics.
func (h *AdminHandler) RoundStatistics(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid round id")
	}
	st, err := h.Service.RoundStatistics(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, st)
}

// Statistics handles GET /v1/admin/statistics.
func (h *AdminHandler) Statistics(c echo.Context) error {
	st, err := h.Service.OverallStatistics(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, st)
}

// Courses handles GET /v1/admin/courses: the seat inventory per course.
func (h *AdminHandler) Courses(c echo.Context) error {
	courses, err := h.Service.ListCourses(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"courses": courses, "count": len(courses)})
}

// Cancel handles POST /v1/admin/allotments/:id/cancel with
// {"reason": string}.
func (h *AdminHandler) Cancel(c echo.Context) error {
	adminID, ok, err := h.adminID(c)
	if !ok {
		return err
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid allotment id")
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	a, err := h.Service.CancelAllotment(c.Request().Context(), adminID, id, body.Reason)
	if err != nil {
		return writeError(c, err)
	}
	h.OnChange.run(c)
	return c.JSON(http.StatusOK, echo.Map{"message": "Allotment cancelled", "allotment": a})
}
