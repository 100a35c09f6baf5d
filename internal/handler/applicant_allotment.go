package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-allotment/internal/service"
)

// ApplicantHandler serves the applicant's own allotment and the seat
// decisions.  JWT authentication and the STUDENT role check happen in
// middleware.
type ApplicantHandler struct {
	Service AllotmentService
	// OnChange runs after a successful decision, e.g. to purge cached
	// statistics.
	OnChange invalidate
}

// NewApplicantHandler panics if svc is nil.
func NewApplicantHandler(svc AllotmentService, onChange invalidate) *ApplicantHandler {
	if svc == nil {
		panic("nil service passed to NewApplicantHandler")
	}
	return &ApplicantHandler{Service: svc, OnChange: onChange}
}

// actor resolves the caller's applicant profile.  When ok is false the
// response has been written already and err is what the handler returns.
func (h *ApplicantHandler) actor(c echo.Context) (actor service.Actor, ok bool, err error) {
	userID, found := currentUser(c)
	if !found {
		return actor, false, c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ap, err := h.Service.ApplicantForUser(c.Request().Context(), userID)
	if err != nil {
		return actor, false, writeError(c, err)
	}
	return service.Actor{UserID: userID, ApplicantID: ap.ID}, true, nil
}

// MyAllotment handles GET /v1/allotments/me and returns the allotment from
// the latest round the applicant received a seat in.
func (h *ApplicantHandler) MyAllotment(c echo.Context) error {
	actor, ok, err := h.actor(c)
	if !ok {
		return err
	}
	a, err := h.Service.LatestAllotment(c.Request().Context(), actor.ApplicantID)
	if err != nil {
		return writeError(c, err)
	}
	if a == nil {
		return c.JSON(http.StatusOK, echo.Map{"allotment": nil, "message": "No seat allotted yet"})
	}
	return c.JSON(http.StatusOK, echo.Map{"allotment": a})
}

// Accept handles POST /v1/allotments/:id/accept.  The body is
// {"freeze": bool}; freeze defaults to true, false keeps the applicant in
// later rounds for an upgrade.
func (h *ApplicantHandler) Accept(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid allotment id")
	}
	var body struct {
		Freeze *bool `json:"freeze"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	freeze := true
	if body.Freeze != nil {
		freeze = *body.Freeze
	}

	actor, ok, err := h.actor(c)
	if !ok {
		return err
	}
	a, err := h.Service.AcceptSeat(c.Request().Context(), actor, id, freeze)
	if err != nil {
		return writeError(c, err)
	}
	h.OnChange.run(c)
	return c.JSON(http.StatusOK, echo.Map{
		"message":   "Seat accepted successfully",
		"frozen":    freeze,
		"allotment": a,
	})
}

// Reject handles POST /v1/allotments/:id/reject with an optional
// {"reason": string}.
func (h *ApplicantHandler) Reject(c echo.Context) error {
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

	actor, ok, err := h.actor(c)
	if !ok {
		return err
	}
	a, err := h.Service.RejectSeat(c.Request().Context(), actor, id, body.Reason)
	if err != nil {
		return writeError(c, err)
	}
	h.OnChange.run(c)
	return c.JSON(http.StatusOK, echo.Map{"message": "Seat rejected successfully", "allotment": a})
}

// ListRounds handles GET /v1/rounds.
func (h *ApplicantHandler) ListRounds(c echo.Context) error {
	rounds, err := h.Service.ListRounds(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"rounds": rounds})
}

// GetRound handles GET /v1/rounds/:id.
func (h *ApplicantHandler) GetRound(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid round id")
	}
	r, err := h.Service.GetRound(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"round": r})
}
