package handler // handler defines the echo HTTP handlers of the allotment service

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-allotment/internal/allotment"
	"github.com/iliyamo/seat-allotment/internal/middleware"
	"github.com/iliyamo/seat-allotment/internal/model"
	"github.com/iliyamo/seat-allotment/internal/service"
)

// AllotmentService is the part of service.AllotmentService the handlers use.
type AllotmentService interface {
	CreateRound(ctx context.Context, actorID uint64, number int, start, end, deadline time.Time) (*model.Round, error)
	RunAllotment(ctx context.Context, actorID, roundID uint64) (service.RunResult, error)
	TriggerAllotment(ctx context.Context, actorID uint64, number int) (service.RunResult, error)
	AcceptSeat(ctx context.Context, actor service.Actor, allotmentID uint64, freeze bool) (*model.Allotment, error)
	RejectSeat(ctx context.Context, actor service.Actor, allotmentID uint64, reason string) (*model.Allotment, error)
	CancelAllotment(ctx context.Context, actorID, allotmentID uint64, reason string) (*model.Allotment, error)

	GetRound(ctx context.Context, id uint64) (*model.Round, error)
	ListRounds(ctx context.Context) ([]model.Round, error)
	ApplicantForUser(ctx context.Context, userID uint64) (*model.Applicant, error)
	LatestAllotment(ctx context.Context, applicantID uint64) (*model.Allotment, error)
	RoundAllotments(ctx context.Context, roundID uint64) ([]model.Allotment, error)
	RoundStatistics(ctx context.Context, roundID uint64) (*service.RoundStatistics, error)
	OverallStatistics(ctx context.Context) (*service.OverallStatistics, error)
	ListCourses(ctx context.Context) ([]service.CourseSeats, error)
}

// statusFor maps an error kind to an HTTP status.
func statusFor(kind allotment.Kind) int {
	switch kind {
	case allotment.KindNotFound:
		return http.StatusNotFound
	case allotment.KindInvalidState:
		return http.StatusConflict
	case allotment.KindInvalidArgument:
		return http.StatusBadRequest
	case allotment.KindTransient:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError renders err as {"error", "kind"}.  Only the caller-safe
// message is exposed.
func writeError(c echo.Context, err error) error {
	kind := allotment.KindOf(err)
	return c.JSON(statusFor(kind), echo.Map{"error": allotment.MessageOf(err), "kind": kind})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg, "kind": allotment.KindInvalidArgument})
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

// invalidate is called after a successful write.  A nil func is a no-op.
type invalidate func(ctx context.Context)

func (f invalidate) run(c echo.Context) {
	if f != nil {
		f(c.Request().Context())
	}
}

func currentUser(c echo.Context) (uint64, bool) {
	return middleware.UserID(c)
}
