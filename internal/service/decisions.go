package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/seat-allotment/internal/allotment"
	"github.com/iliyamo/seat-allotment/internal/model"
	"github.com/iliyamo/seat-allotment/internal/queue"
	"github.com/iliyamo/seat-allotment/internal/repository"
)

const defaultRejectReason = "No reason provided"

// Actor identifies who makes a seat decision.  A non-zero ApplicantID
// restricts the call to that applicant's own allotments, and answers to an
// ALLOTTED seat to the acceptance window of its round.
type Actor struct {
	UserID      uint64
	ApplicantID uint64
}

// AcceptSeat records an applicant's acceptance of an ALLOTTED seat.
// Freezing also confirms admission.
func (s *AllotmentService) AcceptSeat(ctx context.Context, actor Actor, allotmentID uint64, freeze bool) (*model.Allotment, error) {
	now := s.now()
	var a *model.Allotment
	err := s.store.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
		var (
			round *model.Round
			err   error
		)
		a, round, err = lockDecision(ctx, r, actor.ApplicantID, allotmentID, now)
		if err != nil {
			return err
		}
		from := a.Status
		if err := allotment.Accept(a, freeze, now); err != nil {
			return err
		}
		if err := r.Allotments.Update(ctx, a, from); err != nil {
			return err
		}
		allotment.RecordAcceptance(round, now)
		if err := r.Rounds.Update(ctx, round); err != nil {
			return err
		}
		if freeze {
			return r.Applicants.MarkAdmissionConfirmed(ctx, a.ApplicantID)
		}
		return nil
	})
	if err != nil {
		return nil, classify(err, "accept allotment %d", allotmentID)
	}

	mode := "accepted with upgrade"
	if freeze {
		mode = "frozen"
	}
	s.log.Info("seat accepted", zap.Uint64("allotment_id", a.ID), zap.Bool("freeze", freeze))
	s.audit(ctx, actor.UserID, "seat_accepted", "Allotment", a.ID, "seat %s", mode)
	s.notifyDecision(ctx, queue.EventSeatAccepted, *a, "")
	return a, nil
}

// RejectSeat gives a seat back.  One general and one category seat return
// to the course.
func (s *AllotmentService) RejectSeat(ctx context.Context, actor Actor, allotmentID uint64, reason string) (*model.Allotment, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = defaultRejectReason
	}
	now := s.now()
	var a *model.Allotment
	err := s.store.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
		var (
			round *model.Round
			err   error
		)
		a, round, err = lockDecision(ctx, r, actor.ApplicantID, allotmentID, now)
		if err != nil {
			return err
		}
		from := a.Status
		if err := allotment.Reject(a, reason, now); err != nil {
			return err
		}
		if err := releaseSeat(ctx, r, a); err != nil {
			return err
		}
		if err := r.Allotments.Update(ctx, a, from); err != nil {
			return err
		}
		allotment.RecordRejection(round, now)
		return r.Rounds.Update(ctx, round)
	})
	if err != nil {
		return nil, classify(err, "reject allotment %d", allotmentID)
	}

	s.log.Info("seat rejected", zap.Uint64("allotment_id", a.ID))
	s.audit(ctx, actor.UserID, "seat_rejected", "Allotment", a.ID, "seat rejected: %s", reason)
	s.notifyDecision(ctx, queue.EventSeatRejected, *a, reason)
	return a, nil
}

// CancelAllotment withdraws a seat administratively.  The seat returns to
// the course; round counters are left alone.
func (s *AllotmentService) CancelAllotment(ctx context.Context, actorID, allotmentID uint64, reason string) (*model.Allotment, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, allotment.InvalidArgument("a cancellation reason is required")
	}
	now := s.now()
	var a *model.Allotment
	err := s.store.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
		var err error
		a, err = r.Allotments.LockByID(ctx, allotmentID)
		if err != nil {
			return notFoundOr(err, "allotment %d not found", allotmentID)
		}
		from := a.Status
		if err := allotment.Cancel(a, reason, now); err != nil {
			return err
		}
		if err := releaseSeat(ctx, r, a); err != nil {
			return err
		}
		return r.Allotments.Update(ctx, a, from)
	})
	if err != nil {
		return nil, classify(err, "cancel allotment %d", allotmentID)
	}

	s.log.Info("allotment cancelled", zap.Uint64("allotment_id", a.ID), zap.Uint64("actor_id", actorID))
	s.audit(ctx, actorID, "allotment_cancelled", "Allotment", a.ID, "allotment cancelled: %s", reason)
	s.notifyDecision(ctx, queue.EventSeatCancelled, *a, reason)
	return a, nil
}

// lockDecision loads an allotment and its round under row locks and checks
// that the caller may decide on it.
func lockDecision(ctx context.Context, r repository.Repos, applicantID, allotmentID uint64, now time.Time) (*model.Allotment, *model.Round, error) {
	a, err := r.Allotments.LockByID(ctx, allotmentID)
	if err != nil {
		return nil, nil, notFoundOr(err, "allotment %d not found", allotmentID)
	}
	// Someone else's allotment is reported as missing.
	if applicantID != 0 && a.ApplicantID != applicantID {
		return nil, nil, allotment.NotFound("allotment %d not found", allotmentID)
	}
	round, err := r.Rounds.LockByID(ctx, a.RoundID)
	if err != nil {
		return nil, nil, notFoundOr(err, "round %d not found", a.RoundID)
	}
	// The window only bounds the answer to an offer.  An upgrade holder
	// may still give the seat up later.
	if applicantID != 0 && a.Status == model.AllotmentAllotted && now.After(round.AcceptanceDeadline) {
		return nil, nil, allotment.InvalidState("acceptance deadline of round %d has passed", round.RoundNumber)
	}
	return a, round, nil
}

func releaseSeat(ctx context.Context, r repository.Repos, a *model.Allotment) error {
	c, err := r.Courses.LockByID(ctx, a.CourseID)
	if err != nil {
		return notFoundOr(err, "course %d not found", a.CourseID)
	}
	if err := allotment.ReleaseSeat(c, a.AllottedCategory); err != nil {
		return err
	}
	return r.Courses.UpdateSeats(ctx, c)
}

func (s *AllotmentService) notifyDecision(ctx context.Context, t queue.EventType, a model.Allotment, reason string) {
	var userID uint64
	if ap, err := s.store.Repos().Applicants.GetByID(ctx, a.ApplicantID); err == nil {
		userID = ap.UserID
	}
	ev := s.event(t, a, userID)
	ev.Reason = reason
	s.notify(ctx, ev)
}
