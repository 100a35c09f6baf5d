package allotment

import (
	"time"

	"github.com/iliyamo/seat-allotment/internal/model"
)

// ValidateWindow checks the ordering of a round's dates.
func ValidateWindow(number int, start, end, deadline time.Time) error {
	if number < 1 {
		return InvalidArgument("round number must be positive")
	}
	if start.IsZero() || end.IsZero() || deadline.IsZero() {
		return InvalidArgument("round dates are required")
	}
	if !end.After(start) {
		return InvalidArgument("round end must be after start")
	}
	if deadline.Before(end) {
		return InvalidArgument("acceptance deadline must not be before round end")
	}
	return nil
}

// BeginRun moves a round into ACTIVE for an allocator pass.  Completed
// rounds are never re-run.
func BeginRun(r *model.Round, now time.Time) error {
	switch r.Status {
	case model.RoundScheduled, model.RoundActive:
		r.Status = model.RoundActive
		r.UpdatedAt = now
		return nil
	case model.RoundCompleted:
		return InvalidState("round %d is already completed", r.RoundNumber)
	}
	return InvalidState("round %d has unknown status %q", r.RoundNumber, r.Status)
}

// CompleteRun finalises a round after the allocator pass.
func CompleteRun(r *model.Round, total int, now time.Time) error {
	if r.Status != model.RoundActive {
		return InvalidState("round %d is not running", r.RoundNumber)
	}
	r.Status = model.RoundCompleted
	r.TotalAllotments = total
	r.UpdatedAt = now
	return nil
}

func RecordAcceptance(r *model.Round, now time.Time) {
	r.AcceptedCount++
	r.UpdatedAt = now
}

func RecordRejection(r *model.Round, now time.Time) {
	r.RejectedCount++
	r.UpdatedAt = now
}
