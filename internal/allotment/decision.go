package allotment

import (
	"time"

	"github.com/iliyamo/seat-allotment/internal/model"
)

// Accept records the applicant's acceptance.  Freezing makes the seat
// final; otherwise the applicant keeps the seat while staying in later
// rounds for a better one.
func Accept(a *model.Allotment, freeze bool, now time.Time) error {
	if a.Status != model.AllotmentAllotted {
		return InvalidState("allotment %d is %s, only ALLOTTED seats can be accepted", a.ID, a.Status)
	}
	if freeze {
		a.Status = model.AllotmentAcceptedFrozen
	} else {
		a.Status = model.AllotmentAcceptedUpgrade
	}
	t := now
	a.AcceptanceDate = &t
	a.UpdatedAt = now
	return nil
}

// Reject gives the seat up.  The caller is responsible for returning the
// seat to the course inventory.
func Reject(a *model.Allotment, reason string, now time.Time) error {
	if a.Status.Terminal() {
		return InvalidState("allotment %d is already %s", a.ID, a.Status)
	}
	a.Status = model.AllotmentRejected
	r := reason
	a.RejectionReason = &r
	t := now
	a.AcceptanceDate = &t
	a.UpdatedAt = now
	return nil
}

// Cancel is the administrative counterpart of Reject.
func Cancel(a *model.Allotment, reason string, now time.Time) error {
	if a.Status.Terminal() {
		return InvalidState("allotment %d is already %s", a.ID, a.Status)
	}
	a.Status = model.AllotmentCancelled
	r := reason
	a.RejectionReason = &r
	a.UpdatedAt = now
	return nil
}

// Supersede marks an upgrade-accepted allotment as replaced by a better
// seat from a later round.
func Supersede(a *model.Allotment, now time.Time) error {
	if a.Status != model.AllotmentAcceptedUpgrade {
		return InvalidState("allotment %d is %s, only ACCEPTED_UPGRADE seats can be upgraded", a.ID, a.Status)
	}
	a.Status = model.AllotmentUpgraded
	a.UpdatedAt = now
	return nil
}
