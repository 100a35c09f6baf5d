package allotment

import "github.com/iliyamo/seat-allotment/internal/model"

// Reason explains why a course was not eligible for an applicant.  The
// zero value means eligible.
type Reason string

const (
	Eligible           Reason = ""
	ReasonInactive     Reason = "course_inactive"
	ReasonNoSeat       Reason = "no_general_seat"
	ReasonNoCategory   Reason = "no_category_seat"
	ReasonBelowMinRank Reason = "rank_below_minimum"
	ReasonAboveMaxRank Reason = "rank_above_maximum"
)

// Check evaluates every admission condition of course c for applicant a
// against the current seat counters and returns the first one that fails.
func Check(a model.Applicant, c model.Course) Reason {
	switch {
	case !c.IsActive:
		return ReasonInactive
	case c.AvailableSeats < 1:
		return ReasonNoSeat
	case c.CategorySeats[a.Category] < 1:
		return ReasonNoCategory
	case c.MinRank != nil && a.Rank < *c.MinRank:
		return ReasonBelowMinRank
	case c.MaxRank != nil && a.Rank > *c.MaxRank:
		return ReasonAboveMaxRank
	}
	return Eligible
}

// IsEligible reports whether applicant a may be allotted a seat in c.
func IsEligible(a model.Applicant, c model.Course) bool {
	return Check(a, c) == Eligible
}
