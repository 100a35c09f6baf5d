package model

import "time"

// AllotmentStatus is the state of a single allotment record.
type AllotmentStatus string

const (
	AllotmentAllotted        AllotmentStatus = "ALLOTTED"
	AllotmentAcceptedFrozen  AllotmentStatus = "ACCEPTED_FROZEN"
	AllotmentAcceptedUpgrade AllotmentStatus = "ACCEPTED_UPGRADE"
	AllotmentRejected        AllotmentStatus = "REJECTED"
	AllotmentUpgraded        AllotmentStatus = "UPGRADED"
	AllotmentCancelled       AllotmentStatus = "CANCELLED"
)

// Terminal reports whether no further transition is allowed from s.
func (s AllotmentStatus) Terminal() bool {
	switch s {
	case AllotmentAcceptedFrozen, AllotmentRejected, AllotmentUpgraded, AllotmentCancelled:
		return true
	}
	return false
}

// HoldsSeat reports whether an allotment in status s still occupies a
// seat in the course inventory.
func (s AllotmentStatus) HoldsSeat() bool {
	switch s {
	case AllotmentAllotted, AllotmentAcceptedFrozen, AllotmentAcceptedUpgrade:
		return true
	}
	return false
}

// Allotment records one seat given to an applicant in a round.  Rank and
// category are snapshots taken at allotment time.  Records are never
// deleted; a later round creates a new record instead of changing a
// terminal one.
//
// Fields:
//
//	ID               – primary key identifier.
//	ApplicantID      – applicant who received the seat.
//	CourseID         – course the seat belongs to.
//	RoundID          – round that produced the allotment.
//	RoundNumber      – joined from allotment_rounds.round_number.
//	AllottedRank     – applicant rank when allotted.
//	AllottedCategory – applicant category when allotted.
//	Status           – see AllotmentStatus.
//	AcceptanceDate   – when the applicant accepted or rejected.
//	RejectionReason  – free text supplied with a rejection or cancellation.
//	AllottedAt       – creation timestamp.
//	UpdatedAt        – last update timestamp.
type Allotment struct {
	ID               uint64          `json:"id"`
	ApplicantID      uint64          `json:"applicant_id"`
	CourseID         uint64          `json:"course_id"`
	RoundID          uint64          `json:"round_id"`
	RoundNumber      int             `json:"round_number"`
	AllottedRank     int             `json:"allotted_rank"`
	AllottedCategory Category        `json:"allotted_category"`
	Status           AllotmentStatus `json:"status"`
	AcceptanceDate   *time.Time      `json:"acceptance_date,omitempty"`
	RejectionReason  *string         `json:"rejection_reason,omitempty"`
	AllottedAt       time.Time       `json:"allotted_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}
