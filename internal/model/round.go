package model

import "time"

// RoundStatus is the lifecycle state of an allotment round.
type RoundStatus string

const (
	RoundScheduled RoundStatus = "SCHEDULED"
	RoundActive    RoundStatus = "ACTIVE"
	RoundCompleted RoundStatus = "COMPLETED"
)

// Round is one allocation cycle.  The counters are a cache derived from
// the allotments of the round: TotalAllotments is written by the allocator,
// AcceptedCount and RejectedCount by applicant decisions.
//
// Fields:
//
//	ID                 – primary key identifier.
//	RoundNumber        – unique, strictly increasing round number.
//	StartDate          – opening of the round window.
//	EndDate            – closing of the round window.
//	AcceptanceDeadline – last moment to accept or reject.
//	Status             – SCHEDULED, ACTIVE or COMPLETED.
//	TotalAllotments    – allotments created by the run.
//	AcceptedCount      – seats accepted (frozen or upgrade).
//	RejectedCount      – seats rejected.
//	CreatedAt          – creation timestamp.
//	UpdatedAt          – last update timestamp.
type Round struct {
	ID                 uint64      `json:"id"`
	RoundNumber        int         `json:"round_number"`
	StartDate          time.Time   `json:"start_date"`
	EndDate            time.Time   `json:"end_date"`
	AcceptanceDeadline time.Time   `json:"acceptance_deadline"`
	Status             RoundStatus `json:"status"`
	TotalAllotments    int         `json:"total_allotments"`
	AcceptedCount      int         `json:"accepted_count"`
	RejectedCount      int         `json:"rejected_count"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// IsActive reports whether the round is scheduled or running, i.e. not
// yet completed.
func (r Round) IsActive() bool { return r.Status != RoundCompleted }

// IsCompleted reports whether the allocator has finished the round.
func (r Round) IsCompleted() bool { return r.Status == RoundCompleted }
