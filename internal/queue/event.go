// Package queue defines message payloads exchanged over the message broker
// and the consumer that delivers them.
package queue

// EventType names what happened to an allotment.
type EventType string

const (
	EventSeatAllotted  EventType = "seat_allotted"
	EventSeatUpgraded  EventType = "seat_upgraded"
	EventSeatAccepted  EventType = "seat_accepted"
	EventSeatRejected  EventType = "seat_rejected"
	EventSeatCancelled EventType = "seat_cancelled"
)

// AllotmentEvent is published after an allotment change has been committed.
// It carries enough information for downstream consumers to notify the
// applicant without querying the primary database.
type AllotmentEvent struct {
	Type        EventType `json:"type"`
	RunID       string    `json:"run_id,omitempty"`
	AllotmentID uint64    `json:"allotment_id"`
	ApplicantID uint64    `json:"applicant_id"`
	UserID      uint64    `json:"user_id,omitempty"`
	CourseID    uint64    `json:"course_id"`
	RoundID     uint64    `json:"round_id"`
	RoundNumber int       `json:"round_number"`
	Rank        int       `json:"rank"`
	Category    string    `json:"category"`
	Status      string    `json:"status"`
	// ReplacedAllotmentID is set on seat_upgraded events.
	ReplacedAllotmentID uint64 `json:"replaced_allotment_id,omitempty"`
	Reason              string `json:"reason,omitempty"`
	OccurredAt          string `json:"occurred_at"`
}
