package allotment

import (
	"sort"
	"time"

	"github.com/iliyamo/seat-allotment/internal/model"
)

// SkipReason tells why an applicant took part in a run without receiving
// a new seat.
type SkipReason string

const (
	SkipFrozen           SkipReason = "frozen"
	SkipFrozenPrevious   SkipReason = "frozen_previous_round"
	SkipAlreadyAllotted  SkipReason = "already_allotted"
	SkipAwaitingDecision SkipReason = "awaiting_decision"
	SkipWithdrawn        SkipReason = "withdrawn"
	SkipNotEligible      SkipReason = "not_eligible"
	SkipNoPreferences    SkipReason = "no_preferences"
	SkipNoSeat           SkipReason = "no_eligible_course"
	SkipNoBetterSeat     SkipReason = "no_better_course"
)

// Skip is one entry of the run log.
type Skip struct {
	ApplicantID uint64     `json:"applicant_id"`
	Reason      SkipReason `json:"reason"`
}

// Input is the immutable snapshot an allotment run works on.
//
// History must contain every allotment of rounds numbered below Round
// together with any allotment already recorded for Round.  RoundNumber
// must be set on each record.
//
// Deadlines maps earlier round numbers to their acceptance deadline.  An
// ALLOTTED seat whose round deadline lies before Now is forfeited; rounds
// missing from the map never forfeit.
type Input struct {
	Round       model.Round
	Applicants  []model.Applicant
	Preferences map[uint64][]model.Preference
	Courses     []model.Course
	History     []model.Allotment
	Deadlines   map[int]time.Time
	Now         time.Time
}

// ForfeitReason is recorded on seats that were never answered in time.
const ForfeitReason = "acceptance deadline passed"

// Result is what a run would change.  Nothing has been persisted when it
// is returned; applying it is the caller's job and must be atomic.
type Result struct {
	RoundNumber int               `json:"round_number"`
	Processed   int               `json:"applicants_processed"`
	Allotments  []model.Allotment `json:"allotments"`
	Upgraded    []model.Allotment `json:"upgraded"`
	Forfeited   []model.Allotment `json:"forfeited"`
	Courses     []model.Course    `json:"courses"`
	Deltas      []SeatDelta       `json:"deltas"`
	Skipped     []Skip            `json:"skipped"`
}

// applicantHistory summarises what earlier rounds left behind for one
// applicant.
type applicantHistory struct {
	frozenRound int // highest round number with a frozen seat, 0 if none
	inRound     bool
	pending     bool
	withdrawn   bool
	upgrade     *model.Allotment
}

// Plan runs the allocator over in: applicants are served one by one in
// rank order (ties broken by applicant id) and each receives the first
// course of their locked preference list that is eligible at their turn.
// At most one new seat is given per applicant.
//
// Applicants who froze a seat, already hold one in this round, gave a seat
// up or have not answered an earlier offer are skipped.
//
// Unanswered seats of earlier rounds whose acceptance deadline has passed
// are cancelled first and their seats go back into the pool.
//
// An applicant who holds an upgrade-accepted seat only competes for
// courses preferred over the one held.  When such an applicant moves, the
// old allotment is superseded and its seat goes back into the pool for the
// applicants that follow.
func Plan(in Input) (*Result, error) {
	if in.Round.Status == model.RoundCompleted {
		return nil, InvalidState("round %d is already completed", in.Round.RoundNumber)
	}

	applicants := make([]model.Applicant, len(in.Applicants))
	copy(applicants, in.Applicants)
	seen := make(map[uint64]struct{}, len(applicants))
	for _, a := range applicants {
		if _, dup := seen[a.ID]; dup {
			return nil, Constraint("applicant %d appears twice in the pool", a.ID)
		}
		seen[a.ID] = struct{}{}
		if !a.Category.Valid() {
			return nil, Constraint("applicant %d has unknown category %q", a.ID, a.Category)
		}
	}
	SortByRank(applicants)

	inv := NewInventory(in.Courses)
	res := &Result{RoundNumber: in.Round.RoundNumber}

	past := make([]model.Allotment, len(in.History))
	copy(past, in.History)
	for i := range past {
		a := &past[i]
		if a.Status != model.AllotmentAllotted || a.RoundNumber >= in.Round.RoundNumber {
			continue
		}
		deadline, ok := in.Deadlines[a.RoundNumber]
		if !ok || deadline.IsZero() || !in.Now.After(deadline) {
			continue
		}
		if err := Cancel(a, ForfeitReason, in.Now); err != nil {
			return nil, err
		}
		if err := inv.Release(a.CourseID, a.AllottedCategory); err != nil {
			return nil, err
		}
		res.Forfeited = append(res.Forfeited, *a)
	}

	history, err := summarise(in.Round, past)
	if err != nil {
		return nil, err
	}

	for _, a := range applicants {
		res.Processed++
		h := history[a.ID]
		if h == nil {
			h = &applicantHistory{}
		}

		if reason, skip := h.skipReason(a, in.Round.RoundNumber); skip {
			res.Skipped = append(res.Skipped, Skip{ApplicantID: a.ID, Reason: reason})
			continue
		}

		prefs, err := OrderedCourses(a.ID, in.Preferences[a.ID])
		if err != nil {
			return nil, err
		}
		if len(prefs) == 0 {
			res.Skipped = append(res.Skipped, Skip{ApplicantID: a.ID, Reason: SkipNoPreferences})
			continue
		}
		if h.upgrade != nil {
			prefs = preferredOver(prefs, h.upgrade.CourseID)
		}

		courseID, ok := firstFit(inv, a, prefs)
		if !ok {
			reason := SkipNoSeat
			if h.upgrade != nil {
				reason = SkipNoBetterSeat
			}
			res.Skipped = append(res.Skipped, Skip{ApplicantID: a.ID, Reason: reason})
			continue
		}

		res.Allotments = append(res.Allotments, model.Allotment{
			ApplicantID:      a.ID,
			CourseID:         courseID,
			RoundID:          in.Round.ID,
			RoundNumber:      in.Round.RoundNumber,
			AllottedRank:     a.Rank,
			AllottedCategory: a.Category,
			Status:           model.AllotmentAllotted,
			AllottedAt:       in.Now,
			UpdatedAt:        in.Now,
		})

		if h.upgrade != nil {
			old := *h.upgrade
			if err := Supersede(&old, in.Now); err != nil {
				return nil, err
			}
			if err := inv.Release(old.CourseID, old.AllottedCategory); err != nil {
				return nil, err
			}
			res.Upgraded = append(res.Upgraded, old)
		}
	}

	res.Courses = inv.Courses()
	res.Deltas = inv.Deltas()
	return res, nil
}

// SortByRank orders applicants by rank, best first, and by id when ranks
// are equal.
func SortByRank(applicants []model.Applicant) {
	sort.SliceStable(applicants, func(i, j int) bool {
		if applicants[i].Rank != applicants[j].Rank {
			return applicants[i].Rank < applicants[j].Rank
		}
		return applicants[i].ID < applicants[j].ID
	})
}

// OrderedCourses validates a locked preference list and returns its
// course ids in preference order.  Orders must run 1..n without gaps and
// no course may appear twice.
func OrderedCourses(applicantID uint64, prefs []model.Preference) ([]uint64, error) {
	if len(prefs) == 0 {
		return nil, nil
	}
	sorted := make([]model.Preference, len(prefs))
	copy(sorted, prefs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	out := make([]uint64, 0, len(sorted))
	courses := make(map[uint64]struct{}, len(sorted))
	for i, p := range sorted {
		if p.Order != i+1 {
			return nil, Constraint("applicant %d preference order %d is not contiguous", applicantID, p.Order)
		}
		if _, dup := courses[p.CourseID]; dup {
			return nil, Constraint("applicant %d lists course %d twice", applicantID, p.CourseID)
		}
		courses[p.CourseID] = struct{}{}
		out = append(out, p.CourseID)
	}
	return out, nil
}

func firstFit(inv *Inventory, a model.Applicant, prefs []uint64) (uint64, bool) {
	for _, id := range prefs {
		c, ok := inv.Course(id)
		if !ok || !IsEligible(a, c) {
			continue
		}
		if inv.Reserve(id, a.Category) {
			return id, true
		}
	}
	return 0, false
}

// preferredOver returns the prefix of prefs ranked above held.  When the
// held course is not in the list every other course is a candidate.
func preferredOver(prefs []uint64, held uint64) []uint64 {
	for i, id := range prefs {
		if id == held {
			return prefs[:i]
		}
	}
	out := make([]uint64, 0, len(prefs))
	for _, id := range prefs {
		if id != held {
			out = append(out, id)
		}
	}
	return out
}

func summarise(round model.Round, all []model.Allotment) (map[uint64]*applicantHistory, error) {
	out := make(map[uint64]*applicantHistory)
	for i := range all {
		a := all[i]
		h, ok := out[a.ApplicantID]
		if !ok {
			h = &applicantHistory{}
			out[a.ApplicantID] = h
		}
		if a.RoundID == round.ID || a.RoundNumber == round.RoundNumber {
			h.inRound = true
			continue
		}
		if a.RoundNumber > round.RoundNumber {
			return nil, Constraint("allotment %d belongs to later round %d", a.ID, a.RoundNumber)
		}
		switch a.Status {
		case model.AllotmentAcceptedFrozen:
			if a.RoundNumber > h.frozenRound {
				h.frozenRound = a.RoundNumber
			}
		case model.AllotmentAllotted:
			h.pending = true
		case model.AllotmentRejected, model.AllotmentCancelled:
			h.withdrawn = true
		case model.AllotmentAcceptedUpgrade:
			if h.upgrade != nil {
				return nil, Constraint("applicant %d holds more than one upgrade seat", a.ApplicantID)
			}
			h.upgrade = &all[i]
		}
	}
	return out, nil
}

func (h *applicantHistory) skipReason(a model.Applicant, roundNumber int) (SkipReason, bool) {
	if !a.Eligible() {
		return SkipNotEligible, true
	}
	// A frozen seat from any earlier round is final.
	if h.frozenRound > 0 {
		if h.frozenRound == roundNumber-1 {
			return SkipFrozenPrevious, true
		}
		return SkipFrozen, true
	}
	if h.inRound {
		return SkipAlreadyAllotted, true
	}
	// Giving a seat up leaves the counselling process.
	if h.withdrawn {
		return SkipWithdrawn, true
	}
	if h.pending {
		return SkipAwaitingDecision, true
	}
	return "", false
}
