package scenario

import (
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/seat-allotment/internal/allotment"
	"github.com/iliyamo/seat-allotment/internal/model"
)

// Line is one allotment as shown in a report.
type Line struct {
	AllotmentID uint64                `yaml:"allotment_id"`
	ApplicantID uint64                `yaml:"applicant_id"`
	Applicant   string                `yaml:"applicant"`
	Rank        int                   `yaml:"rank"`
	Category    model.Category        `yaml:"category"`
	CourseID    uint64                `yaml:"course_id"`
	Course      string                `yaml:"course"`
	Status      model.AllotmentStatus `yaml:"status"`
}

// RoundReport describes one round after its decisions were applied.
type RoundReport struct {
	Number     int       `yaml:"round"`
	Processed  int       `yaml:"applicants_processed"`
	Allotments []Line    `yaml:"allotments"`
	Upgraded   []Line    `yaml:"upgraded,omitempty"`
	Skipped    []Skipped `yaml:"skipped,omitempty"`
}

// Skipped names an applicant the round passed over and why.
type Skipped struct {
	ApplicantID uint64               `yaml:"applicant_id"`
	Applicant   string               `yaml:"applicant"`
	Reason      allotment.SkipReason `yaml:"reason"`
}

// Seats is the final inventory of one course.
type Seats struct {
	CourseID  uint64                 `yaml:"course_id"`
	Course    string                 `yaml:"course"`
	Total     int                    `yaml:"total_seats"`
	Available int                    `yaml:"available_seats"`
	ByQuota   map[model.Category]int `yaml:"category_seats"`
}

// Report is the outcome of a whole scenario.
type Report struct {
	Rounds  []RoundReport `yaml:"rounds"`
	Courses []Seats       `yaml:"courses"`
}

// Runner replays a scenario round by round.  Each round sees the
// allotment history and the inventory left by the previous one, exactly
// as the service would read them back from the database.
type Runner struct {
	log   *zap.Logger
	clock func() time.Time
}

// NewRunner returns a Runner; a nil logger is replaced with a no-op one.
func NewRunner(log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	start := time.Date(2026, time.July, 1, 9, 0, 0, 0, time.UTC)
	tick := 0
	return &Runner{
		log: log,
		// A deterministic clock keeps reports reproducible.
		clock: func() time.Time {
			tick++
			return start.Add(time.Duration(tick) * time.Minute)
		},
	}
}

// Run plays every round of s.
func (r *Runner) Run(s *Scenario) (*Report, error) {
	courses := make([]model.Course, 0, len(s.Courses))
	for _, c := range s.Courses {
		courses = append(courses, c.model())
	}
	applicants := make([]model.Applicant, 0, len(s.Applicants))
	prefs := make(map[uint64][]model.Preference, len(s.Applicants))
	for _, a := range s.Applicants {
		applicants = append(applicants, a.model())
		prefs[a.ID] = a.preferences()
	}

	st := &state{
		courses:    courses,
		applicants: indexApplicants(applicants),
	}
	report := &Report{}
	for _, sr := range s.Rounds {
		round := model.Round{
			ID:          uint64(sr.Number),
			RoundNumber: sr.Number,
			Status:      model.RoundActive,
		}
		plan, err := allotment.Plan(allotment.Input{
			Round:       round,
			Applicants:  applicants,
			Preferences: prefs,
			Courses:     st.courses,
			History:     st.history,
			Now:         r.clock(),
		})
		if err != nil {
			return nil, err
		}
		created := st.apply(plan)
		r.log.Info("round planned",
			zap.Int("round", sr.Number),
			zap.Int("processed", plan.Processed),
			zap.Int("allotted", len(plan.Allotments)),
			zap.Int("upgraded", len(plan.Upgraded)),
			zap.Int("skipped", len(plan.Skipped)))

		for _, d := range sr.Decisions {
			if err := st.decide(sr.Number, d, r.clock()); err != nil {
				return nil, err
			}
		}

		rr := RoundReport{Number: sr.Number, Processed: plan.Processed}
		for _, sk := range plan.Skipped {
			rr.Skipped = append(rr.Skipped, Skipped{
				ApplicantID: sk.ApplicantID,
				Applicant:   st.applicants[sk.ApplicantID].FullName,
				Reason:      sk.Reason,
			})
		}
		for _, id := range created {
			rr.Allotments = append(rr.Allotments, st.line(st.history[st.index[id]]))
		}
		for _, u := range plan.Upgraded {
			rr.Upgraded = append(rr.Upgraded, st.line(u))
		}
		report.Rounds = append(report.Rounds, rr)
	}

	for _, c := range st.courses {
		report.Courses = append(report.Courses, Seats{
			CourseID:  c.ID,
			Course:    c.Code,
			Total:     c.TotalSeats,
			Available: c.AvailableSeats,
			ByQuota:   c.CategorySeats,
		})
	}
	return report, nil
}

type state struct {
	courses    []model.Course
	applicants map[uint64]model.Applicant
	history    []model.Allotment
	index      map[uint64]int // allotment id -> position in history
	nextID     uint64
}

func indexApplicants(list []model.Applicant) map[uint64]model.Applicant {
	out := make(map[uint64]model.Applicant, len(list))
	for _, a := range list {
		out[a.ID] = a
	}
	return out
}

// apply stores the plan the way the service persists it and returns the
// ids of the new allotments.
func (st *state) apply(plan *allotment.Result) []uint64 {
	if st.index == nil {
		st.index = make(map[uint64]int)
	}
	ids := make([]uint64, 0, len(plan.Allotments))
	for _, a := range plan.Allotments {
		st.nextID++
		a.ID = st.nextID
		st.index[a.ID] = len(st.history)
		st.history = append(st.history, a)
		ids = append(ids, a.ID)
	}
	for _, u := range plan.Upgraded {
		st.history[st.index[u.ID]] = u
	}
	st.courses = plan.Courses
	return ids
}

func (st *state) decide(round int, d Decision, now time.Time) error {
	pos := -1
	for i, a := range st.history {
		if a.ApplicantID == d.Applicant && a.RoundNumber == round {
			pos = i
			break
		}
	}
	if pos < 0 {
		return allotment.NotFound("round %d: applicant %d has no allotment to %s", round, d.Applicant, d.Action)
	}
	a := &st.history[pos]

	switch d.Action {
	case ActionFreeze, ActionUpgrade:
		return allotment.Accept(a, d.Action == ActionFreeze, now)
	case ActionReject:
		reason := d.Reason
		if reason == "" {
			reason = "No reason provided"
		}
		if err := allotment.Reject(a, reason, now); err != nil {
			return err
		}
		for i := range st.courses {
			if st.courses[i].ID == a.CourseID {
				return allotment.ReleaseSeat(&st.courses[i], a.AllottedCategory)
			}
		}
		return allotment.NotFound("course %d not found", a.CourseID)
	}
	return allotment.InvalidArgument("unknown action %q", d.Action)
}

func (st *state) line(a model.Allotment) Line {
	l := Line{
		AllotmentID: a.ID,
		ApplicantID: a.ApplicantID,
		Applicant:   st.applicants[a.ApplicantID].FullName,
		Rank:        a.AllottedRank,
		Category:    a.AllottedCategory,
		CourseID:    a.CourseID,
		Status:      a.Status,
	}
	for _, c := range st.courses {
		if c.ID == a.CourseID {
			l.Course = c.Code
			break
		}
	}
	return l
}
