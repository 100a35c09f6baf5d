// Package scenario replays a counselling process described in YAML against
// the allotment core, without a database.
package scenario

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/iliyamo/seat-allotment/internal/allotment"
	"github.com/iliyamo/seat-allotment/internal/model"
)

// Action is a post-round decision taken by an applicant.
type Action string

const (
	ActionFreeze  Action = "freeze"
	ActionUpgrade Action = "upgrade"
	ActionReject  Action = "reject"
)

// Scenario is the YAML document read by the simulator.
type Scenario struct {
	Courses    []Course    `yaml:"courses"`
	Applicants []Applicant `yaml:"applicants"`
	Rounds     []Round     `yaml:"rounds"`
}

// Course is one seat pool.  Seats lists the category quotas; TotalSeats
// defaults to their sum.
type Course struct {
	ID         uint64         `yaml:"id"`
	Code       string         `yaml:"code"`
	Name       string         `yaml:"name"`
	College    string         `yaml:"college"`
	TotalSeats int            `yaml:"total_seats"`
	Seats      map[string]int `yaml:"seats"`
	MinRank    *int           `yaml:"min_rank"`
	MaxRank    *int           `yaml:"max_rank"`
	Inactive   bool           `yaml:"inactive"`
}

// Applicant lists course ids in preference order.  Ineligible applicants
// are kept in the pool but never served.
type Applicant struct {
	ID          uint64   `yaml:"id"`
	Name        string   `yaml:"name"`
	Rank        int      `yaml:"rank"`
	Category    string   `yaml:"category"`
	Ineligible  bool     `yaml:"ineligible"`
	Preferences []uint64 `yaml:"preferences"`
}

// Round runs the allocator once, then applies the decisions.  Applicants
// without a decision leave their seat unanswered.
type Round struct {
	Number    int        `yaml:"number"`
	Decisions []Decision `yaml:"decisions"`
}

type Decision struct {
	Applicant uint64 `yaml:"applicant"`
	Action    Action `yaml:"action"`
	Reason    string `yaml:"reason,omitempty"`
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses a scenario and rejects unknown fields.
func Decode(r io.Reader) (*Scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var s Scenario
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks references and round numbering.  Errors carry the
// allotment error kinds.
func (s *Scenario) Validate() error {
	courses := make(map[uint64]bool, len(s.Courses))
	for _, c := range s.Courses {
		if c.ID == 0 {
			return allotment.InvalidArgument("course %q has no id", c.Code)
		}
		if courses[c.ID] {
			return allotment.InvalidArgument("course %d is listed twice", c.ID)
		}
		courses[c.ID] = true
		for cat, n := range c.Seats {
			if _, err := model.ParseCategory(cat); err != nil {
				return allotment.InvalidArgument("course %d: %v", c.ID, err)
			}
			if n < 0 {
				return allotment.InvalidArgument("course %d has negative %s seats", c.ID, cat)
			}
		}
	}

	applicants := make(map[uint64]bool, len(s.Applicants))
	for _, a := range s.Applicants {
		if a.ID == 0 {
			return allotment.InvalidArgument("applicant %q has no id", a.Name)
		}
		if applicants[a.ID] {
			return allotment.InvalidArgument("applicant %d is listed twice", a.ID)
		}
		applicants[a.ID] = true
		if a.Rank < 1 {
			return allotment.InvalidArgument("applicant %d has rank %d", a.ID, a.Rank)
		}
		if _, err := model.ParseCategory(a.Category); err != nil {
			return allotment.InvalidArgument("applicant %d: %v", a.ID, err)
		}
		for _, id := range a.Preferences {
			if !courses[id] {
				return allotment.InvalidArgument("applicant %d prefers unknown course %d", a.ID, id)
			}
		}
	}

	for i, r := range s.Rounds {
		if r.Number != i+1 {
			return allotment.InvalidArgument("round %d listed at position %d, rounds must be numbered 1..n", r.Number, i+1)
		}
		for _, d := range r.Decisions {
			if !applicants[d.Applicant] {
				return allotment.InvalidArgument("round %d: decision for unknown applicant %d", r.Number, d.Applicant)
			}
			switch d.Action {
			case ActionFreeze, ActionUpgrade, ActionReject:
			default:
				return allotment.InvalidArgument("round %d: unknown action %q", r.Number, d.Action)
			}
		}
	}
	return nil
}

func (c Course) model() model.Course {
	seats := make(map[model.Category]int, len(model.Categories()))
	sum := 0
	for name, n := range c.Seats {
		cat, _ := model.ParseCategory(name)
		seats[cat] += n
		sum += n
	}
	total := c.TotalSeats
	if total == 0 {
		total = sum
	}
	return model.Course{
		ID:             c.ID,
		Code:           c.Code,
		Name:           c.Name,
		CollegeName:    c.College,
		IsActive:       !c.Inactive,
		MinRank:        c.MinRank,
		MaxRank:        c.MaxRank,
		TotalSeats:     total,
		AvailableSeats: total,
		CategorySeats:  seats,
	}
}

func (a Applicant) model() model.Applicant {
	cat, _ := model.ParseCategory(a.Category)
	eligible := !a.Ineligible
	return model.Applicant{
		ID:                a.ID,
		UserID:            a.ID,
		FullName:          a.Name,
		Rank:              a.Rank,
		Category:          cat,
		DocumentsVerified: eligible,
		PaymentComplete:   eligible,
		PreferencesLocked: eligible,
	}
}

func (a Applicant) preferences() []model.Preference {
	out := make([]model.Preference, 0, len(a.Preferences))
	for i, id := range a.Preferences {
		out = append(out, model.Preference{ApplicantID: a.ID, CourseID: id, Order: i + 1, Locked: true})
	}
	return out
}
