package service

import (
	"context"
	"errors"

	"github.com/iliyamo/seat-allotment/internal/model"
	"github.com/iliyamo/seat-allotment/internal/repository"
)

// StatusCounts is the allotment breakdown shared by the statistics views.
type StatusCounts struct {
	Total           int `json:"total_allotments"`
	Pending         int `json:"pending"`
	AcceptedFrozen  int `json:"accepted_frozen"`
	AcceptedUpgrade int `json:"accepted_upgrade"`
	Rejected        int `json:"rejected"`
	Upgraded        int `json:"upgraded"`
	Cancelled       int `json:"cancelled"`
}

func newStatusCounts(m map[model.AllotmentStatus]int) StatusCounts {
	sc := StatusCounts{
		Pending:         m[model.AllotmentAllotted],
		AcceptedFrozen:  m[model.AllotmentAcceptedFrozen],
		AcceptedUpgrade: m[model.AllotmentAcceptedUpgrade],
		Rejected:        m[model.AllotmentRejected],
		Upgraded:        m[model.AllotmentUpgraded],
		Cancelled:       m[model.AllotmentCancelled],
	}
	for _, n := range m {
		sc.Total += n
	}
	return sc
}

// CourseSeats is the seat inventory of one course as the admin sees it.
type CourseSeats struct {
	ID             uint64                 `json:"id"`
	Code           string                 `json:"code"`
	Name           string                 `json:"name"`
	College        string                 `json:"college,omitempty"`
	IsActive       bool                   `json:"is_active"`
	TotalSeats     int                    `json:"total_seats"`
	AvailableSeats int                    `json:"available_seats"`
	SeatsFilled    int                    `json:"seats_filled"`
	CategorySeats  map[model.Category]int `json:"category_seats"`
}

// ListCourses reports the current seat inventory of every course.
func (s *AllotmentService) ListCourses(ctx context.Context) ([]CourseSeats, error) {
	courses, err := s.store.Repos().Courses.List(ctx)
	if err != nil {
		return nil, classify(err, "list courses")
	}
	out := make([]CourseSeats, 0, len(courses))
	for _, c := range courses {
		out = append(out, CourseSeats{
			ID:             c.ID,
			Code:           c.Code,
			Name:           c.Name,
			College:        c.CollegeName,
			IsActive:       c.IsActive,
			TotalSeats:     c.TotalSeats,
			AvailableSeats: c.AvailableSeats,
			SeatsFilled:    c.TotalSeats - c.AvailableSeats,
			CategorySeats:  c.CategorySeats,
		})
	}
	return out, nil
}

// RoundStatistics is the per-round view.
type RoundStatistics struct {
	RoundID         uint64            `json:"round_id"`
	RoundNumber     int               `json:"round_number"`
	Status          model.RoundStatus `json:"status"`
	TotalAllotments int               `json:"total_allotments"`
	AcceptedCount   int               `json:"accepted_count"`
	RejectedCount   int               `json:"rejected_count"`
	IsCompleted     bool              `json:"is_completed"`
	ByStatus        StatusCounts      `json:"by_status"`
}

// OverallStatistics aggregates every round.
type OverallStatistics struct {
	Overall StatusCounts      `json:"overall"`
	Rounds  []RoundStatistics `json:"rounds"`
}

func (s *AllotmentService) GetRound(ctx context.Context, id uint64) (*model.Round, error) {
	r, err := s.store.Repos().Rounds.GetByID(ctx, id)
	if err != nil {
		return nil, classify(notFoundOr(err, "round %d not found", id), "load round %d", id)
	}
	return r, nil
}

// ListRounds returns every round ordered by number.
func (s *AllotmentService) ListRounds(ctx context.Context) ([]model.Round, error) {
	rounds, err := s.store.Repos().Rounds.List(ctx)
	if err != nil {
		return nil, classify(err, "list rounds")
	}
	return rounds, nil
}

func (s *AllotmentService) GetAllotment(ctx context.Context, id uint64) (*model.Allotment, error) {
	a, err := s.store.Repos().Allotments.GetByID(ctx, id)
	if err != nil {
		return nil, classify(notFoundOr(err, "allotment %d not found", id), "load allotment %d", id)
	}
	return a, nil
}

// ApplicantForUser resolves the applicant profile of an authenticated user.
func (s *AllotmentService) ApplicantForUser(ctx context.Context, userID uint64) (*model.Applicant, error) {
	a, err := s.store.Repos().Applicants.GetByUserID(ctx, userID)
	if err != nil {
		return nil, classify(notFoundOr(err, "applicant profile not found"), "load applicant for user %d", userID)
	}
	return a, nil
}

// LatestAllotment returns the applicant's allotment from the most recent
// round, or nil when none was made yet.
func (s *AllotmentService) LatestAllotment(ctx context.Context, applicantID uint64) (*model.Allotment, error) {
	a, err := s.store.Repos().Allotments.LatestForApplicant(ctx, applicantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, classify(err, "load latest allotment of applicant %d", applicantID)
	}
	return a, nil
}

// RoundAllotments lists the allotments made by one round.
func (s *AllotmentService) RoundAllotments(ctx context.Context, roundID uint64) ([]model.Allotment, error) {
	if _, err := s.GetRound(ctx, roundID); err != nil {
		return nil, err
	}
	out, err := s.store.Repos().Allotments.ListByRound(ctx, roundID)
	if err != nil {
		return nil, classify(err, "list allotments of round %d", roundID)
	}
	return out, nil
}

func (s *AllotmentService) RoundStatistics(ctx context.Context, roundID uint64) (*RoundStatistics, error) {
	r, err := s.GetRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.Repos().Allotments.CountByStatus(ctx, roundID)
	if err != nil {
		return nil, classify(err, "count allotments of round %d", roundID)
	}
	st := roundStatistics(*r)
	st.ByStatus = newStatusCounts(counts)
	return &st, nil
}

func (s *AllotmentService) OverallStatistics(ctx context.Context) (*OverallStatistics, error) {
	repos := s.store.Repos()
	counts, err := repos.Allotments.CountByStatus(ctx, 0)
	if err != nil {
		return nil, classify(err, "count allotments")
	}
	rounds, err := repos.Rounds.List(ctx)
	if err != nil {
		return nil, classify(err, "list rounds")
	}
	out := &OverallStatistics{
		Overall: newStatusCounts(counts),
		Rounds:  make([]RoundStatistics, 0, len(rounds)),
	}
	for _, r := range rounds {
		out.Rounds = append(out.Rounds, roundStatistics(r))
	}
	return out, nil
}

func roundStatistics(r model.Round) RoundStatistics {
	return RoundStatistics{
		RoundID:         r.ID,
		RoundNumber:     r.RoundNumber,
		Status:          r.Status,
		TotalAllotments: r.TotalAllotments,
		AcceptedCount:   r.AcceptedCount,
		RejectedCount:   r.RejectedCount,
		IsCompleted:     r.IsCompleted(),
	}
}
