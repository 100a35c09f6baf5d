package allotment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seat-allotment/internal/model"
)

func allottedTo(res *Result) map[uint64]uint64 {
	out := make(map[uint64]uint64, len(res.Allotments))
	for _, a := range res.Allotments {
		out[a.ApplicantID] = a.CourseID
	}
	return out
}

func skipsOf(res *Result) map[uint64]SkipReason {
	out := make(map[uint64]SkipReason, len(res.Skipped))
	for _, s := range res.Skipped {
		out[s.ApplicantID] = s.Reason
	}
	return out
}

func courseState(t *testing.T, res *Result, id uint64) model.Course {
	t.Helper()
	for _, c := range res.Courses {
		if c.ID == id {
			return c
		}
	}
	t.Fatalf("course %d missing from result", id)
	return model.Course{}
}

func TestPlan_BetterRankWinsLastSeat(t *testing.T) {
	course := newCourse(1, 1, map[model.Category]int{model.CategoryGeneral: 1})
	course.MinRank, course.MaxRank = intPtr(1), intPtr(10000)
	x := newApplicant(1, 100, model.CategoryGeneral)
	y := newApplicant(2, 50, model.CategoryGeneral)

	res, err := Plan(Input{
		Round:       round(1, 1),
		Applicants:  []model.Applicant{x, y},
		Preferences: map[uint64][]model.Preference{1: prefs(1, 1), 2: prefs(2, 1)},
		Courses:     []model.Course{course},
		Now:         testNow,
	})
	require.NoError(t, err)

	assert.Equal(t, map[uint64]uint64{2: 1}, allottedTo(res))
	assert.Equal(t, SkipNoSeat, skipsOf(res)[1])
	assert.Equal(t, 2, res.Processed)

	c := courseState(t, res, 1)
	assert.Equal(t, 0, c.AvailableSeats)
	assert.Equal(t, 0, c.CategorySeats[model.CategoryGeneral])

	a := res.Allotments[0]
	assert.Equal(t, 50, a.AllottedRank)
	assert.Equal(t, model.CategoryGeneral, a.AllottedCategory)
	assert.Equal(t, model.AllotmentAllotted, a.Status)
	assert.Equal(t, testNow, a.AllottedAt)
	assert.Equal(t, []SeatDelta{{CourseID: 1, Category: model.CategoryGeneral, Delta: -1}}, res.Deltas)
}

func TestPlan_RejectedSeatGoesToNextApplicantInLaterRound(t *testing.T) {
	course := newCourse(1, 1, map[model.Category]int{model.CategoryGeneral: 1})
	x := newApplicant(1, 100, model.CategoryGeneral)
	y := newApplicant(2, 50, model.CategoryGeneral)
	pref := map[uint64][]model.Preference{1: prefs(1, 1), 2: prefs(2, 1)}

	first, err := Plan(Input{Round: round(1, 1), Applicants: []model.Applicant{x, y}, Preferences: pref, Courses: []model.Course{course}, Now: testNow})
	require.NoError(t, err)
	require.Len(t, first.Allotments, 1)

	// Y rejects: the seat goes back to the pool.
	ya := first.Allotments[0]
	ya.ID = 1
	require.NoError(t, Reject(&ya, "not interested", testNow))
	after := first.Courses[0]
	require.NoError(t, ReleaseSeat(&after, ya.AllottedCategory))
	assert.Equal(t, 1, after.AvailableSeats)
	assert.Equal(t, 1, after.CategorySeats[model.CategoryGeneral])

	second, err := Plan(Input{
		Round:       round(2, 2),
		Applicants:  []model.Applicant{x, y},
		Preferences: pref,
		Courses:     []model.Course{after},
		History:     []model.Allotment{ya},
		Now:         testNow,
	})
	require.NoError(t, err)
	assert.Equal(t, map[uint64]uint64{1: 1}, allottedTo(second))
}

func TestPlan_RankPriorityIndependentOfInputOrder(t *testing.T) {
	scarce := newCourse(1, 1, map[model.Category]int{model.CategoryGeneral: 1})
	other := newCourse(2, 5, map[model.Category]int{model.CategoryGeneral: 5})
	applicants := []model.Applicant{
		newApplicant(3, 30, model.CategoryGeneral),
		newApplicant(9, 900, model.CategoryGeneral),
		newApplicant(1, 10, model.CategoryGeneral),
		newApplicant(2, 20, model.CategoryGeneral),
	}
	pref := map[uint64][]model.Preference{
		1: prefs(1, 2),
		2: prefs(2, 1, 2),
		3: prefs(3, 1, 2),
		9: prefs(9, 1, 2),
	}

	for _, order := range [][]int{{0, 1, 2, 3}, {3, 2, 1, 0}, {1, 3, 0, 2}} {
		in := make([]model.Applicant, 0, len(order))
		for _, i := range order {
			in = append(in, applicants[i])
		}
		res, err := Plan(Input{Round: round(1, 1), Applicants: in, Preferences: pref, Courses: []model.Course{scarce, other}, Now: testNow})
		require.NoError(t, err)
		got := allottedTo(res)
		assert.Equal(t, uint64(1), got[2], "rank 20 takes the scarce seat")
		assert.Equal(t, uint64(2), got[3])
		assert.Equal(t, uint64(2), got[9])
		assert.Equal(t, uint64(2), got[1])
	}
}

func TestPlan_TieBrokenByApplicantID(t *testing.T) {
	course := newCourse(1, 1, map[model.Category]int{model.CategoryGeneral: 1})
	res, err := Plan(Input{
		Round:       round(1, 1),
		Applicants:  []model.Applicant{newApplicant(8, 42, model.CategoryGeneral), newApplicant(5, 42, model.CategoryGeneral)},
		Preferences: map[uint64][]model.Preference{8: prefs(8, 1), 5: prefs(5, 1)},
		Courses:     []model.Course{course},
		Now:         testNow,
	})
	require.NoError(t, err)
	assert.Equal(t, map[uint64]uint64{5: 1}, allottedTo(res))
}

func TestPlan_FirstFitSkipsIneligibleCourses(t *testing.T) {
	inactive := newCourse(1, 5, map[model.Category]int{model.CategoryOBC: 5})
	inactive.IsActive = false
	noOBC := newCourse(2, 5, map[model.Category]int{model.CategoryGeneral: 5})
	outOfWindow := newCourse(3, 5, map[model.Category]int{model.CategoryOBC: 5})
	outOfWindow.MaxRank = intPtr(100)
	fits := newCourse(4, 5, map[model.Category]int{model.CategoryOBC: 5})
	alsoFits := newCourse(5, 5, map[model.Category]int{model.CategoryOBC: 5})

	res, err := Plan(Input{
		Round:       round(1, 1),
		Applicants:  []model.Applicant{newApplicant(1, 500, model.CategoryOBC)},
		Preferences: map[uint64][]model.Preference{1: prefs(1, 1, 2, 3, 77, 4, 5)},
		Courses:     []model.Course{inactive, noOBC, outOfWindow, fits, alsoFits},
		Now:         testNow,
	})
	require.NoError(t, err)
	assert.Equal(t, map[uint64]uint64{1: 4}, allottedTo(res))
	assert.Equal(t, 5, courseState(t, res, 5).AvailableSeats)
}

func TestPlan_FrozenApplicantsAreNeverRevisited(t *testing.T) {
	course := newCourse(1, 3, map[model.Category]int{model.CategoryGeneral: 3})
	history := []model.Allotment{
		{ID: 1, ApplicantID: 1, CourseID: 1, RoundID: 1, RoundNumber: 1, Status: model.AllotmentAcceptedFrozen},
		{ID: 2, ApplicantID: 2, CourseID: 1, RoundID: 2, RoundNumber: 2, Status: model.AllotmentAcceptedFrozen},
	}
	res, err := Plan(Input{
		Round:       round(3, 3),
		Applicants:  []model.Applicant{newApplicant(1, 1, model.CategoryGeneral), newApplicant(2, 2, model.CategoryGeneral), newApplicant(3, 3, model.CategoryGeneral)},
		Preferences: map[uint64][]model.Preference{1: prefs(1, 1), 2: prefs(2, 1), 3: prefs(3, 1)},
		Courses:     []model.Course{course},
		History:     history,
		Now:         testNow,
	})
	require.NoError(t, err)
	assert.Equal(t, map[uint64]uint64{3: 1}, allottedTo(res))
	skips := skipsOf(res)
	assert.Equal(t, SkipFrozen, skips[1])
	assert.Equal(t, SkipFrozenPrevious, skips[2])
	assert.Empty(t, res.Upgraded)
}

func TestPlan_UpgradeMovesToBetterCourseAndFreesOldSeat(t *testing.T) {
	dream := newCourse(1, 1, map[model.Category]int{model.CategoryGeneral: 1})
	held := newCourse(2, 1, map[model.Category]int{model.CategoryGeneral: 0})
	held.AvailableSeats = 0
	history := []model.Allotment{
		{ID: 11, ApplicantID: 1, CourseID: 2, RoundID: 1, RoundNumber: 1, AllottedCategory: model.CategoryGeneral, Status: model.AllotmentAcceptedUpgrade},
	}
	res, err := Plan(Input{
		Round:      round(2, 2),
		Applicants: []model.Applicant{newApplicant(1, 10, model.CategoryGeneral), newApplicant(2, 20, model.CategoryGeneral)},
		Preferences: map[uint64][]model.Preference{
			1: prefs(1, 1, 2),
			2: prefs(2, 2),
		},
		Courses: []model.Course{dream, held},
		History: history,
		Now:     testNow,
	})
	require.NoError(t, err)

	assert.Equal(t, map[uint64]uint64{1: 1, 2: 2}, allottedTo(res), "freed seat is taken by the next applicant")
	require.Len(t, res.Upgraded, 1)
	assert.Equal(t, uint64(11), res.Upgraded[0].ID)
	assert.Equal(t, model.AllotmentUpgraded, res.Upgraded[0].Status)
	assert.Equal(t, model.AllotmentAcceptedUpgrade, history[0].Status, "input is not mutated")

	assert.Equal(t, 0, courseState(t, res, 1).AvailableSeats)
	assert.Equal(t, 0, courseState(t, res, 2).AvailableSeats)
}

func TestPlan_UpgradeHolderKeepsSeatWhenNothingBetter(t *testing.T) {
	better := newCourse(1, 1, map[model.Category]int{model.CategoryGeneral: 0})
	better.AvailableSeats = 0
	held := newCourse(2, 2, map[model.Category]int{model.CategoryGeneral: 1})
	held.AvailableSeats = 1
	worse := newCourse(3, 5, map[model.Category]int{model.CategoryGeneral: 5})
	history := []model.Allotment{
		{ID: 11, ApplicantID: 1, CourseID: 2, RoundID: 1, RoundNumber: 1, AllottedCategory: model.CategoryGeneral, Status: model.AllotmentAcceptedUpgrade},
	}
	res, err := Plan(Input{
		Round:       round(2, 2),
		Applicants:  []model.Applicant{newApplicant(1, 10, model.CategoryGeneral)},
		Preferences: map[uint64][]model.Preference{1: prefs(1, 1, 2, 3)},
		Courses:     []model.Course{better, held, worse},
		History:     history,
		Now:         testNow,
	})
	require.NoError(t, err)
	assert.Empty(t, res.Allotments)
	assert.Empty(t, res.Upgraded)
	assert.Equal(t, SkipNoBetterSeat, skipsOf(res)[1])
	assert.Empty(t, res.Deltas)
}

func TestPlan_SkipsPendingWithdrawnAndAlreadyAllotted(t *testing.T) {
	course := newCourse(1, 5, map[model.Category]int{model.CategoryGeneral: 5})
	history := []model.Allotment{
		{ID: 1, ApplicantID: 1, CourseID: 1, RoundID: 1, RoundNumber: 1, Status: model.AllotmentAllotted},
		{ID: 2, ApplicantID: 2, CourseID: 1, RoundID: 2, RoundNumber: 2, Status: model.AllotmentAllotted},
		{ID: 3, ApplicantID: 3, CourseID: 1, RoundID: 1, RoundNumber: 1, Status: model.AllotmentRejected},
	}
	notReady := newApplicant(4, 4, model.CategoryGeneral)
	notReady.PaymentComplete = false

	res, err := Plan(Input{
		Round:       round(2, 2),
		Applicants:  []model.Applicant{newApplicant(1, 1, model.CategoryGeneral), newApplicant(2, 2, model.CategoryGeneral), newApplicant(3, 3, model.CategoryGeneral), notReady, newApplicant(5, 5, model.CategoryGeneral)},
		Preferences: map[uint64][]model.Preference{1: prefs(1, 1), 2: prefs(2, 1), 3: prefs(3, 1), 4: prefs(4, 1)},
		Courses:     []model.Course{course},
		History:     history,
		Now:         testNow,
	})
	require.NoError(t, err)
	assert.Empty(t, res.Allotments)
	skips := skipsOf(res)
	assert.Equal(t, SkipAwaitingDecision, skips[1])
	assert.Equal(t, SkipWithdrawn, skips[3])
	assert.Equal(t, SkipAlreadyAllotted, skips[2])
	assert.Equal(t, SkipNotEligible, skips[4])
	assert.Equal(t, SkipNoPreferences, skips[5])
	assert.Equal(t, 5, res.Processed)
}

func TestPlan_ForfeitsUnansweredSeatsAfterDeadline(t *testing.T) {
	course := newCourse(1, 2, map[model.Category]int{model.CategoryGeneral: 0})
	course.AvailableSeats = 0
	history := []model.Allotment{
		{ID: 1, ApplicantID: 1, CourseID: 1, RoundID: 1, RoundNumber: 1, AllottedCategory: model.CategoryGeneral, Status: model.AllotmentAllotted},
		{ID: 2, ApplicantID: 2, CourseID: 1, RoundID: 2, RoundNumber: 2, AllottedCategory: model.CategoryGeneral, Status: model.AllotmentAllotted},
	}
	in := Input{
		Round:       round(3, 3),
		Applicants:  []model.Applicant{newApplicant(1, 1, model.CategoryGeneral), newApplicant(2, 2, model.CategoryGeneral), newApplicant(3, 3, model.CategoryGeneral)},
		Preferences: map[uint64][]model.Preference{1: prefs(1, 1), 2: prefs(2, 1), 3: prefs(3, 1)},
		Courses:     []model.Course{course},
		History:     history,
		Deadlines: map[int]time.Time{
			1: testNow.Add(-time.Hour),
			2: testNow.Add(time.Hour),
		},
		Now: testNow,
	}

	res, err := Plan(in)
	require.NoError(t, err)
	require.Len(t, res.Forfeited, 1)
	assert.Equal(t, uint64(1), res.Forfeited[0].ID)
	assert.Equal(t, model.AllotmentCancelled, res.Forfeited[0].Status)
	require.NotNil(t, res.Forfeited[0].RejectionReason)
	assert.Equal(t, ForfeitReason, *res.Forfeited[0].RejectionReason)
	assert.Equal(t, model.AllotmentAllotted, history[0].Status, "input is not mutated")

	skips := skipsOf(res)
	assert.Equal(t, SkipWithdrawn, skips[1])
	assert.Equal(t, SkipAwaitingDecision, skips[2], "round 2 is still inside its window")
	assert.Equal(t, map[uint64]uint64{3: 1}, allottedTo(res), "the forfeited seat is offered again")
	assert.Equal(t, 0, courseState(t, res, 1).AvailableSeats)
	assert.Empty(t, res.Deltas, "release and re-reservation cancel out")

	in.Deadlines = nil
	res, err = Plan(in)
	require.NoError(t, err)
	assert.Empty(t, res.Forfeited)
	assert.Empty(t, res.Allotments)
}

func TestPlan_AtMostOneSeatPerApplicant(t *testing.T) {
	courses := []model.Course{
		newCourse(1, 10, map[model.Category]int{model.CategoryGeneral: 10}),
		newCourse(2, 10, map[model.Category]int{model.CategoryGeneral: 10}),
	}
	applicants := make([]model.Applicant, 0, 15)
	pref := make(map[uint64][]model.Preference)
	for i := uint64(1); i <= 15; i++ {
		applicants = append(applicants, newApplicant(i, int(100-i), model.CategoryGeneral))
		pref[i] = prefs(i, 1, 2)
	}
	res, err := Plan(Input{Round: round(1, 1), Applicants: applicants, Preferences: pref, Courses: courses, Now: testNow})
	require.NoError(t, err)

	seen := map[uint64]bool{}
	for _, a := range res.Allotments {
		assert.False(t, seen[a.ApplicantID])
		seen[a.ApplicantID] = true
	}
	assert.Len(t, res.Allotments, 15)
	for _, c := range res.Courses {
		assert.GreaterOrEqual(t, c.AvailableSeats, 0)
		for _, n := range c.CategorySeats {
			assert.GreaterOrEqual(t, n, 0)
		}
	}
	assert.Equal(t, 0, courseState(t, res, 1).AvailableSeats)
	assert.Equal(t, 5, courseState(t, res, 2).AvailableSeats)
}

func TestPlan_InvalidInput(t *testing.T) {
	course := newCourse(1, 1, map[model.Category]int{model.CategoryGeneral: 1})
	a := newApplicant(1, 1, model.CategoryGeneral)

	completed := round(1, 1)
	completed.Status = model.RoundCompleted
	_, err := Plan(Input{Round: completed, Applicants: []model.Applicant{a}, Courses: []model.Course{course}})
	assert.Equal(t, KindInvalidState, KindOf(err))

	_, err = Plan(Input{Round: round(1, 1), Applicants: []model.Applicant{a, a}, Courses: []model.Course{course}})
	assert.Equal(t, KindConstraint, KindOf(err))

	bad := a
	bad.Category = "Unknown"
	_, err = Plan(Input{Round: round(1, 1), Applicants: []model.Applicant{bad}, Courses: []model.Course{course}})
	assert.Equal(t, KindConstraint, KindOf(err))

	dup := []model.Preference{{ApplicantID: 1, CourseID: 1, Order: 1}, {ApplicantID: 1, CourseID: 1, Order: 2}}
	_, err = Plan(Input{Round: round(1, 1), Applicants: []model.Applicant{a}, Preferences: map[uint64][]model.Preference{1: dup}, Courses: []model.Course{course}})
	assert.Equal(t, KindConstraint, KindOf(err))

	gap := []model.Preference{{ApplicantID: 1, CourseID: 1, Order: 1}, {ApplicantID: 1, CourseID: 2, Order: 3}}
	_, err = Plan(Input{Round: round(1, 1), Applicants: []model.Applicant{a}, Preferences: map[uint64][]model.Preference{1: gap}, Courses: []model.Course{course}})
	assert.Equal(t, KindConstraint, KindOf(err))
}

func TestOrderedCourses_SortsByOrder(t *testing.T) {
	got, err := OrderedCourses(1, []model.Preference{
		{CourseID: 30, Order: 3}, {CourseID: 10, Order: 1}, {CourseID: 20, Order: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, []uint64{10, 20, 30}, got)
}
