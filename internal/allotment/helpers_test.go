package allotment

import (
	"fmt"
	"time"

	"github.com/iliyamo/seat-allotment/internal/model"
)

var testNow = time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)

func intPtr(v int) *int { return &v }

func newCourse(id uint64, seats int, cats map[model.Category]int) model.Course {
	return model.Course{
		ID:             id,
		Code:           fmt.Sprintf("C%d", id),
		IsActive:       true,
		TotalSeats:     seats,
		AvailableSeats: seats,
		CategorySeats:  cats,
	}
}

func newApplicant(id uint64, rank int, cat model.Category) model.Applicant {
	return model.Applicant{
		ID:                id,
		Rank:              rank,
		Category:          cat,
		DocumentsVerified: true,
		PaymentComplete:   true,
		PreferencesLocked: true,
	}
}

func prefs(applicantID uint64, courseIDs ...uint64) []model.Preference {
	out := make([]model.Preference, 0, len(courseIDs))
	for i, id := range courseIDs {
		out = append(out, model.Preference{ApplicantID: applicantID, CourseID: id, Order: i + 1, Locked: true})
	}
	return out
}

func round(id uint64, number int) model.Round {
	return model.Round{ID: id, RoundNumber: number, Status: model.RoundScheduled}
}
