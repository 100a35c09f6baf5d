package repository

import (
	"context"

	"github.com/iliyamo/seat-allotment/internal/model"
)

// ApplicantRepo reads applicants and their locked preferences.  The
// registration, document and payment workflows own these tables; the
// allotment service only flips the seat_allotted and
// admission_confirmed flags.
type ApplicantRepo struct {
	q querier
}

const applicantColumns = `id, user_id, full_name, exam_rank, category, documents_verified,
       payment_complete, preferences_locked, seat_allotted, admission_confirmed`

func scanApplicant(s rowScanner) (*model.Applicant, error) {
	var a model.Applicant
	var category string
	err := s.Scan(&a.ID, &a.UserID, &a.FullName, &a.Rank, &category, &a.DocumentsVerified,
		&a.PaymentComplete, &a.PreferencesLocked, &a.SeatAllotted, &a.AdmissionConfirmed)
	if err != nil {
		return nil, translate(err)
	}
	a.Category = model.Category(category)
	return &a, nil
}

// ListEligible returns the applicant pool of an allotment run ordered by
// rank, then id.
func (r *ApplicantRepo) ListEligible(ctx context.Context) ([]model.Applicant, error) {
	const q = `SELECT ` + applicantColumns + ` FROM applicants
               WHERE documents_verified = 1 AND payment_complete = 1 AND preferences_locked = 1
               ORDER BY exam_rank, id`
	rows, err := r.q.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Applicant
	for rows.Next() {
		a, err := scanApplicant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (r *ApplicantRepo) GetByID(ctx context.Context, id uint64) (*model.Applicant, error) {
	return scanApplicant(r.q.QueryRowContext(ctx, `SELECT `+applicantColumns+` FROM applicants WHERE id = ?`, id))
}

func (r *ApplicantRepo) GetByUserID(ctx context.Context, userID uint64) (*model.Applicant, error) {
	return scanApplicant(r.q.QueryRowContext(ctx, `SELECT `+applicantColumns+` FROM applicants WHERE user_id = ? LIMIT 1`, userID))
}

// LockedPreferences loads the locked preference rows of the given
// applicants keyed by applicant id, each list ordered by preference.
func (r *ApplicantRepo) LockedPreferences(ctx context.Context, applicantIDs []uint64) (map[uint64][]model.Preference, error) {
	out := make(map[uint64][]model.Preference, len(applicantIDs))
	if len(applicantIDs) == 0 {
		return out, nil
	}
	q := `SELECT applicant_id, course_id, preference_order, is_locked FROM preferences
          WHERE is_locked = 1 AND applicant_id IN (` + placeholders(len(applicantIDs)) + `)
          ORDER BY applicant_id, preference_order`
	rows, err := r.q.QueryContext(ctx, q, uint64Args(applicantIDs)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var p model.Preference
		if err := rows.Scan(&p.ApplicantID, &p.CourseID, &p.Order, &p.Locked); err != nil {
			return nil, err
		}
		out[p.ApplicantID] = append(out[p.ApplicantID], p)
	}
	return out, rows.Err()
}

func (r *ApplicantRepo) MarkSeatAllotted(ctx context.Context, applicantIDs []uint64) error {
	if len(applicantIDs) == 0 {
		return nil
	}
	q := `UPDATE applicants SET seat_allotted = 1 WHERE id IN (` + placeholders(len(applicantIDs)) + `)`
	_, err := r.q.ExecContext(ctx, q, uint64Args(applicantIDs)...)
	return err
}

func (r *ApplicantRepo) MarkAdmissionConfirmed(ctx context.Context, applicantID uint64) error {
	_, err := r.q.ExecContext(ctx, `UPDATE applicants SET admission_confirmed = 1 WHERE id = ?`, applicantID)
	return err
}
