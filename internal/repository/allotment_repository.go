package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/seat-allotment/internal/model"
)

// AllotmentRepo stores rows of the allotments table.  The table carries a
// unique key on (applicant_id, round_id) so a second allotment for the
// same applicant and round fails with ErrConflict.
type AllotmentRepo struct {
	q querier
}

const allotmentSelect = `SELECT a.id, a.applicant_id, a.course_id, a.round_id, r.round_number,
       a.allotted_rank, a.allotted_category, a.status, a.acceptance_date, a.rejection_reason,
       a.allotted_at, a.updated_at
FROM allotments a
JOIN allotment_rounds r ON r.id = a.round_id`

func scanAllotment(s rowScanner) (*model.Allotment, error) {
	var a model.Allotment
	var category, status string
	var accepted sql.NullTime
	var reason sql.NullString
	err := s.Scan(&a.ID, &a.ApplicantID, &a.CourseID, &a.RoundID, &a.RoundNumber,
		&a.AllottedRank, &category, &status, &accepted, &reason,
		&a.AllottedAt, &a.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	a.AllottedCategory = model.Category(category)
	a.Status = model.AllotmentStatus(status)
	if accepted.Valid {
		t := accepted.Time
		a.AcceptanceDate = &t
	}
	if reason.Valid {
		s := reason.String
		a.RejectionReason = &s
	}
	return &a, nil
}

func (r *AllotmentRepo) list(ctx context.Context, q string, args ...any) ([]model.Allotment, error) {
	rows, err := r.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Allotment
	for rows.Next() {
		a, err := scanAllotment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// CreateBulk inserts allotments one statement each so every record gets
// its generated id back.  It must run inside the caller's transaction.
func (r *AllotmentRepo) CreateBulk(ctx context.Context, allotments []model.Allotment) error {
	const q = `INSERT INTO allotments (applicant_id, course_id, round_id, allotted_rank, allotted_category, status, allotted_at, updated_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	for i := range allotments {
		a := &allotments[i]
		res, err := r.q.ExecContext(ctx, q, a.ApplicantID, a.CourseID, a.RoundID, a.AllottedRank,
			string(a.AllottedCategory), string(a.Status), a.AllottedAt.UTC(), a.UpdatedAt.UTC())
		if err != nil {
			return translate(err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		a.ID = uint64(id)
	}
	return nil
}

func (r *AllotmentRepo) GetByID(ctx context.Context, id uint64) (*model.Allotment, error) {
	return scanAllotment(r.q.QueryRowContext(ctx, allotmentSelect+` WHERE a.id = ?`, id))
}

func (r *AllotmentRepo) LockByID(ctx context.Context, id uint64) (*model.Allotment, error) {
	return scanAllotment(r.q.QueryRowContext(ctx, allotmentSelect+` WHERE a.id = ? FOR UPDATE`, id))
}

// Update writes the decision fields of an allotment when its stored
// status is still from.  A row that moved on meanwhile yields ErrConflict.
func (r *AllotmentRepo) Update(ctx context.Context, a *model.Allotment, from model.AllotmentStatus) error {
	const q = `UPDATE allotments SET status = ?, acceptance_date = ?, rejection_reason = ?, updated_at = ?
               WHERE id = ? AND status = ?`
	var accepted any
	if a.AcceptanceDate != nil {
		accepted = a.AcceptanceDate.UTC()
	}
	var reason any
	if a.RejectionReason != nil {
		reason = *a.RejectionReason
	}
	res, err := r.q.ExecContext(ctx, q, string(a.Status), accepted, reason, a.UpdatedAt.UTC(), a.ID, string(from))
	if err != nil {
		return translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// LockUpToRound reads the allotment history a run works on and holds row
// locks on it, so decisions taken meanwhile wait for the run to finish.
func (r *AllotmentRepo) LockUpToRound(ctx context.Context, number int) ([]model.Allotment, error) {
	return r.list(ctx, allotmentSelect+` WHERE r.round_number <= ? ORDER BY r.round_number, a.id FOR UPDATE OF a`, number)
}

func (r *AllotmentRepo) ListByRound(ctx context.Context, roundID uint64) ([]model.Allotment, error) {
	return r.list(ctx, allotmentSelect+` WHERE a.round_id = ? ORDER BY a.allotted_rank, a.id`, roundID)
}

// LatestForApplicant returns the most recent allotment of an applicant.
func (r *AllotmentRepo) LatestForApplicant(ctx context.Context, applicantID uint64) (*model.Allotment, error) {
	return scanAllotment(r.q.QueryRowContext(ctx,
		allotmentSelect+` WHERE a.applicant_id = ? ORDER BY r.round_number DESC, a.allotted_at DESC, a.id DESC LIMIT 1`,
		applicantID))
}

func (r *AllotmentRepo) CountByStatus(ctx context.Context, roundID uint64) (map[model.AllotmentStatus]int, error) {
	q := `SELECT status, COUNT(*) FROM allotments`
	var args []any
	if roundID != 0 {
		q += ` WHERE round_id = ?`
		args = append(args, roundID)
	}
	q += ` GROUP BY status`
	rows, err := r.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[model.AllotmentStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[model.AllotmentStatus(status)] = n
	}
	return out, rows.Err()
}

// AuditRepo appends rows to audit_logs.
type AuditRepo struct {
	q querier
}

func (r *AuditRepo) Record(ctx context.Context, e *model.AuditEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.Status == "" {
		e.Status = "success"
	}
	const q = `INSERT INTO audit_logs (user_id, action, entity_type, entity_id, description, status, created_at)
               VALUES (?, ?, ?, ?, ?, ?, ?)`
	var actor any
	if e.ActorID != nil {
		actor = *e.ActorID
	}
	res, err := r.q.ExecContext(ctx, q, actor, e.Action, e.EntityType, e.EntityID, e.Description, e.Status, e.CreatedAt.UTC())
	if err != nil {
		return err
	}
	if id, err := res.LastInsertId(); err == nil {
		e.ID = uint64(id)
	}
	return nil
}
