package repository

import (
	"context"

	"github.com/iliyamo/seat-allotment/internal/model"
)

// RoundRepo stores rows of the allotment_rounds table.  All timestamps
// are stored in UTC.
type RoundRepo struct {
	q querier
}

const roundColumns = `id, round_number, start_date, end_date, acceptance_deadline, status,
       total_allotments, accepted_count, rejected_count, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRound(s rowScanner) (*model.Round, error) {
	var r model.Round
	var status string
	err := s.Scan(&r.ID, &r.RoundNumber, &r.StartDate, &r.EndDate, &r.AcceptanceDeadline, &status,
		&r.TotalAllotments, &r.AcceptedCount, &r.RejectedCount, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	r.Status = model.RoundStatus(status)
	return &r, nil
}

// Create inserts a round and reads back the generated id and timestamps.
// A duplicate round number yields ErrConflict.
func (r *RoundRepo) Create(ctx context.Context, rd *model.Round) error {
	const q = `INSERT INTO allotment_rounds (round_number, start_date, end_date, acceptance_deadline, status)
               VALUES (?, ?, ?, ?, ?)`
	res, err := r.q.ExecContext(ctx, q, rd.RoundNumber, rd.StartDate.UTC(), rd.EndDate.UTC(), rd.AcceptanceDeadline.UTC(), string(rd.Status))
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	created, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*rd = *created
	return nil
}

func (r *RoundRepo) GetByID(ctx context.Context, id uint64) (*model.Round, error) {
	return scanRound(r.q.QueryRowContext(ctx, `SELECT `+roundColumns+` FROM allotment_rounds WHERE id = ?`, id))
}

func (r *RoundRepo) GetByNumber(ctx context.Context, number int) (*model.Round, error) {
	return scanRound(r.q.QueryRowContext(ctx, `SELECT `+roundColumns+` FROM allotment_rounds WHERE round_number = ?`, number))
}

func (r *RoundRepo) LockByID(ctx context.Context, id uint64) (*model.Round, error) {
	return scanRound(r.q.QueryRowContext(ctx, `SELECT `+roundColumns+` FROM allotment_rounds WHERE id = ? FOR UPDATE`, id))
}

// List returns every round ordered by round number.
func (r *RoundRepo) List(ctx context.Context) ([]model.Round, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+roundColumns+` FROM allotment_rounds ORDER BY round_number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Round
	for rows.Next() {
		rd, err := scanRound(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rd)
	}
	return out, rows.Err()
}

// Update writes status and statistics counters.
func (r *RoundRepo) Update(ctx context.Context, rd *model.Round) error {
	const q = `UPDATE allotment_rounds
               SET status = ?, total_allotments = ?, accepted_count = ?, rejected_count = ?, updated_at = ?
               WHERE id = ?`
	res, err := r.q.ExecContext(ctx, q, string(rd.Status), rd.TotalAllotments, rd.AcceptedCount, rd.RejectedCount, rd.UpdatedAt.UTC(), rd.ID)
	if err != nil {
		return translate(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// MySQL reports zero affected rows when nothing changed; confirm the row exists.
		if _, err := r.GetByID(ctx, rd.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r *RoundRepo) CountIncompleteBefore(ctx context.Context, number int) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM allotment_rounds WHERE round_number < ? AND status <> ?`,
		number, string(model.RoundCompleted)).Scan(&n)
	return n, err
}
