package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/seat-allotment/internal/model"
)

// CourseRepo reads and updates seat counters in the courses table.  Each
// category has its own column (general_seats, obc_seats, ...).
type CourseRepo struct {
	q querier
}

const courseSelect = `SELECT c.id, c.college_id, c.code, c.name, COALESCE(cl.name, ''), c.is_active,
       c.min_rank, c.max_rank, c.total_seats, c.available_seats,
       c.general_seats, c.obc_seats, c.sc_seats, c.st_seats, c.ews_seats, c.version
FROM courses c
LEFT JOIN colleges cl ON cl.id = c.college_id`

func scanCourse(s rowScanner) (*model.Course, error) {
	var c model.Course
	var minRank, maxRank sql.NullInt64
	var general, obc, sc, st, ews int
	err := s.Scan(&c.ID, &c.CollegeID, &c.Code, &c.Name, &c.CollegeName, &c.IsActive,
		&minRank, &maxRank, &c.TotalSeats, &c.AvailableSeats,
		&general, &obc, &sc, &st, &ews, &c.Version)
	if err != nil {
		return nil, translate(err)
	}
	if minRank.Valid {
		v := int(minRank.Int64)
		c.MinRank = &v
	}
	if maxRank.Valid {
		v := int(maxRank.Int64)
		c.MaxRank = &v
	}
	c.CategorySeats = map[model.Category]int{
		model.CategoryGeneral: general,
		model.CategoryOBC:     obc,
		model.CategorySC:      sc,
		model.CategoryST:      st,
		model.CategoryEWS:     ews,
	}
	return &c, nil
}

func (r *CourseRepo) List(ctx context.Context) ([]model.Course, error) {
	return r.list(ctx, courseSelect+` ORDER BY c.college_id, c.code, c.id`)
}

func (r *CourseRepo) list(ctx context.Context, q string, args ...any) ([]model.Course, error) {
	rows, err := r.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// LockByIDs reads the given courses with row locks held until the
// transaction ends.  Rows are locked in id order to keep lock acquisition
// consistent across concurrent transactions.
func (r *CourseRepo) LockByIDs(ctx context.Context, ids []uint64) ([]model.Course, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := courseSelect + ` WHERE c.id IN (` + placeholders(len(ids)) + `) ORDER BY c.id FOR UPDATE`
	return r.list(ctx, q, uint64Args(ids)...)
}

func (r *CourseRepo) LockByID(ctx context.Context, id uint64) (*model.Course, error) {
	return scanCourse(r.q.QueryRowContext(ctx, courseSelect+` WHERE c.id = ? FOR UPDATE`, id))
}

// UpdateSeats writes available and category counters guarded by the
// version column.
func (r *CourseRepo) UpdateSeats(ctx context.Context, c *model.Course) error {
	const q = `UPDATE courses
               SET available_seats = ?, general_seats = ?, obc_seats = ?, sc_seats = ?, st_seats = ?, ews_seats = ?,
                   version = version + 1
               WHERE id = ? AND version = ? AND ? >= 0 AND ? <= total_seats`
	res, err := r.q.ExecContext(ctx, q,
		c.AvailableSeats,
		c.CategorySeats[model.CategoryGeneral],
		c.CategorySeats[model.CategoryOBC],
		c.CategorySeats[model.CategorySC],
		c.CategorySeats[model.CategoryST],
		c.CategorySeats[model.CategoryEWS],
		c.ID, c.Version, c.AvailableSeats, c.AvailableSeats)
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
	c.Version++
	return nil
}
