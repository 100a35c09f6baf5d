package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/seat-allotment/internal/model"
)

// RoundRepository persists allotment rounds.
type RoundRepository interface {
	Create(ctx context.Context, r *model.Round) error
	GetByID(ctx context.Context, id uint64) (*model.Round, error)
	GetByNumber(ctx context.Context, number int) (*model.Round, error)
	// LockByID reads the round and holds a row lock until the transaction ends.
	LockByID(ctx context.Context, id uint64) (*model.Round, error)
	List(ctx context.Context) ([]model.Round, error)
	Update(ctx context.Context, r *model.Round) error
	// CountIncompleteBefore counts rounds numbered below number that are not completed.
	CountIncompleteBefore(ctx context.Context, number int) (int, error)
}

// ApplicantRepository reads the applicant pool and preference store.
type ApplicantRepository interface {
	// ListEligible returns applicants whose documents, payment and
	// preferences are complete.
	ListEligible(ctx context.Context) ([]model.Applicant, error)
	GetByID(ctx context.Context, id uint64) (*model.Applicant, error)
	GetByUserID(ctx context.Context, userID uint64) (*model.Applicant, error)
	// LockedPreferences returns the locked preference lists of the given applicants.
	LockedPreferences(ctx context.Context, applicantIDs []uint64) (map[uint64][]model.Preference, error)
	MarkSeatAllotted(ctx context.Context, applicantIDs []uint64) error
	MarkAdmissionConfirmed(ctx context.Context, applicantID uint64) error
}

// CourseRepository reads and writes course seat counters.  Reads used
// before a write must go through the Lock methods inside a transaction.
type CourseRepository interface {
	// List returns every course ordered by college and code, unlocked.
	List(ctx context.Context) ([]model.Course, error)
	LockByIDs(ctx context.Context, ids []uint64) ([]model.Course, error)
	LockByID(ctx context.Context, id uint64) (*model.Course, error)
	// UpdateSeats writes the seat counters when the stored version still
	// matches c.Version and bumps it; ErrConflict otherwise.
	UpdateSeats(ctx context.Context, c *model.Course) error
}

// AllotmentRepository persists allotments.  Rows are never deleted.
type AllotmentRepository interface {
	// CreateBulk inserts the allotments and fills in their ids.
	CreateBulk(ctx context.Context, allotments []model.Allotment) error
	GetByID(ctx context.Context, id uint64) (*model.Allotment, error)
	LockByID(ctx context.Context, id uint64) (*model.Allotment, error)
	// Update writes the decision fields when the stored status is still
	// from; ErrConflict otherwise.
	Update(ctx context.Context, a *model.Allotment, from model.AllotmentStatus) error
	// LockUpToRound returns every allotment of rounds numbered up to and
	// including number and locks those rows.
	LockUpToRound(ctx context.Context, number int) ([]model.Allotment, error)
	ListByRound(ctx context.Context, roundID uint64) ([]model.Allotment, error)
	LatestForApplicant(ctx context.Context, applicantID uint64) (*model.Allotment, error)
	// CountByStatus counts allotments per status, restricted to one round
	// when roundID is non-zero.
	CountByStatus(ctx context.Context, roundID uint64) (map[model.AllotmentStatus]int, error)
}

// AuditRepository appends to the audit trail.
type AuditRepository interface {
	Record(ctx context.Context, e *model.AuditEntry) error
}

// Repos groups the repositories bound to one connection or transaction.
type Repos struct {
	Rounds     RoundRepository
	Applicants ApplicantRepository
	Courses    CourseRepository
	Allotments AllotmentRepository
	Audit      AuditRepository
}

// Store hands out repositories either for plain reads or bound to a
// transaction.
type Store interface {
	Repos() Repos
	// WithinTx runs fn inside one transaction.  The transaction commits
	// when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// MySQLStore is the database/sql backed Store.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore returns a Store bound to db.
func NewMySQLStore(db *sql.DB) *MySQLStore { return &MySQLStore{db: db} }

func (s *MySQLStore) Repos() Repos { return newRepos(s.db) }

func (s *MySQLStore) WithinTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(ctx, newRepos(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func newRepos(q querier) Repos {
	return Repos{
		Rounds:     &RoundRepo{q: q},
		Applicants: &ApplicantRepo{q: q},
		Courses:    &CourseRepo{q: q},
		Allotments: &AllotmentRepo{q: q},
		Audit:      &AuditRepo{q: q},
	}
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, 0, n*3)
	for i := 0; i < n; i++ {
		if i > 0 {
			b = append(b, ", "...)
		}
		b = append(b, '?')
	}
	return string(b)
}

func uint64Args(ids []uint64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
