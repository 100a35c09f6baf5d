package service

import (
	"context"
	"sort"
	"sync"

	"github.com/iliyamo/seat-allotment/internal/model"
	"github.com/iliyamo/seat-allotment/internal/queue"
	"github.com/iliyamo/seat-allotment/internal/repository"
)

// ── In-memory Store ──
//
// memStore keeps every table in maps.  WithinTx snapshots the state and
// restores it when fn fails, which is enough to observe all-or-nothing
// behaviour without a database.  A transaction opened while another one
// is running stands for a concurrent one that commits first: its writes
// survive a rollback of the enclosing transaction.

type memState struct {
	rounds     map[uint64]model.Round
	applicants map[uint64]model.Applicant
	prefs      map[uint64][]model.Preference
	courses    map[uint64]model.Course
	allotments map[uint64]model.Allotment
	audit      []model.AuditEntry
	nextID     uint64
}

func (s *memState) clone() *memState {
	out := &memState{
		rounds:     make(map[uint64]model.Round, len(s.rounds)),
		applicants: make(map[uint64]model.Applicant, len(s.applicants)),
		prefs:      make(map[uint64][]model.Preference, len(s.prefs)),
		courses:    make(map[uint64]model.Course, len(s.courses)),
		allotments: make(map[uint64]model.Allotment, len(s.allotments)),
		audit:      append([]model.AuditEntry(nil), s.audit...),
		nextID:     s.nextID,
	}
	for k, v := range s.rounds {
		out.rounds[k] = v
	}
	for k, v := range s.applicants {
		out.applicants[k] = v
	}
	for k, v := range s.prefs {
		out.prefs[k] = append([]model.Preference(nil), v...)
	}
	for k, v := range s.courses {
		out.courses[k] = v.Clone()
	}
	for k, v := range s.allotments {
		out.allotments[k] = v
	}
	return out
}

type memStore struct {
	mu    sync.Mutex
	state *memState
	// fail makes the named operation return the error, e.g.
	// "Courses.UpdateSeats".
	fail map[string]error
	// before runs once when the named operation is entered.
	before map[string]func()
	// open holds the rollback targets of the running transactions.
	open []*memState
}

func newMemStore() *memStore {
	return &memStore{
		state: &memState{
			rounds:     map[uint64]model.Round{},
			applicants: map[uint64]model.Applicant{},
			prefs:      map[uint64][]model.Preference{},
			courses:    map[uint64]model.Course{},
			allotments: map[uint64]model.Allotment{},
			nextID:     100,
		},
		fail:   map[string]error{},
		before: map[string]func(){},
	}
}

func (m *memStore) id() uint64 {
	m.state.nextID++
	return m.state.nextID
}

func (m *memStore) failing(op string) error {
	if fn := m.before[op]; fn != nil {
		delete(m.before, op)
		fn()
	}
	return m.fail[op]
}

func (m *memStore) Repos() repository.Repos {
	return repository.Repos{
		Rounds:     &memRounds{m},
		Applicants: &memApplicants{m},
		Courses:    &memCourses{m},
		Allotments: &memAllotments{m},
		Audit:      &memAudit{m},
	}
}

func (m *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context, r repository.Repos) error) error {
	m.mu.Lock()
	m.open = append(m.open, m.state.clone())
	depth := len(m.open)
	m.mu.Unlock()

	err := fn(ctx, m.Repos())

	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := m.open[depth-1]
	m.open = m.open[:depth-1]
	if err != nil {
		m.state = snapshot
		return err
	}
	for i := range m.open {
		m.open[i] = m.state.clone()
	}
	return nil
}

// seeding helpers

func (m *memStore) addCourse(c model.Course) {
	if c.Version == 0 {
		c.Version = 1
	}
	m.state.courses[c.ID] = c.Clone()
}

func (m *memStore) addApplicant(a model.Applicant, courseIDs ...uint64) {
	m.state.applicants[a.ID] = a
	for i, id := range courseIDs {
		m.state.prefs[a.ID] = append(m.state.prefs[a.ID], model.Preference{ApplicantID: a.ID, CourseID: id, Order: i + 1, Locked: true})
	}
}

func (m *memStore) course(id uint64) model.Course { return m.state.courses[id] }

func (m *memStore) round(id uint64) model.Round { return m.state.rounds[id] }

func (m *memStore) allotmentsOf(applicantID uint64) []model.Allotment {
	var out []model.Allotment
	for _, a := range m.state.allotments {
		if a.ApplicantID == applicantID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ── Rounds ──

type memRounds struct{ m *memStore }

func (r *memRounds) Create(_ context.Context, rd *model.Round) error {
	if err := r.m.failing("Rounds.Create"); err != nil {
		return err
	}
	for _, x := range r.m.state.rounds {
		if x.RoundNumber == rd.RoundNumber {
			return repository.ErrConflict
		}
	}
	rd.ID = r.m.id()
	r.m.state.rounds[rd.ID] = *rd
	return nil
}

func (r *memRounds) GetByID(_ context.Context, id uint64) (*model.Round, error) {
	rd, ok := r.m.state.rounds[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &rd, nil
}

func (r *memRounds) GetByNumber(_ context.Context, number int) (*model.Round, error) {
	for _, rd := range r.m.state.rounds {
		if rd.RoundNumber == number {
			out := rd
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memRounds) LockByID(ctx context.Context, id uint64) (*model.Round, error) {
	return r.GetByID(ctx, id)
}

func (r *memRounds) List(_ context.Context) ([]model.Round, error) {
	out := make([]model.Round, 0, len(r.m.state.rounds))
	for _, rd := range r.m.state.rounds {
		out = append(out, rd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoundNumber < out[j].RoundNumber })
	return out, nil
}

func (r *memRounds) Update(_ context.Context, rd *model.Round) error {
	if err := r.m.failing("Rounds.Update"); err != nil {
		return err
	}
	if _, ok := r.m.state.rounds[rd.ID]; !ok {
		return repository.ErrNotFound
	}
	r.m.state.rounds[rd.ID] = *rd
	return nil
}

func (r *memRounds) CountIncompleteBefore(_ context.Context, number int) (int, error) {
	n := 0
	for _, rd := range r.m.state.rounds {
		if rd.RoundNumber < number && !rd.IsCompleted() {
			n++
		}
	}
	return n, nil
}

// ── Applicants ──

type memApplicants struct{ m *memStore }

func (r *memApplicants) ListEligible(_ context.Context) ([]model.Applicant, error) {
	var out []model.Applicant
	for _, a := range r.m.state.applicants {
		if a.Eligible() {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rank != out[j].Rank {
			return out[i].Rank < out[j].Rank
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *memApplicants) GetByID(_ context.Context, id uint64) (*model.Applicant, error) {
	a, ok := r.m.state.applicants[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (r *memApplicants) GetByUserID(_ context.Context, userID uint64) (*model.Applicant, error) {
	for _, a := range r.m.state.applicants {
		if a.UserID == userID {
			out := a
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memApplicants) LockedPreferences(_ context.Context, ids []uint64) (map[uint64][]model.Preference, error) {
	out := make(map[uint64][]model.Preference, len(ids))
	for _, id := range ids {
		for _, p := range r.m.state.prefs[id] {
			if p.Locked {
				out[id] = append(out[id], p)
			}
		}
	}
	return out, nil
}

func (r *memApplicants) MarkSeatAllotted(_ context.Context, ids []uint64) error {
	for _, id := range ids {
		a := r.m.state.applicants[id]
		a.SeatAllotted = true
		r.m.state.applicants[id] = a
	}
	return nil
}

func (r *memApplicants) MarkAdmissionConfirmed(_ context.Context, id uint64) error {
	a, ok := r.m.state.applicants[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.AdmissionConfirmed = true
	r.m.state.applicants[id] = a
	return nil
}

// ── Courses ──

type memCourses struct{ m *memStore }

func (r *memCourses) List(_ context.Context) ([]model.Course, error) {
	out := make([]model.Course, 0, len(r.m.state.courses))
	for _, c := range r.m.state.courses {
		out = append(out, c.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memCourses) LockByIDs(_ context.Context, ids []uint64) ([]model.Course, error) {
	if err := r.m.failing("Courses.LockByIDs"); err != nil {
		return nil, err
	}
	var out []model.Course
	for _, id := range ids {
		if c, ok := r.m.state.courses[id]; ok {
			out = append(out, c.Clone())
		}
	}
	return out, nil
}

func (r *memCourses) LockByID(_ context.Context, id uint64) (*model.Course, error) {
	c, ok := r.m.state.courses[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := c.Clone()
	return &out, nil
}

func (r *memCourses) UpdateSeats(_ context.Context, c *model.Course) error {
	if err := r.m.failing("Courses.UpdateSeats"); err != nil {
		return err
	}
	cur, ok := r.m.state.courses[c.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if cur.Version != c.Version {
		return repository.ErrConflict
	}
	c.Version++
	r.m.state.courses[c.ID] = c.Clone()
	return nil
}

// ── Allotments ──

type memAllotments struct{ m *memStore }

func (r *memAllotments) CreateBulk(_ context.Context, list []model.Allotment) error {
	if err := r.m.failing("Allotments.CreateBulk"); err != nil {
		return err
	}
	for i := range list {
		for _, x := range r.m.state.allotments {
			if x.ApplicantID == list[i].ApplicantID && x.RoundID == list[i].RoundID {
				return repository.ErrConflict
			}
		}
		list[i].ID = r.m.id()
		r.m.state.allotments[list[i].ID] = list[i]
	}
	return nil
}

func (r *memAllotments) GetByID(_ context.Context, id uint64) (*model.Allotment, error) {
	a, ok := r.m.state.allotments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (r *memAllotments) LockByID(ctx context.Context, id uint64) (*model.Allotment, error) {
	return r.GetByID(ctx, id)
}

func (r *memAllotments) Update(_ context.Context, a *model.Allotment, from model.AllotmentStatus) error {
	if err := r.m.failing("Allotments.Update"); err != nil {
		return err
	}
	cur, ok := r.m.state.allotments[a.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if cur.Status != from {
		return repository.ErrConflict
	}
	r.m.state.allotments[a.ID] = *a
	return nil
}

func (r *memAllotments) filter(keep func(model.Allotment) bool) []model.Allotment {
	var out []model.Allotment
	for _, a := range r.m.state.allotments {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *memAllotments) LockUpToRound(_ context.Context, number int) ([]model.Allotment, error) {
	return r.filter(func(a model.Allotment) bool { return a.RoundNumber <= number }), nil
}

func (r *memAllotments) ListByRound(_ context.Context, roundID uint64) ([]model.Allotment, error) {
	return r.filter(func(a model.Allotment) bool { return a.RoundID == roundID }), nil
}

func (r *memAllotments) LatestForApplicant(_ context.Context, applicantID uint64) (*model.Allotment, error) {
	list := r.filter(func(a model.Allotment) bool { return a.ApplicantID == applicantID })
	if len(list) == 0 {
		return nil, repository.ErrNotFound
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].RoundNumber > list[j].RoundNumber })
	return &list[0], nil
}

func (r *memAllotments) CountByStatus(_ context.Context, roundID uint64) (map[model.AllotmentStatus]int, error) {
	out := map[model.AllotmentStatus]int{}
	for _, a := range r.m.state.allotments {
		if roundID == 0 || a.RoundID == roundID {
			out[a.Status]++
		}
	}
	return out, nil
}

// ── Audit ──

type memAudit struct{ m *memStore }

func (r *memAudit) Record(_ context.Context, e *model.AuditEntry) error {
	if err := r.m.failing("Audit.Record"); err != nil {
		return err
	}
	e.ID = r.m.id()
	r.m.state.audit = append(r.m.state.audit, *e)
	return nil
}

// ── Notifier ──

type recordingNotifier struct {
	events []queue.AllotmentEvent
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, ev queue.AllotmentEvent) error {
	n.events = append(n.events, ev)
	return n.err
}

func (n *recordingNotifier) types() []queue.EventType {
	out := make([]queue.EventType, len(n.events))
	for i, ev := range n.events {
		out[i] = ev.Type
	}
	return out
}
