// Package service orchestrates allotment rounds on top of the pure core in
// package allotment: it loads snapshots under row locks, applies plans
// atomically and fires notifications and audit entries after commit.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/seat-allotment/internal/allotment"
	"github.com/iliyamo/seat-allotment/internal/config"
	"github.com/iliyamo/seat-allotment/internal/model"
	"github.com/iliyamo/seat-allotment/internal/queue"
	"github.com/iliyamo/seat-allotment/internal/repository"
)

// runLockKey is shared by every round: runs touch the same seat inventory.
const runLockKey = "allotment:run-lock"

// AllotmentService is the entry point for rounds, runs and applicant
// decisions.
type AllotmentService struct {
	store    repository.Store
	notifier Notifier
	locker   RunLocker
	cfg      config.AllotmentConfig
	log      *zap.Logger
	now      func() time.Time
}

// NewAllotmentService wires the service.  A nil notifier logs events only
// and a nil locker serialises runs in-process.
func NewAllotmentService(store repository.Store, notifier Notifier, locker RunLocker, cfg config.AllotmentConfig, log *zap.Logger) *AllotmentService {
	if log == nil {
		log = zap.NewNop()
	}
	if notifier == nil {
		notifier = LogNotifier{Log: log}
	}
	if locker == nil {
		locker = NewLocalRunLocker()
	}
	return &AllotmentService{
		store:    store,
		notifier: notifier,
		locker:   locker,
		cfg:      cfg,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RunResult reports the outcome of one allotment run.  On failure Success
// is false, ErrorKind and Error describe the cause and nothing was
// persisted.
type RunResult struct {
	RunID               string           `json:"run_id"`
	RoundID             uint64           `json:"round_id"`
	RoundNumber         int              `json:"round"`
	ApplicantsProcessed int              `json:"applicants_processed"`
	AllotmentsMade      int              `json:"allotments_made"`
	Upgrades            int              `json:"upgrades"`
	Forfeited           int              `json:"forfeited"`
	Skipped             []allotment.Skip `json:"skipped,omitempty"`
	Success             bool             `json:"success"`
	ErrorKind           allotment.Kind   `json:"error_kind,omitempty"`
	Error               string           `json:"error,omitempty"`
}

// CreateRound schedules a round.  When a round with the same number
// already exists it is returned unchanged.
func (s *AllotmentService) CreateRound(ctx context.Context, actorID uint64, number int, start, end, deadline time.Time) (*model.Round, error) {
	if err := allotment.ValidateWindow(number, start, end, deadline); err != nil {
		return nil, err
	}
	repos := s.store.Repos()

	existing, err := repos.Rounds.GetByNumber(ctx, number)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, classify(err, "load round %d", number)
	}

	now := s.now()
	r := &model.Round{
		RoundNumber:        number,
		StartDate:          start.UTC(),
		EndDate:            end.UTC(),
		AcceptanceDeadline: deadline.UTC(),
		Status:             model.RoundScheduled,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := repos.Rounds.Create(ctx, r); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// Lost a race against a concurrent create of the same number.
			if existing, gerr := repos.Rounds.GetByNumber(ctx, number); gerr == nil {
				return existing, nil
			}
		}
		return nil, classify(err, "create round %d", number)
	}

	s.log.Info("round created", zap.Uint64("round_id", r.ID), zap.Int("round", r.RoundNumber))
	s.audit(ctx, actorID, "round_created", "AllotmentRound", r.ID, "round %d scheduled", r.RoundNumber)
	return r, nil
}

// TriggerAllotment runs the round with the given number, creating it with
// the configured default window first when it does not exist yet.
func (s *AllotmentService) TriggerAllotment(ctx context.Context, actorID uint64, number int) (RunResult, error) {
	round, err := s.store.Repos().Rounds.GetByNumber(ctx, number)
	if errors.Is(err, repository.ErrNotFound) {
		start := s.now()
		end := start.Add(s.cfg.RoundWindow)
		round, err = s.CreateRound(ctx, actorID, number, start, end, end.Add(s.cfg.AcceptanceGrace))
	}
	if err != nil {
		err = classify(err, "load round %d", number)
		return failed(uuid.NewString(), 0, number, err), err
	}
	return s.RunAllotment(ctx, actorID, round.ID)
}

// RunAllotment executes the allocator for a round.  The whole run commits
// or rolls back as one unit; notifications follow the commit.
func (s *AllotmentService) RunAllotment(ctx context.Context, actorID uint64, roundID uint64) (RunResult, error) {
	runID := uuid.NewString()
	log := s.log.With(zap.String("run_id", runID), zap.Uint64("round_id", roundID))

	release, err := s.locker.Acquire(ctx, runLockKey, s.cfg.RunLockTTL)
	if err != nil {
		log.Warn("allotment run refused", zap.Error(err))
		return failed(runID, roundID, 0, err), err
	}
	defer release()

	now := s.now()
	var (
		plan       *allotment.Result
		round      *model.Round
		applicants map[uint64]model.Applicant
	)
	err = s.store.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
		var err error
		round, err = r.Rounds.LockByID(ctx, roundID)
		if err != nil {
			return notFoundOr(err, "round %d not found", roundID)
		}
		log.Info("allotment run started", zap.Int("round", round.RoundNumber))

		if round.IsCompleted() {
			return allotment.InvalidState("round %d is already completed", round.RoundNumber)
		}
		open, err := r.Rounds.CountIncompleteBefore(ctx, round.RoundNumber)
		if err != nil {
			return err
		}
		if open > 0 {
			return allotment.InvalidState("round %d cannot run before %d earlier round(s) complete", round.RoundNumber, open)
		}
		if err := allotment.BeginRun(round, now); err != nil {
			return err
		}

		pool, err := r.Applicants.ListEligible(ctx)
		if err != nil {
			return err
		}
		applicants = make(map[uint64]model.Applicant, len(pool))
		ids := make([]uint64, 0, len(pool))
		for _, a := range pool {
			applicants[a.ID] = a
			ids = append(ids, a.ID)
		}
		prefs, err := r.Applicants.LockedPreferences(ctx, ids)
		if err != nil {
			return err
		}
		history, err := r.Allotments.LockUpToRound(ctx, round.RoundNumber)
		if err != nil {
			return err
		}
		rounds, err := r.Rounds.List(ctx)
		if err != nil {
			return err
		}
		deadlines := make(map[int]time.Time, len(rounds))
		for _, rd := range rounds {
			deadlines[rd.RoundNumber] = rd.AcceptanceDeadline
		}
		courses, err := r.Courses.LockByIDs(ctx, courseIDs(prefs, history))
		if err != nil {
			return err
		}

		plan, err = allotment.Plan(allotment.Input{
			Round:       *round,
			Applicants:  pool,
			Preferences: prefs,
			Courses:     courses,
			History:     history,
			Deadlines:   deadlines,
			Now:         now,
		})
		if err != nil {
			return err
		}
		return s.apply(ctx, r, round, plan, now)
	})
	if err != nil {
		err = classify(err, "allotment run for round %d failed", roundID)
		number := 0
		if round != nil {
			number = round.RoundNumber
		}
		log.Error("allotment run failed", zap.String("kind", string(allotment.KindOf(err))), zap.Error(err))
		return failed(runID, roundID, number, err), err
	}

	for _, sk := range plan.Skipped {
		log.Debug("applicant skipped", zap.Uint64("applicant_id", sk.ApplicantID), zap.String("reason", string(sk.Reason)))
	}
	log.Info("allotment run completed",
		zap.Int("round", round.RoundNumber),
		zap.Int("processed", plan.Processed),
		zap.Int("allotted", len(plan.Allotments)),
		zap.Int("upgraded", len(plan.Upgraded)),
		zap.Int("forfeited", len(plan.Forfeited)),
		zap.Int("skipped", len(plan.Skipped)))

	s.audit(ctx, actorID, "allotment_run", "AllotmentRound", round.ID,
		"round %d run %s: %d processed, %d allotted, %d forfeited", round.RoundNumber, runID, plan.Processed, len(plan.Allotments), len(plan.Forfeited))
	s.notifyRun(ctx, runID, plan, applicants)

	return RunResult{
		RunID:               runID,
		RoundID:             round.ID,
		RoundNumber:         round.RoundNumber,
		ApplicantsProcessed: plan.Processed,
		AllotmentsMade:      len(plan.Allotments),
		Upgrades:            len(plan.Upgraded),
		Forfeited:           len(plan.Forfeited),
		Skipped:             plan.Skipped,
		Success:             true,
	}, nil
}

// apply writes a plan through the transaction's repositories.
func (s *AllotmentService) apply(ctx context.Context, r repository.Repos, round *model.Round, plan *allotment.Result, now time.Time) error {
	if len(plan.Allotments) > 0 {
		if err := r.Allotments.CreateBulk(ctx, plan.Allotments); err != nil {
			return err
		}
	}
	// Guarded on the status the plan was computed from: a decision that
	// slipped in since the history was read fails the run.
	for i := range plan.Forfeited {
		if err := r.Allotments.Update(ctx, &plan.Forfeited[i], model.AllotmentAllotted); err != nil {
			return err
		}
	}
	for i := range plan.Upgraded {
		if err := r.Allotments.Update(ctx, &plan.Upgraded[i], model.AllotmentAcceptedUpgrade); err != nil {
			return err
		}
	}

	changed := make(map[uint64]bool, len(plan.Deltas))
	for _, d := range plan.Deltas {
		changed[d.CourseID] = true
	}
	for i := range plan.Courses {
		c := &plan.Courses[i]
		if !changed[c.ID] {
			continue
		}
		if err := r.Courses.UpdateSeats(ctx, c); err != nil {
			return err
		}
	}

	if len(plan.Allotments) > 0 {
		ids := make([]uint64, len(plan.Allotments))
		for i, a := range plan.Allotments {
			ids[i] = a.ApplicantID
		}
		if err := r.Applicants.MarkSeatAllotted(ctx, ids); err != nil {
			return err
		}
	}

	if err := allotment.CompleteRun(round, len(plan.Allotments), now); err != nil {
		return err
	}
	return r.Rounds.Update(ctx, round)
}

func (s *AllotmentService) notifyRun(ctx context.Context, runID string, plan *allotment.Result, applicants map[uint64]model.Applicant) {
	for _, a := range plan.Forfeited {
		ev := s.event(queue.EventSeatCancelled, a, applicants[a.ApplicantID].UserID)
		ev.RunID = runID
		ev.Reason = allotment.ForfeitReason
		s.notify(ctx, ev)
	}
	replaced := make(map[uint64]uint64, len(plan.Upgraded))
	for _, old := range plan.Upgraded {
		replaced[old.ApplicantID] = old.ID
	}
	for _, a := range plan.Allotments {
		ev := s.event(queue.EventSeatAllotted, a, applicants[a.ApplicantID].UserID)
		ev.RunID = runID
		if old, ok := replaced[a.ApplicantID]; ok {
			ev.Type = queue.EventSeatUpgraded
			ev.ReplacedAllotmentID = old
		}
		s.notify(ctx, ev)
	}
}

func (s *AllotmentService) event(t queue.EventType, a model.Allotment, userID uint64) queue.AllotmentEvent {
	return queue.AllotmentEvent{
		Type:        t,
		AllotmentID: a.ID,
		ApplicantID: a.ApplicantID,
		UserID:      userID,
		CourseID:    a.CourseID,
		RoundID:     a.RoundID,
		RoundNumber: a.RoundNumber,
		Rank:        a.AllottedRank,
		Category:    string(a.AllottedCategory),
		Status:      string(a.Status),
		OccurredAt:  s.now().Format(time.RFC3339),
	}
}

func (s *AllotmentService) notify(ctx context.Context, ev queue.AllotmentEvent) {
	if err := s.notifier.Notify(ctx, ev); err != nil {
		err = allotment.Notification(err, "notify applicant %d", ev.ApplicantID)
		s.log.Warn("notification failed",
			zap.String("type", string(ev.Type)),
			zap.Uint64("allotment_id", ev.AllotmentID),
			zap.Error(err))
	}
}

// audit appends to the audit trail.  Failures are logged only.
func (s *AllotmentService) audit(ctx context.Context, actorID uint64, action, entityType string, entityID uint64, format string, args ...any) {
	e := &model.AuditEntry{
		Action:      action,
		EntityType:  entityType,
		EntityID:    entityID,
		Description: fmt.Sprintf(format, args...),
		Status:      "success",
		CreatedAt:   s.now(),
	}
	if actorID != 0 {
		id := actorID
		e.ActorID = &id
	}
	if err := s.store.Repos().Audit.Record(ctx, e); err != nil {
		s.log.Warn("audit record failed", zap.String("action", action), zap.Error(err))
	}
}

func failed(runID string, roundID uint64, number int, err error) RunResult {
	return RunResult{
		RunID:       runID,
		RoundID:     roundID,
		RoundNumber: number,
		Success:     false,
		ErrorKind:   allotment.KindOf(err),
		Error:       allotment.MessageOf(err),
	}
}

// courseIDs collects the courses a run may touch, sorted so that row locks
// are always taken in the same order.
func courseIDs(prefs map[uint64][]model.Preference, history []model.Allotment) []uint64 {
	set := make(map[uint64]struct{})
	for _, list := range prefs {
		for _, p := range list {
			set[p.CourseID] = struct{}{}
		}
	}
	for _, a := range history {
		switch a.Status {
		case model.AllotmentAcceptedUpgrade, model.AllotmentAllotted:
			set[a.CourseID] = struct{}{}
		}
	}
	out := make([]uint64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
