// Package records detects and serves personal records.
//
// A personal record is the heaviest completed weight for an exercise at one
// or more reps; reps do not take part in the ranking and ties go to the most
// recent record. The stored record table is the source of truth. Audit
// recomputes the same value from logged sets as a consistency check only.
//
// Current scans every record of the exercise, which is linear in the number
// of records. Results are cached per exercise and the cache entry is dropped
// whenever the engine inserts a record for that exercise.
package records

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/claude/freelift/internal/clock"
	"github.com/claude/freelift/internal/ledger"
	"github.com/claude/freelift/internal/metrics"
	"github.com/claude/freelift/internal/models"
	"github.com/claude/freelift/internal/storage"
	"github.com/google/uuid"
)

// Engine computes current records and creates new ones.
type Engine struct {
	store storage.Store
	clock clock.Clock
	log   *slog.Logger

	mu    sync.Mutex
	cache map[uuid.UUID]*models.PersonalRecord
}

// New creates an Engine backed by store.
func New(store storage.Store, c clock.Clock, log *slog.Logger) *Engine {
	return &Engine{
		store: store,
		clock: c,
		log:   log,
		cache: map[uuid.UUID]*models.PersonalRecord{},
	}
}

// Current returns the current record for the exercise, or nil if it has none.
func (e *Engine) Current(ctx context.Context, exerciseID uuid.UUID) (*models.PersonalRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current(ctx, exerciseID)
}

func (e *Engine) current(ctx context.Context, exerciseID uuid.UUID) (*models.PersonalRecord, error) {
	if pr, ok := e.cache[exerciseID]; ok {
		return copyRecord(pr), nil
	}
	history, err := e.store.QueryPersonalRecords(ctx, exerciseID)
	if err != nil {
		return nil, fmt.Errorf("loading personal records: %w", err)
	}
	best := Best(history)
	e.cache[exerciseID] = best
	return copyRecord(best), nil
}

// Best returns the top-ranked record of the list, or nil for an empty list.
func Best(history []models.PersonalRecord) *models.PersonalRecord {
	var best *models.PersonalRecord
	for i := range history {
		if best == nil || history[i].Beats(*best) {
			best = &history[i]
		}
	}
	return copyRecord(best)
}

// Detect evaluates a just-completed set and, when it is heavier than the
// current record, stores and returns a new record. It returns nil when the
// set is not a record, including when weight <= 0 or reps < 1.
func (e *Engine) Detect(ctx context.Context, exerciseID uuid.UUID, weight float64, reps int, workoutID *uuid.UUID) (*models.PersonalRecord, error) {
	return e.DetectAt(ctx, exerciseID, weight, reps, workoutID, e.clock.Now())
}

// DetectAt is Detect with an explicit achievement time, used when replaying
// imported history.
func (e *Engine) DetectAt(ctx context.Context, exerciseID uuid.UUID, weight float64, reps int, workoutID *uuid.UUID, at time.Time) (*models.PersonalRecord, error) {
	if weight <= 0 || reps < 1 {
		return nil, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	current, err := e.current(ctx, exerciseID)
	if err != nil {
		return nil, err
	}
	if current != nil && weight <= current.Weight {
		return nil, nil
	}

	ex := exerciseID
	pr := &models.PersonalRecord{
		ID:         uuid.New(),
		ExerciseID: &ex,
		Weight:     weight,
		Reps:       reps,
		AchievedAt: at,
	}
	if workoutID != nil {
		w := *workoutID
		pr.WorkoutID = &w
	}

	delete(e.cache, exerciseID)
	if err := e.store.InsertPersonalRecord(ctx, pr); err != nil {
		metrics.StoreFailures.WithLabelValues("insert_personal_record").Inc()
		return nil, fmt.Errorf("storing personal record: %w", err)
	}
	metrics.PersonalRecords.Inc()

	e.log.Info("new personal record",
		"exercise_id", exerciseID,
		"weight", weight,
		"reps", reps,
	)
	return copyRecord(pr), nil
}

// History returns every record for the exercise, newest first.
func (e *Engine) History(ctx context.Context, exerciseID uuid.UUID) ([]models.PersonalRecord, error) {
	history, err := e.store.QueryPersonalRecords(ctx, exerciseID)
	if err != nil {
		return nil, fmt.Errorf("loading personal records: %w", err)
	}
	if history == nil {
		history = []models.PersonalRecord{}
	}
	return history, nil
}

// Forget drops any cached value for the exercise. Callers that delete
// exercises or records outside the engine use it to keep Current honest.
func (e *Engine) Forget(exerciseID uuid.UUID) {
	e.mu.Lock()
	delete(e.cache, exerciseID)
	e.mu.Unlock()
}

// AuditResult compares the stored record with the heaviest completed set.
type AuditResult struct {
	ExerciseID uuid.UUID `json:"exercise_id"`
	// Stored is the weight of the current stored record, nil if none.
	Stored *float64 `json:"stored"`
	// Computed is the heaviest completed set at >= 1 rep, nil if none.
	Computed   *float64 `json:"computed"`
	Consistent bool     `json:"consistent"`
}

// Audit recomputes the record for one exercise from logged sets and reports
// whether it agrees with the stored table. It never writes.
func (e *Engine) Audit(ctx context.Context, exerciseID uuid.UUID) (AuditResult, error) {
	workouts, err := e.store.QueryWorkouts(ctx, storage.WorkoutFilter{})
	if err != nil {
		return AuditResult{}, fmt.Errorf("loading workouts: %w", err)
	}
	return e.audit(ctx, exerciseID, workouts)
}

// AuditAll audits every exercise in the library.
func (e *Engine) AuditAll(ctx context.Context) ([]AuditResult, error) {
	exercises, err := e.store.ListExercises(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing exercises: %w", err)
	}
	workouts, err := e.store.QueryWorkouts(ctx, storage.WorkoutFilter{})
	if err != nil {
		return nil, fmt.Errorf("loading workouts: %w", err)
	}

	results := make([]AuditResult, 0, len(exercises))
	for _, ex := range exercises {
		r, err := e.audit(ctx, ex.ID, workouts)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, nil
}

func (e *Engine) audit(ctx context.Context, exerciseID uuid.UUID, workouts []models.Workout) (AuditResult, error) {
	current, err := e.Current(ctx, exerciseID)
	if err != nil {
		return AuditResult{}, err
	}

	r := AuditResult{ExerciseID: exerciseID, Computed: MaxCompletedWeight(workouts, exerciseID)}
	if current != nil {
		w := current.Weight
		r.Stored = &w
	}
	switch {
	case r.Stored == nil && r.Computed == nil:
		r.Consistent = true
	case r.Stored != nil && r.Computed != nil:
		r.Consistent = *r.Stored == *r.Computed
	}
	if !r.Consistent {
		e.log.Warn("personal record disagrees with logged sets",
			"exercise_id", exerciseID,
			"stored", r.Stored,
			"computed", r.Computed,
		)
	}
	return r, nil
}

// MaxCompletedWeight scans the sets of every entry for the exercise and
// returns the heaviest completed weight at one or more reps.
func MaxCompletedWeight(workouts []models.Workout, exerciseID uuid.UUID) *float64 {
	var best *float64
	for _, w := range workouts {
		for _, entry := range w.Entries {
			if entry.ExerciseID == nil || *entry.ExerciseID != exerciseID {
				continue
			}
			for _, s := range ledger.DecodeSets(entry.SetsData) {
				if !Qualifies(s) {
					continue
				}
				if best == nil || *s.Weight > *best {
					v := *s.Weight
					best = &v
				}
			}
		}
	}
	return best
}

// Qualifies reports whether a set can count towards a personal record.
func Qualifies(s models.SetRecord) bool {
	return s.IsCompleted && s.Weight != nil && *s.Weight > 0 && s.Reps != nil && *s.Reps >= 1
}

func copyRecord(pr *models.PersonalRecord) *models.PersonalRecord {
	if pr == nil {
		return nil
	}
	c := *pr
	if pr.ExerciseID != nil {
		id := *pr.ExerciseID
		c.ExerciseID = &id
	}
	if pr.WorkoutID != nil {
		id := *pr.WorkoutID
		c.WorkoutID = &id
	}
	return &c
}
