// Package session owns the single in-progress workout.
//
// The Manager is the only writer of the active workout. Every operation takes
// the same mutex, so callers from HTTP handlers, MCP tools and the heartbeat
// never interleave. The "at most one active workout" rule is a property of the
// Manager's state machine: it holds one nullable active workout and refuses
// to create or adopt another while it is set.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/claude/freelift/internal/clock"
	"github.com/claude/freelift/internal/ledger"
	"github.com/claude/freelift/internal/metrics"
	"github.com/claude/freelift/internal/models"
	"github.com/claude/freelift/internal/notify"
	"github.com/claude/freelift/internal/records"
	"github.com/claude/freelift/internal/resttimer"
	"github.com/claude/freelift/internal/storage"
	"github.com/google/uuid"
)

// Config holds the tunables of a session.
type Config struct {
	DefaultRest time.Duration
	PRBanner    time.Duration
}

// DefaultConfig returns the out-of-the-box settings.
func DefaultConfig() Config {
	return Config{
		DefaultRest: 90 * time.Second,
		PRBanner:    3 * time.Second,
	}
}

// Manager runs the active workout session.
type Manager struct {
	store    storage.Store
	records  *records.Engine
	clock    clock.Clock
	notifier notify.Notifier
	log      *slog.Logger

	mu          sync.Mutex
	cfg         Config
	active      *models.Workout
	timer       *resttimer.Timer
	accumulated time.Duration
	// restMarker is where the running timer's unfolded time starts. It is
	// cleared by every fold so no second of rest is counted twice.
	restMarker *time.Time
	banner     *banner
	unsaved    bool
}

type banner struct {
	record    models.PersonalRecord
	expiresAt time.Time
}

// New creates a Manager with no active workout. Call Recover at startup to
// adopt a workout left in progress.
func New(store storage.Store, rec *records.Engine, c clock.Clock, n notify.Notifier, cfg Config, log *slog.Logger) *Manager {
	if n == nil {
		n = notify.Nop{}
	}
	if cfg.DefaultRest <= 0 {
		cfg.DefaultRest = DefaultConfig().DefaultRest
	}
	if cfg.PRBanner <= 0 {
		cfg.PRBanner = DefaultConfig().PRBanner
	}
	m := &Manager{
		store:    store,
		records:  rec,
		clock:    c,
		notifier: n,
		log:      log,
		cfg:      cfg,
	}
	m.resetRest()
	return m
}

// StartOptions controls Start.
type StartOptions struct {
	// TemplateID, when set, clones the template's exercises and default sets.
	TemplateID *uuid.UUID
	// DiscardExisting confirms that an active workout may be deleted.
	DiscardExisting bool
	// Name overrides the template name.
	Name string
}

// Start creates a new active workout. If one is already active and
// DiscardExisting is false, it returns ErrWorkoutActive and changes nothing.
func (m *Manager) Start(ctx context.Context, opts StartOptions) (*models.Workout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil && !opts.DiscardExisting {
		m.log.Info("start refused, workout already active", "workout_id", m.active.ID)
		return nil, ErrWorkoutActive
	}

	now := m.clock.Now()
	w := &models.Workout{
		ID:        uuid.New(),
		Name:      opts.Name,
		StartedAt: now,
		Entries:   []models.WorkoutEntry{},
	}
	if opts.TemplateID != nil {
		tpl, err := m.store.GetTemplate(ctx, *opts.TemplateID)
		if err != nil {
			return nil, fmt.Errorf("loading template: %w", err)
		}
		if w.Name == "" {
			w.Name = tpl.Name
		}
		entries, err := entriesFromTemplate(w.ID, tpl)
		if err != nil {
			return nil, err
		}
		w.Entries = entries
	}

	if m.active != nil {
		if err := m.store.DeleteWorkout(ctx, m.active.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, m.storeFailure("discard_workout", err)
		}
		m.log.Info("discarded active workout", "workout_id", m.active.ID)
		metrics.WorkoutsCancelled.Inc()
		m.clear()
	}

	if err := m.store.SaveWorkout(ctx, w); err != nil {
		return nil, m.storeFailure("start_workout", err)
	}

	m.adopt(w)
	metrics.WorkoutsStarted.Inc()
	m.log.Info("workout started", "workout_id", w.ID, "entries", len(w.Entries))
	return w.Clone(), nil
}

// entriesFromTemplate clones template exercises in order. Each entry gets
// DefaultSets incomplete sets pre-filled with the default reps and weight,
// and at least one set.
func entriesFromTemplate(workoutID uuid.UUID, tpl *models.Template) ([]models.WorkoutEntry, error) {
	exercises := append([]models.TemplateExercise(nil), tpl.Exercises...)
	storage.SortTemplateExercises(exercises)

	entries := make([]models.WorkoutEntry, 0, len(exercises))
	for i, te := range exercises {
		count := te.DefaultSets
		if count < 1 {
			count = 1
		}
		seed := &ledger.Seed{Reps: te.DefaultReps, Weight: te.DefaultWeight}
		var sets []models.SetRecord
		for range count {
			sets, _ = ledger.Append(sets, seed)
		}
		data, err := ledger.EncodeSets(sets)
		if err != nil {
			return nil, err
		}
		exerciseID := te.ExerciseID
		entries = append(entries, models.WorkoutEntry{
			ID:         uuid.New(),
			WorkoutID:  workoutID,
			Order:      i,
			ExerciseID: &exerciseID,
			SetsData:   data,
		})
	}
	return entries, nil
}

// Resume adopts a stored, uncompleted workout as the active one and resets
// the rest accumulator. Resuming the workout that is already active is a
// no-op.
func (m *Manager) Resume(ctx context.Context, workoutID uuid.UUID) (*models.Workout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		if m.active.ID == workoutID {
			return m.active.Clone(), nil
		}
		m.log.Info("resume refused, another workout is active", "workout_id", m.active.ID)
		return nil, ErrWorkoutActive
	}

	w, err := m.store.GetWorkout(ctx, workoutID)
	if err != nil {
		return nil, fmt.Errorf("loading workout: %w", err)
	}
	if !w.IsActive() {
		return nil, ErrWorkoutCompleted
	}

	m.adopt(w)
	m.log.Info("workout resumed", "workout_id", w.ID)
	return w.Clone(), nil
}

// Recover is the launch-time discovery of a workout left in progress. The
// newest uncompleted workout becomes active. Any older uncompleted workouts
// are closed so the store again holds at most one. It returns nil if there
// is nothing to recover.
func (m *Manager) Recover(ctx context.Context) (*models.Workout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		return m.active.Clone(), nil
	}

	open, err := m.store.QueryWorkouts(ctx, storage.WorkoutFilter{Status: storage.StatusActive})
	if err != nil {
		return nil, fmt.Errorf("querying unfinished workouts: %w", err)
	}
	if len(open) == 0 {
		return nil, nil
	}

	now := m.clock.Now()
	for i := 1; i < len(open); i++ {
		stale := open[i]
		stale.CompletedAt = &now
		if err := m.store.SaveWorkout(ctx, &stale); err != nil {
			return nil, m.storeFailure("close_stale_workout", err)
		}
		m.log.Warn("closed stale unfinished workout", "workout_id", stale.ID, "started_at", stale.StartedAt)
	}

	w := open[0]
	m.adopt(&w)
	m.log.Info("recovered unfinished workout", "workout_id", w.ID, "started_at", w.StartedAt)
	return w.Clone(), nil
}

// FinishOptions carries the details captured on the finish screen. Nil
// fields keep the current value.
type FinishOptions struct {
	Name   *string
	Notes  *string
	Effort *int
}

// Finish completes the active workout. A running rest timer is folded in
// one last time. TotalRest is only set when some rest was recorded.
func (m *Manager) Finish(ctx context.Context, opts FinishOptions) (*models.Workout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return nil, ErrNoActiveWorkout
	}
	if opts.Effort != nil && (*opts.Effort < 1 || *opts.Effort > 10) {
		return nil, ErrInvalidEffort
	}

	m.timer.Tick()
	now := m.clock.Now()
	// The running countdown is only folded and stopped once the save
	// succeeds, so a failed finish leaves the rest timer untouched.
	rest := m.accumulated
	if m.timer.Running() && m.restMarker != nil {
		rest += now.Sub(*m.restMarker)
	}

	w := m.active
	prev := *w
	w.CompletedAt = &now
	w.TotalRest = nil
	if rest > 0 {
		w.TotalRest = &rest
	}
	if opts.Name != nil {
		w.Name = *opts.Name
	}
	if opts.Notes != nil {
		w.Notes = *opts.Notes
	}
	if opts.Effort != nil {
		effort := *opts.Effort
		w.Effort = &effort
	}

	if err := m.store.SaveWorkout(ctx, w); err != nil {
		w.CompletedAt = prev.CompletedAt
		w.TotalRest = prev.TotalRest
		w.Name = prev.Name
		w.Notes = prev.Notes
		w.Effort = prev.Effort
		m.unsaved = true
		return nil, m.storeFailure("finish_workout", err)
	}

	if m.timer.Running() {
		m.fold(now)
		m.timer.Stop()
	}
	done := w.Clone()
	m.clear()
	metrics.WorkoutsFinished.Inc()
	m.log.Info("workout finished",
		"workout_id", done.ID,
		"duration", done.Duration(now),
		"total_rest", restOrZero(done.TotalRest),
	)
	return done, nil
}

func restOrZero(d *time.Duration) time.Duration {
	if d == nil {
		return 0
	}
	return *d
}

// Cancel deletes the active workout and its entries. Rest time is not
// folded.
func (m *Manager) Cancel(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return ErrNoActiveWorkout
	}
	if err := m.store.DeleteWorkout(ctx, m.active.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return m.storeFailure("cancel_workout", err)
	}

	m.log.Info("workout cancelled", "workout_id", m.active.ID)
	m.clear()
	metrics.WorkoutsCancelled.Inc()
	return nil
}

// DetailsUpdate changes the name or notes of the active workout. Nil fields
// are left alone.
type DetailsUpdate struct {
	Name  *string
	Notes *string
}

// UpdateDetails renames the active workout or changes its notes.
func (m *Manager) UpdateDetails(ctx context.Context, u DetailsUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return ErrNoActiveWorkout
	}
	if u.Name != nil {
		m.active.Name = *u.Name
	}
	if u.Notes != nil {
		m.active.Notes = *u.Notes
	}
	return m.persist(ctx, "update_details")
}

// Active returns a copy of the active workout, or nil.
func (m *Manager) Active() *models.Workout {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active.Clone()
}

// Tick recomputes the rest timer and expires the PR banner. The heartbeat
// calls it once a second; it is also safe to call after the process resumes
// from a suspension.
func (m *Manager) Tick() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timer.Tick()
	m.expireBanner(m.clock.Now())
}

// Snapshot returns the current session state. Elapsed and remaining times
// are derived from the clock at the time of the call.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.timer.Tick()
	now := m.clock.Now()
	m.expireBanner(now)

	s := Snapshot{
		Active:          m.active != nil,
		Rest:            restView(m.timer.State()),
		AccumulatedRest: Seconds(m.accumulated),
		DefaultRest:     Seconds(m.cfg.DefaultRest),
		Unsaved:         m.unsaved,
	}
	if m.active != nil {
		v := ViewOf(m.active, now)
		s.Workout = &v
		s.Elapsed = v.Duration
	}
	if m.banner != nil {
		pr := m.banner.record
		s.LatestPR = &pr
	}
	return s
}

func (m *Manager) expireBanner(now time.Time) {
	if m.banner != nil && !now.Before(m.banner.expiresAt) {
		m.banner = nil
	}
}

// adopt makes w the active workout with a fresh rest state.
func (m *Manager) adopt(w *models.Workout) {
	m.active = w.Clone()
	m.unsaved = false
	m.resetRest()
	metrics.ActiveWorkout.Set(1)
}

// clear drops the active workout without folding rest time.
func (m *Manager) clear() {
	m.active = nil
	m.unsaved = false
	m.banner = nil
	m.resetRest()
	metrics.ActiveWorkout.Set(0)
}

// persist saves the whole active workout. On failure the in-memory state
// stays as it is and is saved again by the next mutation.
func (m *Manager) persist(ctx context.Context, op string) error {
	if err := m.store.SaveWorkout(ctx, m.active); err != nil {
		m.unsaved = true
		return m.storeFailure(op, err)
	}
	m.unsaved = false
	return nil
}

func (m *Manager) storeFailure(op string, err error) error {
	metrics.StoreFailures.WithLabelValues(op).Inc()
	m.log.Error("store operation failed", "op", op, "error", err)
	return fmt.Errorf("%w: %s: %w", ErrSaveFailed, op, err)
}

func (m *Manager) entry(entryID uuid.UUID) (*models.WorkoutEntry, error) {
	if m.active == nil {
		return nil, ErrNoActiveWorkout
	}
	e := m.active.Entry(entryID)
	if e == nil {
		return nil, ErrEntryNotFound
	}
	return e, nil
}
