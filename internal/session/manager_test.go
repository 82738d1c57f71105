package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/claude/freelift/internal/clock"
	"github.com/claude/freelift/internal/ledger"
	"github.com/claude/freelift/internal/models"
	"github.com/claude/freelift/internal/notify"
	"github.com/claude/freelift/internal/records"
	"github.com/claude/freelift/internal/storage"
	"github.com/claude/freelift/internal/storage/memory"
	"github.com/google/uuid"
)

var t0 = time.Date(2026, 4, 20, 17, 0, 0, 0, time.UTC)

// flakyStore fails every SaveWorkout and DeleteWorkout while failing is set.
type flakyStore struct {
	*memory.Store
	failing bool
}

var errDiskFull = errors.New("disk full")

func (s *flakyStore) SaveWorkout(ctx context.Context, w *models.Workout) error {
	if s.failing {
		return errDiskFull
	}
	return s.Store.SaveWorkout(ctx, w)
}

func (s *flakyStore) DeleteWorkout(ctx context.Context, id uuid.UUID) error {
	if s.failing {
		return errDiskFull
	}
	return s.Store.DeleteWorkout(ctx, id)
}

// recorder counts notifier calls per event.
type recorder struct {
	mu     sync.Mutex
	haptic map[notify.Event]int
	sound  map[notify.Event]int
}

func newRecorder() *recorder {
	return &recorder{haptic: map[notify.Event]int{}, sound: map[notify.Event]int{}}
}

func (r *recorder) Haptic(e notify.Event) {
	r.mu.Lock()
	r.haptic[e]++
	r.mu.Unlock()
}

func (r *recorder) Sound(e notify.Event) {
	r.mu.Lock()
	r.sound[e]++
	r.mu.Unlock()
}

type fixture struct {
	m     *Manager
	store *flakyStore
	clock *clock.Fake
	notes *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := &flakyStore{Store: memory.New()}
	c := clock.NewFake(t0)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	rec := newRecorder()
	m := New(store, records.New(store, c, log), c, rec, DefaultConfig(), log)
	return &fixture{m: m, store: store, clock: c, notes: rec}
}

func (f *fixture) exercise(t *testing.T, name string) uuid.UUID {
	t.Helper()
	e := models.Exercise{ID: uuid.New(), Name: name}
	if err := f.store.SaveExercise(context.Background(), &e); err != nil {
		t.Fatalf("SaveExercise: %v", err)
	}
	return e.ID
}

func (f *fixture) activeCount(t *testing.T) int {
	t.Helper()
	n, err := f.store.CountWorkouts(context.Background(), storage.WorkoutFilter{Status: storage.StatusActive})
	if err != nil {
		t.Fatalf("CountWorkouts: %v", err)
	}
	return n
}

func mustStart(t *testing.T, m *Manager) *models.Workout {
	t.Helper()
	w, err := m.Start(context.Background(), StartOptions{})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	return w
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func strPtr(v string) *string { return &v }

// TestStartRefusedWhileActive verifies that starting without confirming the
// discard returns a refusal and leaves the active workout untouched.
func TestStartRefusedWhileActive(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	first := mustStart(t, f.m)

	_, err := f.m.Start(ctx, StartOptions{})
	if !errors.Is(err, ErrWorkoutActive) {
		t.Fatalf("Start error = %v, want ErrWorkoutActive", err)
	}
	if got := f.m.Active(); got == nil || got.ID != first.ID {
		t.Errorf("active workout changed after refusal")
	}
	if _, err := f.store.GetWorkout(ctx, first.ID); err != nil {
		t.Errorf("first workout missing from store: %v", err)
	}
	if n := f.activeCount(t); n != 1 {
		t.Errorf("active workouts in store = %d, want 1", n)
	}
}

// TestStartDiscardExisting verifies a confirmed discard deletes the old
// workout and its entries before creating the new one.
func TestStartDiscardExisting(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ex := f.exercise(t, "Bench")
	first := mustStart(t, f.m)
	if _, err := f.m.AddExercise(ctx, ex); err != nil {
		t.Fatalf("AddExercise: %v", err)
	}

	second, err := f.m.Start(ctx, StartOptions{DiscardExisting: true, Name: "Again"})
	if err != nil {
		t.Fatalf("Start(discard): %v", err)
	}
	if _, err := f.store.GetWorkout(ctx, first.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("discarded workout still stored (err = %v)", err)
	}
	if got := f.m.Active(); got.ID != second.ID || got.Name != "Again" {
		t.Errorf("active = %+v, want the new workout", got)
	}
	if n := f.activeCount(t); n != 1 {
		t.Errorf("active workouts in store = %d, want 1", n)
	}
}

// TestStartFromTemplate verifies entries are cloned in template order with
// default sets, all incomplete.
func TestStartFromTemplate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	squat := f.exercise(t, "Squat")
	press := f.exercise(t, "Press")
	tpl := models.Template{ID: uuid.New(), Name: "Day A", Exercises: []models.TemplateExercise{
		{ID: uuid.New(), Order: 1, ExerciseID: press, DefaultSets: 0},
		{ID: uuid.New(), Order: 0, ExerciseID: squat, DefaultSets: 3, DefaultReps: intPtr(5), DefaultWeight: floatPtr(100)},
	}}
	if err := f.store.SaveTemplate(ctx, &tpl); err != nil {
		t.Fatalf("SaveTemplate: %v", err)
	}

	w, err := f.m.Start(ctx, StartOptions{TemplateID: &tpl.ID})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if w.Name != "Day A" {
		t.Errorf("Name = %q, want template name", w.Name)
	}
	if len(w.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(w.Entries))
	}
	if *w.Entries[0].ExerciseID != squat || w.Entries[0].Order != 0 {
		t.Errorf("first entry = %+v, want squat at order 0", w.Entries[0])
	}

	sets := ledger.DecodeSets(w.Entries[0].SetsData)
	if len(sets) != 3 {
		t.Fatalf("squat sets = %d, want 3", len(sets))
	}
	for i, s := range sets {
		if s.SetNumber != i+1 || *s.Reps != 5 || *s.Weight != 100 || s.IsCompleted {
			t.Errorf("set %d = %+v, want #%d 100x5 incomplete", i, s, i+1)
		}
	}
	if n := len(ledger.DecodeSets(w.Entries[1].SetsData)); n != 1 {
		t.Errorf("press sets = %d, want 1 for a zero default", n)
	}
}

// TestStartUnknownTemplate verifies a missing template fails without
// creating a workout.
func TestStartUnknownTemplate(t *testing.T) {
	f := newFixture(t)
	id := uuid.New()
	_, err := f.m.Start(context.Background(), StartOptions{TemplateID: &id})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Start error = %v, want ErrNotFound", err)
	}
	if f.m.Active() != nil {
		t.Error("workout became active despite the error")
	}
}

// TestFinishPartialRest verifies that finishing 20s into a 60s rest folds
// only the 20 elapsed seconds.
func TestFinishPartialRest(t *testing.T) {
	f := newFixture(t)
	mustStart(t, f.m)

	if err := f.m.StartRest(60 * time.Second); err != nil {
		t.Fatalf("StartRest: %v", err)
	}
	f.clock.Advance(20 * time.Second)

	w, err := f.m.Finish(context.Background(), FinishOptions{})
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if w.TotalRest == nil || *w.TotalRest != 20*time.Second {
		t.Errorf("TotalRest = %v, want 20s", w.TotalRest)
	}
	if w.CompletedAt == nil || !w.CompletedAt.Equal(t0.Add(20*time.Second)) {
		t.Errorf("CompletedAt = %v, want start+20s", w.CompletedAt)
	}
}

// TestFinishAfterNaturalCompletion verifies a countdown that ran out while
// nothing was ticking folds its full duration, not the wall time since.
func TestFinishAfterNaturalCompletion(t *testing.T) {
	f := newFixture(t)
	mustStart(t, f.m)

	if err := f.m.StartRest(60 * time.Second); err != nil {
		t.Fatalf("StartRest: %v", err)
	}
	f.clock.Advance(5 * time.Minute)

	w, err := f.m.Finish(context.Background(), FinishOptions{})
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if w.TotalRest == nil || *w.TotalRest != 60*time.Second {
		t.Errorf("TotalRest = %v, want 60s", w.TotalRest)
	}
	if got := f.notes.sound[notify.EventRestComplete]; got != 1 {
		t.Errorf("rest complete sound fired %d times, want 1", got)
	}
}

// TestFinishWithoutRest verifies TotalRest stays unset when no rest was
// recorded and that finish details are applied.
func TestFinishWithoutRest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	started := mustStart(t, f.m)
	f.clock.Advance(45 * time.Minute)

	w, err := f.m.Finish(ctx, FinishOptions{Name: strPtr("Legs"), Notes: strPtr("ok"), Effort: intPtr(7)})
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if w.TotalRest != nil {
		t.Errorf("TotalRest = %v, want nil", *w.TotalRest)
	}
	stored, err := f.store.GetWorkout(ctx, started.ID)
	if err != nil {
		t.Fatalf("GetWorkout: %v", err)
	}
	if stored.Name != "Legs" || stored.Notes != "ok" || *stored.Effort != 7 || stored.IsActive() {
		t.Errorf("stored workout = %+v, want finished with details", stored)
	}
	if f.m.Active() != nil {
		t.Error("workout still active after finish")
	}
	if _, err := f.m.Finish(ctx, FinishOptions{}); !errors.Is(err, ErrNoActiveWorkout) {
		t.Errorf("second Finish error = %v, want ErrNoActiveWorkout", err)
	}
}

// TestFinishRejectsBadEffort verifies effort is validated before anything
// changes.
func TestFinishRejectsBadEffort(t *testing.T) {
	f := newFixture(t)
	mustStart(t, f.m)
	if _, err := f.m.Finish(context.Background(), FinishOptions{Effort: intPtr(11)}); !errors.Is(err, ErrInvalidEffort) {
		t.Fatalf("Finish error = %v, want ErrInvalidEffort", err)
	}
	if f.m.Active() == nil {
		t.Error("workout finished despite invalid effort")
	}
}

// TestRestAccumulation walks a sequence of skip, restart and adjusted
// natural completion and checks the accumulator after each step.
func TestRestAccumulation(t *testing.T) {
	f := newFixture(t)
	mustStart(t, f.m)

	// Skip after 30s of a 90s rest: 30s.
	f.m.StartRest(0)
	f.clock.Advance(30 * time.Second)
	f.m.StopRest()
	if got := f.m.Snapshot().AccumulatedRest; time.Duration(got) != 30*time.Second {
		t.Fatalf("after skip: accumulated = %v, want 30s", time.Duration(got))
	}

	// Restart 10s into a 60s rest: +10s.
	f.m.StartRest(60 * time.Second)
	f.clock.Advance(10 * time.Second)
	f.m.StartRest(60 * time.Second)
	if got := f.m.Snapshot().AccumulatedRest; time.Duration(got) != 40*time.Second {
		t.Fatalf("after restart: accumulated = %v, want 40s", time.Duration(got))
	}

	// Extend the running 60s rest by 30s and let it run out: +90s.
	f.m.AdjustRest(30 * time.Second)
	f.clock.Advance(2 * time.Minute)
	f.m.Tick()
	if got := f.m.Snapshot().AccumulatedRest; time.Duration(got) != 130*time.Second {
		t.Fatalf("after natural completion: accumulated = %v, want 130s", time.Duration(got))
	}

	// Skipping an idle timer changes nothing.
	f.m.StopRest()
	if got := f.m.Snapshot().AccumulatedRest; time.Duration(got) != 130*time.Second {
		t.Errorf("after idle skip: accumulated = %v, want 130s", time.Duration(got))
	}
}

// TestAdjustRestPastZeroCompletes verifies subtracting more than remains
// completes the timer and folds only the elapsed time.
func TestAdjustRestPastZeroCompletes(t *testing.T) {
	f := newFixture(t)
	mustStart(t, f.m)

	f.m.StartRest(90 * time.Second)
	f.clock.Advance(15 * time.Second)
	f.m.AdjustRest(-2 * time.Minute)

	s := f.m.Snapshot()
	if !s.Rest.Complete || s.Rest.Running {
		t.Errorf("rest = %+v, want complete and stopped", s.Rest)
	}
	if time.Duration(s.AccumulatedRest) != 15*time.Second {
		t.Errorf("accumulated = %v, want 15s", time.Duration(s.AccumulatedRest))
	}
}

// TestAdjustRestAfterSuspend verifies an adjustment that is the first call
// after the countdown ran out unobserved folds exactly the full duration.
func TestAdjustRestAfterSuspend(t *testing.T) {
	for _, delta := range []time.Duration{30 * time.Second, -10 * time.Second} {
		f := newFixture(t)
		mustStart(t, f.m)

		f.m.StartRest(90 * time.Second)
		f.clock.Advance(100 * time.Second)
		if err := f.m.AdjustRest(delta); err != nil {
			t.Fatalf("AdjustRest(%v): %v", delta, err)
		}

		s := f.m.Snapshot()
		if !s.Rest.Complete || s.Rest.Running {
			t.Errorf("delta %v: rest = %+v, want complete and stopped", delta, s.Rest)
		}
		w, err := f.m.Finish(context.Background(), FinishOptions{})
		if err != nil {
			t.Fatalf("Finish: %v", err)
		}
		if got := restOrZero(w.TotalRest); got != 90*time.Second {
			t.Errorf("delta %v: TotalRest = %v, want 90s", delta, got)
		}
	}
}

// TestRestNeedsActiveWorkout verifies rest operations refuse without a
// workout and that SetDefaultRest validates its input.
func TestRestNeedsActiveWorkout(t *testing.T) {
	f := newFixture(t)
	if err := f.m.StartRest(time.Minute); !errors.Is(err, ErrNoActiveWorkout) {
		t.Errorf("StartRest error = %v, want ErrNoActiveWorkout", err)
	}
	if err := f.m.SetDefaultRest(0); !errors.Is(err, ErrInvalidDuration) {
		t.Errorf("SetDefaultRest(0) error = %v, want ErrInvalidDuration", err)
	}
	if err := f.m.SetDefaultRest(2 * time.Minute); err != nil {
		t.Fatalf("SetDefaultRest: %v", err)
	}
	if got := f.m.Snapshot().Rest.Total; time.Duration(got) != 2*time.Minute {
		t.Errorf("displayed total = %v, want 2m", time.Duration(got))
	}
}

// TestCancel verifies cancel deletes the workout and does not keep rest.
func TestCancel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	w := mustStart(t, f.m)
	f.m.StartRest(time.Minute)
	f.clock.Advance(30 * time.Second)

	if err := f.m.Cancel(ctx); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if _, err := f.store.GetWorkout(ctx, w.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("cancelled workout still stored (err = %v)", err)
	}
	s := f.m.Snapshot()
	if s.Active || s.AccumulatedRest != 0 || s.Rest.Running {
		t.Errorf("snapshot after cancel = %+v, want idle", s)
	}
	if err := f.m.Cancel(ctx); !errors.Is(err, ErrNoActiveWorkout) {
		t.Errorf("second Cancel error = %v, want ErrNoActiveWorkout", err)
	}
}

// TestResume verifies adoption rules for stored workouts.
func TestResume(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	open := &models.Workout{ID: uuid.New(), StartedAt: t0.Add(-time.Hour)}
	done := &models.Workout{ID: uuid.New(), StartedAt: t0.Add(-2 * time.Hour), CompletedAt: &t0}
	for _, w := range []*models.Workout{open, done} {
		if err := f.store.SaveWorkout(ctx, w); err != nil {
			t.Fatalf("SaveWorkout: %v", err)
		}
	}

	if _, err := f.m.Resume(ctx, done.ID); !errors.Is(err, ErrWorkoutCompleted) {
		t.Errorf("Resume(completed) error = %v, want ErrWorkoutCompleted", err)
	}
	if _, err := f.m.Resume(ctx, uuid.New()); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Resume(unknown) error = %v, want ErrNotFound", err)
	}
	got, err := f.m.Resume(ctx, open.ID)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if got.ID != open.ID {
		t.Errorf("resumed %s, want %s", got.ID, open.ID)
	}
	if _, err := f.m.Resume(ctx, open.ID); err != nil {
		t.Errorf("Resume(same) error = %v, want nil", err)
	}

	other := mustStoredActive(t, f, t0)
	if _, err := f.m.Resume(ctx, other); !errors.Is(err, ErrWorkoutActive) {
		t.Errorf("Resume(other) error = %v, want ErrWorkoutActive", err)
	}
	if s := f.m.Snapshot(); time.Duration(s.Elapsed) != time.Hour {
		t.Errorf("elapsed = %v, want 1h derived from startedAt", time.Duration(s.Elapsed))
	}
}

func mustStoredActive(t *testing.T, f *fixture, started time.Time) uuid.UUID {
	t.Helper()
	w := &models.Workout{ID: uuid.New(), StartedAt: started}
	if err := f.store.SaveWorkout(context.Background(), w); err != nil {
		t.Fatalf("SaveWorkout: %v", err)
	}
	return w.ID
}

// TestRecover verifies launch-time discovery adopts the newest unfinished
// workout and closes the others.
func TestRecover(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if w, err := f.m.Recover(ctx); err != nil || w != nil {
		t.Fatalf("Recover(empty) = %v, %v; want nil, nil", w, err)
	}

	older := mustStoredActive(t, f, t0.Add(-3*time.Hour))
	newer := mustStoredActive(t, f, t0.Add(-time.Hour))

	w, err := f.m.Recover(ctx)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if w.ID != newer {
		t.Errorf("recovered %s, want newest %s", w.ID, newer)
	}
	if n := f.activeCount(t); n != 1 {
		t.Errorf("active workouts in store = %d, want 1", n)
	}
	closed, err := f.store.GetWorkout(ctx, older)
	if err != nil {
		t.Fatalf("GetWorkout: %v", err)
	}
	if closed.IsActive() {
		t.Error("older unfinished workout was not closed")
	}
}

// TestSingleActiveInvariant runs random start/resume/finish/cancel
// sequences and checks the store never holds two active workouts.
func TestSingleActiveInvariant(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rng := rand.New(rand.NewSource(42))
	var seen []uuid.UUID

	for step := 0; step < 500; step++ {
		f.clock.Advance(time.Duration(rng.Intn(120)) * time.Second)
		switch rng.Intn(5) {
		case 0:
			if w, err := f.m.Start(ctx, StartOptions{}); err == nil {
				seen = append(seen, w.ID)
			}
		case 1:
			if w, err := f.m.Start(ctx, StartOptions{DiscardExisting: true}); err == nil {
				seen = append(seen, w.ID)
			}
		case 2:
			if len(seen) > 0 {
				f.m.Resume(ctx, seen[rng.Intn(len(seen))])
			}
		case 3:
			f.m.Finish(ctx, FinishOptions{})
		case 4:
			f.m.Cancel(ctx)
		}

		n := f.activeCount(t)
		if n > 1 {
			t.Fatalf("step %d: %d active workouts in store", step, n)
		}
		if (n == 1) != (f.m.Active() != nil) {
			t.Fatalf("step %d: store has %d active, manager active = %v", step, n, f.m.Active() != nil)
		}
	}
}

// TestStoreFailureKeepsMemoryState verifies a failed save surfaces
// ErrSaveFailed, keeps the change in memory and is repaired by the next
// successful mutation.
func TestStoreFailureKeepsMemoryState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	w := mustStart(t, f.m)

	f.store.failing = true
	err := f.m.UpdateDetails(ctx, DetailsUpdate{Name: strPtr("Renamed")})
	if !errors.Is(err, ErrSaveFailed) || !errors.Is(err, errDiskFull) {
		t.Fatalf("UpdateDetails error = %v, want ErrSaveFailed wrapping the store error", err)
	}
	if got := f.m.Active().Name; got != "Renamed" {
		t.Errorf("in-memory name = %q, want Renamed", got)
	}
	if !f.m.Snapshot().Unsaved {
		t.Error("snapshot should report unsaved changes")
	}

	if _, err := f.m.Finish(ctx, FinishOptions{}); !errors.Is(err, ErrSaveFailed) {
		t.Fatalf("Finish error = %v, want ErrSaveFailed", err)
	}
	if f.m.Active() == nil || f.m.Active().CompletedAt != nil {
		t.Fatal("failed finish must leave the workout active")
	}
	if err := f.m.Cancel(ctx); !errors.Is(err, ErrSaveFailed) {
		t.Fatalf("Cancel error = %v, want ErrSaveFailed", err)
	}
	if f.m.Active() == nil {
		t.Fatal("failed cancel must leave the workout active")
	}

	f.store.failing = false
	if err := f.m.UpdateDetails(ctx, DetailsUpdate{Notes: strPtr("back")}); err != nil {
		t.Fatalf("UpdateDetails: %v", err)
	}
	stored, err := f.store.GetWorkout(ctx, w.ID)
	if err != nil {
		t.Fatalf("GetWorkout: %v", err)
	}
	if stored.Name != "Renamed" || stored.Notes != "back" {
		t.Errorf("stored = %q/%q, want both changes saved", stored.Name, stored.Notes)
	}
	if f.m.Snapshot().Unsaved {
		t.Error("unsaved flag should clear after a successful save")
	}
}

// TestFailedFinishKeepsRestRunning verifies a finish whose save fails
// leaves the running countdown alone, and a later finish folds the rest
// once.
func TestFailedFinishKeepsRestRunning(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mustStart(t, f.m)

	f.m.StartRest(60 * time.Second)
	f.clock.Advance(20 * time.Second)

	f.store.failing = true
	if _, err := f.m.Finish(ctx, FinishOptions{}); !errors.Is(err, ErrSaveFailed) {
		t.Fatalf("Finish error = %v, want ErrSaveFailed", err)
	}
	s := f.m.Snapshot()
	if !s.Rest.Running || time.Duration(s.Rest.Remaining) != 40*time.Second {
		t.Errorf("rest = %+v, want still running with 40s left", s.Rest)
	}
	if s.AccumulatedRest != 0 {
		t.Errorf("accumulated = %v, want nothing folded yet", time.Duration(s.AccumulatedRest))
	}

	f.store.failing = false
	f.clock.Advance(10 * time.Second)
	w, err := f.m.Finish(ctx, FinishOptions{})
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if got := restOrZero(w.TotalRest); got != 30*time.Second {
		t.Errorf("TotalRest = %v, want 30s", got)
	}
}

// TestHeartbeatStops verifies the heartbeat loop exits on cancellation.
func TestHeartbeatStops(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := f.m.Heartbeat(ctx, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("heartbeat did not stop")
	}
}
