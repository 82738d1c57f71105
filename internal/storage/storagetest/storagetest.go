// Package storagetest holds a behavioural test suite that every
// storage.Store backend must pass.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/claude/freelift/internal/ledger"
	"github.com/claude/freelift/internal/models"
	"github.com/claude/freelift/internal/storage"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
)

// Run executes the suite. newStore must return an empty store; it is called
// once per subtest.
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s storage.Store)
	}{
		{"WorkoutRoundTrip", testWorkoutRoundTrip},
		{"SaveWorkoutReplacesEntries", testSaveWorkoutReplacesEntries},
		{"GetWorkoutNotFound", testGetWorkoutNotFound},
		{"QueryWorkoutsFilter", testQueryWorkoutsFilter},
		{"DeleteWorkoutCascades", testDeleteWorkoutCascades},
		{"PersonalRecordsNewestFirst", testPersonalRecordsNewestFirst},
		{"ExerciseNameConflict", testExerciseNameConflict},
		{"DeleteExerciseNullsReferences", testDeleteExerciseNullsReferences},
		{"TemplateRoundTrip", testTemplateRoundTrip},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { s.Close() })
			tt.fn(t, s)
		})
	}
}

// base is a fixed instant with microsecond precision so every backend can
// represent it exactly.
var base = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

var cmpOpts = []cmp.Option{cmpopts.EquateEmpty()}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func timePtr(v time.Time) *time.Time { return &v }

// encodeSets ignores the error: marshalling SetRecord values cannot fail.
func encodeSets(sets []models.SetRecord) []byte {
	data, _ := ledger.EncodeSets(sets)
	return data
}

func mustSaveExercise(t *testing.T, s storage.Store, name string) models.Exercise {
	t.Helper()
	instructions, err := ledger.EncodeInstructions([]string{"brace", "lift"})
	if err != nil {
		t.Fatalf("EncodeInstructions: %v", err)
	}
	e := models.Exercise{
		ID:               uuid.New(),
		Name:             name,
		Category:         "strength",
		Equipment:        "barbell",
		InstructionsData: instructions,
	}
	if err := s.SaveExercise(context.Background(), &e); err != nil {
		t.Fatalf("SaveExercise(%q): %v", name, err)
	}
	return e
}

func newWorkout(start time.Time, exerciseID *uuid.UUID, weights ...float64) *models.Workout {
	w := &models.Workout{ID: uuid.New(), Name: "Push", StartedAt: start, Entries: []models.WorkoutEntry{}}
	var sets []models.SetRecord
	for _, kg := range weights {
		sets, _ = ledger.Append(sets, &ledger.Seed{Reps: intPtr(5), Weight: floatPtr(kg)})
	}
	w.Entries = append(w.Entries, models.WorkoutEntry{
		ID:         uuid.New(),
		WorkoutID:  w.ID,
		Order:      0,
		ExerciseID: exerciseID,
		SetsData:   encodeSets(sets),
		Notes:      "felt strong",
	})
	return w
}

func testWorkoutRoundTrip(t *testing.T, s storage.Store) {
	ctx := context.Background()
	ex := mustSaveExercise(t, s, "Bench Press")

	w := newWorkout(base, &ex.ID, 100, 105)
	w.CompletedAt = timePtr(base.Add(time.Hour))
	w.Effort = intPtr(8)
	rest := 4*time.Minute + 30*time.Second
	w.TotalRest = &rest
	w.Notes = "good day"

	if err := s.SaveWorkout(ctx, w); err != nil {
		t.Fatalf("SaveWorkout: %v", err)
	}
	got, err := s.GetWorkout(ctx, w.ID)
	if err != nil {
		t.Fatalf("GetWorkout: %v", err)
	}
	if diff := cmp.Diff(w, got, cmpOpts...); diff != "" {
		t.Errorf("workout mismatch (-want +got):\n%s", diff)
	}
	if sets := ledger.DecodeSets(got.Entries[0].SetsData); len(sets) != 2 {
		t.Errorf("decoded %d sets, want 2", len(sets))
	}
}

func testSaveWorkoutReplacesEntries(t *testing.T, s storage.Store) {
	ctx := context.Background()
	w := newWorkout(base, nil, 60)
	if err := s.SaveWorkout(ctx, w); err != nil {
		t.Fatalf("SaveWorkout: %v", err)
	}

	second := models.WorkoutEntry{ID: uuid.New(), WorkoutID: w.ID, Order: 0, SetsData: encodeSets(nil)}
	w.Entries[0].Order = 1
	w.Entries = append(w.Entries, second)
	if err := s.SaveWorkout(ctx, w); err != nil {
		t.Fatalf("SaveWorkout (two entries): %v", err)
	}
	got, err := s.GetWorkout(ctx, w.ID)
	if err != nil {
		t.Fatalf("GetWorkout: %v", err)
	}
	if len(got.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(got.Entries))
	}
	if got.Entries[0].ID != second.ID {
		t.Errorf("first entry = %s, want %s (ordered by position)", got.Entries[0].ID, second.ID)
	}

	w.Entries = w.Entries[1:]
	if err := s.SaveWorkout(ctx, w); err != nil {
		t.Fatalf("SaveWorkout (one entry): %v", err)
	}
	got, err = s.GetWorkout(ctx, w.ID)
	if err != nil {
		t.Fatalf("GetWorkout: %v", err)
	}
	if len(got.Entries) != 1 || got.Entries[0].ID != second.ID {
		t.Errorf("entries after removal = %+v, want only %s", got.Entries, second.ID)
	}
}

func testGetWorkoutNotFound(t *testing.T, s storage.Store) {
	ctx := context.Background()
	if _, err := s.GetWorkout(ctx, uuid.New()); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetWorkout(unknown) error = %v, want ErrNotFound", err)
	}
	if err := s.DeleteWorkout(ctx, uuid.New()); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("DeleteWorkout(unknown) error = %v, want ErrNotFound", err)
	}
}

func testQueryWorkoutsFilter(t *testing.T, s storage.Store) {
	ctx := context.Background()
	var ids []uuid.UUID
	for i := 0; i < 4; i++ {
		w := newWorkout(base.Add(time.Duration(i)*24*time.Hour), nil, 50)
		if i < 3 {
			w.CompletedAt = timePtr(w.StartedAt.Add(time.Hour))
		}
		if err := s.SaveWorkout(ctx, w); err != nil {
			t.Fatalf("SaveWorkout: %v", err)
		}
		ids = append(ids, w.ID)
	}

	all, err := s.QueryWorkouts(ctx, storage.WorkoutFilter{})
	if err != nil {
		t.Fatalf("QueryWorkouts: %v", err)
	}
	if len(all) != 4 || all[0].ID != ids[3] || all[3].ID != ids[0] {
		t.Errorf("QueryWorkouts order wrong: got %d workouts", len(all))
	}

	active, err := s.QueryWorkouts(ctx, storage.WorkoutFilter{Status: storage.StatusActive})
	if err != nil {
		t.Fatalf("QueryWorkouts(active): %v", err)
	}
	if len(active) != 1 || active[0].ID != ids[3] {
		t.Errorf("active workouts = %d, want only the newest", len(active))
	}

	ranged, err := s.QueryWorkouts(ctx, storage.WorkoutFilter{
		Start:  base.Add(24 * time.Hour),
		End:    base.Add(3 * 24 * time.Hour),
		Status: storage.StatusCompleted,
	})
	if err != nil {
		t.Fatalf("QueryWorkouts(range): %v", err)
	}
	if len(ranged) != 2 || ranged[0].ID != ids[2] || ranged[1].ID != ids[1] {
		t.Errorf("ranged workouts = %d, want days 2 and 1", len(ranged))
	}

	limited, err := s.QueryWorkouts(ctx, storage.WorkoutFilter{Limit: 2})
	if err != nil {
		t.Fatalf("QueryWorkouts(limit): %v", err)
	}
	if len(limited) != 2 || len(limited[0].Entries) != 1 {
		t.Errorf("limited workouts = %d, want 2 with entries loaded", len(limited))
	}

	n, err := s.CountWorkouts(ctx, storage.WorkoutFilter{Status: storage.StatusCompleted, Limit: 1})
	if err != nil {
		t.Fatalf("CountWorkouts: %v", err)
	}
	if n != 3 {
		t.Errorf("CountWorkouts(completed) = %d, want 3", n)
	}
}

func testDeleteWorkoutCascades(t *testing.T, s storage.Store) {
	ctx := context.Background()
	ex := mustSaveExercise(t, s, "Squat")
	w := newWorkout(base, &ex.ID, 140)
	if err := s.SaveWorkout(ctx, w); err != nil {
		t.Fatalf("SaveWorkout: %v", err)
	}
	pr := models.PersonalRecord{ID: uuid.New(), ExerciseID: &ex.ID, Weight: 140, Reps: 5, AchievedAt: base, WorkoutID: &w.ID}
	if err := s.InsertPersonalRecord(ctx, &pr); err != nil {
		t.Fatalf("InsertPersonalRecord: %v", err)
	}

	if err := s.DeleteWorkout(ctx, w.ID); err != nil {
		t.Fatalf("DeleteWorkout: %v", err)
	}
	if _, err := s.GetWorkout(ctx, w.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetWorkout after delete error = %v, want ErrNotFound", err)
	}
	records, err := s.QueryPersonalRecords(ctx, ex.ID)
	if err != nil {
		t.Fatalf("QueryPersonalRecords: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1 (records survive workout deletion)", len(records))
	}
	if records[0].WorkoutID != nil {
		t.Errorf("record workout = %v, want nil", records[0].WorkoutID)
	}
}

func testPersonalRecordsNewestFirst(t *testing.T, s storage.Store) {
	ctx := context.Background()
	ex := mustSaveExercise(t, s, "Deadlift")
	other := mustSaveExercise(t, s, "Row")

	var want []models.PersonalRecord
	for i, kg := range []float64{150, 160, 170} {
		pr := models.PersonalRecord{
			ID:         uuid.New(),
			ExerciseID: &ex.ID,
			Weight:     kg,
			Reps:       3,
			AchievedAt: base.Add(time.Duration(i) * time.Hour),
		}
		if err := s.InsertPersonalRecord(ctx, &pr); err != nil {
			t.Fatalf("InsertPersonalRecord: %v", err)
		}
		want = append([]models.PersonalRecord{pr}, want...)
	}
	unrelated := models.PersonalRecord{ID: uuid.New(), ExerciseID: &other.ID, Weight: 80, Reps: 8, AchievedAt: base}
	if err := s.InsertPersonalRecord(ctx, &unrelated); err != nil {
		t.Fatalf("InsertPersonalRecord: %v", err)
	}

	got, err := s.QueryPersonalRecords(ctx, ex.ID)
	if err != nil {
		t.Fatalf("QueryPersonalRecords: %v", err)
	}
	if diff := cmp.Diff(want, got, cmpOpts...); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}

	n, err := s.CountPersonalRecords(ctx)
	if err != nil {
		t.Fatalf("CountPersonalRecords: %v", err)
	}
	if n != 4 {
		t.Errorf("CountPersonalRecords = %d, want 4", n)
	}
}

func testExerciseNameConflict(t *testing.T, s storage.Store) {
	ctx := context.Background()
	first := mustSaveExercise(t, s, "Overhead Press")

	dup := models.Exercise{ID: uuid.New(), Name: "overhead press"}
	if err := s.SaveExercise(ctx, &dup); !errors.Is(err, storage.ErrConflict) {
		t.Errorf("SaveExercise(duplicate name) error = %v, want ErrConflict", err)
	}

	first.Category = "shoulders"
	if err := s.SaveExercise(ctx, &first); err != nil {
		t.Fatalf("SaveExercise(update): %v", err)
	}
	found, err := s.FindExerciseByName(ctx, "OVERHEAD PRESS")
	if err != nil {
		t.Fatalf("FindExerciseByName: %v", err)
	}
	if found.ID != first.ID || found.Category != "shoulders" {
		t.Errorf("FindExerciseByName = %+v, want updated %s", found, first.ID)
	}
	if steps := ledger.DecodeInstructions(found.InstructionsData); len(steps) != 2 {
		t.Errorf("instructions = %v, want 2 steps", steps)
	}
	if _, err := s.FindExerciseByName(ctx, "Curl"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("FindExerciseByName(unknown) error = %v, want ErrNotFound", err)
	}

	mustSaveExercise(t, s, "Curl")
	list, err := s.ListExercises(ctx)
	if err != nil {
		t.Fatalf("ListExercises: %v", err)
	}
	if len(list) != 2 || list[0].Name != "Curl" {
		t.Errorf("ListExercises = %+v, want Curl first", list)
	}
}

func testDeleteExerciseNullsReferences(t *testing.T, s storage.Store) {
	ctx := context.Background()
	ex := mustSaveExercise(t, s, "Lunge")
	keep := mustSaveExercise(t, s, "Plank")

	w := newWorkout(base, &ex.ID, 40)
	if err := s.SaveWorkout(ctx, w); err != nil {
		t.Fatalf("SaveWorkout: %v", err)
	}
	pr := models.PersonalRecord{ID: uuid.New(), ExerciseID: &ex.ID, Weight: 40, Reps: 10, AchievedAt: base, WorkoutID: &w.ID}
	if err := s.InsertPersonalRecord(ctx, &pr); err != nil {
		t.Fatalf("InsertPersonalRecord: %v", err)
	}
	tpl := models.Template{ID: uuid.New(), Name: "Legs", Exercises: []models.TemplateExercise{
		{ID: uuid.New(), Order: 0, ExerciseID: ex.ID, DefaultSets: 3},
		{ID: uuid.New(), Order: 1, ExerciseID: keep.ID, DefaultSets: 2},
	}}
	if err := s.SaveTemplate(ctx, &tpl); err != nil {
		t.Fatalf("SaveTemplate: %v", err)
	}

	if err := s.DeleteExercise(ctx, ex.ID); err != nil {
		t.Fatalf("DeleteExercise: %v", err)
	}
	if err := s.DeleteExercise(ctx, ex.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("second DeleteExercise error = %v, want ErrNotFound", err)
	}

	got, err := s.GetWorkout(ctx, w.ID)
	if err != nil {
		t.Fatalf("GetWorkout: %v", err)
	}
	if got.Entries[0].ExerciseID != nil {
		t.Errorf("entry exercise = %v, want nil", got.Entries[0].ExerciseID)
	}
	if len(ledger.DecodeSets(got.Entries[0].SetsData)) != 1 {
		t.Error("entry sets were lost with the exercise")
	}

	gotTpl, err := s.GetTemplate(ctx, tpl.ID)
	if err != nil {
		t.Fatalf("GetTemplate: %v", err)
	}
	if len(gotTpl.Exercises) != 1 || gotTpl.Exercises[0].ExerciseID != keep.ID {
		t.Errorf("template exercises = %+v, want only %s", gotTpl.Exercises, keep.ID)
	}

	n, err := s.CountPersonalRecords(ctx)
	if err != nil {
		t.Fatalf("CountPersonalRecords: %v", err)
	}
	if n != 1 {
		t.Errorf("CountPersonalRecords = %d, want 1 (record kept without exercise)", n)
	}
}

func testTemplateRoundTrip(t *testing.T, s storage.Store) {
	ctx := context.Background()
	bench := mustSaveExercise(t, s, "Bench")
	fly := mustSaveExercise(t, s, "Fly")

	tpl := models.Template{ID: uuid.New(), Name: "Chest", Notes: "heavy", Exercises: []models.TemplateExercise{
		{ID: uuid.New(), Order: 1, ExerciseID: fly.ID, DefaultSets: 3, DefaultReps: intPtr(12)},
		{ID: uuid.New(), Order: 0, ExerciseID: bench.ID, DefaultSets: 5, DefaultReps: intPtr(5), DefaultWeight: floatPtr(100)},
	}}
	if err := s.SaveTemplate(ctx, &tpl); err != nil {
		t.Fatalf("SaveTemplate: %v", err)
	}

	got, err := s.GetTemplate(ctx, tpl.ID)
	if err != nil {
		t.Fatalf("GetTemplate: %v", err)
	}
	want := tpl
	want.Exercises = []models.TemplateExercise{tpl.Exercises[1], tpl.Exercises[0]}
	if diff := cmp.Diff(&want, got, cmpOpts...); diff != "" {
		t.Errorf("template mismatch (-want +got):\n%s", diff)
	}

	list, err := s.ListTemplates(ctx)
	if err != nil {
		t.Fatalf("ListTemplates: %v", err)
	}
	if len(list) != 1 || len(list[0].Exercises) != 2 {
		t.Errorf("ListTemplates = %+v, want one template with two exercises", list)
	}

	if err := s.DeleteTemplate(ctx, tpl.ID); err != nil {
		t.Fatalf("DeleteTemplate: %v", err)
	}
	if _, err := s.GetTemplate(ctx, tpl.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetTemplate after delete error = %v, want ErrNotFound", err)
	}
}
