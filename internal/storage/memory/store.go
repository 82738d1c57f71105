// Package memory provides an in-memory implementation of storage.Store used
// for tests and ephemeral runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/claude/freelift/internal/models"
	"github.com/claude/freelift/internal/storage"
	"github.com/google/uuid"
)

// Compile-time check: *Store satisfies storage.Store.
var _ storage.Store = (*Store)(nil)

// Store keeps every entity in maps guarded by a single mutex. Values are
// copied on the way in and out so callers never share memory with the store.
type Store struct {
	mu        sync.RWMutex
	workouts  map[uuid.UUID]*models.Workout
	records   map[uuid.UUID]models.PersonalRecord
	exercises map[uuid.UUID]models.Exercise
	templates map[uuid.UUID]models.Template
}

// New returns an empty store.
func New() *Store {
	return &Store{
		workouts:  map[uuid.UUID]*models.Workout{},
		records:   map[uuid.UUID]models.PersonalRecord{},
		exercises: map[uuid.UUID]models.Exercise{},
		templates: map[uuid.UUID]models.Template{},
	}
}

func (s *Store) SaveWorkout(_ context.Context, w *models.Workout) error {
	c := w.Clone()
	for i := range c.Entries {
		c.Entries[i].WorkoutID = c.ID
	}
	storage.SortEntries(c.Entries)

	s.mu.Lock()
	s.workouts[c.ID] = c
	s.mu.Unlock()
	return nil
}

func (s *Store) GetWorkout(_ context.Context, id uuid.UUID) (*models.Workout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.workouts[id]
	if !ok {
		return nil, fmt.Errorf("workout %s: %w", id, storage.ErrNotFound)
	}
	return w.Clone(), nil
}

func (s *Store) DeleteWorkout(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.workouts[id]; !ok {
		return fmt.Errorf("workout %s: %w", id, storage.ErrNotFound)
	}
	delete(s.workouts, id)
	for rid, r := range s.records {
		if r.WorkoutID != nil && *r.WorkoutID == id {
			r.WorkoutID = nil
			s.records[rid] = r
		}
	}
	return nil
}

func (s *Store) QueryWorkouts(_ context.Context, f storage.WorkoutFilter) ([]models.Workout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []models.Workout{}
	for _, w := range s.workouts {
		if matches(w, f) {
			result = append(result, *w.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].StartedAt.Equal(result[j].StartedAt) {
			return result[i].StartedAt.After(result[j].StartedAt)
		}
		return result[i].ID.String() < result[j].ID.String()
	})
	if f.Limit > 0 && len(result) > f.Limit {
		result = result[:f.Limit]
	}
	return result, nil
}

func (s *Store) CountWorkouts(_ context.Context, f storage.WorkoutFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, w := range s.workouts {
		if matches(w, f) {
			n++
		}
	}
	return n, nil
}

func matches(w *models.Workout, f storage.WorkoutFilter) bool {
	if !f.Start.IsZero() && w.StartedAt.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() && !w.StartedAt.Before(f.End) {
		return false
	}
	switch f.Status {
	case storage.StatusActive:
		return w.CompletedAt == nil
	case storage.StatusCompleted:
		return w.CompletedAt != nil
	}
	return true
}

func (s *Store) InsertPersonalRecord(_ context.Context, pr *models.PersonalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[pr.ID]; ok {
		return fmt.Errorf("personal record %s: %w", pr.ID, storage.ErrConflict)
	}
	s.records[pr.ID] = copyRecord(*pr)
	return nil
}

func (s *Store) QueryPersonalRecords(_ context.Context, exerciseID uuid.UUID) ([]models.PersonalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.PersonalRecord
	for _, r := range s.records {
		if r.ExerciseID != nil && *r.ExerciseID == exerciseID {
			result = append(result, copyRecord(r))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].AchievedAt.After(result[j].AchievedAt)
	})
	return result, nil
}

func (s *Store) CountPersonalRecords(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

func (s *Store) SaveExercise(_ context.Context, e *models.Exercise) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, other := range s.exercises {
		if id != e.ID && strings.EqualFold(other.Name, e.Name) {
			return fmt.Errorf("exercise %q: %w", e.Name, storage.ErrConflict)
		}
	}
	c := *e
	c.InstructionsData = append([]byte(nil), e.InstructionsData...)
	s.exercises[e.ID] = c
	return nil
}

func (s *Store) GetExercise(_ context.Context, id uuid.UUID) (*models.Exercise, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.exercises[id]
	if !ok {
		return nil, fmt.Errorf("exercise %s: %w", id, storage.ErrNotFound)
	}
	return &e, nil
}

func (s *Store) FindExerciseByName(_ context.Context, name string) (*models.Exercise, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.exercises {
		if strings.EqualFold(e.Name, name) {
			return &e, nil
		}
	}
	return nil, fmt.Errorf("exercise %q: %w", name, storage.ErrNotFound)
}

func (s *Store) ListExercises(_ context.Context) ([]models.Exercise, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]models.Exercise, 0, len(s.exercises))
	for _, e := range s.exercises {
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool {
		return strings.ToLower(result[i].Name) < strings.ToLower(result[j].Name)
	})
	return result, nil
}

// DeleteExercise removes the exercise, nulls references from entries and
// records and drops template rows that used it.
func (s *Store) DeleteExercise(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.exercises[id]; !ok {
		return fmt.Errorf("exercise %s: %w", id, storage.ErrNotFound)
	}
	delete(s.exercises, id)

	for _, w := range s.workouts {
		for i := range w.Entries {
			if ref := w.Entries[i].ExerciseID; ref != nil && *ref == id {
				w.Entries[i].ExerciseID = nil
			}
		}
	}
	for rid, r := range s.records {
		if r.ExerciseID != nil && *r.ExerciseID == id {
			r.ExerciseID = nil
			s.records[rid] = r
		}
	}
	for tid, t := range s.templates {
		kept := t.Exercises[:0:0]
		for _, te := range t.Exercises {
			if te.ExerciseID != id {
				kept = append(kept, te)
			}
		}
		t.Exercises = kept
		s.templates[tid] = t
	}
	return nil
}

func (s *Store) SaveTemplate(_ context.Context, t *models.Template) error {
	c := *t
	c.Exercises = append([]models.TemplateExercise{}, t.Exercises...)
	storage.SortTemplateExercises(c.Exercises)

	s.mu.Lock()
	s.templates[t.ID] = c
	s.mu.Unlock()
	return nil
}

func (s *Store) GetTemplate(_ context.Context, id uuid.UUID) (*models.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.templates[id]
	if !ok {
		return nil, fmt.Errorf("template %s: %w", id, storage.ErrNotFound)
	}
	t.Exercises = append([]models.TemplateExercise{}, t.Exercises...)
	return &t, nil
}

func (s *Store) ListTemplates(_ context.Context) ([]models.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]models.Template, 0, len(s.templates))
	for _, t := range s.templates {
		t.Exercises = append([]models.TemplateExercise{}, t.Exercises...)
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool {
		return strings.ToLower(result[i].Name) < strings.ToLower(result[j].Name)
	})
	return result, nil
}

func (s *Store) DeleteTemplate(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.templates[id]; !ok {
		return fmt.Errorf("template %s: %w", id, storage.ErrNotFound)
	}
	delete(s.templates, id)
	return nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

func copyRecord(r models.PersonalRecord) models.PersonalRecord {
	if r.ExerciseID != nil {
		id := *r.ExerciseID
		r.ExerciseID = &id
	}
	if r.WorkoutID != nil {
		id := *r.WorkoutID
		r.WorkoutID = &id
	}
	return r
}
