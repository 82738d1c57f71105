package models

import (
	"time"

	"github.com/google/uuid"
)

// Workout is one training session. A workout with a nil CompletedAt is the
// active workout; at most one such row exists in the store.
type Workout struct {
	ID          uuid.UUID      `json:"id"`
	Name        string         `json:"name,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Notes       string         `json:"notes,omitempty"`
	Effort      *int           `json:"effort,omitempty"`
	TotalRest   *time.Duration `json:"total_rest,omitempty"`
	Entries     []WorkoutEntry `json:"entries"`
}

// IsActive reports whether the workout has not been finished yet.
func (w *Workout) IsActive() bool {
	return w.CompletedAt == nil
}

// Duration returns the wall time between start and completion, or between
// start and now for an active workout.
func (w *Workout) Duration(now time.Time) time.Duration {
	end := now
	if w.CompletedAt != nil {
		end = *w.CompletedAt
	}
	if end.Before(w.StartedAt) {
		return 0
	}
	return end.Sub(w.StartedAt)
}

// Entry returns a pointer to the entry with the given ID, or nil.
func (w *Workout) Entry(id uuid.UUID) *WorkoutEntry {
	for i := range w.Entries {
		if w.Entries[i].ID == id {
			return &w.Entries[i]
		}
	}
	return nil
}

// NextEntryOrder returns max(order)+1, or 0 for a workout without entries.
func (w *Workout) NextEntryOrder() int {
	next := 0
	for _, e := range w.Entries {
		if e.Order >= next {
			next = e.Order + 1
		}
	}
	return next
}

// Clone returns a deep copy so callers can hand workouts across the
// session boundary without sharing entry slices or blobs.
func (w *Workout) Clone() *Workout {
	if w == nil {
		return nil
	}
	c := *w
	if w.CompletedAt != nil {
		t := *w.CompletedAt
		c.CompletedAt = &t
	}
	if w.Effort != nil {
		e := *w.Effort
		c.Effort = &e
	}
	if w.TotalRest != nil {
		r := *w.TotalRest
		c.TotalRest = &r
	}
	c.Entries = make([]WorkoutEntry, len(w.Entries))
	for i, e := range w.Entries {
		c.Entries[i] = e.Clone()
	}
	return &c
}

// WorkoutEntry is one exercise slot inside a workout. Its sets are stored as
// a single serialized blob; use the ledger package to read or change them.
type WorkoutEntry struct {
	ID         uuid.UUID  `json:"id"`
	WorkoutID  uuid.UUID  `json:"workout_id"`
	Order      int        `json:"order"`
	ExerciseID *uuid.UUID `json:"exercise_id,omitempty"`
	SetsData   []byte     `json:"-"`
	Notes      string     `json:"notes,omitempty"`
}

// Clone returns a deep copy of the entry.
func (e WorkoutEntry) Clone() WorkoutEntry {
	c := e
	if e.ExerciseID != nil {
		id := *e.ExerciseID
		c.ExerciseID = &id
	}
	if e.SetsData != nil {
		c.SetsData = append([]byte(nil), e.SetsData...)
	}
	return c
}

// SetLabel tags a set with how it was performed.
type SetLabel string

const (
	LabelNone      SetLabel = ""
	LabelWarmup    SetLabel = "warmup"
	LabelFailure   SetLabel = "failure"
	LabelDropSet   SetLabel = "dropset"
	LabelPRAttempt SetLabel = "pr_attempt"
)

// Valid reports whether l is one of the known labels.
func (l SetLabel) Valid() bool {
	switch l {
	case LabelNone, LabelWarmup, LabelFailure, LabelDropSet, LabelPRAttempt:
		return true
	}
	return false
}

// SetRecord is a single logged set. Weight is always kilograms, duration is
// seconds and distance is meters, regardless of display preferences.
type SetRecord struct {
	ID          uuid.UUID `json:"id"`
	SetNumber   int       `json:"set_number"`
	Reps        *int      `json:"reps,omitempty"`
	Weight      *float64  `json:"weight,omitempty"`
	Duration    *float64  `json:"duration,omitempty"`
	Distance    *float64  `json:"distance,omitempty"`
	Equipment   string    `json:"equipment,omitempty"`
	Label       SetLabel  `json:"label,omitempty"`
	IsCompleted bool      `json:"is_completed"`
}

// PersonalRecord is an immutable record of the heaviest completed weight for
// an exercise at the time it was achieved. New records never replace old ones.
type PersonalRecord struct {
	ID         uuid.UUID  `json:"id"`
	ExerciseID *uuid.UUID `json:"exercise_id,omitempty"`
	Weight     float64    `json:"weight"`
	Reps       int        `json:"reps"`
	AchievedAt time.Time  `json:"achieved_at"`
	WorkoutID  *uuid.UUID `json:"workout_id,omitempty"`
}

// Beats reports whether r ranks above other: heavier wins, ties go to the
// more recent record.
func (r PersonalRecord) Beats(other PersonalRecord) bool {
	if r.Weight != other.Weight {
		return r.Weight > other.Weight
	}
	return r.AchievedAt.After(other.AchievedAt)
}
