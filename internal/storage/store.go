package storage

import (
	"context"
	"errors"
	"time"

	"github.com/claude/freelift/internal/models"
	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a write violates a uniqueness rule, such
	// as two exercises sharing a name.
	ErrConflict = errors.New("conflict")
)

// WorkoutStatus filters workouts by completion.
type WorkoutStatus int

const (
	StatusAny WorkoutStatus = iota
	StatusActive
	StatusCompleted
)

// WorkoutFilter selects workouts by start time and status. Zero times leave
// that side of the range open; Limit <= 0 means no limit.
type WorkoutFilter struct {
	Start  time.Time
	End    time.Time
	Status WorkoutStatus
	Limit  int
}

// Store is the persistence collaborator used by the session engine and the
// transports. Every method is atomic on its own. Backends live in this
// package (postgres), storage/sqlite and storage/memory.
//
// Relationship rules: deleting a workout cascades to its entries; deleting an
// exercise nulls the reference on entries and personal records (template
// rows for it are removed); deleting a workout nulls the reference on
// personal records.
type Store interface {
	// SaveWorkout upserts the workout and replaces its entries with exactly
	// the ones in w.Entries.
	SaveWorkout(ctx context.Context, w *models.Workout) error
	GetWorkout(ctx context.Context, id uuid.UUID) (*models.Workout, error)
	DeleteWorkout(ctx context.Context, id uuid.UUID) error
	// QueryWorkouts returns matching workouts with entries, newest first.
	QueryWorkouts(ctx context.Context, f WorkoutFilter) ([]models.Workout, error)
	CountWorkouts(ctx context.Context, f WorkoutFilter) (int, error)

	InsertPersonalRecord(ctx context.Context, pr *models.PersonalRecord) error
	// QueryPersonalRecords returns all records for an exercise, newest first.
	QueryPersonalRecords(ctx context.Context, exerciseID uuid.UUID) ([]models.PersonalRecord, error)
	CountPersonalRecords(ctx context.Context) (int, error)

	SaveExercise(ctx context.Context, e *models.Exercise) error
	GetExercise(ctx context.Context, id uuid.UUID) (*models.Exercise, error)
	// FindExerciseByName matches case-insensitively.
	FindExerciseByName(ctx context.Context, name string) (*models.Exercise, error)
	// ListExercises returns the library sorted by name.
	ListExercises(ctx context.Context) ([]models.Exercise, error)
	DeleteExercise(ctx context.Context, id uuid.UUID) error

	SaveTemplate(ctx context.Context, t *models.Template) error
	GetTemplate(ctx context.Context, id uuid.UUID) (*models.Template, error)
	ListTemplates(ctx context.Context) ([]models.Template, error)
	DeleteTemplate(ctx context.Context, id uuid.UUID) error

	Close() error
}

// Compile-time check: *DB satisfies Store.
var _ Store = (*DB)(nil)
