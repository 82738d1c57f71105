package models

import "github.com/google/uuid"

// Exercise is an entry in the exercise library. Instructions are stored as a
// serialized list of steps; decode them with ledger.DecodeInstructions.
type Exercise struct {
	ID               uuid.UUID `json:"id"`
	Name             string    `json:"name"`
	Category         string    `json:"category,omitempty"`
	Equipment        string    `json:"equipment,omitempty"`
	InstructionsData []byte    `json:"-"`
}

// Template is a reusable named list of exercises with per-exercise defaults.
type Template struct {
	ID        uuid.UUID          `json:"id"`
	Name      string             `json:"name"`
	Notes     string             `json:"notes,omitempty"`
	Exercises []TemplateExercise `json:"exercises"`
}

// TemplateExercise holds the defaults cloned into a workout entry when a
// session is started from a template.
type TemplateExercise struct {
	ID            uuid.UUID `json:"id"`
	Order         int       `json:"order"`
	ExerciseID    uuid.UUID `json:"exercise_id"`
	DefaultSets   int       `json:"default_sets"`
	DefaultReps   *int      `json:"default_reps,omitempty"`
	DefaultWeight *float64  `json:"default_weight,omitempty"`
}
