package session

import "errors"

// Refusals. Transports map these to 409 so the client can ask the user to
// confirm and retry.
var (
	// ErrWorkoutActive is returned when starting or resuming a workout while
	// a different one is active and discarding it was not confirmed.
	ErrWorkoutActive = errors.New("a workout is already active")
	// ErrNoActiveWorkout is returned by operations that need an active workout.
	ErrNoActiveWorkout = errors.New("no active workout")
	// ErrLastSet is returned when deleting the only set of an entry without
	// confirming that the whole exercise should go.
	ErrLastSet = errors.New("deleting the last set removes the exercise; confirmation required")
	// ErrWorkoutCompleted is returned when resuming a finished workout.
	ErrWorkoutCompleted = errors.New("workout is already completed")
)

var (
	// ErrEntryNotFound is returned when the active workout has no entry with
	// the given ID.
	ErrEntryNotFound = errors.New("entry not found")
	// ErrInvalidDuration is returned for rest durations <= 0.
	ErrInvalidDuration = errors.New("duration must be positive")
	// ErrInvalidEffort is returned for effort ratings outside 1..10.
	ErrInvalidEffort = errors.New("effort must be between 1 and 10")
	// ErrInvalidLabel is returned for unknown set labels.
	ErrInvalidLabel = errors.New("unknown set label")
)

// ErrSaveFailed wraps store errors. The in-memory session keeps the change
// and the next mutation saves the whole workout again.
var ErrSaveFailed = errors.New("saving workout failed")
