package ingest

// Result holds the outcome of an import.
type Result struct {
	WorkoutsReceived int `json:"workouts_received"`
	WorkoutsInserted int `json:"workouts_inserted"`
	WorkoutsSkipped  int `json:"workouts_skipped"`

	ExercisesCreated int `json:"exercises_created"`

	SetsReceived int `json:"sets_received"`
	SetsInserted int `json:"sets_inserted"`

	RecordsCreated int `json:"records_created"`

	Message string `json:"message,omitempty"`
}
