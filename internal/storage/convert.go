package storage

import (
	"sort"
	"time"

	"github.com/claude/freelift/internal/models"
)

// RestToMillis converts an optional rest total to the stored column value.
func RestToMillis(d *time.Duration) *int64 {
	if d == nil {
		return nil
	}
	ms := d.Milliseconds()
	return &ms
}

// RestFromMillis converts the stored column value back to a duration.
func RestFromMillis(ms *int64) *time.Duration {
	if ms == nil {
		return nil
	}
	d := time.Duration(*ms) * time.Millisecond
	return &d
}

// SortEntries orders entries by their position within the workout.
func SortEntries(entries []models.WorkoutEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Order < entries[j].Order
	})
}

// SortTemplateExercises orders template exercises by position.
func SortTemplateExercises(exercises []models.TemplateExercise) {
	sort.SliceStable(exercises, func(i, j int) bool {
		return exercises[i].Order < exercises[j].Order
	})
}
