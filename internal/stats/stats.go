// Package stats computes dashboard numbers over workout history. It only
// reads from the store and never touches the active session.
package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/claude/freelift/internal/ledger"
	"github.com/claude/freelift/internal/storage"
)

// Summary is a point-in-time aggregate of completed workouts.
type Summary struct {
	TotalWorkouts     int        `json:"total_workouts"`
	WorkoutsThisWeek  int        `json:"workouts_this_week"`
	CurrentStreakDays int        `json:"current_streak_days"`
	LongestStreakDays int        `json:"longest_streak_days"`
	TotalSets         int        `json:"total_sets"`
	TotalVolumeKg     float64    `json:"total_volume_kg"`
	TotalRestSeconds  float64    `json:"total_rest_seconds"`
	PersonalRecords   int        `json:"personal_records"`
	LastWorkoutAt     *time.Time `json:"last_workout_at,omitempty"`
	ComputedAt        time.Time  `json:"computed_at"`
}

// Compute aggregates every completed workout. Days and weeks are calendar
// days in now's location; weeks start on Monday. The current streak counts
// consecutive training days ending today or yesterday.
func Compute(ctx context.Context, store storage.Store, now time.Time) (*Summary, error) {
	workouts, err := store.QueryWorkouts(ctx, storage.WorkoutFilter{Status: storage.StatusCompleted})
	if err != nil {
		return nil, fmt.Errorf("loading workouts: %w", err)
	}
	prs, err := store.CountPersonalRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting personal records: %w", err)
	}

	loc := now.Location()
	weekStart := startOfWeek(now)
	s := &Summary{
		TotalWorkouts:   len(workouts),
		PersonalRecords: prs,
		ComputedAt:      now,
	}

	days := map[time.Time]bool{}
	for _, w := range workouts {
		started := w.StartedAt.In(loc)
		days[dayOf(started)] = true
		if !started.Before(weekStart) {
			s.WorkoutsThisWeek++
		}
		if s.LastWorkoutAt == nil || w.StartedAt.After(*s.LastWorkoutAt) {
			t := w.StartedAt
			s.LastWorkoutAt = &t
		}
		if w.TotalRest != nil {
			s.TotalRestSeconds += w.TotalRest.Seconds()
		}
		for _, e := range w.Entries {
			for _, set := range ledger.DecodeSets(e.SetsData) {
				if !set.IsCompleted {
					continue
				}
				s.TotalSets++
				if set.Weight != nil && set.Reps != nil {
					s.TotalVolumeKg += *set.Weight * float64(*set.Reps)
				}
			}
		}
	}

	s.CurrentStreakDays, s.LongestStreakDays = streaks(days, dayOf(now.In(loc)))
	return s, nil
}

// streaks returns the current and longest runs of consecutive days.
func streaks(days map[time.Time]bool, today time.Time) (current, longest int) {
	for d := range days {
		if days[d.AddDate(0, 0, -1)] {
			continue
		}
		n := 0
		for day := d; days[day]; day = day.AddDate(0, 0, 1) {
			n++
		}
		if n > longest {
			longest = n
		}
	}

	start := today
	if !days[start] {
		start = today.AddDate(0, 0, -1)
	}
	for day := start; days[day]; day = day.AddDate(0, 0, -1) {
		current++
	}
	return current, longest
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func startOfWeek(t time.Time) time.Time {
	day := dayOf(t)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}
