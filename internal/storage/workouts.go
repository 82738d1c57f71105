package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/claude/freelift/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SaveWorkout upserts a workout and rewrites its entries in one transaction.
func (db *DB) SaveWorkout(ctx context.Context, w *models.Workout) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning workout save: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO workouts (id, name, started_at, completed_at, notes, effort, total_rest_ms)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)
		 ON CONFLICT (id) DO UPDATE SET
		   name = EXCLUDED.name,
		   started_at = EXCLUDED.started_at,
		   completed_at = EXCLUDED.completed_at,
		   notes = EXCLUDED.notes,
		   effort = EXCLUDED.effort,
		   total_rest_ms = EXCLUDED.total_rest_ms`,
		w.ID, w.Name, w.StartedAt, w.CompletedAt, w.Notes, w.Effort, RestToMillis(w.TotalRest))
	if err != nil {
		return fmt.Errorf("upserting workout: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM workout_entries WHERE workout_id = $1`, w.ID); err != nil {
		return fmt.Errorf("clearing workout entries: %w", err)
	}

	if len(w.Entries) > 0 {
		query := `INSERT INTO workout_entries (id, workout_id, position, exercise_id, sets_data, notes) VALUES `
		args := make([]any, 0, len(w.Entries)*6)
		valueStrings := make([]string, 0, len(w.Entries))

		for i, e := range w.Entries {
			base := i * 6
			valueStrings = append(valueStrings, fmt.Sprintf(
				"($%d,$%d,$%d,$%d,$%d,$%d)",
				base+1, base+2, base+3, base+4, base+5, base+6,
			))
			args = append(args, e.ID, w.ID, e.Order, e.ExerciseID, e.SetsData, e.Notes)
		}

		query += strings.Join(valueStrings, ",")
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("inserting workout entries: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing workout save: %w", err)
	}
	return nil
}

// GetWorkout retrieves a single workout with its entries.
func (db *DB) GetWorkout(ctx context.Context, id uuid.UUID) (*models.Workout, error) {
	rows, err := db.Pool.Query(ctx, workoutSelect+` WHERE w.id = $1`+workoutOrder, id)
	if err != nil {
		return nil, fmt.Errorf("querying workout: %w", err)
	}
	defer rows.Close()

	workouts, err := scanWorkoutRows(rows)
	if err != nil {
		return nil, err
	}
	if len(workouts) == 0 {
		return nil, ErrNotFound
	}
	return &workouts[0], nil
}

// DeleteWorkout removes a workout; entries go with it.
func (db *DB) DeleteWorkout(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM workouts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting workout: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// QueryWorkouts retrieves workouts matching the filter, newest first.
func (db *DB) QueryWorkouts(ctx context.Context, f WorkoutFilter) ([]models.Workout, error) {
	where, args := workoutWhere(f)
	inner := `SELECT * FROM workouts` + where + ` ORDER BY started_at DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		inner += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := db.Pool.Query(ctx,
		`SELECT w.id, w.name, w.started_at, w.completed_at, w.notes, w.effort, w.total_rest_ms,
		 e.id, e.position, e.exercise_id, e.sets_data, e.notes
		 FROM (`+inner+`) w
		 LEFT JOIN workout_entries e ON e.workout_id = w.id`+workoutOrder,
		args...)
	if err != nil {
		return nil, fmt.Errorf("querying workouts: %w", err)
	}
	defer rows.Close()

	return scanWorkoutRows(rows)
}

// CountWorkouts counts workouts matching the filter. Limit is ignored.
func (db *DB) CountWorkouts(ctx context.Context, f WorkoutFilter) (int, error) {
	where, args := workoutWhere(f)
	var n int
	if err := db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM workouts`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting workouts: %w", err)
	}
	return n, nil
}

const workoutSelect = `SELECT w.id, w.name, w.started_at, w.completed_at, w.notes, w.effort, w.total_rest_ms,
	 e.id, e.position, e.exercise_id, e.sets_data, e.notes
	 FROM workouts w
	 LEFT JOIN workout_entries e ON e.workout_id = w.id`

const workoutOrder = ` ORDER BY w.started_at DESC, w.id, e.position ASC`

func workoutWhere(f WorkoutFilter) (string, []any) {
	var conds []string
	var args []any
	if !f.Start.IsZero() {
		args = append(args, f.Start)
		conds = append(conds, fmt.Sprintf("started_at >= $%d", len(args)))
	}
	if !f.End.IsZero() {
		args = append(args, f.End)
		conds = append(conds, fmt.Sprintf("started_at < $%d", len(args)))
	}
	switch f.Status {
	case StatusActive:
		conds = append(conds, "completed_at IS NULL")
	case StatusCompleted:
		conds = append(conds, "completed_at IS NOT NULL")
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// scanWorkoutRows folds joined workout/entry rows into workouts, keeping the
// row order of the query.
func scanWorkoutRows(rows pgx.Rows) ([]models.Workout, error) {
	var result []models.Workout
	index := map[uuid.UUID]int{}

	for rows.Next() {
		var (
			w          models.Workout
			restMs     *int64
			entryID    *uuid.UUID
			position   *int
			exerciseID *uuid.UUID
			setsData   []byte
			entryNotes *string
		)
		if err := rows.Scan(&w.ID, &w.Name, &w.StartedAt, &w.CompletedAt, &w.Notes, &w.Effort, &restMs,
			&entryID, &position, &exerciseID, &setsData, &entryNotes); err != nil {
			return nil, fmt.Errorf("scanning workout: %w", err)
		}

		i, ok := index[w.ID]
		if !ok {
			w.TotalRest = RestFromMillis(restMs)
			w.Entries = []models.WorkoutEntry{}
			result = append(result, w)
			i = len(result) - 1
			index[w.ID] = i
		}
		if entryID == nil {
			continue
		}
		e := models.WorkoutEntry{
			ID:         *entryID,
			WorkoutID:  w.ID,
			ExerciseID: exerciseID,
			SetsData:   setsData,
		}
		if position != nil {
			e.Order = *position
		}
		if entryNotes != nil {
			e.Notes = *entryNotes
		}
		result[i].Entries = append(result[i].Entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range result {
		SortEntries(result[i].Entries)
	}
	return result, nil
}
