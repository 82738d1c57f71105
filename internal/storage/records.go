package storage

import (
	"context"
	"fmt"

	"github.com/claude/freelift/internal/models"
	"github.com/google/uuid"
)

// InsertPersonalRecord inserts a new record row. Existing rows are never updated.
func (db *DB) InsertPersonalRecord(ctx context.Context, pr *models.PersonalRecord) error {
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO personal_records (id, exercise_id, weight, reps, achieved_at, workout_id)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		pr.ID, pr.ExerciseID, pr.Weight, pr.Reps, pr.AchievedAt, pr.WorkoutID)
	if err != nil {
		return fmt.Errorf("inserting personal record: %w", conflict(err))
	}
	return nil
}

// QueryPersonalRecords retrieves every record for an exercise, newest first.
func (db *DB) QueryPersonalRecords(ctx context.Context, exerciseID uuid.UUID) ([]models.PersonalRecord, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, exercise_id, weight, reps, achieved_at, workout_id
		 FROM personal_records
		 WHERE exercise_id = $1
		 ORDER BY achieved_at DESC`,
		exerciseID)
	if err != nil {
		return nil, fmt.Errorf("querying personal records: %w", err)
	}
	defer rows.Close()

	var result []models.PersonalRecord
	for rows.Next() {
		var pr models.PersonalRecord
		if err := rows.Scan(&pr.ID, &pr.ExerciseID, &pr.Weight, &pr.Reps, &pr.AchievedAt, &pr.WorkoutID); err != nil {
			return nil, fmt.Errorf("scanning personal record: %w", err)
		}
		result = append(result, pr)
	}
	return result, rows.Err()
}

// CountPersonalRecords counts all stored records.
func (db *DB) CountPersonalRecords(ctx context.Context) (int, error) {
	var n int
	if err := db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM personal_records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting personal records: %w", err)
	}
	return n, nil
}
