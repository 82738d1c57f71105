package storage

import (
	"context"
	"fmt"

	"github.com/claude/freelift/internal/models"
	"github.com/google/uuid"
)

// SaveExercise upserts a library exercise.
func (db *DB) SaveExercise(ctx context.Context, e *models.Exercise) error {
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO exercises (id, name, category, equipment, instructions)
		 VALUES ($1,$2,$3,$4,$5)
		 ON CONFLICT (id) DO UPDATE SET
		   name = EXCLUDED.name,
		   category = EXCLUDED.category,
		   equipment = EXCLUDED.equipment,
		   instructions = EXCLUDED.instructions`,
		e.ID, e.Name, e.Category, e.Equipment, e.InstructionsData)
	if err != nil {
		return fmt.Errorf("upserting exercise: %w", conflict(err))
	}
	return nil
}

// GetExercise retrieves one exercise by ID.
func (db *DB) GetExercise(ctx context.Context, id uuid.UUID) (*models.Exercise, error) {
	var e models.Exercise
	err := db.Pool.QueryRow(ctx,
		`SELECT id, name, category, equipment, instructions FROM exercises WHERE id = $1`, id,
	).Scan(&e.ID, &e.Name, &e.Category, &e.Equipment, &e.InstructionsData)
	if err != nil {
		return nil, fmt.Errorf("querying exercise: %w", notFound(err))
	}
	return &e, nil
}

// FindExerciseByName retrieves an exercise by case-insensitive name.
func (db *DB) FindExerciseByName(ctx context.Context, name string) (*models.Exercise, error) {
	var e models.Exercise
	err := db.Pool.QueryRow(ctx,
		`SELECT id, name, category, equipment, instructions FROM exercises
		 WHERE lower(name) = lower($1) LIMIT 1`, name,
	).Scan(&e.ID, &e.Name, &e.Category, &e.Equipment, &e.InstructionsData)
	if err != nil {
		return nil, fmt.Errorf("querying exercise by name: %w", notFound(err))
	}
	return &e, nil
}

// ListExercises returns the whole library sorted by name.
func (db *DB) ListExercises(ctx context.Context) ([]models.Exercise, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, name, category, equipment, instructions FROM exercises ORDER BY lower(name)`)
	if err != nil {
		return nil, fmt.Errorf("querying exercises: %w", err)
	}
	defer rows.Close()

	var result []models.Exercise
	for rows.Next() {
		var e models.Exercise
		if err := rows.Scan(&e.ID, &e.Name, &e.Category, &e.Equipment, &e.InstructionsData); err != nil {
			return nil, fmt.Errorf("scanning exercise: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// DeleteExercise removes an exercise. Foreign keys null the reference on
// entries and personal records and drop template rows that used it.
func (db *DB) DeleteExercise(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM exercises WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting exercise: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
