package storage

import (
	"context"
	"fmt"

	"github.com/claude/freelift/internal/models"
	"github.com/google/uuid"
)

// SaveTemplate upserts a template and rewrites its exercise rows.
func (db *DB) SaveTemplate(ctx context.Context, t *models.Template) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning template save: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO templates (id, name, notes) VALUES ($1,$2,$3)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, notes = EXCLUDED.notes`,
		t.ID, t.Name, t.Notes)
	if err != nil {
		return fmt.Errorf("upserting template: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM template_exercises WHERE template_id = $1`, t.ID); err != nil {
		return fmt.Errorf("clearing template exercises: %w", err)
	}
	for _, te := range t.Exercises {
		_, err := tx.Exec(ctx,
			`INSERT INTO template_exercises (id, template_id, position, exercise_id, default_sets, default_reps, default_weight)
			 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			te.ID, t.ID, te.Order, te.ExerciseID, te.DefaultSets, te.DefaultReps, te.DefaultWeight)
		if err != nil {
			return fmt.Errorf("inserting template exercise: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing template save: %w", err)
	}
	return nil
}

// GetTemplate retrieves one template with its exercises in order.
func (db *DB) GetTemplate(ctx context.Context, id uuid.UUID) (*models.Template, error) {
	var t models.Template
	err := db.Pool.QueryRow(ctx, `SELECT id, name, notes FROM templates WHERE id = $1`, id).
		Scan(&t.ID, &t.Name, &t.Notes)
	if err != nil {
		return nil, fmt.Errorf("querying template: %w", notFound(err))
	}
	if t.Exercises, err = db.templateExercises(ctx, t.ID); err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTemplates returns all templates sorted by name.
func (db *DB) ListTemplates(ctx context.Context) ([]models.Template, error) {
	rows, err := db.Pool.Query(ctx, `SELECT id, name, notes FROM templates ORDER BY lower(name)`)
	if err != nil {
		return nil, fmt.Errorf("querying templates: %w", err)
	}
	var result []models.Template
	for rows.Next() {
		var t models.Template
		if err := rows.Scan(&t.ID, &t.Name, &t.Notes); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning template: %w", err)
		}
		result = append(result, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range result {
		if result[i].Exercises, err = db.templateExercises(ctx, result[i].ID); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// DeleteTemplate removes a template and its exercise rows.
func (db *DB) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM templates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) templateExercises(ctx context.Context, templateID uuid.UUID) ([]models.TemplateExercise, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, position, exercise_id, default_sets, default_reps, default_weight
		 FROM template_exercises WHERE template_id = $1 ORDER BY position ASC`, templateID)
	if err != nil {
		return nil, fmt.Errorf("querying template exercises: %w", err)
	}
	defer rows.Close()

	result := []models.TemplateExercise{}
	for rows.Next() {
		var te models.TemplateExercise
		if err := rows.Scan(&te.ID, &te.Order, &te.ExerciseID, &te.DefaultSets, &te.DefaultReps, &te.DefaultWeight); err != nil {
			return nil, fmt.Errorf("scanning template exercise: %w", err)
		}
		result = append(result, te)
	}
	return result, rows.Err()
}
