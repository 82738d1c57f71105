// Package sqlite implements storage.Store on an embedded SQLite file, for
// single-user installs that do not run PostgreSQL.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/claude/freelift/internal/models"
	"github.com/claude/freelift/internal/storage"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Compile-time check: *Store satisfies storage.Store.
var _ storage.Store = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS exercises (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	category     TEXT NOT NULL DEFAULT '',
	equipment    TEXT NOT NULL DEFAULT '',
	instructions BLOB
);
CREATE UNIQUE INDEX IF NOT EXISTS exercises_name_idx ON exercises (lower(name));

CREATE TABLE IF NOT EXISTS workouts (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL DEFAULT '',
	started_at    TEXT NOT NULL,
	completed_at  TEXT,
	notes         TEXT NOT NULL DEFAULT '',
	effort        INTEGER CHECK (effort BETWEEN 1 AND 10),
	total_rest_ms INTEGER
);
CREATE INDEX IF NOT EXISTS workouts_started_at_idx ON workouts (started_at);

CREATE TABLE IF NOT EXISTS workout_entries (
	id          TEXT PRIMARY KEY,
	workout_id  TEXT NOT NULL REFERENCES workouts (id) ON DELETE CASCADE,
	position    INTEGER NOT NULL,
	exercise_id TEXT REFERENCES exercises (id) ON DELETE SET NULL,
	sets_data   BLOB,
	notes       TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS workout_entries_workout_idx ON workout_entries (workout_id, position);

CREATE TABLE IF NOT EXISTS personal_records (
	id          TEXT PRIMARY KEY,
	exercise_id TEXT REFERENCES exercises (id) ON DELETE SET NULL,
	weight      REAL NOT NULL,
	reps        INTEGER NOT NULL,
	achieved_at TEXT NOT NULL,
	workout_id  TEXT REFERENCES workouts (id) ON DELETE SET NULL
);
CREATE INDEX IF NOT EXISTS personal_records_exercise_idx ON personal_records (exercise_id, achieved_at);

CREATE TABLE IF NOT EXISTS templates (
	id    TEXT PRIMARY KEY,
	name  TEXT NOT NULL,
	notes TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS template_exercises (
	id             TEXT PRIMARY KEY,
	template_id    TEXT NOT NULL REFERENCES templates (id) ON DELETE CASCADE,
	position       INTEGER NOT NULL,
	exercise_id    TEXT NOT NULL REFERENCES exercises (id) ON DELETE CASCADE,
	default_sets   INTEGER NOT NULL DEFAULT 0,
	default_reps   INTEGER,
	default_weight REAL
);
CREATE INDEX IF NOT EXISTS template_exercises_template_idx ON template_exercises (template_id, position);
`

// Store is a SQLite-backed storage.Store.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema
// exists. The path ":memory:" gives a private in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database dir %s: %w", dir, err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	// One connection keeps foreign_keys and :memory: state consistent.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveWorkout upserts a workout and rewrites its entries in one transaction.
func (s *Store) SaveWorkout(ctx context.Context, w *models.Workout) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning workout save: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO workouts (id, name, started_at, completed_at, notes, effort, total_rest_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   name = excluded.name,
		   started_at = excluded.started_at,
		   completed_at = excluded.completed_at,
		   notes = excluded.notes,
		   effort = excluded.effort,
		   total_rest_ms = excluded.total_rest_ms`,
		w.ID.String(), w.Name, formatTime(w.StartedAt), formatTimePtr(w.CompletedAt),
		w.Notes, w.Effort, storage.RestToMillis(w.TotalRest))
	if err != nil {
		return fmt.Errorf("upserting workout: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM workout_entries WHERE workout_id = ?`, w.ID.String()); err != nil {
		return fmt.Errorf("clearing workout entries: %w", err)
	}

	if len(w.Entries) > 0 {
		query := `INSERT INTO workout_entries (id, workout_id, position, exercise_id, sets_data, notes) VALUES `
		args := make([]any, 0, len(w.Entries)*6)
		valueStrings := make([]string, 0, len(w.Entries))
		for _, e := range w.Entries {
			valueStrings = append(valueStrings, "(?, ?, ?, ?, ?, ?)")
			args = append(args, e.ID.String(), w.ID.String(), e.Order, uuidPtr(e.ExerciseID), e.SetsData, e.Notes)
		}
		query += strings.Join(valueStrings, ",")
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("inserting workout entries: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing workout save: %w", err)
	}
	return nil
}

// GetWorkout retrieves a single workout with its entries.
func (s *Store) GetWorkout(ctx context.Context, id uuid.UUID) (*models.Workout, error) {
	var w models.Workout
	var started string
	var completed sql.NullString
	var effort sql.NullInt64
	var restMs sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT name, started_at, completed_at, notes, effort, total_rest_ms FROM workouts WHERE id = ?`,
		id.String(),
	).Scan(&w.Name, &started, &completed, &w.Notes, &effort, &restMs)
	if err != nil {
		return nil, fmt.Errorf("querying workout: %w", notFound(err))
	}
	w.ID = id
	if err := fillWorkout(&w, started, completed, effort, restMs); err != nil {
		return nil, err
	}
	if w.Entries, err = s.entries(ctx, id); err != nil {
		return nil, err
	}
	return &w, nil
}

// DeleteWorkout removes a workout; entries go with it.
func (s *Store) DeleteWorkout(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM workouts WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("deleting workout: %w", err)
	}
	return requireRow(res)
}

// QueryWorkouts retrieves workouts matching the filter, newest first.
func (s *Store) QueryWorkouts(ctx context.Context, f storage.WorkoutFilter) ([]models.Workout, error) {
	where, args := workoutWhere(f)
	query := `SELECT id, name, started_at, completed_at, notes, effort, total_rest_ms FROM workouts` +
		where + ` ORDER BY started_at DESC, id`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying workouts: %w", err)
	}
	result := []models.Workout{}
	for rows.Next() {
		var w models.Workout
		var id, started string
		var completed sql.NullString
		var effort, restMs sql.NullInt64
		if err := rows.Scan(&id, &w.Name, &started, &completed, &w.Notes, &effort, &restMs); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning workout: %w", err)
		}
		if w.ID, err = uuid.Parse(id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("parsing workout id: %w", err)
		}
		if err := fillWorkout(&w, started, completed, effort, restMs); err != nil {
			rows.Close()
			return nil, err
		}
		result = append(result, w)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range result {
		if result[i].Entries, err = s.entries(ctx, result[i].ID); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// CountWorkouts counts workouts matching the filter. Limit is ignored.
func (s *Store) CountWorkouts(ctx context.Context, f storage.WorkoutFilter) (int, error) {
	where, args := workoutWhere(f)
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM workouts`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting workouts: %w", err)
	}
	return n, nil
}

func (s *Store) entries(ctx context.Context, workoutID uuid.UUID) ([]models.WorkoutEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, position, exercise_id, sets_data, notes FROM workout_entries
		 WHERE workout_id = ? ORDER BY position ASC`, workoutID.String())
	if err != nil {
		return nil, fmt.Errorf("querying workout entries: %w", err)
	}
	defer rows.Close()

	result := []models.WorkoutEntry{}
	for rows.Next() {
		var id string
		var exerciseID sql.NullString
		e := models.WorkoutEntry{WorkoutID: workoutID}
		if err := rows.Scan(&id, &e.Order, &exerciseID, &e.SetsData, &e.Notes); err != nil {
			return nil, fmt.Errorf("scanning workout entry: %w", err)
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parsing entry id: %w", err)
		}
		if e.ExerciseID, err = parseUUIDPtr(exerciseID); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func workoutWhere(f storage.WorkoutFilter) (string, []any) {
	var conds []string
	var args []any
	if !f.Start.IsZero() {
		conds = append(conds, "started_at >= ?")
		args = append(args, formatTime(f.Start))
	}
	if !f.End.IsZero() {
		conds = append(conds, "started_at < ?")
		args = append(args, formatTime(f.End))
	}
	switch f.Status {
	case storage.StatusActive:
		conds = append(conds, "completed_at IS NULL")
	case storage.StatusCompleted:
		conds = append(conds, "completed_at IS NOT NULL")
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func fillWorkout(w *models.Workout, started string, completed sql.NullString, effort, restMs sql.NullInt64) error {
	var err error
	if w.StartedAt, err = parseTime(started); err != nil {
		return err
	}
	if completed.Valid {
		t, err := parseTime(completed.String)
		if err != nil {
			return err
		}
		w.CompletedAt = &t
	}
	if effort.Valid {
		v := int(effort.Int64)
		w.Effort = &v
	}
	if restMs.Valid {
		w.TotalRest = storage.RestFromMillis(&restMs.Int64)
	}
	return nil
}

// InsertPersonalRecord inserts a new record row.
func (s *Store) InsertPersonalRecord(ctx context.Context, pr *models.PersonalRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO personal_records (id, exercise_id, weight, reps, achieved_at, workout_id)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		pr.ID.String(), uuidPtr(pr.ExerciseID), pr.Weight, pr.Reps, formatTime(pr.AchievedAt), uuidPtr(pr.WorkoutID))
	if err != nil {
		return fmt.Errorf("inserting personal record: %w", conflict(err))
	}
	return nil
}

// QueryPersonalRecords retrieves every record for an exercise, newest first.
func (s *Store) QueryPersonalRecords(ctx context.Context, exerciseID uuid.UUID) ([]models.PersonalRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, weight, reps, achieved_at, workout_id FROM personal_records
		 WHERE exercise_id = ? ORDER BY achieved_at DESC`, exerciseID.String())
	if err != nil {
		return nil, fmt.Errorf("querying personal records: %w", err)
	}
	defer rows.Close()

	var result []models.PersonalRecord
	for rows.Next() {
		var id, achieved string
		var workoutID sql.NullString
		pr := models.PersonalRecord{}
		if err := rows.Scan(&id, &pr.Weight, &pr.Reps, &achieved, &workoutID); err != nil {
			return nil, fmt.Errorf("scanning personal record: %w", err)
		}
		if pr.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parsing record id: %w", err)
		}
		if pr.AchievedAt, err = parseTime(achieved); err != nil {
			return nil, err
		}
		if pr.WorkoutID, err = parseUUIDPtr(workoutID); err != nil {
			return nil, err
		}
		ex := exerciseID
		pr.ExerciseID = &ex
		result = append(result, pr)
	}
	return result, rows.Err()
}

// CountPersonalRecords counts all stored records.
func (s *Store) CountPersonalRecords(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM personal_records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting personal records: %w", err)
	}
	return n, nil
}

// SaveExercise upserts a library exercise.
func (s *Store) SaveExercise(ctx context.Context, e *models.Exercise) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO exercises (id, name, category, equipment, instructions)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   name = excluded.name,
		   category = excluded.category,
		   equipment = excluded.equipment,
		   instructions = excluded.instructions`,
		e.ID.String(), e.Name, e.Category, e.Equipment, e.InstructionsData)
	if err != nil {
		return fmt.Errorf("upserting exercise: %w", conflict(err))
	}
	return nil
}

// GetExercise retrieves one exercise by ID.
func (s *Store) GetExercise(ctx context.Context, id uuid.UUID) (*models.Exercise, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, category, equipment, instructions FROM exercises WHERE id = ?`, id.String())
	e, err := scanExercise(row)
	if err != nil {
		return nil, fmt.Errorf("querying exercise: %w", notFound(err))
	}
	return e, nil
}

// FindExerciseByName retrieves an exercise by case-insensitive name.
func (s *Store) FindExerciseByName(ctx context.Context, name string) (*models.Exercise, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, category, equipment, instructions FROM exercises
		 WHERE lower(name) = lower(?) LIMIT 1`, name)
	e, err := scanExercise(row)
	if err != nil {
		return nil, fmt.Errorf("querying exercise by name: %w", notFound(err))
	}
	return e, nil
}

// ListExercises returns the whole library sorted by name.
func (s *Store) ListExercises(ctx context.Context) ([]models.Exercise, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, category, equipment, instructions FROM exercises ORDER BY lower(name)`)
	if err != nil {
		return nil, fmt.Errorf("querying exercises: %w", err)
	}
	defer rows.Close()

	var result []models.Exercise
	for rows.Next() {
		e, err := scanExercise(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning exercise: %w", err)
		}
		result = append(result, *e)
	}
	return result, rows.Err()
}

// DeleteExercise removes an exercise; foreign keys handle the references.
func (s *Store) DeleteExercise(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM exercises WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("deleting exercise: %w", err)
	}
	return requireRow(res)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExercise(row scanner) (*models.Exercise, error) {
	var e models.Exercise
	var id string
	if err := row.Scan(&id, &e.Name, &e.Category, &e.Equipment, &e.InstructionsData); err != nil {
		return nil, err
	}
	var err error
	if e.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parsing exercise id: %w", err)
	}
	return &e, nil
}

// SaveTemplate upserts a template and rewrites its exercise rows.
func (s *Store) SaveTemplate(ctx context.Context, t *models.Template) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning template save: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO templates (id, name, notes) VALUES (?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET name = excluded.name, notes = excluded.notes`,
		t.ID.String(), t.Name, t.Notes)
	if err != nil {
		return fmt.Errorf("upserting template: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM template_exercises WHERE template_id = ?`, t.ID.String()); err != nil {
		return fmt.Errorf("clearing template exercises: %w", err)
	}
	for _, te := range t.Exercises {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO template_exercises (id, template_id, position, exercise_id, default_sets, default_reps, default_weight)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			te.ID.String(), t.ID.String(), te.Order, te.ExerciseID.String(), te.DefaultSets, te.DefaultReps, te.DefaultWeight)
		if err != nil {
			return fmt.Errorf("inserting template exercise: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing template save: %w", err)
	}
	return nil
}

// GetTemplate retrieves one template with its exercises in order.
func (s *Store) GetTemplate(ctx context.Context, id uuid.UUID) (*models.Template, error) {
	t := models.Template{ID: id}
	err := s.db.QueryRowContext(ctx, `SELECT name, notes FROM templates WHERE id = ?`, id.String()).
		Scan(&t.Name, &t.Notes)
	if err != nil {
		return nil, fmt.Errorf("querying template: %w", notFound(err))
	}
	if t.Exercises, err = s.templateExercises(ctx, id); err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTemplates returns all templates sorted by name.
func (s *Store) ListTemplates(ctx context.Context) ([]models.Template, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, notes FROM templates ORDER BY lower(name)`)
	if err != nil {
		return nil, fmt.Errorf("querying templates: %w", err)
	}
	var result []models.Template
	for rows.Next() {
		var t models.Template
		var id string
		if err := rows.Scan(&id, &t.Name, &t.Notes); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning template: %w", err)
		}
		if t.ID, err = uuid.Parse(id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("parsing template id: %w", err)
		}
		result = append(result, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range result {
		if result[i].Exercises, err = s.templateExercises(ctx, result[i].ID); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// DeleteTemplate removes a template and its exercise rows.
func (s *Store) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM templates WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("deleting template: %w", err)
	}
	return requireRow(res)
}

func (s *Store) templateExercises(ctx context.Context, templateID uuid.UUID) ([]models.TemplateExercise, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, position, exercise_id, default_sets, default_reps, default_weight
		 FROM template_exercises WHERE template_id = ? ORDER BY position ASC`, templateID.String())
	if err != nil {
		return nil, fmt.Errorf("querying template exercises: %w", err)
	}
	defer rows.Close()

	result := []models.TemplateExercise{}
	for rows.Next() {
		var te models.TemplateExercise
		var id, exerciseID string
		var reps sql.NullInt64
		var weight sql.NullFloat64
		if err := rows.Scan(&id, &te.Order, &exerciseID, &te.DefaultSets, &reps, &weight); err != nil {
			return nil, fmt.Errorf("scanning template exercise: %w", err)
		}
		if te.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parsing template exercise id: %w", err)
		}
		if te.ExerciseID, err = uuid.Parse(exerciseID); err != nil {
			return nil, fmt.Errorf("parsing template exercise ref: %w", err)
		}
		if reps.Valid {
			v := int(reps.Int64)
			te.DefaultReps = &v
		}
		if weight.Valid {
			v := weight.Float64
			te.DefaultWeight = &v
		}
		result = append(result, te)
	}
	return result, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}

func uuidPtr(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

func parseUUIDPtr(s sql.NullString) (*uuid.UUID, error) {
	if !s.Valid {
		return nil, nil
	}
	id, err := uuid.Parse(s.String)
	if err != nil {
		return nil, fmt.Errorf("parsing uuid %q: %w", s.String, err)
	}
	return &id, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	return err
}

// conflict maps a SQLite uniqueness failure to storage.ErrConflict.
func conflict(err error) error {
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return storage.ErrConflict
	}
	return err
}
