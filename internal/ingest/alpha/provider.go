package alpha

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/claude/freelift/internal/ingest"
	"github.com/claude/freelift/internal/ledger"
	"github.com/claude/freelift/internal/models"
	"github.com/claude/freelift/internal/records"
	"github.com/claude/freelift/internal/storage"
	"github.com/google/uuid"
)

// workoutNamespace seeds deterministic workout IDs so importing the same
// export twice does not duplicate sessions.
var workoutNamespace = uuid.MustParse("6f1c2a4e-8d0b-4c57-9a13-2b7e5d9f0c41")

// Provider imports Alpha Progression CSV exports as completed workouts.
type Provider struct {
	store   storage.Store
	records *records.Engine
	log     *slog.Logger
}

// NewProvider creates a new Alpha Progression ingest provider. Pass the same
// records engine the session manager uses so its cache stays current.
func NewProvider(store storage.Store, rec *records.Engine, log *slog.Logger) *Provider {
	return &Provider{store: store, records: rec, log: log}
}

// WorkoutID returns the ID an imported session is stored under.
func WorkoutID(s models.AlphaSession) uuid.UUID {
	return uuid.NewSHA1(workoutNamespace, []byte(s.Name+"|"+s.Date.Format("2006-01-02 15:04")))
}

// Ingest parses a CSV export and stores each session not seen before as a
// completed workout. Sessions are processed oldest first so personal records
// are detected in the order they were achieved.
func (p *Provider) Ingest(ctx context.Context, r io.Reader) (*ingest.Result, error) {
	sessions, err := Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing CSV: %w", err)
	}
	slices.SortStableFunc(sessions, func(a, b models.AlphaSession) int {
		return a.Date.Compare(b.Date)
	})

	result := &ingest.Result{WorkoutsReceived: len(sessions)}
	exercises := map[string]uuid.UUID{}

	for _, s := range sessions {
		for _, ex := range s.Exercises {
			result.SetsReceived += len(ex.Sets)
		}

		id := WorkoutID(s)
		_, err := p.store.GetWorkout(ctx, id)
		if err == nil {
			result.WorkoutsSkipped++
			continue
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return result, fmt.Errorf("checking session %s: %w", s.Date.Format("2006-01-02"), err)
		}

		w, err := p.workout(ctx, id, s, exercises, result)
		if err != nil {
			return result, err
		}
		if err := p.store.SaveWorkout(ctx, w); err != nil {
			return result, fmt.Errorf("saving session %s: %w", s.Date.Format("2006-01-02"), err)
		}
		result.WorkoutsInserted++

		if err := p.detect(ctx, w, result); err != nil {
			return result, err
		}
	}

	result.Message = fmt.Sprintf("imported %d of %d sessions", result.WorkoutsInserted, result.WorkoutsReceived)
	p.log.Info("alpha import complete",
		"received", result.WorkoutsReceived,
		"inserted", result.WorkoutsInserted,
		"skipped", result.WorkoutsSkipped,
		"records", result.RecordsCreated,
	)
	return result, nil
}

func (p *Provider) workout(ctx context.Context, id uuid.UUID, s models.AlphaSession, exercises map[string]uuid.UUID, result *ingest.Result) (*models.Workout, error) {
	completed := s.Date.Add(s.Length)
	w := &models.Workout{
		ID:          id,
		Name:        s.Name,
		StartedAt:   s.Date,
		CompletedAt: &completed,
	}
	for i, ex := range s.Exercises {
		exID, err := p.exercise(ctx, ex, exercises, result)
		if err != nil {
			return nil, err
		}
		data, err := ledger.EncodeSets(convertSets(ex))
		if err != nil {
			return nil, fmt.Errorf("encoding sets for %s: %w", ex.Name, err)
		}
		result.SetsInserted += len(ex.Sets)
		w.Entries = append(w.Entries, models.WorkoutEntry{
			ID:         uuid.New(),
			WorkoutID:  id,
			Order:      i,
			ExerciseID: &exID,
			SetsData:   data,
			Notes:      ex.Modifiers,
		})
	}
	return w, nil
}

// exercise finds the library exercise by name, creating it when missing.
func (p *Provider) exercise(ctx context.Context, ex models.AlphaExercise, seen map[string]uuid.UUID, result *ingest.Result) (uuid.UUID, error) {
	key := strings.ToLower(ex.Name)
	if id, ok := seen[key]; ok {
		return id, nil
	}
	found, err := p.store.FindExerciseByName(ctx, ex.Name)
	switch {
	case err == nil:
		seen[key] = found.ID
		return found.ID, nil
	case !errors.Is(err, storage.ErrNotFound):
		return uuid.Nil, fmt.Errorf("looking up exercise %q: %w", ex.Name, err)
	}

	created := &models.Exercise{ID: uuid.New(), Name: ex.Name, Equipment: ex.Equipment}
	if err := p.store.SaveExercise(ctx, created); err != nil {
		return uuid.Nil, fmt.Errorf("creating exercise %q: %w", ex.Name, err)
	}
	result.ExercisesCreated++
	seen[key] = created.ID
	return created.ID, nil
}

func (p *Provider) detect(ctx context.Context, w *models.Workout, result *ingest.Result) error {
	for _, e := range w.Entries {
		for _, set := range ledger.DecodeSets(e.SetsData) {
			if set.Label == models.LabelWarmup || !records.Qualifies(set) {
				continue
			}
			pr, err := p.records.DetectAt(ctx, *e.ExerciseID, *set.Weight, *set.Reps, &w.ID, *w.CompletedAt)
			if err != nil {
				return fmt.Errorf("detecting records for %s: %w", w.Name, err)
			}
			if pr != nil {
				result.RecordsCreated++
			}
		}
	}
	return nil
}

// convertSets maps parsed sets onto set records. Every imported set is
// complete; warm-ups keep their label and a zero RIR marks failure.
func convertSets(ex models.AlphaExercise) []models.SetRecord {
	out := make([]models.SetRecord, 0, len(ex.Sets))
	for i, s := range ex.Sets {
		reps := s.Reps
		weight := s.WeightKg
		rec := models.SetRecord{
			ID:          uuid.New(),
			SetNumber:   i + 1,
			Reps:        &reps,
			Weight:      &weight,
			IsCompleted: true,
		}
		switch {
		case s.IsWarmup:
			rec.Label = models.LabelWarmup
		case s.RIR == 0:
			rec.Label = models.LabelFailure
		}
		if s.IsBodyweightPlus {
			rec.Equipment = "bodyweight"
		}
		out = append(out, rec)
	}
	return out
}
