package session

import (
	"encoding/json"
	"time"

	"github.com/claude/freelift/internal/ledger"
	"github.com/claude/freelift/internal/models"
	"github.com/claude/freelift/internal/resttimer"
	"github.com/google/uuid"
)

// Seconds is a duration that marshals as a number of seconds.
type Seconds time.Duration

func (s Seconds) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(s).Seconds())
}

func (s *Seconds) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*s = Seconds(f * float64(time.Second))
	return nil
}

// WorkoutView is a workout with its set blobs decoded, as served to clients.
type WorkoutView struct {
	ID          uuid.UUID   `json:"id"`
	Name        string      `json:"name,omitempty"`
	StartedAt   time.Time   `json:"started_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	Notes       string      `json:"notes,omitempty"`
	Effort      *int        `json:"effort,omitempty"`
	TotalRest   *Seconds    `json:"total_rest,omitempty"`
	Duration    Seconds     `json:"duration"`
	Entries     []EntryView `json:"entries"`
}

// EntryView is one exercise slot with its sets.
type EntryView struct {
	ID         uuid.UUID          `json:"id"`
	Order      int                `json:"order"`
	ExerciseID *uuid.UUID         `json:"exercise_id,omitempty"`
	Notes      string             `json:"notes,omitempty"`
	Sets       []models.SetRecord `json:"sets"`
}

// ViewOf renders w. now is used for the duration of an active workout.
func ViewOf(w *models.Workout, now time.Time) WorkoutView {
	v := WorkoutView{
		ID:          w.ID,
		Name:        w.Name,
		StartedAt:   w.StartedAt,
		CompletedAt: w.CompletedAt,
		Notes:       w.Notes,
		Effort:      w.Effort,
		Duration:    Seconds(w.Duration(now)),
		Entries:     make([]EntryView, 0, len(w.Entries)),
	}
	if w.TotalRest != nil {
		r := Seconds(*w.TotalRest)
		v.TotalRest = &r
	}
	for _, e := range w.Entries {
		v.Entries = append(v.Entries, EntryViewOf(e))
	}
	return v
}

// EntryViewOf renders one entry with its sets decoded.
func EntryViewOf(e models.WorkoutEntry) EntryView {
	sets := ledger.DecodeSets(e.SetsData)
	if sets == nil {
		sets = []models.SetRecord{}
	}
	return EntryView{
		ID:         e.ID,
		Order:      e.Order,
		ExerciseID: e.ExerciseID,
		Notes:      e.Notes,
		Sets:       sets,
	}
}

// RestView is the rest timer as served to clients.
type RestView struct {
	Total     Seconds    `json:"total"`
	Remaining Seconds    `json:"remaining"`
	Running   bool       `json:"running"`
	Complete  bool       `json:"complete"`
	Target    *time.Time `json:"target,omitempty"`
}

func restView(s resttimer.State) RestView {
	return RestView{
		Total:     Seconds(s.Total),
		Remaining: Seconds(s.Remaining),
		Running:   s.Running,
		Complete:  s.Complete,
		Target:    s.Target,
	}
}

// Snapshot is a consistent read of the whole session state.
type Snapshot struct {
	Active          bool                   `json:"active"`
	Workout         *WorkoutView           `json:"workout,omitempty"`
	Elapsed         Seconds                `json:"elapsed"`
	Rest            RestView               `json:"rest"`
	AccumulatedRest Seconds                `json:"accumulated_rest"`
	DefaultRest     Seconds                `json:"default_rest"`
	LatestPR        *models.PersonalRecord `json:"latest_pr,omitempty"`
	Unsaved         bool                   `json:"unsaved"`
}
