package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/claude/freelift/internal/ledger"
	"github.com/claude/freelift/internal/models"
	"github.com/claude/freelift/internal/session"
	"github.com/claude/freelift/internal/storage"
	"github.com/google/uuid"
)

var errExerciseInUse = errors.New("exercise is part of the active workout")

func (s *Server) handleQueryWorkouts(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseTimeRange(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	f := storage.WorkoutFilter{Start: start, End: end}
	switch r.URL.Query().Get("status") {
	case "active":
		f.Status = storage.StatusActive
	case "completed":
		f.Status = storage.StatusCompleted
	}
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			f.Limit = parsed
		}
	}

	workouts, err := s.store.QueryWorkouts(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	now := s.clock.Now()
	views := make([]session.WorkoutView, 0, len(workouts))
	for i := range workouts {
		views = append(views, session.ViewOf(&workouts[i], now))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetWorkout(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	workout, err := s.store.GetWorkout(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session.ViewOf(workout, s.clock.Now()))
}

// handleDeleteWorkout removes a finished workout from history. The active
// workout is discarded through cancel instead.
func (s *Server) handleDeleteWorkout(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if active := s.session.Active(); active != nil && active.ID == id {
		s.writeError(w, r, session.ErrWorkoutActive)
		return
	}
	if err := s.store.DeleteWorkout(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// exerciseView is an exercise with its instruction steps decoded.
type exerciseView struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Category     string    `json:"category,omitempty"`
	Equipment    string    `json:"equipment,omitempty"`
	Instructions []string  `json:"instructions"`
}

func viewExercise(e models.Exercise) exerciseView {
	steps := ledger.DecodeInstructions(e.InstructionsData)
	if steps == nil {
		steps = []string{}
	}
	return exerciseView{
		ID:           e.ID,
		Name:         e.Name,
		Category:     e.Category,
		Equipment:    e.Equipment,
		Instructions: steps,
	}
}

func (s *Server) handleListExercises(w http.ResponseWriter, r *http.Request) {
	exercises, err := s.store.ListExercises(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	views := make([]exerciseView, 0, len(exercises))
	for _, e := range exercises {
		views = append(views, viewExercise(e))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetExercise(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	e, err := s.store.GetExercise(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewExercise(*e))
}

// handleSaveExercise creates an exercise, or replaces it when the body
// carries an existing ID.
func (s *Server) handleSaveExercise(w http.ResponseWriter, r *http.Request) {
	var req exerciseView
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		s.writeError(w, r, badRequest("name is required"))
		return
	}
	data, err := ledger.EncodeInstructions(req.Instructions)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
		status = http.StatusCreated
	}
	e := &models.Exercise{
		ID:               req.ID,
		Name:             req.Name,
		Category:         req.Category,
		Equipment:        req.Equipment,
		InstructionsData: data,
	}
	if err := s.store.SaveExercise(r.Context(), e); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, status, viewExercise(*e))
}

// handleDeleteExercise removes an exercise. History keeps its entries and
// records with the reference cleared.
func (s *Server) handleDeleteExercise(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if active := s.session.Active(); active != nil {
		for _, e := range active.Entries {
			if e.ExerciseID != nil && *e.ExerciseID == id {
				s.writeError(w, r, errExerciseInUse)
				return
			}
		}
	}
	if err := s.store.DeleteExercise(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.records.Forget(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCurrentPR(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	pr, err := s.records.Current(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pr)
}

func (s *Server) handlePRHistory(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	history, err := s.records.History(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.store.ListTemplates(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if templates == nil {
		templates = []models.Template{}
	}
	writeJSON(w, http.StatusOK, templates)
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	t, err := s.store.GetTemplate(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// handleSaveTemplate creates or replaces a template. Missing IDs are
// generated and every referenced exercise must exist.
func (s *Server) handleSaveTemplate(w http.ResponseWriter, r *http.Request) {
	var t models.Template
	if err := decode(r, &t); err != nil {
		s.writeError(w, r, err)
		return
	}
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		s.writeError(w, r, badRequest("name is required"))
		return
	}
	status := http.StatusOK
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
		status = http.StatusCreated
	}
	for i := range t.Exercises {
		te := &t.Exercises[i]
		if te.ID == uuid.Nil {
			te.ID = uuid.New()
		}
		if te.DefaultSets < 0 {
			s.writeError(w, r, badRequest("default_sets must not be negative"))
			return
		}
		if _, err := s.store.GetExercise(r.Context(), te.ExerciseID); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	if t.Exercises == nil {
		t.Exercises = []models.TemplateExercise{}
	}
	if err := s.store.SaveTemplate(r.Context(), &t); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, status, t)
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.store.DeleteTemplate(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
