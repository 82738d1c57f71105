package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/claude/freelift/internal/ledger"
	"github.com/claude/freelift/internal/models"
	"github.com/claude/freelift/internal/session"
	"github.com/google/uuid"
)

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}

// respondSnapshot answers a successful mutation with the full session state.
func (s *Server) respondSnapshot(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	s.respondSnapshot(w)
}

type startRequest struct {
	TemplateID      *uuid.UUID `json:"template_id"`
	DiscardExisting bool       `json:"discard_existing"`
	Name            string     `json:"name"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	workout, err := s.session.Start(r.Context(), session.StartOptions{
		TemplateID:      req.TemplateID,
		DiscardExisting: req.DiscardExisting,
		Name:            req.Name,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session.ViewOf(workout, s.clock.Now()))
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	workout, err := s.session.Resume(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session.ViewOf(workout, s.clock.Now()))
}

type finishRequest struct {
	Name   *string `json:"name"`
	Notes  *string `json:"notes"`
	Effort *int    `json:"effort"`
}

func (s *Server) handleFinish(w http.ResponseWriter, r *http.Request) {
	var req finishRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	workout, err := s.session.Finish(r.Context(), session.FinishOptions{
		Name:   req.Name,
		Notes:  req.Notes,
		Effort: req.Effort,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session.ViewOf(workout, s.clock.Now()))
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Cancel(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type detailsRequest struct {
	Name  *string `json:"name"`
	Notes *string `json:"notes"`
}

func (s *Server) handleUpdateDetails(w http.ResponseWriter, r *http.Request) {
	var req detailsRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.session.UpdateDetails(r.Context(), session.DetailsUpdate{Name: req.Name, Notes: req.Notes}); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondSnapshot(w)
}

type restRequest struct {
	Seconds float64 `json:"seconds"`
}

func (s *Server) handleStartRest(w http.ResponseWriter, r *http.Request) {
	var req restRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Seconds < 0 {
		s.writeError(w, r, session.ErrInvalidDuration)
		return
	}
	if err := s.session.StartRest(seconds(req.Seconds)); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondSnapshot(w)
}

func (s *Server) handleStopRest(w http.ResponseWriter, r *http.Request) {
	if err := s.session.StopRest(); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondSnapshot(w)
}

func (s *Server) handleAdjustRest(w http.ResponseWriter, r *http.Request) {
	var req restRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.session.AdjustRest(seconds(req.Seconds)); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondSnapshot(w)
}

func (s *Server) handleDefaultRest(w http.ResponseWriter, r *http.Request) {
	var req restRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.session.SetDefaultRest(seconds(req.Seconds)); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondSnapshot(w)
}

type addExerciseRequest struct {
	ExerciseID uuid.UUID `json:"exercise_id"`
}

func (s *Server) handleAddExercise(w http.ResponseWriter, r *http.Request) {
	var req addExerciseRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.ExerciseID == uuid.Nil {
		s.writeError(w, r, badRequest("exercise_id is required"))
		return
	}
	entry, err := s.session.AddExercise(r.Context(), req.ExerciseID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session.EntryViewOf(*entry))
}

func (s *Server) handleRemoveExercise(w http.ResponseWriter, r *http.Request) {
	entryID, err := uuidParam(r, "entryID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.session.RemoveExercise(r.Context(), entryID); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondSnapshot(w)
}

type moveRequest struct {
	From int `json:"from"`
	To   int `json:"to"`
}

func (s *Server) handleMoveExercise(w http.ResponseWriter, r *http.Request) {
	entryID, err := uuidParam(r, "entryID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req moveRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.session.MoveExercise(r.Context(), entryID, req.To); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondSnapshot(w)
}

type entryNotesRequest struct {
	Notes string `json:"notes"`
}

func (s *Server) handleEntryNotes(w http.ResponseWriter, r *http.Request) {
	entryID, err := uuidParam(r, "entryID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req entryNotesRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.session.UpdateEntryNotes(r.Context(), entryID, req.Notes); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondSnapshot(w)
}

func (s *Server) handleAddSet(w http.ResponseWriter, r *http.Request) {
	entryID, err := uuidParam(r, "entryID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	set, err := s.session.AddSet(r.Context(), entryID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, set)
}

type updateSetRequest struct {
	Reps        *int            `json:"reps"`
	Weight      *float64        `json:"weight"`
	Duration    *float64        `json:"duration"`
	Distance    *float64        `json:"distance"`
	Equipment   string          `json:"equipment"`
	Label       models.SetLabel `json:"label"`
	IsCompleted bool            `json:"is_completed"`
	// StartRest starts the rest timer when this update completes the set.
	StartRest   bool    `json:"start_rest"`
	RestSeconds float64 `json:"rest_seconds"`
}

func (s *Server) handleUpdateSet(w http.ResponseWriter, r *http.Request) {
	entryID, err := uuidParam(r, "entryID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	setID, err := uuidParam(r, "setID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req updateSetRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.session.UpdateSet(r.Context(), entryID, setID, ledger.Values{
		Reps:        req.Reps,
		Weight:      req.Weight,
		Duration:    req.Duration,
		Distance:    req.Distance,
		Equipment:   req.Equipment,
		Label:       req.Label,
		IsCompleted: req.IsCompleted,
	}, session.UpdateOptions{StartRest: req.StartRest, RestDuration: seconds(req.RestSeconds)})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDeleteSet(w http.ResponseWriter, r *http.Request) {
	entryID, err := uuidParam(r, "entryID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	setID, err := uuidParam(r, "setID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	confirm, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	if _, err := s.session.DeleteSet(r.Context(), entryID, setID, confirm); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondSnapshot(w)
}

func (s *Server) handleMoveSet(w http.ResponseWriter, r *http.Request) {
	entryID, err := uuidParam(r, "entryID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req moveRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	sets, err := s.session.MoveSet(r.Context(), entryID, req.From, req.To)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sets)
}

type reorderRequest struct {
	IDs []uuid.UUID `json:"ids"`
}

func (s *Server) handleReorderSets(w http.ResponseWriter, r *http.Request) {
	entryID, err := uuidParam(r, "entryID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req reorderRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	sets, err := s.session.ReorderSets(r.Context(), entryID, req.IDs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sets)
}
