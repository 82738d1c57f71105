package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/claude/freelift/internal/ledger"
	"github.com/claude/freelift/internal/session"
	"github.com/claude/freelift/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// statusOf maps domain errors onto HTTP. Refusals are 409 so the client can
// confirm and retry; store failures are 500.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrWorkoutActive):
		return http.StatusConflict, "workout_active"
	case errors.Is(err, session.ErrNoActiveWorkout):
		return http.StatusConflict, "no_active_workout"
	case errors.Is(err, session.ErrLastSet):
		return http.StatusConflict, "last_set"
	case errors.Is(err, session.ErrWorkoutCompleted):
		return http.StatusConflict, "workout_completed"
	case errors.Is(err, errExerciseInUse):
		return http.StatusConflict, "exercise_in_use"
	case errors.Is(err, storage.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, session.ErrSaveFailed):
		return http.StatusInternalServerError, "save_failed"
	case errors.Is(err, session.ErrEntryNotFound),
		errors.Is(err, ledger.ErrSetNotFound),
		errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, session.ErrInvalidDuration),
		errors.Is(err, session.ErrInvalidEffort),
		errors.Is(err, session.ErrInvalidLabel),
		errors.Is(err, ledger.ErrIndexOutOfRange),
		errors.Is(err, ledger.ErrInvalidOrder),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "invalid"
	}
	return http.StatusInternalServerError, "internal"
}

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error(), Code: code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decode reads a JSON body. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	if r.ContentLength == 0 {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return badRequest("invalid JSON: %v", err)
	}
	return nil
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, badRequest("invalid %s", name)
	}
	return id, nil
}

// parseTimeRange reads optional start and end query parameters. A date-only
// end covers that whole day. Missing values leave the range open.
func parseTimeRange(r *http.Request) (start, end time.Time, err error) {
	if v := r.URL.Query().Get("start"); v != "" {
		start, err = time.Parse(time.RFC3339, v)
		if err != nil {
			start, err = time.Parse("2006-01-02", v)
			if err != nil {
				return time.Time{}, time.Time{}, badRequest("invalid start %q", v)
			}
		}
	}
	if v := r.URL.Query().Get("end"); v != "" {
		end, err = time.Parse(time.RFC3339, v)
		if err != nil {
			end, err = time.Parse("2006-01-02", v)
			if err != nil {
				return time.Time{}, time.Time{}, badRequest("invalid end %q", v)
			}
			// End of day for date-only
			end = end.Add(24 * time.Hour)
		}
	}
	return start, end, nil
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userInfoFromContext(r))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	summary := s.stats.Latest()
	if summary == nil {
		var err error
		if summary, err = s.stats.Refresh(r.Context()); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleAlphaImport(w http.ResponseWriter, r *http.Request) {
	result, err := s.alpha.Ingest(r.Context(), r.Body)
	if err != nil {
		s.log.Error("alpha import error", "error", err)
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "import_failed"})
		return
	}
	writeJSON(w, http.StatusOK, result)
}
