package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/claude/freelift/internal/models"
	"github.com/claude/freelift/internal/session"
	"github.com/claude/freelift/internal/stats"
	"github.com/claude/freelift/internal/storage"
	"github.com/google/uuid"
)

// newTestServer creates an httptest server that routes requests to handler functions
// keyed by path. Verifies the HTTP client sends correct paths and query params.
func newTestServer(t *testing.T, handlers map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, ok := handlers[r.URL.Path]
		if !ok {
			t.Errorf("unexpected request path: %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
}

func writeTestJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Fatal(err)
	}
}

// TestQueryWorkouts verifies the time range and limit are sent and that
// durations in seconds decode back into views.
func TestQueryWorkouts(t *testing.T) {
	id := uuid.New()
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/workouts": func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("start"); got != "2026-01-01T00:00:00Z" {
				t.Errorf("start=%q", got)
			}
			if got := r.URL.Query().Get("limit"); got != "5" {
				t.Errorf("limit=%q, want 5", got)
			}
			rest := session.Seconds(90 * time.Second)
			writeTestJSON(t, w, []session.WorkoutView{{
				ID:        id,
				Name:      "Push",
				TotalRest: &rest,
				Duration:  session.Seconds(time.Hour),
			}})
		},
	})
	defer ts.Close()

	client := NewHTTPClient(ts.URL)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	workouts, err := client.QueryWorkouts(context.Background(), start, start.AddDate(0, 0, 7), 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(workouts) != 1 || workouts[0].ID != id {
		t.Fatalf("workouts = %+v", workouts)
	}
	if got := time.Duration(*workouts[0].TotalRest); got != 90*time.Second {
		t.Errorf("total rest = %v, want 90s", got)
	}
	if got := time.Duration(workouts[0].Duration); got != time.Hour {
		t.Errorf("duration = %v, want 1h", got)
	}
}

// TestGetWorkoutNotFound verifies a 404 maps onto storage.ErrNotFound so the
// tool can report it the same way for local and remote sources.
func TestGetWorkoutNotFound(t *testing.T) {
	id := uuid.New()
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/workouts/" + id.String(): func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"workout not found","code":"not_found"}`))
		},
	})
	defer ts.Close()

	_, err := NewHTTPClient(ts.URL).GetWorkout(context.Background(), id)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

// TestCurrentRecordNull verifies an exercise without a record decodes to nil.
func TestCurrentRecordNull(t *testing.T) {
	id := uuid.New()
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/exercises/" + id.String() + "/pr": func(w http.ResponseWriter, r *http.Request) {
			writeTestJSON(t, w, nil)
		},
	})
	defer ts.Close()

	pr, err := NewHTTPClient(ts.URL).CurrentRecord(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if pr != nil {
		t.Errorf("record = %+v, want nil", pr)
	}
}

// TestPersonalRecordsAndStats verifies list and struct responses decode.
func TestPersonalRecordsAndStats(t *testing.T) {
	ex := uuid.New()
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/exercises/" + ex.String() + "/prs": func(w http.ResponseWriter, r *http.Request) {
			writeTestJSON(t, w, []models.PersonalRecord{{ID: uuid.New(), ExerciseID: &ex, Weight: 140, Reps: 1}})
		},
		"/api/v1/stats": func(w http.ResponseWriter, r *http.Request) {
			writeTestJSON(t, w, stats.Summary{TotalWorkouts: 12, CurrentStreakDays: 3})
		},
	})
	defer ts.Close()

	client := NewHTTPClient(ts.URL)
	history, err := client.PersonalRecords(context.Background(), ex)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 || history[0].Weight != 140 {
		t.Errorf("history = %+v", history)
	}
	summary, err := client.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.TotalWorkouts != 12 || summary.CurrentStreakDays != 3 {
		t.Errorf("summary = %+v", summary)
	}
}

// TestServerError verifies non-200 responses surface the status code.
func TestServerError(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/session": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		},
	})
	defer ts.Close()

	if _, err := NewHTTPClient(ts.URL).ActiveSession(context.Background()); err == nil {
		t.Fatal("expected error for 500 response")
	}
}
