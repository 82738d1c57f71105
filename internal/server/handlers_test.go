package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/claude/freelift/internal/clock"
	"github.com/claude/freelift/internal/ingest/alpha"
	"github.com/claude/freelift/internal/ledger"
	"github.com/claude/freelift/internal/models"
	"github.com/claude/freelift/internal/notify"
	"github.com/claude/freelift/internal/records"
	"github.com/claude/freelift/internal/session"
	"github.com/claude/freelift/internal/stats"
	"github.com/claude/freelift/internal/storage"
	"github.com/claude/freelift/internal/storage/memory"
)

const testAPIKey = "test-key-123"

type fixture struct {
	srv   *Server
	store *memory.Store
	clock *clock.Fake
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := clock.NewFake(time.Date(2026, 7, 3, 17, 30, 0, 0, time.UTC))
	store := memory.New()
	rec := records.New(store, c, log)
	refresher, err := stats.NewRefresher(store, c, "*/15 * * * *", log)
	if err != nil {
		t.Fatalf("NewRefresher: %v", err)
	}
	srv := New(Deps{
		Store:   store,
		Session: session.New(store, rec, c, notify.Nop{}, session.DefaultConfig(), log),
		Records: rec,
		Stats:   refresher,
		Alpha:   alpha.NewProvider(store, rec, log),
		Clock:   c,
	}, testAPIKey, log)
	return &fixture{srv: srv, store: store, clock: c}
}

// do sends a request and decodes a JSON response into out when out is not nil.
func (f *fixture) do(t *testing.T, method, path string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	if out != nil && rec.Code < 300 {
		if err := json.NewDecoder(rec.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Code
}

func (f *fixture) createExercise(t *testing.T, name string) exerciseView {
	t.Helper()
	var ex exerciseView
	rec := f.do(t, http.MethodPost, "/api/v1/exercises", map[string]any{
		"name":         name,
		"instructions": []string{"Set up", "Lift"},
	}, &ex)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create exercise status = %d", rec.Code)
	}
	return ex
}

// TestSessionFlow walks a whole workout through the API: start, add an
// exercise, complete a set that is a record, and finish.
func TestSessionFlow(t *testing.T) {
	f := newFixture(t)
	bench := f.createExercise(t, "Bench Press")
	if len(bench.Instructions) != 2 {
		t.Errorf("instructions = %v", bench.Instructions)
	}

	var started session.WorkoutView
	if rec := f.do(t, http.MethodPost, "/api/v1/session/start", map[string]any{"name": "Push"}, &started); rec.Code != http.StatusCreated {
		t.Fatalf("start status = %d", rec.Code)
	}

	rec := f.do(t, http.MethodPost, "/api/v1/session/start", nil, nil)
	if rec.Code != http.StatusConflict || errorCode(t, rec) != "workout_active" {
		t.Fatalf("second start = %d, want 409 workout_active", rec.Code)
	}

	var entry session.EntryView
	if rec := f.do(t, http.MethodPost, "/api/v1/session/entries", map[string]any{"exercise_id": bench.ID}, &entry); rec.Code != http.StatusCreated {
		t.Fatalf("add exercise status = %d", rec.Code)
	}
	if len(entry.Sets) != 1 {
		t.Fatalf("entry sets = %d, want 1", len(entry.Sets))
	}

	var result session.SetResult
	path := fmt.Sprintf("/api/v1/session/entries/%s/sets/%s", entry.ID, entry.Sets[0].ID)
	rec = f.do(t, http.MethodPut, path, map[string]any{
		"reps": 5, "weight": 100, "is_completed": true, "start_rest": true,
	}, &result)
	if rec.Code != http.StatusOK {
		t.Fatalf("update set status = %d", rec.Code)
	}
	if !result.Completed || result.Record == nil || result.Record.Weight != 100 || !result.RestStarted {
		t.Errorf("set result = %+v", result)
	}

	var snap session.Snapshot
	f.do(t, http.MethodGet, "/api/v1/session", nil, &snap)
	if !snap.Active || !snap.Rest.Running || snap.LatestPR == nil {
		t.Errorf("snapshot = %+v, want active with running rest and banner", snap)
	}

	f.clock.Advance(30 * time.Second)
	var finished session.WorkoutView
	if rec := f.do(t, http.MethodPost, "/api/v1/session/finish", map[string]any{"effort": 8}, &finished); rec.Code != http.StatusOK {
		t.Fatalf("finish status = %d", rec.Code)
	}
	if finished.CompletedAt == nil || finished.Effort == nil || *finished.Effort != 8 {
		t.Errorf("finished = %+v", finished)
	}
	if finished.TotalRest == nil || time.Duration(*finished.TotalRest) != 30*time.Second {
		t.Errorf("total rest = %v, want 30s", finished.TotalRest)
	}

	var history []session.WorkoutView
	f.do(t, http.MethodGet, "/api/v1/workouts?status=completed", nil, &history)
	if len(history) != 1 || history[0].ID != started.ID {
		t.Errorf("history = %+v", history)
	}

	var pr models.PersonalRecord
	f.do(t, http.MethodGet, "/api/v1/exercises/"+bench.ID.String()+"/pr", nil, &pr)
	if pr.Weight != 100 || pr.Reps != 5 {
		t.Errorf("pr = %+v, want 100x5", pr)
	}

	var summary stats.Summary
	f.do(t, http.MethodGet, "/api/v1/stats", nil, &summary)
	if summary.TotalWorkouts != 1 || summary.PersonalRecords != 1 {
		t.Errorf("stats = %+v", summary)
	}
}

// TestRefusalsAre409 verifies operations without an active workout and the
// last-set guard answer 409 with a machine-readable code.
func TestRefusalsAre409(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/session/rest/start", map[string]any{"seconds": 60}, nil)
	if rec.Code != http.StatusConflict || errorCode(t, rec) != "no_active_workout" {
		t.Fatalf("rest without workout = %d", rec.Code)
	}

	bench := f.createExercise(t, "Bench Press")
	f.do(t, http.MethodPost, "/api/v1/session/start", nil, nil)
	var entry session.EntryView
	f.do(t, http.MethodPost, "/api/v1/session/entries", map[string]any{"exercise_id": bench.ID}, &entry)

	path := fmt.Sprintf("/api/v1/session/entries/%s/sets/%s", entry.ID, entry.Sets[0].ID)
	rec = f.do(t, http.MethodDelete, path, nil, nil)
	if rec.Code != http.StatusConflict || errorCode(t, rec) != "last_set" {
		t.Fatalf("delete last set = %d, want 409 last_set", rec.Code)
	}

	rec = f.do(t, http.MethodDelete, "/api/v1/exercises/"+bench.ID.String(), nil, nil)
	if rec.Code != http.StatusConflict || errorCode(t, rec) != "exercise_in_use" {
		t.Fatalf("delete exercise in use = %d", rec.Code)
	}

	var snap session.Snapshot
	if rec := f.do(t, http.MethodDelete, path+"?confirm=true", nil, &snap); rec.Code != http.StatusOK {
		t.Fatalf("confirmed delete = %d", rec.Code)
	}
	if len(snap.Workout.Entries) != 0 {
		t.Errorf("entries = %d, want 0 after confirmed delete", len(snap.Workout.Entries))
	}
}

// TestNotFoundAndBadRequest verifies lookup and parse failures map to 404 and 400.
func TestNotFoundAndBadRequest(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/api/v1/workouts/5b0e1f3c-7c53-4d5a-9f7e-6a0f6f0c9a11", http.StatusNotFound},
		{http.MethodGet, "/api/v1/workouts/nope", http.StatusBadRequest},
		{http.MethodGet, "/api/v1/exercises/5b0e1f3c-7c53-4d5a-9f7e-6a0f6f0c9a11", http.StatusNotFound},
		{http.MethodDelete, "/api/v1/templates/5b0e1f3c-7c53-4d5a-9f7e-6a0f6f0c9a11", http.StatusNotFound},
		{http.MethodGet, "/api/v1/workouts?start=yesterday", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if rec := f.do(t, tt.method, tt.path, nil, nil); rec.Code != tt.want {
			t.Errorf("%s %s = %d, want %d", tt.method, tt.path, rec.Code, tt.want)
		}
	}
}

// TestStartFromTemplate verifies templates saved over the API seed a session.
func TestStartFromTemplate(t *testing.T) {
	f := newFixture(t)
	squat := f.createExercise(t, "Squat")

	var tpl models.Template
	rec := f.do(t, http.MethodPost, "/api/v1/templates", map[string]any{
		"name": "Legs",
		"exercises": []map[string]any{
			{"exercise_id": squat.ID, "default_sets": 3, "default_reps": 5, "default_weight": 120},
		},
	}, &tpl)
	if rec.Code != http.StatusCreated {
		t.Fatalf("save template = %d", rec.Code)
	}

	var w session.WorkoutView
	f.do(t, http.MethodPost, "/api/v1/session/start", map[string]any{"template_id": tpl.ID}, &w)
	if len(w.Entries) != 1 || len(w.Entries[0].Sets) != 3 || *w.Entries[0].Sets[2].Weight != 120 {
		t.Errorf("workout = %+v", w)
	}
}

// TestStatusOf verifies wrapped errors still map to the right status.
func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: finish: %w", session.ErrSaveFailed, errors.New("disk full")), http.StatusInternalServerError},
		{fmt.Errorf("loading exercise: %w", storage.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("moving set: %w", ledger.ErrIndexOutOfRange), http.StatusBadRequest},
		{storage.ErrConflict, http.StatusConflict},
		{session.ErrWorkoutCompleted, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got, _ := statusOf(tt.err); got != tt.want {
			t.Errorf("statusOf(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

const importCSV = `"Push · Day 1";"2026-06-01 18:00 h";"0:55 hr"
"1. Bench Press · Barbell · 6 reps"
#;KG;REPS;RIR
1;100;6;1
2;102,5;5;0
`

// TestAlphaImportRequiresAPIKey verifies the import endpoint checks the key
// and imports on success.
func TestAlphaImportRequiresAPIKey(t *testing.T) {
	f := newFixture(t)

	for _, tc := range []struct {
		key  string
		want int
	}{
		{"", http.StatusUnauthorized},
		{"wrong", http.StatusForbidden},
		{testAPIKey, http.StatusOK},
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/import/alpha", strings.NewReader(importCSV))
		if tc.key != "" {
			req.Header.Set("X-API-Key", tc.key)
		}
		rec := httptest.NewRecorder()
		f.srv.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Errorf("key %q: status = %d, want %d", tc.key, rec.Code, tc.want)
		}
	}

	n, err := f.store.CountWorkouts(context.Background(), storage.WorkoutFilter{Status: storage.StatusCompleted})
	if err != nil || n != 1 {
		t.Errorf("imported workouts = %d (%v), want 1", n, err)
	}
}

// TestMetricsEndpoint verifies the Prometheus handler is mounted.
func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/metrics", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "freelift_workouts_started_total") {
		t.Error("metrics output missing freelift counters")
	}
}

// TestHandleMeDefault verifies the /api/v1/me endpoint returns the dev user
// identity when no Tailscale middleware is active.
func TestHandleMeDefault(t *testing.T) {
	f := newFixture(t)
	var info UserInfo
	rec := f.do(t, http.MethodGet, "/api/v1/me", nil, &info)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if info.Login != "local" {
		t.Errorf("login = %q, want %q", info.Login, "local")
	}
	if info.DisplayName != "Local Dev User" {
		t.Errorf("display_name = %q, want %q", info.DisplayName, "Local Dev User")
	}
}
