package upload

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/claude/freelift/internal/ingest"
)

const export = `"Push";"2026-02-19 4:54 h";"1:02 hr"
"1. Bench Press · Barbell · 8 reps"
#;KG;REPS;RIR
1;100;8;2
`

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeExport(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func importServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/import/alpha" || r.Header.Get("X-API-Key") != "secret" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		calls.Add(1)
		json.NewEncoder(w).Encode(ingest.Result{WorkoutsReceived: 1, WorkoutsInserted: 1, RecordsCreated: 1})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRunSkipsAlreadyUploaded(t *testing.T) {
	dir := t.TempDir()
	writeExport(t, dir, "2026-02-19.csv", export)
	writeExport(t, dir, "notes.txt", "not an export")

	state, err := OpenStateDB(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer state.Close()

	var calls atomic.Int32
	srv := importServer(t, &calls)
	client := NewClient(srv.URL, "secret")

	stats, err := New(client, state, dir, false, discard()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.FilesTotal != 1 || stats.FilesUploaded != 1 || stats.WorkoutsInserted != 1 || stats.RecordsCreated != 1 {
		t.Errorf("first run stats = %+v", stats)
	}

	stats, err = New(client, state, dir, false, discard()).Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if stats.FilesSkipped != 1 || stats.FilesUploaded != 0 {
		t.Errorf("second run stats = %+v, want the file skipped", stats)
	}
	if calls.Load() != 1 {
		t.Errorf("server called %d times, want 1", calls.Load())
	}

	// Changed content is sent again.
	writeExport(t, dir, "2026-02-19.csv", export+"2;102,5;6;1\n")
	stats, err = New(client, state, dir, false, discard()).Run(context.Background())
	if err != nil {
		t.Fatalf("third Run: %v", err)
	}
	if stats.FilesUploaded != 1 || calls.Load() != 2 {
		t.Errorf("changed file not re-sent: stats = %+v, calls = %d", stats, calls.Load())
	}
}

func TestRunDryRunSendsNothing(t *testing.T) {
	dir := t.TempDir()
	writeExport(t, dir, "a.csv", export)
	writeExport(t, dir, "broken.csv", "1;100;8;2\n")

	state, err := OpenStateDB(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer state.Close()

	stats, err := New(nil, state, dir, true, discard()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.SessionsParsed != 1 || stats.FilesErrored != 1 || stats.FilesUploaded != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestSendRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(ingest.Result{WorkoutsInserted: 2})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k")
	c.backoff = time.Millisecond
	result, err := c.SendAlphaExport(context.Background(), []byte(export))
	if err != nil {
		t.Fatalf("SendAlphaExport: %v", err)
	}
	if result.WorkoutsInserted != 2 || calls.Load() != 3 {
		t.Errorf("result = %+v after %d calls", result, calls.Load())
	}
}

func TestSendDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":"invalid API key"}`, http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "wrong")
	c.backoff = time.Millisecond
	if _, err := c.SendAlphaExport(context.Background(), []byte(export)); err == nil {
		t.Fatal("expected error for 403")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}
