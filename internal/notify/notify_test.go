package notify

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type counting struct{ haptics, sounds int }

func (c *counting) Haptic(Event) { c.haptics++ }
func (c *counting) Sound(Event)  { c.sounds++ }

// TestMultiFansOut verifies every notifier in a Multi receives each cue.
func TestMultiFansOut(t *testing.T) {
	a, b := &counting{}, &counting{}
	m := Multi{a, b, Nop{}}
	m.Haptic(EventPersonalRecord)
	m.Sound(EventRestComplete)
	m.Haptic(EventRestComplete)

	for i, c := range []*counting{a, b} {
		if c.haptics != 2 || c.sounds != 1 {
			t.Errorf("notifier %d: haptics=%d sounds=%d, want 2 and 1", i, c.haptics, c.sounds)
		}
	}
}

// TestLogWritesEvent verifies the Log notifier records the event name.
func TestLogWritesEvent(t *testing.T) {
	var buf bytes.Buffer
	n := NewLog(slog.New(slog.NewTextHandler(&buf, nil)))
	n.Sound(EventRestComplete)

	out := buf.String()
	if !strings.Contains(out, "sound cue") || !strings.Contains(out, "event=rest_complete") {
		t.Errorf("log output = %q", out)
	}
}

// TestWebhookPostsJSON verifies the webhook delivers kind and event as JSON.
func TestWebhookPostsJSON(t *testing.T) {
	got := make(chan webhookPayload, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		var p webhookPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("decode: %v", err)
		}
		got <- p
	}))
	defer srv.Close()

	NewWebhook(srv.URL, slog.New(slog.NewTextHandler(io.Discard, nil))).Haptic(EventPersonalRecord)

	select {
	case p := <-got:
		if p.Kind != "haptic" || p.Event != EventPersonalRecord || p.At.IsZero() {
			t.Errorf("payload = %+v", p)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("webhook not delivered")
	}
}

// TestWebhookSwallowsFailures verifies an unreachable target neither blocks
// nor panics the caller.
func TestWebhookSwallowsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	w := NewWebhook(url, slog.New(slog.NewTextHandler(io.Discard, nil)))
	w.post("sound", EventRestComplete)
}
