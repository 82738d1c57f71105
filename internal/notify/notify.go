// Package notify delivers fire-and-forget feedback cues (haptic pulses and
// audio) for personal records and rest-timer completion.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// Event identifies why a cue fired.
type Event string

const (
	EventPersonalRecord Event = "personal_record"
	EventRestComplete   Event = "rest_complete"
)

// Notifier plays cues. Implementations must not block the caller and must
// swallow their own failures.
type Notifier interface {
	Haptic(e Event)
	Sound(e Event)
}

// Nop discards every cue.
type Nop struct{}

func (Nop) Haptic(Event) {}
func (Nop) Sound(Event)  {}

// Log records cues in the structured log. It is the default for headless
// deployments where no device is attached.
type Log struct {
	log *slog.Logger
}

// NewLog creates a Log notifier.
func NewLog(log *slog.Logger) *Log {
	return &Log{log: log}
}

func (l *Log) Haptic(e Event) { l.log.Info("haptic cue", "event", string(e)) }
func (l *Log) Sound(e Event)  { l.log.Info("sound cue", "event", string(e)) }

// Multi fans cues out to several notifiers.
type Multi []Notifier

func (m Multi) Haptic(e Event) {
	for _, n := range m {
		n.Haptic(e)
	}
}

func (m Multi) Sound(e Event) {
	for _, n := range m {
		n.Sound(e)
	}
}

// Webhook posts cues as JSON to a URL (e.g. a push relay on the phone).
// Delivery is asynchronous and best-effort.
type Webhook struct {
	url        string
	httpClient *http.Client
	log        *slog.Logger
}

// NewWebhook creates a Webhook notifier targeting url.
func NewWebhook(url string, log *slog.Logger) *Webhook {
	return &Webhook{
		url:        url,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		log:        log,
	}
}

type webhookPayload struct {
	Kind  string    `json:"kind"`
	Event Event     `json:"event"`
	At    time.Time `json:"at"`
}

func (w *Webhook) Haptic(e Event) { go w.post("haptic", e) }
func (w *Webhook) Sound(e Event)  { go w.post("sound", e) }

func (w *Webhook) post(kind string, e Event) {
	body, err := json.Marshal(webhookPayload{Kind: kind, Event: e, At: time.Now()})
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), w.httpClient.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		w.log.Debug("webhook request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		w.log.Debug("webhook delivery failed", "event", string(e), "error", err)
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		w.log.Debug("webhook rejected", "event", string(e), "status", resp.StatusCode)
	}
}
