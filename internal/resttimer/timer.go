// Package resttimer implements the countdown shown between sets.
//
// Remaining time is never decremented per tick. Each tick (and each read)
// recomputes it as target-now, so a process that was suspended for a while
// shows the correct value on its first tick after resuming.
package resttimer

import (
	"time"

	"github.com/claude/freelift/internal/clock"
	"github.com/claude/freelift/internal/notify"
)

// State is a point-in-time view of the timer.
type State struct {
	Total     time.Duration `json:"total"`
	Remaining time.Duration `json:"remaining"`
	Running   bool          `json:"running"`
	Complete  bool          `json:"complete"`
	Target    *time.Time    `json:"target,omitempty"`
}

// Timer is a wall-clock anchored countdown. It is not safe for concurrent
// use; the session manager serializes access.
type Timer struct {
	clock      clock.Clock
	notifier   notify.Notifier
	onComplete func(at time.Time)

	total     time.Duration
	remaining time.Duration
	running   bool
	complete  bool
	target    time.Time
}

// New creates an idle timer displaying defaultDuration.
func New(c clock.Clock, n notify.Notifier, defaultDuration time.Duration) *Timer {
	if n == nil {
		n = notify.Nop{}
	}
	return &Timer{clock: c, notifier: n, total: defaultDuration}
}

// OnComplete registers fn to run once per natural completion. at is the
// instant the countdown actually reached zero.
func (t *Timer) OnComplete(fn func(at time.Time)) {
	t.onComplete = fn
}

// Start begins a countdown of d from now, replacing any running countdown.
func (t *Timer) Start(d time.Duration) {
	now := t.clock.Now()
	t.total = d
	t.target = now.Add(d)
	t.remaining = d
	t.running = true
	t.complete = false
	t.recompute(now)
}

// Add extends a running countdown by d. A countdown whose target already
// passed completes instead of being extended.
func (t *Timer) Add(d time.Duration) {
	if !t.running {
		return
	}
	now := t.clock.Now()
	if t.recompute(now) {
		return
	}
	t.target = t.target.Add(d)
	t.total += d
	t.recompute(now)
}

// Subtract shortens a running countdown by d. If that would move the target
// into the past, the timer completes immediately.
func (t *Timer) Subtract(d time.Duration) {
	if !t.running {
		return
	}
	now := t.clock.Now()
	if t.recompute(now) {
		return
	}
	target := t.target.Add(-d)
	if !target.After(now) {
		t.total -= t.target.Sub(now)
		t.target = now
		t.finish(now)
		return
	}
	t.target = target
	t.total -= d
	t.recompute(now)
}

// Stop cancels the countdown without marking it complete (the user skipped
// the rest).
func (t *Timer) Stop() {
	t.running = false
	t.remaining = 0
	t.target = time.Time{}
}

// Tick recomputes the remaining time and reports whether this call observed
// the natural completion.
func (t *Timer) Tick() bool {
	if !t.running {
		return false
	}
	return t.recompute(t.clock.Now())
}

// Remaining recomputes and returns the time left.
func (t *Timer) Remaining() time.Duration {
	t.Tick()
	return t.remaining
}

// Elapsed returns how much of the current countdown has been used.
func (t *Timer) Elapsed() time.Duration {
	if !t.running {
		return 0
	}
	t.Tick()
	return t.total - t.remaining
}

// Running reports whether a countdown is in progress.
func (t *Timer) Running() bool { return t.running }

// Total returns the displayed total duration.
func (t *Timer) Total() time.Duration { return t.total }

// SetDefault changes the displayed total while idle. A running countdown is
// not affected.
func (t *Timer) SetDefault(d time.Duration) {
	if t.running {
		return
	}
	t.total = d
}

// State returns a snapshot after recomputing.
func (t *Timer) State() State {
	t.Tick()
	s := State{
		Total:     t.total,
		Remaining: t.remaining,
		Running:   t.running,
		Complete:  t.complete,
	}
	if !t.target.IsZero() {
		target := t.target
		s.Target = &target
	}
	return s
}

func (t *Timer) recompute(now time.Time) bool {
	left := t.target.Sub(now)
	if left > 0 {
		t.remaining = left
		return false
	}
	t.finish(t.target)
	return true
}

func (t *Timer) finish(at time.Time) {
	t.remaining = 0
	t.running = false
	t.complete = true
	t.notifier.Haptic(notify.EventRestComplete)
	t.notifier.Sound(notify.EventRestComplete)
	if t.onComplete != nil {
		t.onComplete(at)
	}
}
