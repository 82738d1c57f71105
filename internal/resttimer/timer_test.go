package resttimer

import (
	"testing"
	"time"

	"github.com/claude/freelift/internal/clock"
	"github.com/claude/freelift/internal/notify"
)

var t0 = time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

type countingNotifier struct {
	haptics, sounds int
}

func (c *countingNotifier) Haptic(notify.Event) { c.haptics++ }
func (c *countingNotifier) Sound(notify.Event)  { c.sounds++ }

func newTimer() (*Timer, *clock.Fake, *countingNotifier) {
	clk := clock.NewFake(t0)
	n := &countingNotifier{}
	return New(clk, n, 90*time.Second), clk, n
}

// TestRemainingFromWallClock verifies remaining time is derived from the
// target instant: start(90) plus 30s of wall time leaves 60s.
func TestRemainingFromWallClock(t *testing.T) {
	tm, clk, _ := newTimer()
	tm.Start(90 * time.Second)
	clk.Advance(30 * time.Second)

	if got := tm.Remaining(); got != 60*time.Second {
		t.Errorf("Remaining = %v, want 60s", got)
	}
	if !tm.Running() {
		t.Error("timer should still be running")
	}
}

// TestSuspendedProcessCatchesUp verifies that a long gap with no ticks (a
// suspended process) is reflected by a single recompute.
func TestSuspendedProcessCatchesUp(t *testing.T) {
	tm, clk, n := newTimer()
	tm.Start(90 * time.Second)
	tm.Tick()
	clk.Advance(10 * time.Minute)

	if !tm.Tick() {
		t.Fatal("first tick after resume should observe completion")
	}
	st := tm.State()
	if !st.Complete || st.Running || st.Remaining != 0 {
		t.Errorf("state = %+v, want complete, stopped, 0 remaining", st)
	}
	if n.haptics != 1 || n.sounds != 1 {
		t.Errorf("cues = %d haptic / %d sound, want 1/1", n.haptics, n.sounds)
	}
}

// TestCompletionFiresOnce verifies repeated ticks after completion do not
// repeat the side effect or the completion callback.
func TestCompletionFiresOnce(t *testing.T) {
	tm, clk, n := newTimer()
	var calls int
	var at time.Time
	tm.OnComplete(func(when time.Time) {
		calls++
		at = when
	})
	tm.Start(60 * time.Second)
	clk.Advance(75 * time.Second)

	for i := 0; i < 5; i++ {
		tm.Tick()
	}
	if calls != 1 {
		t.Errorf("OnComplete calls = %d, want 1", calls)
	}
	if !at.Equal(t0.Add(60 * time.Second)) {
		t.Errorf("completion instant = %v, want target %v", at, t0.Add(60*time.Second))
	}
	if n.haptics != 1 || n.sounds != 1 {
		t.Errorf("cues = %d/%d, want 1/1", n.haptics, n.sounds)
	}
}

// TestSubtractPastZeroCompletes verifies subtract(90) right after start(90)
// completes instead of going negative.
func TestSubtractPastZeroCompletes(t *testing.T) {
	tm, _, n := newTimer()
	tm.Start(90 * time.Second)
	tm.Subtract(90 * time.Second)

	st := tm.State()
	if !st.Complete {
		t.Error("Complete = false, want true")
	}
	if st.Running {
		t.Error("Running = true, want false")
	}
	if st.Remaining != 0 {
		t.Errorf("Remaining = %v, want 0", st.Remaining)
	}
	if n.haptics != 1 {
		t.Errorf("haptics = %d, want 1", n.haptics)
	}
}

// TestAdjustAfterSuspendedCompletion verifies that an adjustment arriving
// after the target passed unobserved completes the countdown at its target
// instead of reviving it or stretching the total.
func TestAdjustAfterSuspendedCompletion(t *testing.T) {
	for _, tc := range []struct {
		name   string
		adjust func(*Timer)
	}{
		{"add", func(tm *Timer) { tm.Add(30 * time.Second) }},
		{"subtract", func(tm *Timer) { tm.Subtract(10 * time.Second) }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			tm, clk, n := newTimer()
			var completedAt time.Time
			tm.OnComplete(func(at time.Time) { completedAt = at })
			tm.Start(90 * time.Second)
			clk.Advance(100 * time.Second)

			tc.adjust(tm)

			st := tm.State()
			if !st.Complete || st.Running {
				t.Errorf("state = %+v, want complete and stopped", st)
			}
			if st.Total != 90*time.Second {
				t.Errorf("Total = %v, want 90s", st.Total)
			}
			if want := t0.Add(90 * time.Second); !completedAt.Equal(want) {
				t.Errorf("completed at %v, want %v", completedAt, want)
			}
			if n.haptics != 1 || n.sounds != 1 {
				t.Errorf("cues = %d/%d, want 1/1", n.haptics, n.sounds)
			}
		})
	}
}

// TestAddAndSubtractShiftTarget verifies adjustments move the target.
func TestAddAndSubtractShiftTarget(t *testing.T) {
	tm, clk, _ := newTimer()
	tm.Start(60 * time.Second)
	clk.Advance(20 * time.Second)

	tm.Add(30 * time.Second)
	if got := tm.Remaining(); got != 70*time.Second {
		t.Errorf("after Add: Remaining = %v, want 70s", got)
	}
	tm.Subtract(15 * time.Second)
	if got := tm.Remaining(); got != 55*time.Second {
		t.Errorf("after Subtract: Remaining = %v, want 55s", got)
	}
	if got := tm.Total(); got != 75*time.Second {
		t.Errorf("Total = %v, want 75s", got)
	}
}

// TestAdjustIgnoredWhenIdle verifies Add/Subtract do nothing without a
// running countdown.
func TestAdjustIgnoredWhenIdle(t *testing.T) {
	tm, _, n := newTimer()
	tm.Add(30 * time.Second)
	tm.Subtract(30 * time.Second)
	if tm.Running() || tm.State().Complete || n.haptics != 0 {
		t.Errorf("idle timer changed: %+v", tm.State())
	}
}

// TestStopIsNotCompletion verifies a user skip clears the countdown without
// the completion flag or cues.
func TestStopIsNotCompletion(t *testing.T) {
	tm, clk, n := newTimer()
	tm.Start(90 * time.Second)
	clk.Advance(10 * time.Second)
	tm.Stop()

	st := tm.State()
	if st.Running || st.Complete || st.Remaining != 0 || st.Target != nil {
		t.Errorf("state = %+v, want idle without completion", st)
	}
	clk.Advance(5 * time.Minute)
	if tm.Tick() {
		t.Error("stopped timer reported completion")
	}
	if n.haptics != 0 || n.sounds != 0 {
		t.Errorf("cues fired on stop: %d/%d", n.haptics, n.sounds)
	}
}

// TestSetDefaultOnlyWhenIdle verifies changing the default updates the idle
// display but leaves a running countdown alone.
func TestSetDefaultOnlyWhenIdle(t *testing.T) {
	tm, clk, _ := newTimer()
	tm.SetDefault(120 * time.Second)
	if tm.Total() != 120*time.Second {
		t.Errorf("idle Total = %v, want 120s", tm.Total())
	}

	tm.Start(60 * time.Second)
	tm.SetDefault(180 * time.Second)
	clk.Advance(10 * time.Second)
	if tm.Total() != 60*time.Second {
		t.Errorf("running Total = %v, want 60s", tm.Total())
	}
	if got := tm.Remaining(); got != 50*time.Second {
		t.Errorf("Remaining = %v, want 50s", got)
	}
}

// TestRestartResetsCompletion verifies Start clears a previous completion.
func TestRestartResetsCompletion(t *testing.T) {
	tm, clk, _ := newTimer()
	tm.Start(10 * time.Second)
	clk.Advance(11 * time.Second)
	tm.Tick()

	tm.Start(30 * time.Second)
	st := tm.State()
	if st.Complete || !st.Running || st.Remaining != 30*time.Second {
		t.Errorf("state = %+v, want fresh running countdown", st)
	}
}
