package session

import (
	"time"

	"github.com/claude/freelift/internal/metrics"
	"github.com/claude/freelift/internal/resttimer"
)

// StartRest starts a rest countdown of d, or of the default when d <= 0.
// A countdown that is already running is folded into the workout's rest
// total first.
func (m *Manager) StartRest(d time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return ErrNoActiveWorkout
	}
	m.startRest(d)
	return nil
}

func (m *Manager) startRest(d time.Duration) {
	if d <= 0 {
		d = m.cfg.DefaultRest
	}
	m.timer.Tick()
	now := m.clock.Now()
	if m.timer.Running() {
		m.fold(now)
	}
	m.timer.Start(d)
	m.restMarker = &now
	m.log.Debug("rest started", "duration", d)
}

// StopRest skips the running countdown. Only the elapsed part is added to
// the workout's rest total.
func (m *Manager) StopRest() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return ErrNoActiveWorkout
	}
	m.timer.Tick()
	if !m.timer.Running() {
		return nil
	}
	m.fold(m.clock.Now())
	m.timer.Stop()
	return nil
}

// AdjustRest moves the end of the running countdown by delta. A negative
// delta that reaches the present completes the countdown. It does nothing
// while idle.
func (m *Manager) AdjustRest(delta time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return ErrNoActiveWorkout
	}
	m.timer.Tick()
	switch {
	case delta > 0:
		m.timer.Add(delta)
	case delta < 0:
		m.timer.Subtract(-delta)
	}
	return nil
}

// SetDefaultRest changes the duration used when no explicit one is given.
// A running countdown is not affected.
func (m *Manager) SetDefaultRest(d time.Duration) error {
	if d <= 0 {
		return ErrInvalidDuration
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg.DefaultRest = d
	m.timer.SetDefault(d)
	return nil
}

// onRestComplete runs inside timer calls, which always happen with m.mu
// held. Natural completion folds the whole countdown.
func (m *Manager) onRestComplete(at time.Time) {
	m.fold(at)
	m.log.Debug("rest complete", "at", at)
}

// fold moves the time between the marker and end into the accumulator and
// clears the marker.
func (m *Manager) fold(end time.Time) {
	if m.restMarker == nil {
		return
	}
	d := end.Sub(*m.restMarker)
	m.restMarker = nil
	if d <= 0 {
		return
	}
	m.accumulated += d
	metrics.RestSeconds.Observe(d.Seconds())
}

// resetRest replaces the timer and zeroes the accumulator.
func (m *Manager) resetRest() {
	m.timer = resttimer.New(m.clock, m.notifier, m.cfg.DefaultRest)
	m.timer.OnComplete(m.onRestComplete)
	m.accumulated = 0
	m.restMarker = nil
}
