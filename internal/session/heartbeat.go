package session

import (
	"context"
	"time"
)

// Heartbeat calls Tick every interval until ctx is cancelled. The returned
// channel is closed when the loop exits.
func (m *Manager) Heartbeat(ctx context.Context, interval time.Duration) <-chan struct{} {
	if interval <= 0 {
		interval = time.Second
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Tick()
			}
		}
	}()
	return done
}
