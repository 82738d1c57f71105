package stats

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/claude/freelift/internal/clock"
	"github.com/claude/freelift/internal/storage"
	"github.com/robfig/cron/v3"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Refresher recomputes the summary on a cron schedule, off the request
// path. Readers get the last complete result and never a partial one.
type Refresher struct {
	store    storage.Store
	clock    clock.Clock
	log      *slog.Logger
	schedule cron.Schedule
	latest   atomic.Pointer[Summary]
}

// NewRefresher validates the schedule and returns an idle Refresher.
func NewRefresher(store storage.Store, c clock.Clock, schedule string, log *slog.Logger) (*Refresher, error) {
	sched, err := cronParser.Parse(schedule)
	if err != nil {
		return nil, fmt.Errorf("parsing stats schedule %q: %w", schedule, err)
	}
	return &Refresher{store: store, clock: c, log: log, schedule: sched}, nil
}

// Latest returns the most recent summary, or nil before the first refresh.
func (r *Refresher) Latest() *Summary {
	return r.latest.Load()
}

// Refresh computes a new summary and publishes it.
func (r *Refresher) Refresh(ctx context.Context) (*Summary, error) {
	s, err := Compute(ctx, r.store, r.clock.Now())
	if err != nil {
		return nil, err
	}
	r.latest.Store(s)
	r.log.Debug("stats refreshed", "workouts", s.TotalWorkouts, "sets", s.TotalSets)
	return s, nil
}

// Run refreshes once immediately and then on every scheduled tick until ctx
// is cancelled. It blocks.
func (r *Refresher) Run(ctx context.Context) {
	if _, err := r.Refresh(ctx); err != nil {
		r.log.Error("stats refresh failed", "error", err)
	}

	c := cron.New(cron.WithParser(cronParser))
	c.Schedule(r.schedule, cron.FuncJob(func() {
		if _, err := r.Refresh(ctx); err != nil {
			r.log.Error("stats refresh failed", "error", err)
		}
	}))
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
}
