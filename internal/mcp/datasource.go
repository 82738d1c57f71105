package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/claude/freelift/internal/clock"
	"github.com/claude/freelift/internal/models"
	"github.com/claude/freelift/internal/records"
	"github.com/claude/freelift/internal/session"
	"github.com/claude/freelift/internal/stats"
	"github.com/claude/freelift/internal/storage"
	"github.com/google/uuid"
)

// DataSource abstracts the data layer for MCP tools. Local reads the store
// in-process; HTTPClient reads a remote FreeLift server over its REST API.
type DataSource interface {
	QueryWorkouts(ctx context.Context, start, end time.Time, limit int) ([]session.WorkoutView, error)
	GetWorkout(ctx context.Context, id uuid.UUID) (*session.WorkoutView, error)
	ListExercises(ctx context.Context) ([]models.Exercise, error)
	PersonalRecords(ctx context.Context, exerciseID uuid.UUID) ([]models.PersonalRecord, error)
	CurrentRecord(ctx context.Context, exerciseID uuid.UUID) (*models.PersonalRecord, error)
	Stats(ctx context.Context) (*stats.Summary, error)
	ActiveSession(ctx context.Context) (*session.Snapshot, error)
}

// Local serves MCP reads from the process's own store. Session is optional;
// without it the active workout is read from the store and the rest timer
// is reported idle.
type Local struct {
	Store     storage.Store
	Records   *records.Engine
	Refresher *stats.Refresher
	Session   *session.Manager
	Clock     clock.Clock
}

var (
	_ DataSource = (*Local)(nil)
	_ DataSource = (*HTTPClient)(nil)
)

func (l *Local) QueryWorkouts(ctx context.Context, start, end time.Time, limit int) ([]session.WorkoutView, error) {
	workouts, err := l.Store.QueryWorkouts(ctx, storage.WorkoutFilter{Start: start, End: end, Limit: limit})
	if err != nil {
		return nil, err
	}
	now := l.Clock.Now()
	views := make([]session.WorkoutView, 0, len(workouts))
	for i := range workouts {
		views = append(views, session.ViewOf(&workouts[i], now))
	}
	return views, nil
}

func (l *Local) GetWorkout(ctx context.Context, id uuid.UUID) (*session.WorkoutView, error) {
	w, err := l.Store.GetWorkout(ctx, id)
	if err != nil {
		return nil, err
	}
	v := session.ViewOf(w, l.Clock.Now())
	return &v, nil
}

func (l *Local) ListExercises(ctx context.Context) ([]models.Exercise, error) {
	return l.Store.ListExercises(ctx)
}

func (l *Local) PersonalRecords(ctx context.Context, exerciseID uuid.UUID) ([]models.PersonalRecord, error) {
	return l.Records.History(ctx, exerciseID)
}

func (l *Local) CurrentRecord(ctx context.Context, exerciseID uuid.UUID) (*models.PersonalRecord, error) {
	return l.Records.Current(ctx, exerciseID)
}

func (l *Local) Stats(ctx context.Context) (*stats.Summary, error) {
	if l.Refresher != nil {
		if s := l.Refresher.Latest(); s != nil {
			return s, nil
		}
		return l.Refresher.Refresh(ctx)
	}
	return stats.Compute(ctx, l.Store, l.Clock.Now())
}

func (l *Local) ActiveSession(ctx context.Context) (*session.Snapshot, error) {
	if l.Session != nil {
		snap := l.Session.Snapshot()
		return &snap, nil
	}
	active, err := l.Store.QueryWorkouts(ctx, storage.WorkoutFilter{Status: storage.StatusActive, Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("loading active workout: %w", err)
	}
	if len(active) == 0 {
		return &session.Snapshot{}, nil
	}
	now := l.Clock.Now()
	v := session.ViewOf(&active[0], now)
	return &session.Snapshot{
		Active:  true,
		Workout: &v,
		Elapsed: v.Duration,
	}, nil
}
