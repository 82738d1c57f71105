package session

import (
	"context"
	"fmt"
	"time"

	"github.com/claude/freelift/internal/ledger"
	"github.com/claude/freelift/internal/metrics"
	"github.com/claude/freelift/internal/models"
	"github.com/claude/freelift/internal/notify"
	"github.com/claude/freelift/internal/records"
	"github.com/google/uuid"
)

// UpdateOptions controls what happens when an update completes a set.
type UpdateOptions struct {
	// StartRest starts the rest timer when the set goes from incomplete to
	// complete.
	StartRest bool
	// RestDuration overrides the default rest duration.
	RestDuration time.Duration
}

// SetResult describes the outcome of UpdateSet.
type SetResult struct {
	Set models.SetRecord `json:"set"`
	// Completed is true when this update marked the set complete.
	Completed bool `json:"completed"`
	// Record is the personal record created by this update, if any.
	Record      *models.PersonalRecord `json:"record,omitempty"`
	RestStarted bool                   `json:"rest_started"`
}

// sets decodes the entry's set blob, logging corrupt data before treating it
// as empty.
func (m *Manager) sets(e *models.WorkoutEntry) []models.SetRecord {
	if !ledger.Valid(e.SetsData) {
		m.log.Warn("corrupt set data, treating as empty", "entry_id", e.ID)
	}
	return ledger.DecodeSets(e.SetsData)
}

func (m *Manager) storeSets(e *models.WorkoutEntry, sets []models.SetRecord) error {
	data, err := ledger.EncodeSets(sets)
	if err != nil {
		return err
	}
	e.SetsData = data
	return nil
}

// AddSet appends a set to the entry, pre-filled with the reps and weight of
// the entry's last set.
func (m *Manager) AddSet(ctx context.Context, entryID uuid.UUID) (models.SetRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.entry(entryID)
	if err != nil {
		return models.SetRecord{}, err
	}
	sets := m.sets(e)
	var seed *ledger.Seed
	if n := len(sets); n > 0 {
		seed = &ledger.Seed{Reps: sets[n-1].Reps, Weight: sets[n-1].Weight}
	}
	sets, added := ledger.Append(sets, seed)
	if err := m.storeSets(e, sets); err != nil {
		return models.SetRecord{}, err
	}
	return added, m.persist(ctx, "add_set")
}

// UpdateSet replaces the values of one set. When the update marks the set
// complete, the workout is saved, the set is checked for a personal record
// and, if requested, the rest timer starts. A failed save still returns the
// result alongside ErrSaveFailed.
func (m *Manager) UpdateSet(ctx context.Context, entryID, setID uuid.UUID, v ledger.Values, opts UpdateOptions) (*SetResult, error) {
	if !v.Label.Valid() {
		return nil, ErrInvalidLabel
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.entry(entryID)
	if err != nil {
		return nil, err
	}
	sets, prev, err := ledger.Update(m.sets(e), setID, v)
	if err != nil {
		return nil, err
	}
	if err := m.storeSets(e, sets); err != nil {
		return nil, err
	}
	updated, _ := ledger.Find(sets, setID)
	result := &SetResult{Set: updated}

	// The in-memory workout is the source of truth, so a completion runs its
	// effects even when this save fails; the next mutation saves it.
	saveErr := m.persist(ctx, "update_set")
	if prev.IsCompleted || !updated.IsCompleted {
		return result, saveErr
	}

	result.Completed = true
	metrics.SetsCompleted.Inc()

	if e.ExerciseID != nil && records.Qualifies(updated) {
		pr, err := m.records.Detect(ctx, *e.ExerciseID, *updated.Weight, *updated.Reps, &m.active.ID)
		if err != nil {
			m.log.Error("personal record detection failed", "entry_id", e.ID, "error", err)
		} else if pr != nil {
			result.Record = pr
			m.banner = &banner{record: *pr, expiresAt: m.clock.Now().Add(m.cfg.PRBanner)}
			m.notifier.Haptic(notify.EventPersonalRecord)
		}
	}

	if opts.StartRest {
		m.startRest(opts.RestDuration)
		result.RestStarted = true
	}
	return result, saveErr
}

// DeleteSet removes one set. Deleting the only set of an entry is refused
// with ErrLastSet unless confirmRemoveExercise is true, in which case the
// whole entry is removed. The returned bool reports whether the entry went.
func (m *Manager) DeleteSet(ctx context.Context, entryID, setID uuid.UUID, confirmRemoveExercise bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.entry(entryID)
	if err != nil {
		return false, err
	}
	sets := m.sets(e)
	if _, ok := ledger.Find(sets, setID); !ok {
		return false, ledger.ErrSetNotFound
	}

	if len(sets) == 1 {
		if !confirmRemoveExercise {
			m.log.Info("delete of last set needs confirmation", "entry_id", entryID)
			return false, ErrLastSet
		}
		m.removeEntry(entryID)
		return true, m.persist(ctx, "remove_exercise")
	}

	sets, err = ledger.Delete(sets, setID)
	if err != nil {
		return false, err
	}
	if err := m.storeSets(e, sets); err != nil {
		return false, err
	}
	return false, m.persist(ctx, "delete_set")
}

// MoveSet moves the set at index from to the insertion offset to. Passing
// the set count as to moves the set to the end.
func (m *Manager) MoveSet(ctx context.Context, entryID uuid.UUID, from, to int) ([]models.SetRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.entry(entryID)
	if err != nil {
		return nil, err
	}
	sets, err := ledger.Move(m.sets(e), from, to)
	if err != nil {
		return nil, fmt.Errorf("moving set: %w", err)
	}
	if err := m.storeSets(e, sets); err != nil {
		return nil, err
	}
	return sets, m.persist(ctx, "move_set")
}

// ReorderSets puts the entry's sets in the given order of IDs.
func (m *Manager) ReorderSets(ctx context.Context, entryID uuid.UUID, ids []uuid.UUID) ([]models.SetRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.entry(entryID)
	if err != nil {
		return nil, err
	}
	sets, err := ledger.Reorder(m.sets(e), ids)
	if err != nil {
		return nil, fmt.Errorf("reordering sets: %w", err)
	}
	if err := m.storeSets(e, sets); err != nil {
		return nil, err
	}
	return sets, m.persist(ctx, "reorder_sets")
}
