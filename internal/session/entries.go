package session

import (
	"context"
	"fmt"
	"sort"

	"github.com/claude/freelift/internal/ledger"
	"github.com/claude/freelift/internal/models"
	"github.com/google/uuid"
)

// AddExercise appends an entry for the exercise to the active workout with
// order max+1 and one empty set.
func (m *Manager) AddExercise(ctx context.Context, exerciseID uuid.UUID) (*models.WorkoutEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return nil, ErrNoActiveWorkout
	}
	if _, err := m.store.GetExercise(ctx, exerciseID); err != nil {
		return nil, fmt.Errorf("loading exercise: %w", err)
	}

	sets, _ := ledger.Append(nil, nil)
	data, err := ledger.EncodeSets(sets)
	if err != nil {
		return nil, err
	}
	id := exerciseID
	e := models.WorkoutEntry{
		ID:         uuid.New(),
		WorkoutID:  m.active.ID,
		Order:      m.active.NextEntryOrder(),
		ExerciseID: &id,
		SetsData:   data,
	}
	m.active.Entries = append(m.active.Entries, e)

	c := e.Clone()
	return &c, m.persist(ctx, "add_exercise")
}

// RemoveExercise deletes an entry and its sets, then closes the gap in the
// remaining orders.
func (m *Manager) RemoveExercise(ctx context.Context, entryID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.entry(entryID); err != nil {
		return err
	}
	m.removeEntry(entryID)
	return m.persist(ctx, "remove_exercise")
}

func (m *Manager) removeEntry(entryID uuid.UUID) {
	kept := m.active.Entries[:0]
	for _, e := range m.active.Entries {
		if e.ID != entryID {
			kept = append(kept, e)
		}
	}
	m.active.Entries = kept
	densifyOrders(m.active.Entries)
}

// MoveExercise moves an entry to a new position. to is an insertion offset
// in the current order, so len(entries) moves the entry to the end.
func (m *Manager) MoveExercise(ctx context.Context, entryID uuid.UUID, to int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.entry(entryID); err != nil {
		return err
	}

	entries := m.active.Entries
	densifyOrders(entries)
	from := -1
	for i, e := range entries {
		if e.ID == entryID {
			from = i
		}
	}
	if to < 0 || to > len(entries) {
		return fmt.Errorf("moving exercise to %d: %w", to, ledger.ErrIndexOutOfRange)
	}
	dest := to
	if to > from {
		dest = to - 1
	}
	if dest == from {
		return nil
	}

	moved := entries[from]
	rest := append(append([]models.WorkoutEntry{}, entries[:from]...), entries[from+1:]...)
	reordered := make([]models.WorkoutEntry, 0, len(entries))
	reordered = append(reordered, rest[:dest]...)
	reordered = append(reordered, moved)
	reordered = append(reordered, rest[dest:]...)
	for i := range reordered {
		reordered[i].Order = i
	}
	m.active.Entries = reordered
	return m.persist(ctx, "move_exercise")
}

// UpdateEntryNotes replaces the notes of one entry.
func (m *Manager) UpdateEntryNotes(ctx context.Context, entryID uuid.UUID, notes string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.entry(entryID)
	if err != nil {
		return err
	}
	e.Notes = notes
	return m.persist(ctx, "update_entry_notes")
}

// densifyOrders sorts entries by order and renumbers them 0..n-1.
func densifyOrders(entries []models.WorkoutEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Order < entries[j].Order
	})
	for i := range entries {
		entries[i].Order = i
	}
}
