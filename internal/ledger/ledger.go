package ledger

import (
	"errors"
	"fmt"

	"github.com/claude/freelift/internal/models"
	"github.com/google/uuid"
)

var (
	// ErrSetNotFound is returned when no set in the list has the requested ID.
	ErrSetNotFound = errors.New("set not found")
	// ErrIndexOutOfRange is returned by Move for positions outside the list.
	ErrIndexOutOfRange = errors.New("set index out of range")
	// ErrInvalidOrder is returned by Reorder when the ID list is not a
	// permutation of the current sets.
	ErrInvalidOrder = errors.New("order does not match current sets")
)

// Seed pre-fills a newly appended set.
type Seed struct {
	Reps   *int
	Weight *float64
}

// Values is the full replaceable content of a set. Update overwrites every
// field; ordering and identity are never touched.
type Values struct {
	Reps        *int
	Weight      *float64
	Duration    *float64
	Distance    *float64
	Equipment   string
	Label       models.SetLabel
	IsCompleted bool
}

// ValuesOf returns the replaceable content of an existing set.
func ValuesOf(s models.SetRecord) Values {
	return Values{
		Reps:        s.Reps,
		Weight:      s.Weight,
		Duration:    s.Duration,
		Distance:    s.Distance,
		Equipment:   s.Equipment,
		Label:       s.Label,
		IsCompleted: s.IsCompleted,
	}
}

// Append adds a new incomplete set at the end of the list and returns the
// new list together with the appended set.
func Append(sets []models.SetRecord, seed *Seed) ([]models.SetRecord, models.SetRecord) {
	s := models.SetRecord{
		ID:        uuid.New(),
		SetNumber: len(sets) + 1,
	}
	if seed != nil {
		s.Reps = copyInt(seed.Reps)
		s.Weight = copyFloat(seed.Weight)
	}
	out := make([]models.SetRecord, 0, len(sets)+1)
	out = append(out, sets...)
	out = append(out, s)
	return Renumber(out), s
}

// Update replaces the values of the set with the given ID. It returns the
// new list and the set as it was before the update.
func Update(sets []models.SetRecord, id uuid.UUID, v Values) ([]models.SetRecord, models.SetRecord, error) {
	i := indexOf(sets, id)
	if i < 0 {
		return nil, models.SetRecord{}, fmt.Errorf("updating set %s: %w", id, ErrSetNotFound)
	}
	out := clone(sets)
	prev := out[i]
	out[i] = models.SetRecord{
		ID:          prev.ID,
		SetNumber:   prev.SetNumber,
		Reps:        copyInt(v.Reps),
		Weight:      copyFloat(v.Weight),
		Duration:    copyFloat(v.Duration),
		Distance:    copyFloat(v.Distance),
		Equipment:   v.Equipment,
		Label:       v.Label,
		IsCompleted: v.IsCompleted,
	}
	return out, prev, nil
}

// Delete removes the set with the given ID and renumbers the rest. The result
// may be empty; callers decide whether an empty entry is acceptable.
func Delete(sets []models.SetRecord, id uuid.UUID) ([]models.SetRecord, error) {
	i := indexOf(sets, id)
	if i < 0 {
		return nil, fmt.Errorf("deleting set %s: %w", id, ErrSetNotFound)
	}
	out := make([]models.SetRecord, 0, len(sets)-1)
	out = append(out, sets[:i]...)
	out = append(out, sets[i+1:]...)
	return Renumber(out), nil
}

// Move relocates the set at index from so that it lands before the element
// currently at index to. to is an insertion offset in 0..len(sets): passing
// len(sets) places the set after the former last element.
func Move(sets []models.SetRecord, from, to int) ([]models.SetRecord, error) {
	if from < 0 || from >= len(sets) {
		return nil, fmt.Errorf("moving set from %d: %w", from, ErrIndexOutOfRange)
	}
	if to < 0 || to > len(sets) {
		return nil, fmt.Errorf("moving set to %d: %w", to, ErrIndexOutOfRange)
	}
	moved := sets[from]
	out := make([]models.SetRecord, 0, len(sets))
	out = append(out, sets[:from]...)
	out = append(out, sets[from+1:]...)

	dest := to
	if to > from {
		dest = to - 1
	}
	out = append(out, models.SetRecord{})
	copy(out[dest+1:], out[dest:])
	out[dest] = moved
	return Renumber(out), nil
}

// Reorder arranges the sets in the order given by ids, which must name every
// current set exactly once.
func Reorder(sets []models.SetRecord, ids []uuid.UUID) ([]models.SetRecord, error) {
	if len(ids) != len(sets) {
		return nil, fmt.Errorf("reordering %d sets with %d ids: %w", len(sets), len(ids), ErrInvalidOrder)
	}
	byID := make(map[uuid.UUID]models.SetRecord, len(sets))
	for _, s := range sets {
		byID[s.ID] = s
	}
	out := make([]models.SetRecord, 0, len(sets))
	for _, id := range ids {
		s, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("reordering set %s: %w", id, ErrInvalidOrder)
		}
		delete(byID, id)
		out = append(out, s)
	}
	return Renumber(out), nil
}

// Renumber assigns set numbers 1..len(sets) by position, in place.
func Renumber(sets []models.SetRecord) []models.SetRecord {
	for i := range sets {
		sets[i].SetNumber = i + 1
	}
	return sets
}

// Find returns the set with the given ID.
func Find(sets []models.SetRecord, id uuid.UUID) (models.SetRecord, bool) {
	if i := indexOf(sets, id); i >= 0 {
		return sets[i], true
	}
	return models.SetRecord{}, false
}

func indexOf(sets []models.SetRecord, id uuid.UUID) int {
	for i, s := range sets {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func clone(sets []models.SetRecord) []models.SetRecord {
	return append([]models.SetRecord(nil), sets...)
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
