// Package ledger owns the ordered set list stored on a workout entry: its
// serialized form and the add/update/delete/move rules that keep set numbers
// dense.
package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/claude/freelift/internal/models"
)

// EncodeSets serializes an ordered set list into the blob stored on an entry.
func EncodeSets(sets []models.SetRecord) ([]byte, error) {
	if sets == nil {
		sets = []models.SetRecord{}
	}
	data, err := json.Marshal(sets)
	if err != nil {
		return nil, fmt.Errorf("encoding sets: %w", err)
	}
	return data, nil
}

// DecodeSets parses a set blob and renumbers it 1..count by position. An
// empty or corrupt blob yields an empty list.
func DecodeSets(data []byte) []models.SetRecord {
	sets, err := decodeSets(data)
	if err != nil {
		return []models.SetRecord{}
	}
	return sets
}

// decodeSets is DecodeSets with the error kept, for callers that want to log it.
func decodeSets(data []byte) ([]models.SetRecord, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return []models.SetRecord{}, nil
	}
	var sets []models.SetRecord
	if err := json.Unmarshal(data, &sets); err != nil {
		return nil, fmt.Errorf("decoding sets: %w", err)
	}
	if sets == nil {
		sets = []models.SetRecord{}
	}
	// Stored numbers are not trusted; position decides.
	return Renumber(sets), nil
}

// Valid reports whether data decodes cleanly. An empty blob is valid.
func Valid(data []byte) bool {
	_, err := decodeSets(data)
	return err == nil
}

// EncodeInstructions serializes the step list of an exercise.
func EncodeInstructions(steps []string) ([]byte, error) {
	if steps == nil {
		steps = []string{}
	}
	data, err := json.Marshal(steps)
	if err != nil {
		return nil, fmt.Errorf("encoding instructions: %w", err)
	}
	return data, nil
}

// DecodeInstructions parses an instruction blob. An empty or corrupt blob
// yields an empty list.
func DecodeInstructions(data []byte) []string {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return []string{}
	}
	var steps []string
	if err := json.Unmarshal(data, &steps); err != nil || steps == nil {
		return []string{}
	}
	return steps
}
