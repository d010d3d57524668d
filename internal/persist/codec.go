// Package persist snapshots the screener's in-memory state into Redis so a
// restart resumes with warm prices and history instead of an empty table.
package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"crypto-screener/internal/model"
)

// DefaultMaxAge is the staleness ceiling: persisted state older than this
// is discarded on restore because 24h-change and volume figures have
// drifted too far to seed signals from.
const DefaultMaxAge = 2 * time.Hour

// ErrStale marks persisted state older than the staleness ceiling.
var ErrStale = errors.New("persisted state is stale")

// State is the serialized screener state: everything needed to resume
// after a restart without refetching history.
type State struct {
	Snapshots []model.Snapshot         `json:"snapshots"`
	History   map[string]*model.Series `json:"history"`
	Filter    string                   `json:"filter"`
	SavedAt   time.Time                `json:"saved_at"`
}

// EncodeState serializes state, stamping SavedAt.
func EncodeState(state State, now time.Time) ([]byte, error) {
	state.SavedAt = now
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return data, nil
}

// DecodeState deserializes persisted state, rejecting blobs older than
// maxAge with ErrStale. maxAge <= 0 uses the default ceiling.
func DecodeState(data []byte, now time.Time, maxAge time.Duration) (State, error) {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("decode state: %w", err)
	}
	if now.Sub(state.SavedAt) > maxAge {
		return State{}, fmt.Errorf("%w: saved %s ago", ErrStale, now.Sub(state.SavedAt).Round(time.Second))
	}
	return state, nil
}
