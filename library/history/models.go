// Package history records migration runs: periodic progress snapshots while
// a run is active, a persisted per-run file once it finishes, and a rolling
// activity feed across runs.
package history

import (
	"encoding/json"
	"time"
)

// RunSnapshot captures migration progress at one point in time.
type RunSnapshot struct {
	Timestamp  time.Time      `json:"timestamp"`
	Progress   float64        `json:"progress"`   // 0.0 to 100.0
	Statistics map[string]int `json:"statistics"` // completed, failed, pending, in_progress, total
	State      string         `json:"state"`      // idle, running, stopping, error
	Phase      string         `json:"phase"`      // reading, processing, writing, completed, canceled, error
}

// RunHistory is one complete migration run with its snapshots.
type RunHistory struct {
	RunID       string         `json:"run_id"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	State       string         `json:"state"`      // Final state
	Phase       string         `json:"phase"`      // Final phase
	Statistics  map[string]int `json:"statistics"` // Final statistics
	Snapshots   []RunSnapshot  `json:"snapshots"`
	Error       string         `json:"error,omitempty"`
}

// ActivityEntry is a single event in the activity feed.
type ActivityEntry struct {
	ID        string                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	Type      string                 `json:"type"` // migration_started, migration_completed, migration_failed, migration_canceled
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// ActivityHistory is the persisted activity feed.
type ActivityHistory struct {
	Entries []ActivityEntry `json:"entries"`
}

// ToJSON converts RunHistory to JSON bytes.
func (r *RunHistory) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// FromJSON populates RunHistory from JSON bytes.
func (r *RunHistory) FromJSON(data []byte) error {
	return json.Unmarshal(data, r)
}

// ToJSON converts ActivityHistory to JSON bytes.
func (a *ActivityHistory) ToJSON() ([]byte, error) {
	return json.MarshalIndent(a, "", "  ")
}

// FromJSON populates ActivityHistory from JSON bytes.
func (a *ActivityHistory) FromJSON(data []byte) error {
	return json.Unmarshal(data, a)
}
