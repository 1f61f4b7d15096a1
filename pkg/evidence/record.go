// Package evidence provides durable, append-only run evidence: a per-run
// events.jsonl log plus an atomically-updated manifest, with retention
// pruning and an optional queryable SQLite index.
package evidence

import (
	"encoding/json"
	"time"
)

// SchemaVersion is the current evidence record schema version.
const SchemaVersion = 1

// Record is a single evidence entry for a run: a lifecycle transition, a
// metric snapshot, or an artifact reference. Payload is kept as raw JSON so
// the store never needs to know the shape of what it's persisting.
type Record struct {
	SchemaVersion int             `json:"schema_version"`
	RunID         string          `json:"run_id"`
	RecordedAt    time.Time       `json:"recorded_at"`
	Kind          string          `json:"kind"`
	Payload       json.RawMessage `json:"payload"`
}

// NewRecord builds a record stamped with the current time and schema version.
func NewRecord(runID, kind string, payload json.RawMessage) Record {
	return Record{
		SchemaVersion: SchemaVersion,
		RunID:         runID,
		RecordedAt:    time.Now().UTC(),
		Kind:          kind,
		Payload:       payload,
	}
}

// RunMetadata is the manifest stored alongside a run's events, tracking
// when evidence collection started, when it was last touched, and how much
// of it there is. It is what retention pruning reads to decide a run's age.
type RunMetadata struct {
	SchemaVersion int       `json:"schema_version"`
	RunID         string    `json:"run_id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	RecordCount   uint64    `json:"record_count"`
}

// NewRunMetadata creates metadata for a run first seen at timestamp.
func NewRunMetadata(runID string, timestamp time.Time) RunMetadata {
	return RunMetadata{
		SchemaVersion: SchemaVersion,
		RunID:         runID,
		CreatedAt:     timestamp,
		UpdatedAt:     timestamp,
	}
}

// Touch advances the metadata for a newly recorded event at timestamp.
func (m *RunMetadata) Touch(timestamp time.Time) {
	m.UpdatedAt = timestamp
	m.RecordCount++
}
