package evidence

import "time"

const lifecycleSchemaVersion = "v1"

// LifecycleEventType identifies a stage in a run's life.
type LifecycleEventType string

const (
	EventRunStart         LifecycleEventType = "run_start"
	EventStep             LifecycleEventType = "step"
	EventRunComplete      LifecycleEventType = "run_complete"
	EventConflictDeferred LifecycleEventType = "conflict_deferred"
	EventQueueStatus      LifecycleEventType = "queue_status"
)

// LifecycleEvent is the payload stored under the "lifecycle" evidence kind.
// Status/ErrorType/ErrorMessage/Detail are omitted from JSON when empty so a
// plain run_start or step-in-progress event stays small.
type LifecycleEvent struct {
	SchemaVersion string             `json:"schema_version"`
	EventType     LifecycleEventType `json:"event_type"`
	Timestamp     string             `json:"timestamp"`
	RunID         string             `json:"run_id"`
	StepID        string             `json:"step_id"`
	Status        string             `json:"status,omitempty"`
	ErrorType     string             `json:"error_type,omitempty"`
	ErrorMessage  string             `json:"error_message,omitempty"`
	Detail        string             `json:"detail,omitempty"`
}

// NewLifecycleEvent stamps a lifecycle event with the current time.
func NewLifecycleEvent(eventType LifecycleEventType, runID, stepID string) LifecycleEvent {
	return LifecycleEvent{
		SchemaVersion: lifecycleSchemaVersion,
		EventType:     eventType,
		Timestamp:     time.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		RunID:         runID,
		StepID:        stepID,
	}
}
