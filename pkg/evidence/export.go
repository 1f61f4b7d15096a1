package evidence

import (
	"encoding/json"
	"fmt"

	"orchestrator/pkg/runmetrics"
)

// RunStatus is the stable, exported status for a completed or in-progress
// run, derived from its lifecycle evidence and metrics completeness.
type RunStatus string

const (
	RunSuccess    RunStatus = "success"
	RunFailed     RunStatus = "failed"
	RunIncomplete RunStatus = "incomplete"
)

// RunExport is a consolidated, self-contained snapshot of everything known
// about a run: its manifest, every lifecycle event, and its metrics.
type RunExport struct {
	SchemaVersion int                    `json:"schema_version"`
	RunID         string                 `json:"run_id"`
	Status        RunStatus              `json:"status"`
	Metadata      *RunMetadata           `json:"metadata,omitempty"`
	Metrics       *runmetrics.RunMetrics `json:"metrics,omitempty"`
	Events        []Record               `json:"events"`
}

// Exporter assembles RunExport bundles from the evidence store and the
// metrics store, for an operator-facing `ralph evidence export` command or
// a post-mortem script.
type Exporter struct {
	evidenceStore *Store
	metricsStore  *runmetrics.Store
}

// NewExporter builds an exporter rooted at baseDir.
func NewExporter(baseDir string) (*Exporter, error) {
	evidenceStore, err := NewStore(baseDir, StoreConfigFromEnv())
	if err != nil {
		return nil, err
	}
	metricsStore, err := runmetrics.NewStore(baseDir)
	if err != nil {
		return nil, fmt.Errorf("evidence: open metrics store: %w", err)
	}
	return &Exporter{evidenceStore: evidenceStore, metricsStore: metricsStore}, nil
}

// ExportRun assembles a run's metadata, events, and metrics into one bundle.
func (e *Exporter) ExportRun(runID string) (*RunExport, error) {
	if runID == "" {
		return nil, ErrInvalidRunID
	}

	metadata, err := e.evidenceStore.LoadMetadata(runID)
	if err != nil {
		return nil, err
	}
	events, err := e.evidenceStore.LoadEvents(runID)
	if err != nil {
		return nil, err
	}
	metrics, err := e.metricsStore.Load(runID)
	if err != nil {
		return nil, fmt.Errorf("evidence: load metrics for export: %w", err)
	}

	return &RunExport{
		SchemaVersion: SchemaVersion,
		RunID:         runID,
		Status:        determineRunStatus(events, metrics),
		Metadata:      metadata,
		Metrics:       metrics,
		Events:        events,
	}, nil
}

func determineRunStatus(events []Record, metrics *runmetrics.RunMetrics) RunStatus {
	if metrics != nil && metrics.ExpectedSteps > 0 && metrics.CompletenessPercent < 100.0 {
		return RunIncomplete
	}

	for i := len(events) - 1; i >= 0; i-- {
		record := events[i]
		if record.Kind != "lifecycle" {
			continue
		}
		var event LifecycleEvent
		if err := json.Unmarshal(record.Payload, &event); err != nil {
			continue
		}
		if event.EventType == EventRunComplete {
			if event.Status == "success" {
				return RunSuccess
			}
			return RunFailed
		}
	}

	return RunIncomplete
}
