package evidence

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"orchestrator/pkg/logx"
)

var evidenceLog = logx.NewLogger("evidence")

// GenerateRunID produces a run identifier of the form run-<unix_ms>-<pid>,
// unique enough to dedupe accidental double-starts without a coordinator.
func GenerateRunID() string {
	return fmt.Sprintf("run-%d-%d", time.Now().UTC().UnixMilli(), os.Getpid())
}

// Writer emits lifecycle evidence for a single run. Every emit method logs
// (rather than propagates) storage failures: evidence is best-effort
// observability, and a write hiccup must never abort the run it's
// describing.
type Writer struct {
	runID   string
	rootDir string
	store   *Store
}

// NewWriter opens (creating if needed) an evidence store under baseDir and
// returns a writer bound to runID.
func NewWriter(baseDir, runID string) (*Writer, error) {
	store, err := NewStore(baseDir, StoreConfigFromEnv())
	if err != nil {
		return nil, err
	}
	return &Writer{runID: runID, rootDir: baseDir, store: store}, nil
}

// EmitRunStart records the beginning of a run.
func (w *Writer) EmitRunStart() {
	event := NewLifecycleEvent(EventRunStart, w.runID, "run")
	w.writeEvent(event)
}

// EmitStep records a single step's outcome. status is free-form
// ("completed", "failed", "skipped", ...); errorType/errorMessage are
// omitted when empty.
func (w *Writer) EmitStep(stepID, status, errorType, errorMessage string) {
	event := NewLifecycleEvent(EventStep, w.runID, stepID)
	event.Status = status
	event.ErrorType = errorType
	event.ErrorMessage = errorMessage
	w.writeEvent(event)
}

// EmitConflictDeferred records that deferredID was dropped from this turn's
// dispatch because it shares target files (overlapping) with blockingID,
// the higher-priority story that claims them instead.
func (w *Writer) EmitConflictDeferred(deferredID, blockingID string, overlapping []string) {
	event := NewLifecycleEvent(EventConflictDeferred, w.runID, deferredID)
	event.Status = blockingID
	event.Detail = strings.Join(overlapping, ",")
	w.writeEvent(event)
}

// EmitQueueStatus records the pending queue's depth relative to its
// capacity, called whenever that depth changes.
func (w *Writer) EmitQueueStatus(depth, capacity int) {
	event := NewLifecycleEvent(EventQueueStatus, w.runID, "queue")
	event.Detail = fmt.Sprintf("depth=%d capacity=%d", depth, capacity)
	w.writeEvent(event)
}

// EmitRunComplete records the end of a run.
func (w *Writer) EmitRunComplete(status, errorType, errorMessage string) {
	event := NewLifecycleEvent(EventRunComplete, w.runID, "run")
	event.Status = status
	event.ErrorType = errorType
	event.ErrorMessage = errorMessage
	w.writeEvent(event)
}

func (w *Writer) writeEvent(event LifecycleEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		evidenceLog.Error("failed to marshal lifecycle event for run %s: %v", w.runID, err)
		return
	}
	record := NewRecord(w.runID, "lifecycle", payload)
	if err := w.store.AppendRecord(record); err != nil {
		evidenceLog.Error("failed to write evidence for run %s: %v", w.runID, err)
	}
}
