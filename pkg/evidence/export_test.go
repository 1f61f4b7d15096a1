package evidence

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orchestrator/pkg/runmetrics"
)

func emitLifecycle(t *testing.T, store *Store, runID string, eventType LifecycleEventType, status string) {
	t.Helper()
	event := NewLifecycleEvent(eventType, runID, "run")
	event.Status = status
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	require.NoError(t, store.AppendRecord(NewRecord(runID, "lifecycle", payload)))
}

func TestExporter_ExportRunIncludesMetricsAndEvents(t *testing.T) {
	dir := t.TempDir()
	exporter, err := NewExporter(dir)
	require.NoError(t, err)

	emitLifecycle(t, exporter.evidenceStore, "run-export-1", EventRunStart, "")
	emitLifecycle(t, exporter.evidenceStore, "run-export-1", EventRunComplete, "success")

	metrics := runmetrics.RunMetrics{
		RunID:               "run-export-1",
		ExpectedSteps:       1,
		StepsCompleted:      1,
		CompletenessPercent: 100,
	}
	_, err = exporter.metricsStore.Save(metrics)
	require.NoError(t, err)

	export, err := exporter.ExportRun("run-export-1")
	require.NoError(t, err)
	require.NotNil(t, export)
	assert.Equal(t, RunSuccess, export.Status)
	assert.Len(t, export.Events, 2)
	require.NotNil(t, export.Metrics)
	assert.Equal(t, 100.0, export.Metrics.CompletenessPercent)
	require.NotNil(t, export.Metadata)
}

func TestExporter_ExportRunMarksIncompleteWhenEvidenceMissing(t *testing.T) {
	dir := t.TempDir()
	exporter, err := NewExporter(dir)
	require.NoError(t, err)

	export, err := exporter.ExportRun("run-never-started")
	require.NoError(t, err)
	assert.Equal(t, RunIncomplete, export.Status)
	assert.Empty(t, export.Events)
	assert.Nil(t, export.Metadata)
}

func TestExporter_ExportRunMarksIncompleteWhenMetricsBelowComplete(t *testing.T) {
	dir := t.TempDir()
	exporter, err := NewExporter(dir)
	require.NoError(t, err)

	emitLifecycle(t, exporter.evidenceStore, "run-export-2", EventRunComplete, "success")
	_, err = exporter.metricsStore.Save(runmetrics.RunMetrics{
		RunID:               "run-export-2",
		ExpectedSteps:       4,
		StepsCompleted:      1,
		CompletenessPercent: 25,
	})
	require.NoError(t, err)

	export, err := exporter.ExportRun("run-export-2")
	require.NoError(t, err)
	assert.Equal(t, RunIncomplete, export.Status)
}

func TestExporter_ExportRunMarksFailedOnFailureStatus(t *testing.T) {
	dir := t.TempDir()
	exporter, err := NewExporter(dir)
	require.NoError(t, err)

	emitLifecycle(t, exporter.evidenceStore, "run-export-3", EventRunComplete, "failed")

	export, err := exporter.ExportRun("run-export-3")
	require.NoError(t, err)
	assert.Equal(t, RunFailed, export.Status)
}
