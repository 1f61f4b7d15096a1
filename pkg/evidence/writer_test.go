package evidence

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_EmitRunStartWritesLifecycleEvent(t *testing.T) {
	dir := t.TempDir()
	writer, err := NewWriter(dir, "run-writer-1")
	require.NoError(t, err)

	writer.EmitRunStart()

	events, err := writer.store.LoadEvents("run-writer-1")
	require.NoError(t, err)
	require.Len(t, events, 1)

	var event LifecycleEvent
	require.NoError(t, json.Unmarshal(events[0].Payload, &event))
	assert.Equal(t, EventRunStart, event.EventType)
	assert.Equal(t, "run-writer-1", event.RunID)
}

func TestWriter_EmitStepIncludesErrorFields(t *testing.T) {
	dir := t.TempDir()
	writer, err := NewWriter(dir, "run-writer-2")
	require.NoError(t, err)

	writer.EmitStep("story-a", "failed", "transient", "network timeout")

	events, err := writer.store.LoadEvents("run-writer-2")
	require.NoError(t, err)
	require.Len(t, events, 1)

	var event LifecycleEvent
	require.NoError(t, json.Unmarshal(events[0].Payload, &event))
	assert.Equal(t, EventStep, event.EventType)
	assert.Equal(t, "story-a", event.StepID)
	assert.Equal(t, "failed", event.Status)
	assert.Equal(t, "transient", event.ErrorType)
	assert.Equal(t, "network timeout", event.ErrorMessage)
}

func TestWriter_EmitRunCompleteRecordsStatus(t *testing.T) {
	dir := t.TempDir()
	writer, err := NewWriter(dir, "run-writer-3")
	require.NoError(t, err)

	writer.EmitRunComplete("success", "", "")

	events, err := writer.store.LoadEvents("run-writer-3")
	require.NoError(t, err)
	require.Len(t, events, 1)

	var event LifecycleEvent
	require.NoError(t, json.Unmarshal(events[0].Payload, &event))
	assert.Equal(t, EventRunComplete, event.EventType)
	assert.Equal(t, "success", event.Status)
}

func TestWriter_EmitConflictDeferredRecordsBlockingAndFiles(t *testing.T) {
	dir := t.TempDir()
	writer, err := NewWriter(dir, "run-writer-4")
	require.NoError(t, err)

	writer.EmitConflictDeferred("US-002", "US-001", []string{"src/shared.rs"})

	events, err := writer.store.LoadEvents("run-writer-4")
	require.NoError(t, err)
	require.Len(t, events, 1)

	var event LifecycleEvent
	require.NoError(t, json.Unmarshal(events[0].Payload, &event))
	assert.Equal(t, EventConflictDeferred, event.EventType)
	assert.Equal(t, "US-002", event.StepID)
	assert.Equal(t, "US-001", event.Status)
	assert.Equal(t, "src/shared.rs", event.Detail)
}

func TestWriter_EmitQueueStatusRecordsDepthAndCapacity(t *testing.T) {
	dir := t.TempDir()
	writer, err := NewWriter(dir, "run-writer-5")
	require.NoError(t, err)

	writer.EmitQueueStatus(3, 50)

	events, err := writer.store.LoadEvents("run-writer-5")
	require.NoError(t, err)
	require.Len(t, events, 1)

	var event LifecycleEvent
	require.NoError(t, json.Unmarshal(events[0].Payload, &event))
	assert.Equal(t, EventQueueStatus, event.EventType)
	assert.Equal(t, "depth=3 capacity=50", event.Detail)
}

func TestGenerateRunID_NotEmpty(t *testing.T) {
	a := GenerateRunID()
	b := GenerateRunID()
	assert.NotEmpty(t, a)
	assert.NotEmpty(t, b)
}
