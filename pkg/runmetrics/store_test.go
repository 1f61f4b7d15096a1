package runmetrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SaveAndLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	metrics := RunMetrics{
		RunID:               "run-abc",
		ExpectedSteps:       2,
		StepsAttempted:      2,
		StepsCompleted:      1,
		CompletenessPercent: 50,
		StepDurations:       map[string]time.Duration{"story-a": time.Second},
		Steps:               []StepMetrics{{StepID: "story-a", Success: true}},
	}

	path, err := store.Save(metrics)
	require.NoError(t, err)
	assert.FileExists(t, path)

	loaded, err := store.Load("run-abc")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, metrics.RunID, loaded.RunID)
	assert.Equal(t, metrics.CompletenessPercent, loaded.CompletenessPercent)
}

func TestStore_LoadMissingRunReturnsNil(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	loaded, err := store.Load("does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}
