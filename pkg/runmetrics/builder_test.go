package runmetrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBuilder_BuildAggregatesAcrossStories(t *testing.T) {
	b := NewBuilder()

	b.StartStory("story-1", 5)
	b.RecordIteration(1)
	b.RecordGateDuration("tests", 100*time.Millisecond)
	b.CompleteStory(true, time.Second, "")

	b.StartStory("story-2", 5)
	b.RecordIteration(3)
	b.RecordGateDuration("tests", 200*time.Millisecond)
	b.RecordError("transient")
	b.CompleteStory(false, 2*time.Second, "failed gate")

	metrics := b.Build()
	assert.Equal(t, uint32(2), metrics.TotalStories)
	assert.Equal(t, uint32(1), metrics.SuccessfulStories)
	assert.Equal(t, uint32(1), metrics.FailedStories)
	assert.InDelta(t, 2.0, metrics.AvgIterationsPerStory, 0.001)
	assert.InDelta(t, 0.5, metrics.FirstTimeSuccessRate, 0.001)
	assert.Equal(t, uint32(1), metrics.ErrorFrequency["transient"])
	assert.Equal(t, uint32(2), metrics.GateDurations["tests"].Count)
}

func TestBuilder_BuildEmptyReturnsZeroValue(t *testing.T) {
	b := NewBuilder()
	metrics := b.Build()
	assert.Equal(t, uint32(0), metrics.TotalStories)
	assert.Equal(t, 0.0, metrics.SuccessRate())
}

func TestBuilder_ParallelismEfficiencyDefaultsToOneWithoutParallelTracking(t *testing.T) {
	b := NewBuilder()
	b.StartStory("story-1", 1)
	b.CompleteStory(true, time.Second, "")
	metrics := b.Build()
	assert.Equal(t, 1.0, metrics.ParallelismEfficiency)
}

func TestBuilder_ParallelismEfficiencyReflectsOverlap(t *testing.T) {
	b := NewBuilder()
	b.StartParallel()
	b.StartStory("story-1", 1)
	b.CompleteStory(true, 100*time.Millisecond, "")
	b.StartStory("story-2", 1)
	b.CompleteStory(true, 100*time.Millisecond, "")
	time.Sleep(5 * time.Millisecond)
	b.EndParallel()

	metrics := b.Build()
	assert.Greater(t, metrics.ParallelismEfficiency, 0.0)
}

func TestExecutionMetrics_MostCommonErrorAndSlowestGate(t *testing.T) {
	metrics := ExecutionMetrics{
		ErrorFrequency: map[string]uint32{"transient": 2, "fatal": 5},
		GateDurations: map[string]*GateDurationStats{
			"tests": {Mean: 100 * time.Millisecond},
			"lint":  {Mean: 400 * time.Millisecond},
		},
	}

	category, ok := metrics.MostCommonError()
	assert.True(t, ok)
	assert.Equal(t, "fatal", category)

	gate, ok := metrics.SlowestGate()
	assert.True(t, ok)
	assert.Equal(t, "lint", gate)
}

func TestExecutionMetrics_MostCommonErrorEmptyWhenNoneRecorded(t *testing.T) {
	metrics := ExecutionMetrics{}
	_, ok := metrics.MostCommonError()
	assert.False(t, ok)
}
