package budget

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"orchestrator/pkg/config"
)

func testCfg() config.TokenBudgetConfig {
	cfg := config.DefaultTokenBudgetConfig()
	cfg.StoryBudget = 1000
	cfg.ReserveBuffer = 0
	cfg.TotalBudget = 5000
	cfg.WarningThreshold = 0.7
	cfg.CriticalThreshold = 0.9
	cfg.MaxCostCents = 0
	cfg.AbortOnStoryBudgetExceeded = true
	cfg.AbortOnTotalBudgetExceeded = true
	return cfg
}

func TestTracker_StoryStatus_Thresholds(t *testing.T) {
	tr := NewTracker(testCfg())

	assert.Equal(t, StatusOk, tr.StoryStatus("s1"))

	tr.RecordIteration("s1", 700, 0) // 70% -> warning boundary
	assert.Equal(t, StatusWarning, tr.StoryStatus("s1"))

	tr.RecordIteration("s1", 200, 0) // 90% -> critical boundary
	assert.Equal(t, StatusCritical, tr.StoryStatus("s1"))

	tr.RecordIteration("s1", 200, 0) // 110% -> exceeded
	assert.Equal(t, StatusExceeded, tr.StoryStatus("s1"))
}

func TestTracker_RecordIteration_AccumulatesTotals(t *testing.T) {
	tr := NewTracker(testCfg())
	tr.RecordIteration("s1", 100, 50)
	tr.RecordIteration("s2", 10, 5)

	snap := tr.StoryBudgetSnapshot("s1")
	assert.Equal(t, uint64(100), snap.InputTokens)
	assert.Equal(t, uint64(50), snap.OutputTokens)
	assert.Equal(t, 1, snap.Iterations)

	summary := tr.Summary()
	assert.Equal(t, uint64(110), summary.TotalInputTokens)
	assert.Equal(t, uint64(55), summary.TotalOutputTokens)
}

func TestTracker_CanContinueStory_StopsOnExceeded(t *testing.T) {
	tr := NewTracker(testCfg())
	tr.RecordIteration("s1", 1200, 0)
	assert.False(t, tr.CanContinueStory("s1"))
}

func TestTracker_CanContinueStory_UnaffectedStoryStillRuns(t *testing.T) {
	tr := NewTracker(testCfg())
	tr.RecordIteration("s1", 1200, 0)
	assert.True(t, tr.CanContinueStory("s2"))
}

func TestTracker_TotalStatus_ExceedsStopsAllStories(t *testing.T) {
	cfg := testCfg()
	cfg.StoryBudget = 0 // disable per-story limit to isolate total behavior
	tr := NewTracker(cfg)
	tr.RecordIteration("s1", 5000, 1000)
	assert.Equal(t, StatusExceeded, tr.TotalStatus())
	assert.False(t, tr.CanContinueStory("s2"))
}

func TestTracker_CostStatus_Disabled(t *testing.T) {
	tr := NewTracker(testCfg())
	assert.Equal(t, StatusOk, tr.CostStatus())
}
