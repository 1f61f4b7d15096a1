package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orchestrator/pkg/config"
	"orchestrator/pkg/depgraph"
)

// fakeExecutor drives stories according to a per-ID behavior function,
// defaulting to an immediate success. It also tracks, at any instant, how
// many stories are concurrently executing, for the concurrency-cap and
// file-exclusivity invariants.
type fakeExecutor struct {
	mu       sync.Mutex
	behavior map[string]func(ctx context.Context) (ExecResult, error)
	calls    map[string]int
	active   int
	maxActive int
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{
		behavior: make(map[string]func(ctx context.Context) (ExecResult, error)),
		calls:    make(map[string]int),
	}
}

func (f *fakeExecutor) ExecuteStory(ctx context.Context, storyID string, onIteration IterationFunc) (ExecResult, error) {
	f.mu.Lock()
	f.calls[storyID]++
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	fn := f.behavior[storyID]
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if fn != nil {
		return fn(ctx)
	}
	onIteration(1, 1)
	return ExecResult{Success: true, IterationsUsed: 1}, nil
}

func (f *fakeExecutor) callCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

func baseConfig() config.ParallelRunnerConfig {
	cfg := config.DefaultParallelRunnerConfig()
	cfg.MaxConcurrency = 2
	cfg.QueueCapacity = 10
	cfg.QueueWaitMillis = 5
	cfg.BatchTimeoutSeconds = 5
	cfg.CircuitBreakerThreshold = 2
	cfg.FallbackToSequential = true
	return cfg
}

func TestNewScheduler_RejectsNilExecutor(t *testing.T) {
	_, err := NewScheduler(baseConfig(), t.TempDir(), nil)
	require.Error(t, err)
}

func TestScheduler_AllIndependentStoriesPass(t *testing.T) {
	exec := newFakeExecutor()
	sched, err := NewScheduler(baseConfig(), t.TempDir(), exec)
	require.NoError(t, err)
	sched.WithReconciler(nil)

	stories := []depgraph.Story{
		{ID: "s1", Priority: 1, TargetFiles: []string{"a.go"}},
		{ID: "s2", Priority: 1, TargetFiles: []string{"b.go"}},
		{ID: "s3", Priority: 1, TargetFiles: []string{"c.go"}},
	}

	result, err := sched.Run(context.Background(), stories)
	require.NoError(t, err)
	assert.True(t, result.AllPassed)
	assert.Equal(t, 3, result.StoriesPassed)
	assert.Equal(t, 3, result.TotalStories)
	assert.NoError(t, result.Error)
}

func TestScheduler_ConcurrencyNeverExceedsMaxConcurrency(t *testing.T) {
	exec := newFakeExecutor()
	slow := func(ctx context.Context) (ExecResult, error) {
		time.Sleep(15 * time.Millisecond)
		return ExecResult{Success: true, IterationsUsed: 1}, nil
	}
	for _, id := range []string{"s1", "s2", "s3", "s4"} {
		exec.behavior[id] = slow
	}

	cfg := baseConfig()
	cfg.MaxConcurrency = 2
	sched, err := NewScheduler(cfg, t.TempDir(), exec)
	require.NoError(t, err)
	sched.WithReconciler(nil)

	stories := []depgraph.Story{
		{ID: "s1", Priority: 1, TargetFiles: []string{"a.go"}},
		{ID: "s2", Priority: 1, TargetFiles: []string{"b.go"}},
		{ID: "s3", Priority: 1, TargetFiles: []string{"c.go"}},
		{ID: "s4", Priority: 1, TargetFiles: []string{"d.go"}},
	}

	result, err := sched.Run(context.Background(), stories)
	require.NoError(t, err)
	assert.True(t, result.AllPassed)

	exec.mu.Lock()
	defer exec.mu.Unlock()
	assert.LessOrEqual(t, exec.maxActive, 2)
}

func TestScheduler_FileConflictDefersLowerPriorityStory(t *testing.T) {
	exec := newFakeExecutor()
	sched, err := NewScheduler(baseConfig(), t.TempDir(), exec)
	require.NoError(t, err)
	sched.WithReconciler(nil)

	stories := []depgraph.Story{
		{ID: "high", Priority: 1, TargetFiles: []string{"shared.go"}},
		{ID: "low", Priority: 5, TargetFiles: []string{"shared.go"}},
	}

	result, err := sched.Run(context.Background(), stories)
	require.NoError(t, err)
	assert.True(t, result.AllPassed)
	assert.Equal(t, 2, result.StoriesPassed)
	assert.Equal(t, 1, exec.callCount("high"))
	assert.Equal(t, 1, exec.callCount("low"))
}

func TestScheduler_CircuitBreakerTripsAtThreshold(t *testing.T) {
	exec := newFakeExecutor()
	failing := func(ctx context.Context) (ExecResult, error) {
		return ExecResult{}, &ExecError{Class: ClassFatal, Message: "boom"}
	}
	exec.behavior["s1"] = failing
	exec.behavior["s2"] = failing

	cfg := baseConfig()
	cfg.MaxConcurrency = 1
	cfg.CircuitBreakerThreshold = 2
	sched, err := NewScheduler(cfg, t.TempDir(), exec)
	require.NoError(t, err)
	sched.WithReconciler(nil)

	stories := []depgraph.Story{
		{ID: "s1", Priority: 1, TargetFiles: []string{"a.go"}},
		{ID: "s2", Priority: 2, TargetFiles: []string{"b.go"}},
	}

	result, err := sched.Run(context.Background(), stories)
	require.NoError(t, err)
	assert.False(t, result.AllPassed)
	require.Error(t, result.Error)
	assert.Contains(t, result.Error.Error(), "Circuit breaker triggered")
	assert.Contains(t, result.Error.Error(), "ralph --resume")
}

func TestScheduler_BatchTimeoutFailsStragglingStory(t *testing.T) {
	exec := newFakeExecutor()
	exec.behavior["slow"] = func(ctx context.Context) (ExecResult, error) {
		time.Sleep(30 * time.Millisecond)
		return ExecResult{Success: true, IterationsUsed: 1}, nil
	}

	cfg := baseConfig()
	cfg.BatchTimeoutSeconds = 0 // expires immediately
	sched, err := NewScheduler(cfg, t.TempDir(), exec)
	require.NoError(t, err)
	sched.WithReconciler(nil)

	stories := []depgraph.Story{
		{ID: "slow", Priority: 1, TargetFiles: []string{"a.go"}},
	}

	result, err := sched.Run(context.Background(), stories)
	require.NoError(t, err)
	assert.False(t, result.AllPassed)
	require.Error(t, result.Error)

	time.Sleep(50 * time.Millisecond) // let the abandoned goroutine finish before TempDir cleanup
}

func TestScheduler_AllAlreadyPassingStoriesReturnImmediately(t *testing.T) {
	exec := newFakeExecutor()
	sched, err := NewScheduler(baseConfig(), t.TempDir(), exec)
	require.NoError(t, err)
	sched.WithReconciler(nil)

	stories := []depgraph.Story{
		{ID: "a", Priority: 1, Passes: true},
		{ID: "b", Priority: 2, Passes: true},
	}

	result, err := sched.Run(context.Background(), stories)
	require.NoError(t, err)
	assert.True(t, result.AllPassed)
	assert.Equal(t, 2, result.StoriesPassed)
	assert.Equal(t, 2, result.TotalStories)
	assert.NoError(t, result.Error)
	assert.Equal(t, 0, exec.callCount("a"))
	assert.Equal(t, 0, exec.callCount("b"))
}

func TestScheduler_DependencyOnAlreadyPassingStoryBecomesReady(t *testing.T) {
	exec := newFakeExecutor()
	sched, err := NewScheduler(baseConfig(), t.TempDir(), exec)
	require.NoError(t, err)
	sched.WithReconciler(nil)

	stories := []depgraph.Story{
		{ID: "a", Priority: 1, Passes: true},
		{ID: "b", Priority: 1, DependsOn: []string{"a"}, TargetFiles: []string{"b.go"}},
	}

	result, err := sched.Run(context.Background(), stories)
	require.NoError(t, err)
	assert.True(t, result.AllPassed)
	assert.Equal(t, 2, result.StoriesPassed)
	assert.Equal(t, 1, exec.callCount("b"))
	assert.Equal(t, 0, exec.callCount("a"))
}

func TestScheduler_QueueRejectPolicyFailsOverflowingStories(t *testing.T) {
	exec := newFakeExecutor()
	cfg := baseConfig()
	cfg.MaxConcurrency = 1
	cfg.QueueCapacity = 1
	cfg.QueuePolicy = config.QueueReject
	sched, err := NewScheduler(cfg, t.TempDir(), exec)
	require.NoError(t, err)
	sched.WithReconciler(nil)

	stories := []depgraph.Story{
		{ID: "s1", Priority: 1, TargetFiles: []string{"a.go"}},
		{ID: "s2", Priority: 2, TargetFiles: []string{"b.go"}},
		{ID: "s3", Priority: 3, TargetFiles: []string{"c.go"}},
	}

	result, err := sched.Run(context.Background(), stories)
	require.NoError(t, err)
	assert.False(t, result.AllPassed)
	assert.Less(t, result.StoriesPassed, result.TotalStories)
}
