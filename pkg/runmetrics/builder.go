package runmetrics

import (
	"sync"
	"time"
)

// Builder accumulates StoryMetrics across an entire scheduler invocation
// and folds them into an ExecutionMetrics summary on Build.
type Builder struct {
	mu                sync.Mutex
	completedStories  []StoryMetrics
	currentStory      *StoryMetrics
	parallelStartedAt time.Time
	parallelWallTime  time.Duration
	parallelSumTime   time.Duration
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// StartStory begins tracking a new story, replacing any uncompleted one
// currently in progress (the scheduler should CompleteStory before
// starting the next when tracking sequentially; concurrent stories should
// each use their own Builder and be merged by the caller).
func (b *Builder) StartStory(storyID string, maxIterations uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.currentStory = NewStoryMetrics(storyID, maxIterations)
}

// RecordIteration updates the current story's iteration count.
func (b *Builder) RecordIteration(iteration uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.currentStory != nil {
		b.currentStory.IterationsUsed = iteration
	}
}

// RecordGateDuration records a gate's duration for the current story.
func (b *Builder) RecordGateDuration(gateName string, duration time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.currentStory != nil {
		b.currentStory.GateDurations[gateName] = duration
	}
}

// RecordError appends an error category for the current story.
func (b *Builder) RecordError(category string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.currentStory != nil {
		b.currentStory.ErrorCategories = append(b.currentStory.ErrorCategories, category)
	}
}

// CompleteStory finalizes the current story and folds it into the
// completed set.
func (b *Builder) CompleteStory(success bool, duration time.Duration, errMsg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.currentStory == nil {
		return
	}
	b.currentStory.Complete(success, duration)
	b.currentStory.FinalError = errMsg
	b.parallelSumTime += duration
	b.completedStories = append(b.completedStories, *b.currentStory)
	b.currentStory = nil
}

// AddStory folds an already-completed StoryMetrics into the builder
// directly, bypassing the StartStory/CompleteStory pair. Use this from
// concurrent callers that track their own per-story StoryMetrics locally
// (each story on its own goroutine) and only need to merge the finished
// result in; StartStory/CompleteStory assume a single story in flight at a
// time and will corrupt concurrent callers sharing one Builder.
func (b *Builder) AddStory(s StoryMetrics) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.parallelSumTime += s.TotalDuration
	b.completedStories = append(b.completedStories, s)
}

// StartParallel marks the beginning of a parallel batch, for computing
// parallelism efficiency once it ends.
func (b *Builder) StartParallel() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.parallelStartedAt = time.Now()
}

// EndParallel closes out a parallel batch begun with StartParallel.
func (b *Builder) EndParallel() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.parallelStartedAt.IsZero() {
		b.parallelWallTime = time.Since(b.parallelStartedAt)
		b.parallelStartedAt = time.Time{}
	}
}

// Build aggregates everything recorded so far into an ExecutionMetrics
// summary. It does not reset the builder.
func (b *Builder) Build() ExecutionMetrics {
	b.mu.Lock()
	defer b.mu.Unlock()

	total := uint32(len(b.completedStories))
	if total == 0 {
		return ExecutionMetrics{
			GateDurations:  make(map[string]*GateDurationStats),
			ErrorFrequency: make(map[string]uint32),
		}
	}

	var successful, totalIterations, firstTimeSuccesses uint32
	var totalExecutionTime time.Duration
	gateDurations := make(map[string]*GateDurationStats)
	errorFrequency := make(map[string]uint32)

	for _, story := range b.completedStories {
		if story.Success {
			successful++
			if story.IterationsUsed == 1 {
				firstTimeSuccesses++
			}
		}
		totalIterations += story.IterationsUsed
		totalExecutionTime += story.TotalDuration

		for gate, duration := range story.GateDurations {
			stats, ok := gateDurations[gate]
			if !ok {
				stats = &GateDurationStats{}
				gateDurations[gate] = stats
			}
			stats.AddSample(duration)
		}
		for _, category := range story.ErrorCategories {
			errorFrequency[category]++
		}
	}

	parallelismEfficiency := 1.0
	if b.parallelWallTime > 0 {
		parallelismEfficiency = b.parallelSumTime.Seconds() / b.parallelWallTime.Seconds()
	}

	return ExecutionMetrics{
		AvgIterationsPerStory: float64(totalIterations) / float64(total),
		ParallelismEfficiency: parallelismEfficiency,
		GateDurations:         gateDurations,
		ErrorFrequency:        errorFrequency,
		TotalStories:          total,
		SuccessfulStories:     successful,
		FailedStories:         total - successful,
		TotalExecutionTime:    totalExecutionTime,
		FirstTimeSuccessRate:  float64(firstTimeSuccesses) / float64(total),
	}
}
