// Package runmetrics collects and persists per-run execution metrics for
// the parallel story scheduler: step attempts, durations, gate timings,
// error category frequency, and run-level completeness.
package runmetrics

import "time"

// StoryMetrics captures one story's execution: how many iterations it took,
// how long the gates ran, and what it failed with, if anything.
type StoryMetrics struct {
	StoryID         string            `json:"story_id"`
	IterationsUsed  uint32            `json:"iterations_used"`
	MaxIterations   uint32            `json:"max_iterations"`
	TotalDuration   time.Duration     `json:"total_duration"`
	Success         bool              `json:"success"`
	GateDurations   map[string]time.Duration `json:"gate_durations"`
	ErrorCategories []string          `json:"error_categories"`
	FinalError      string            `json:"final_error,omitempty"`
	StartedAt       time.Time         `json:"started_at"`
	CompletedAt     time.Time         `json:"completed_at"`
}

// NewStoryMetrics begins tracking a story with a budget of maxIterations.
func NewStoryMetrics(storyID string, maxIterations uint32) *StoryMetrics {
	now := time.Now().UTC()
	return &StoryMetrics{
		StoryID:       storyID,
		MaxIterations: maxIterations,
		GateDurations: make(map[string]time.Duration),
		StartedAt:     now,
		CompletedAt:   now,
	}
}

// IterationEfficiency is the ratio of iterations used to the budget; lower
// is better. Zero budget reports zero rather than dividing by zero.
func (m *StoryMetrics) IterationEfficiency() float64 {
	if m.MaxIterations == 0 {
		return 0
	}
	return float64(m.IterationsUsed) / float64(m.MaxIterations)
}

// AverageGateDuration is the mean of all recorded gate durations.
func (m *StoryMetrics) AverageGateDuration() time.Duration {
	if len(m.GateDurations) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range m.GateDurations {
		total += d
	}
	return total / time.Duration(len(m.GateDurations))
}

// Complete marks the story finished.
func (m *StoryMetrics) Complete(success bool, duration time.Duration) {
	m.Success = success
	m.TotalDuration = duration
	m.CompletedAt = time.Now().UTC()
}

// GateDurationStats holds running duration statistics for one quality gate
// aggregated across every story that ran it.
type GateDurationStats struct {
	Count uint32        `json:"count"`
	Mean  time.Duration `json:"mean"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	Total time.Duration `json:"total"`
}

// AddSample folds one more duration observation into the stats.
func (s *GateDurationStats) AddSample(d time.Duration) {
	s.Count++
	s.Total += d
	s.Mean = s.Total / time.Duration(s.Count)
	if s.Count == 1 {
		s.Min, s.Max = d, d
		return
	}
	if d < s.Min {
		s.Min = d
	}
	if d > s.Max {
		s.Max = d
	}
}

// ExecutionMetrics aggregates StoryMetrics across a batch of stories.
type ExecutionMetrics struct {
	AvgIterationsPerStory  float64                       `json:"avg_iterations_per_story"`
	ParallelismEfficiency  float64                       `json:"parallelism_efficiency"`
	GateDurations          map[string]*GateDurationStats `json:"gate_durations"`
	ErrorFrequency         map[string]uint32             `json:"error_frequency"`
	TotalStories           uint32                        `json:"total_stories"`
	SuccessfulStories      uint32                        `json:"successful_stories"`
	FailedStories          uint32                        `json:"failed_stories"`
	TotalExecutionTime     time.Duration                 `json:"total_execution_time"`
	FirstTimeSuccessRate   float64                       `json:"first_time_success_rate"`
}

// SuccessRate is successful stories over total stories; zero when no
// stories ran.
func (e *ExecutionMetrics) SuccessRate() float64 {
	if e.TotalStories == 0 {
		return 0
	}
	return float64(e.SuccessfulStories) / float64(e.TotalStories)
}

// MostCommonError returns the error category with the highest frequency,
// and whether any error was recorded at all.
func (e *ExecutionMetrics) MostCommonError() (string, bool) {
	var best string
	var bestCount uint32
	for category, count := range e.ErrorFrequency {
		if count > bestCount {
			best, bestCount = category, count
		}
	}
	return best, bestCount > 0
}

// SlowestGate returns the gate name with the highest mean duration, and
// whether any gate duration was recorded at all.
func (e *ExecutionMetrics) SlowestGate() (string, bool) {
	var slowest string
	var slowestMean time.Duration
	found := false
	for name, stats := range e.GateDurations {
		if !found || stats.Mean > slowestMean {
			slowest, slowestMean, found = name, stats.Mean, true
		}
	}
	return slowest, found
}
