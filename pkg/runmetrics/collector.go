package runmetrics

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// StepMetrics captures one step's (one story's) attempts within a run.
type StepMetrics struct {
	StepID      string        `json:"step_id"`
	Attempts    uint32        `json:"attempts"`
	Duration    time.Duration `json:"duration"`
	Success     bool          `json:"success"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
	Error       string        `json:"error,omitempty"`
}

func newStepMetrics(stepID string) *StepMetrics {
	now := time.Now().UTC()
	return &StepMetrics{StepID: stepID, StartedAt: now, CompletedAt: now}
}

// RunMetrics is a point-in-time snapshot of an entire run's progress,
// suitable for persisting to disk or exporting.
type RunMetrics struct {
	RunID               string                   `json:"run_id"`
	StartedAt           time.Time                `json:"started_at"`
	CompletedAt         time.Time                `json:"completed_at"`
	RecordedAt          time.Time                `json:"recorded_at"`
	RunDuration         time.Duration            `json:"run_duration"`
	ExpectedSteps       uint32                   `json:"expected_steps"`
	StepsAttempted      uint32                   `json:"steps_attempted"`
	StepsCompleted      uint32                   `json:"steps_completed"`
	Failures            uint32                   `json:"failures"`
	Retries             uint32                   `json:"retries"`
	CompletenessPercent float64                  `json:"completeness_percent"`
	StepDurations       map[string]time.Duration `json:"step_durations"`
	Steps               []StepMetrics            `json:"steps"`
}

type collectorState struct {
	runID         string
	startedAt     time.Time
	startedClock  time.Time
	expectedSteps int
	steps         map[string]*StepMetrics
	evidenceSteps map[string]struct{}
}

// Collector accumulates step outcomes for a single run concurrently and
// produces a RunMetrics snapshot on Finish. Safe for concurrent use by the
// scheduler's dispatch goroutines.
type Collector struct {
	mu    sync.Mutex
	state collectorState
}

// NewCollector begins tracking a run expecting expectedSteps steps.
func NewCollector(runID string, expectedSteps int) *Collector {
	return &Collector{
		state: collectorState{
			runID:         runID,
			startedAt:     time.Now().UTC(),
			startedClock:  time.Now(),
			expectedSteps: expectedSteps,
			steps:         make(map[string]*StepMetrics),
			evidenceSteps: make(map[string]struct{}),
		},
	}
}

// GenerateRunID produces a run identifier of the form run-<unix_ms>-<pid>.
func GenerateRunID() string {
	return fmt.Sprintf("run-%d-%d", time.Now().UTC().UnixMilli(), os.Getpid())
}

// SetExpectedSteps updates the run's expected step count, for cases where
// the batch size is only known after dependency resolution narrows it.
func (c *Collector) SetExpectedSteps(expectedSteps int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.expectedSteps = expectedSteps
}

// StartStep records the beginning of a step if not already tracked.
func (c *Collector) StartStep(stepID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.state.steps[stepID]; !ok {
		c.state.steps[stepID] = newStepMetrics(stepID)
	}
}

// RecordEvidenceStep marks that durable evidence was captured for stepID,
// feeding the run's completeness percentage.
func (c *Collector) RecordEvidenceStep(stepID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.evidenceSteps[stepID] = struct{}{}
}

// CompleteStep records a step's final outcome.
func (c *Collector) CompleteStep(stepID string, success bool, attempts uint32, duration time.Duration, errMsg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.state.steps[stepID]
	if !ok {
		entry = newStepMetrics(stepID)
		c.state.steps[stepID] = entry
	}
	entry.Attempts = attempts
	entry.Duration = duration
	entry.Success = success
	entry.CompletedAt = time.Now().UTC()
	entry.Error = errMsg
}

// Finish builds a RunMetrics snapshot from everything recorded so far. It
// does not stop collection; callers typically call it once at run end.
func (c *Collector) Finish() RunMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	completedAt := time.Now().UTC()
	runDuration := time.Since(c.state.startedClock)

	var stepsCompleted, retries uint32
	stepDurations := make(map[string]time.Duration, len(c.state.steps))
	steps := make([]StepMetrics, 0, len(c.state.steps))
	for id, step := range c.state.steps {
		if step.Success {
			stepsCompleted++
		}
		if step.Attempts > 0 {
			retries += step.Attempts - 1
		}
		stepDurations[id] = step.Duration
		steps = append(steps, *step)
	}
	stepsAttempted := uint32(len(c.state.steps))
	failures := stepsAttempted - stepsCompleted

	completeness := 100.0
	if c.state.expectedSteps > 0 {
		completeness = (float64(len(c.state.evidenceSteps)) / float64(c.state.expectedSteps)) * 100.0
		if completeness > 100.0 {
			completeness = 100.0
		}
	}

	return RunMetrics{
		RunID:               c.state.runID,
		StartedAt:           c.state.startedAt,
		CompletedAt:         completedAt,
		RecordedAt:          completedAt,
		RunDuration:         runDuration,
		ExpectedSteps:       uint32(c.state.expectedSteps),
		StepsAttempted:      stepsAttempted,
		StepsCompleted:      stepsCompleted,
		Failures:            failures,
		Retries:             retries,
		CompletenessPercent: completeness,
		StepDurations:       stepDurations,
		Steps:               steps,
	}
}
