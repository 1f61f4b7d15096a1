package budget

import (
	"sync"

	"orchestrator/pkg/config"
	"orchestrator/pkg/logx"
)

// Status is the derived usage tag for a single budget dimension.
type Status string

const (
	StatusOk       Status = "ok"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
	StatusExceeded Status = "exceeded"
)

// statusForUsage derives Status from a usage fraction and the configured
// warning/critical thresholds.
func statusForUsage(usage, warningThreshold, criticalThreshold float64) Status {
	switch {
	case usage >= 1.0:
		return StatusExceeded
	case usage >= criticalThreshold:
		return StatusCritical
	case usage >= warningThreshold:
		return StatusWarning
	default:
		return StatusOk
	}
}

// StoryBudget tracks token usage for a single story.
type StoryBudget struct {
	StoryID      string
	InputTokens  uint64
	OutputTokens uint64
	Iterations   int
}

// Total returns the story's combined token usage.
func (s StoryBudget) Total() uint64 {
	return s.InputTokens + s.OutputTokens
}

// BudgetSummary is a structured snapshot of current usage across all
// dimensions, used by evidence payloads and the Prometheus exporter.
type BudgetSummary struct {
	TotalInputTokens  uint64
	TotalOutputTokens uint64
	TotalCostCents    float64
	StoryStatus       Status
	TotalStatus       Status
	CostStatus        Status
	StoryFraction     float64
	TotalFraction     float64
	CostFraction      float64
}

// Tracker enforces per-story, per-run, and cost token budgets and derives
// usage status per dimension. Safe for concurrent use: readers take an
// RLock, writers (Record*) take a brief Lock.
type Tracker struct {
	cfg      config.TokenBudgetConfig
	mu       sync.RWMutex
	stories  map[string]*StoryBudget
	total    TokenCount
	costCent float64
	logger   *logx.Logger
}

// NewTracker constructs a Tracker from the given config.
func NewTracker(cfg config.TokenBudgetConfig) *Tracker {
	return &Tracker{
		cfg:     cfg,
		stories: make(map[string]*StoryBudget),
		logger:  logx.NewLogger("budget"),
	}
}

// RecordIteration records one iteration's token usage against storyID,
// updating both the per-story and total counters monotonically.
func (t *Tracker) RecordIteration(storyID string, input, output uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	sb, ok := t.stories[storyID]
	if !ok {
		sb = &StoryBudget{StoryID: storyID}
		t.stories[storyID] = sb
	}
	sb.InputTokens += input
	sb.OutputTokens += output
	sb.Iterations++

	t.total.InputTokens += input
	t.total.OutputTokens += output
	t.costCent += t.cfg.CostSettings.CalculateCost(input, output)

	if t.cfg.VerboseLogging {
		t.logger.Info("story %s: +%d/+%d tokens (story total %d, run total %d)",
			storyID, input, output, sb.Total(), t.total.Total())
	}
}

// StoryStatus derives the Status for a single story's usage against the
// effective per-story budget (StoryBudget minus ReserveBuffer).
func (t *Tracker) StoryStatus(storyID string) Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.storyStatusLocked(storyID)
}

func (t *Tracker) storyStatusLocked(storyID string) Status {
	effective := t.cfg.EffectiveStoryBudget()
	if effective == 0 {
		return StatusOk
	}
	sb, ok := t.stories[storyID]
	var used uint64
	if ok {
		used = sb.Total()
	}
	usage := float64(used) / float64(effective)
	return statusForUsage(usage, t.cfg.WarningThreshold, t.cfg.CriticalThreshold)
}

// TotalStatus derives the Status for the run-wide total usage.
func (t *Tracker) TotalStatus() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.totalStatusLocked()
}

func (t *Tracker) totalStatusLocked() Status {
	if t.cfg.TotalBudget == 0 {
		return StatusOk
	}
	usage := float64(t.total.Total()) / float64(t.cfg.TotalBudget)
	return statusForUsage(usage, t.cfg.WarningThreshold, t.cfg.CriticalThreshold)
}

// CostStatus derives the Status for accumulated cost.
func (t *Tracker) CostStatus() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.costStatusLocked()
}

func (t *Tracker) costStatusLocked() Status {
	if t.cfg.MaxCostCents <= 0 {
		return StatusOk
	}
	usage := t.costCent / t.cfg.MaxCostCents
	return statusForUsage(usage, t.cfg.WarningThreshold, t.cfg.CriticalThreshold)
}

// CanContinueStory reports whether the given story may keep iterating: false
// iff the story or total dimension is Exceeded and its abort flag is set, or
// the cost dimension is Exceeded while a cost cap (MaxCostCents > 0) is set.
func (t *Tracker) CanContinueStory(storyID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.cfg.AbortOnStoryBudgetExceeded && t.storyStatusLocked(storyID) == StatusExceeded {
		return false
	}
	if t.cfg.AbortOnTotalBudgetExceeded && t.totalStatusLocked() == StatusExceeded {
		return false
	}
	if t.cfg.MaxCostCents > 0 && t.costStatusLocked() == StatusExceeded {
		return false
	}
	return true
}

// Summary returns a structured snapshot of current run-wide usage: the total
// and cost dimensions. Per-story status and fraction are left unset.
func (t *Tracker) Summary() BudgetSummary {
	t.mu.RLock()
	defer t.mu.RUnlock()

	summary := BudgetSummary{
		TotalInputTokens:  t.total.InputTokens,
		TotalOutputTokens: t.total.OutputTokens,
		TotalCostCents:    t.costCent,
		TotalStatus:       t.totalStatusLocked(),
		CostStatus:        t.costStatusLocked(),
	}
	if t.cfg.TotalBudget > 0 {
		summary.TotalFraction = float64(t.total.Total()) / float64(t.cfg.TotalBudget)
	}
	if t.cfg.MaxCostCents > 0 {
		summary.CostFraction = t.costCent / t.cfg.MaxCostCents
	}
	return summary
}

// StoryBudgetSnapshot returns a copy of the tracked usage for storyID.
func (t *Tracker) StoryBudgetSnapshot(storyID string) StoryBudget {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if sb, ok := t.stories[storyID]; ok {
		return *sb
	}
	return StoryBudget{StoryID: storyID}
}
