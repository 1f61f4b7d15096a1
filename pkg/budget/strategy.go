package budget

// PromptDetail is the level of detail the prompt builder includes.
type PromptDetail string

const (
	DetailStandard PromptDetail = "standard"
	DetailMinimal  PromptDetail = "minimal"
	DetailCritical PromptDetail = "critical"
)

// PromptStrategy captures the budget-driven prompt construction policy for
// one of the four Status levels.
type PromptStrategy struct {
	Status               Status
	Detail               PromptDetail
	IncludeOptionalGates bool
	MaxErrorHistory      int
	MaxAffectedFiles     int
	IncludeHints         bool
	ContextMultiplier    float64
}

// Normal is the strategy for StatusOk.
func Normal(defaultRetryBudget int) PromptStrategy {
	return PromptStrategy{
		Status:               StatusOk,
		Detail:               DetailStandard,
		IncludeOptionalGates: true,
		MaxErrorHistory:      10,
		MaxAffectedFiles:     10,
		IncludeHints:         true,
		ContextMultiplier:    1.0,
	}
}

// warningStrategy is the strategy for StatusWarning.
func warningStrategy() PromptStrategy {
	return PromptStrategy{
		Status:               StatusWarning,
		Detail:               DetailStandard,
		IncludeOptionalGates: false,
		MaxErrorHistory:      5,
		MaxAffectedFiles:     5,
		IncludeHints:         true,
		ContextMultiplier:    0.7,
	}
}

// criticalStrategy is the strategy for StatusCritical.
func criticalStrategy() PromptStrategy {
	return PromptStrategy{
		Status:               StatusCritical,
		Detail:               DetailMinimal,
		IncludeOptionalGates: false,
		MaxErrorHistory:      2,
		MaxAffectedFiles:     2,
		IncludeHints:         false,
		ContextMultiplier:    0.3,
	}
}

// stopStrategy is the strategy for StatusExceeded.
func stopStrategy() PromptStrategy {
	return PromptStrategy{
		Status:               StatusExceeded,
		Detail:               DetailCritical,
		IncludeOptionalGates: false,
		MaxErrorHistory:      1,
		MaxAffectedFiles:     1,
		IncludeHints:         false,
		ContextMultiplier:    0.1,
	}
}

// FromStatus is a pure function mapping a budget Status to its prompt
// strategy.
func FromStatus(status Status) PromptStrategy {
	switch status {
	case StatusOk:
		return Normal(0)
	case StatusWarning:
		return warningStrategy()
	case StatusCritical:
		return criticalStrategy()
	case StatusExceeded:
		return stopStrategy()
	default:
		return Normal(0)
	}
}

// FromBudget derives the worst-case strategy across all three tracked
// dimensions for a given story.
func FromBudget(t *Tracker, storyID string) PromptStrategy {
	statuses := []Status{t.StoryStatus(storyID), t.TotalStatus(), t.CostStatus()}
	worst := StatusOk
	rank := map[Status]int{StatusOk: 0, StatusWarning: 1, StatusCritical: 2, StatusExceeded: 3}
	for _, s := range statuses {
		if rank[s] > rank[worst] {
			worst = s
		}
	}
	return FromStatus(worst)
}

// EffectiveMaxIterations halves the default retry budget in Critical (with a
// floor of 1) and zeroes it in Exceeded.
func (s PromptStrategy) EffectiveMaxIterations(defaultMax int) int {
	switch s.Status {
	case StatusCritical:
		half := defaultMax / 2
		if half < 1 {
			half = 1
		}
		return half
	case StatusExceeded:
		return 0
	default:
		return defaultMax
	}
}

// ShouldContinue reports whether another iteration is permitted under this
// strategy, given the iteration index already attempted (0-based) and the
// default retry budget.
func (s PromptStrategy) ShouldContinue(iterationsUsed, defaultMax int) bool {
	return iterationsUsed < s.EffectiveMaxIterations(defaultMax)
}
