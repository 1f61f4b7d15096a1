package config

// TokenCost is the per-1K-token price schedule (in cents) for a model.
type TokenCost struct {
	InputCostPer1K  float64 `yaml:"input_cost_per_1k" json:"input_cost_per_1k"`
	OutputCostPer1K float64 `yaml:"output_cost_per_1k" json:"output_cost_per_1k"`
	ModelName       string  `yaml:"model_name" json:"model_name"`
}

// DefaultTokenCost prices Claude Sonnet 3.5.
func DefaultTokenCost() TokenCost {
	return TokenCost{InputCostPer1K: 0.3, OutputCostPer1K: 1.5, ModelName: "claude-sonnet"}
}

// HaikuTokenCost prices Claude Haiku (cheaper).
func HaikuTokenCost() TokenCost {
	return TokenCost{InputCostPer1K: 0.025, OutputCostPer1K: 0.125, ModelName: "claude-haiku"}
}

// OpusTokenCost prices Claude Opus (expensive).
func OpusTokenCost() TokenCost {
	return TokenCost{InputCostPer1K: 1.5, OutputCostPer1K: 7.5, ModelName: "claude-opus"}
}

// CalculateCost returns the cost in cents for the given token counts.
func (c TokenCost) CalculateCost(inputTokens, outputTokens uint64) float64 {
	inputCost := (float64(inputTokens) / 1000.0) * c.InputCostPer1K
	outputCost := (float64(outputTokens) / 1000.0) * c.OutputCostPer1K
	return inputCost + outputCost
}

// TokenBudgetConfig configures pkg/budget.Tracker.
//
//nolint:govet // logical field grouping preferred over memory layout
type TokenBudgetConfig struct {
	StoryBudget                 uint64    `yaml:"story_budget" json:"story_budget"`
	TotalBudget                 uint64    `yaml:"total_budget" json:"total_budget"`
	MaxCostCents                float64   `yaml:"max_cost_cents" json:"max_cost_cents"`
	WarningThreshold             float64   `yaml:"warning_threshold" json:"warning_threshold"`
	CriticalThreshold            float64   `yaml:"critical_threshold" json:"critical_threshold"`
	AbortOnStoryBudgetExceeded  bool      `yaml:"abort_on_story_budget_exceeded" json:"abort_on_story_budget_exceeded"`
	AbortOnTotalBudgetExceeded  bool      `yaml:"abort_on_total_budget_exceeded" json:"abort_on_total_budget_exceeded"`
	CostSettings                TokenCost `yaml:"cost_settings" json:"cost_settings"`
	ReserveBuffer                uint64    `yaml:"reserve_buffer" json:"reserve_buffer"`
	VerboseLogging               bool      `yaml:"verbose_logging" json:"verbose_logging"`
}

// DefaultTokenBudgetConfig mirrors the source project's defaults.
func DefaultTokenBudgetConfig() TokenBudgetConfig {
	return TokenBudgetConfig{
		StoryBudget:                100_000,
		TotalBudget:                1_000_000,
		MaxCostCents:               0,
		WarningThreshold:           0.7,
		CriticalThreshold:          0.9,
		AbortOnStoryBudgetExceeded: true,
		AbortOnTotalBudgetExceeded: true,
		CostSettings:               DefaultTokenCost(),
		ReserveBuffer:               5_000,
		VerboseLogging:              false,
	}
}

// UnlimitedTokenBudgetConfig disables all enforcement.
func UnlimitedTokenBudgetConfig() TokenBudgetConfig {
	return TokenBudgetConfig{
		StoryBudget:                0,
		TotalBudget:                0,
		MaxCostCents:               0,
		WarningThreshold:           1.0,
		CriticalThreshold:          1.0,
		AbortOnStoryBudgetExceeded: false,
		AbortOnTotalBudgetExceeded: false,
		CostSettings:               DefaultTokenCost(),
		ReserveBuffer:               0,
		VerboseLogging:              false,
	}
}

// ConservativeTokenBudgetConfig applies stricter limits.
func ConservativeTokenBudgetConfig() TokenBudgetConfig {
	return TokenBudgetConfig{
		StoryBudget:                50_000,
		TotalBudget:                500_000,
		MaxCostCents:               100.0,
		WarningThreshold:           0.5,
		CriticalThreshold:          0.8,
		AbortOnStoryBudgetExceeded: true,
		AbortOnTotalBudgetExceeded: true,
		CostSettings:               DefaultTokenCost(),
		ReserveBuffer:               10_000,
		VerboseLogging:              true,
	}
}

// IsEnabled reports whether any budget dimension has enforcement configured.
func (c TokenBudgetConfig) IsEnabled() bool {
	return c.StoryBudget > 0 || c.TotalBudget > 0 || c.MaxCostCents > 0
}

// EffectiveStoryBudget returns the per-story budget minus the reserve buffer.
func (c TokenBudgetConfig) EffectiveStoryBudget() uint64 {
	if c.ReserveBuffer >= c.StoryBudget {
		return 0
	}
	return c.StoryBudget - c.ReserveBuffer
}
