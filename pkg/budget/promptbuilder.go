package budget

import (
	"fmt"
	"strings"
)

// ErrorEntry is one prior failed attempt, as recorded by the scheduler's
// retry loop.
type ErrorEntry struct {
	Iteration int
	Message   string
}

// Hint is a short operator-authored suggestion attached to a story.
type Hint struct {
	Text string
}

// PartialProgress summarizes work already done on a story across prior
// iterations, used to avoid re-deriving the same plan from scratch.
type PartialProgress struct {
	FilesTouched   []string
	GatesPassed    []string
	LastSummary    string
}

// PromptBuilder assembles the budget-aware sections of a story's agent
// prompt, trimming detail according to a PromptStrategy so that a
// degraded-budget run still produces a prompt that fits.
type PromptBuilder struct {
	Strategy PromptStrategy
}

// NewPromptBuilder returns a builder bound to strategy.
func NewPromptBuilder(strategy PromptStrategy) *PromptBuilder {
	return &PromptBuilder{Strategy: strategy}
}

// BuildErrorHistory renders the most recent errors (oldest first within the
// kept window) truncated to the strategy's MaxErrorHistory, newest errors
// preferred when truncating.
func (b *PromptBuilder) BuildErrorHistory(errs []ErrorEntry) string {
	if len(errs) == 0 {
		return ""
	}

	kept := errs
	if len(kept) > b.Strategy.MaxErrorHistory {
		kept = kept[len(kept)-b.Strategy.MaxErrorHistory:]
	}

	var sb strings.Builder
	sb.WriteString("Previous attempt errors:\n")
	for _, e := range kept {
		fmt.Fprintf(&sb, "- [iteration %d] %s\n", e.Iteration, e.Message)
	}
	if len(kept) < len(errs) {
		fmt.Fprintf(&sb, "(%d earlier errors omitted)\n", len(errs)-len(kept))
	}
	return sb.String()
}

// BuildHints renders operator hints, omitted entirely when the strategy
// disables hints (Critical/Exceeded).
func (b *PromptBuilder) BuildHints(hints []Hint) string {
	if !b.Strategy.IncludeHints || len(hints) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Hints:\n")
	for _, h := range hints {
		fmt.Fprintf(&sb, "- %s\n", h.Text)
	}
	return sb.String()
}

// BuildPartialProgress renders prior progress, trimming the affected-files
// list to the strategy's MaxAffectedFiles and dropping the free-text summary
// entirely below Standard detail to save tokens.
func (b *PromptBuilder) BuildPartialProgress(p PartialProgress) string {
	if len(p.FilesTouched) == 0 && len(p.GatesPassed) == 0 && p.LastSummary == "" {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Progress so far:\n")

	files := p.FilesTouched
	if len(files) > b.Strategy.MaxAffectedFiles {
		files = files[:b.Strategy.MaxAffectedFiles]
	}
	if len(files) > 0 {
		fmt.Fprintf(&sb, "- Files touched: %s", strings.Join(files, ", "))
		if len(files) < len(p.FilesTouched) {
			fmt.Fprintf(&sb, " (+%d more)", len(p.FilesTouched)-len(files))
		}
		sb.WriteString("\n")
	}
	if len(p.GatesPassed) > 0 {
		fmt.Fprintf(&sb, "- Gates passed: %s\n", strings.Join(p.GatesPassed, ", "))
	}
	if b.Strategy.Detail == DetailStandard && p.LastSummary != "" {
		fmt.Fprintf(&sb, "- Last summary: %s\n", p.LastSummary)
	}
	return sb.String()
}
