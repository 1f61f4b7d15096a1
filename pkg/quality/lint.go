package quality

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// lintIssue mirrors golangci-lint's --out-format json Issues[] entry shape.
type lintIssue struct {
	FromLinter string `json:"FromLinter"`
	Text       string `json:"Text"`
	Severity   string `json:"Severity"`
	Pos        struct {
		Filename string `json:"Filename"`
		Line     int    `json:"Line"`
		Column   int    `json:"Column"`
	} `json:"Pos"`
	Replacement *struct {
		NewLines []string `json:"NewLines"`
	} `json:"Replacement"`
}

type lintReport struct {
	Issues []lintIssue `json:"Issues"`
}

// CheckLint runs the lint tool with structured (JSON) output, treating every
// reported issue as a failure. Falls back to line-based text parsing if JSON
// decoding produces no issues.
func (c *Checker) CheckLint(ctx context.Context) GateResult {
	if !c.profile.LintCheck {
		return Skipped("lint", "Lint checking not enabled in profile")
	}

	stdout, stderr, _ := c.runCommand(ctx, c.commands.LintCmd)

	failures := extractLintErrors(stdout, stderr)
	if len(failures) == 0 {
		return Pass("lint", "No lint issues found")
	}

	details := formatLintSummary(failures)
	plural := ""
	if len(failures) != 1 {
		plural = "s"
	}
	return Fail("lint", fmt.Sprintf("%d lint issue%s found", len(failures), plural), details, failures)
}

func extractLintErrors(stdout, stderr string) []GateFailureDetail {
	if failures := parseLintJSON(stdout); len(failures) > 0 {
		return failures
	}
	return parseLintText(stderr)
}

func parseLintJSON(stdout string) []GateFailureDetail {
	var report lintReport
	if err := json.Unmarshal([]byte(stdout), &report); err != nil {
		return nil
	}

	var failures []GateFailureDetail
	for _, issue := range report.Issues {
		if len(failures) >= maxFailuresPerGate {
			break
		}
		detail := NewGateFailureDetail(FailureLint, issue.Text).WithErrorCode(issue.FromLinter)
		if issue.Pos.Filename != "" {
			detail = detail.WithLocation(issue.Pos.Filename, uint32(issue.Pos.Line), uint32(issue.Pos.Column))
		}
		if issue.Replacement != nil && len(issue.Replacement.NewLines) > 0 {
			detail = detail.WithSuggestion(strings.Join(issue.Replacement.NewLines, "\n"))
		}
		failures = append(failures, detail)
	}
	return failures
}

// parseLintText falls back to golangci-lint's default "file:line:col:
// message (linter)" text format when JSON output is unavailable.
func parseLintText(stderr string) []GateFailureDetail {
	var failures []GateFailureDetail
	scanner := bufio.NewScanner(strings.NewReader(stderr))
	for scanner.Scan() {
		if len(failures) >= maxFailuresPerGate {
			break
		}
		line := scanner.Text()
		parts := strings.SplitN(line, ": ", 2)
		if len(parts) != 2 {
			continue
		}
		loc := strings.Split(parts[0], ":")
		if len(loc) < 3 {
			continue
		}
		failures = append(failures, NewGateFailureDetail(FailureLint, parts[1]).WithFile(loc[0]))
	}
	return failures
}

func formatLintSummary(failures []GateFailureDetail) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d lint issue(s):\n", len(failures))
	for i, f := range failures {
		if i >= maxFailuresPerGate {
			break
		}
		if f.File != "" {
			fmt.Fprintf(&sb, "%d. %s:%d: %s\n", i+1, f.File, f.Line, f.Message)
		} else {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, f.Message)
		}
	}
	if len(failures) > maxFailuresPerGate {
		fmt.Fprintf(&sb, "... and %d more issues\n", len(failures)-maxFailuresPerGate)
	}
	return sb.String()
}
