package quality

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// CheckFormat runs gofmt -l, which lists every file needing reformatting,
// one path per line, with nothing printed when the tree is clean.
func (c *Checker) CheckFormat(ctx context.Context) GateResult {
	if !c.profile.FormatCheck {
		return Skipped("format", "Format checking not enabled in profile")
	}

	stdout, stderr, err := c.runCommand(ctx, c.commands.FormatCmd)
	if err != nil && stdout == "" && stderr != "" {
		return Fail("format", "Failed to run gofmt", fmt.Sprintf("Error: %v. Is gofmt installed?", err), nil)
	}

	failures := extractFormatErrors(stdout, stderr)
	if len(failures) == 0 {
		return Pass("format", "All files are properly formatted")
	}

	details := formatFormatSummary(failures)
	plural := ""
	if len(failures) != 1 {
		plural = "s"
	}
	return Fail("format", fmt.Sprintf("%d file%s need formatting", len(failures), plural), details, failures)
}

func extractFormatErrors(stdout, stderr string) []GateFailureDetail {
	var failures []GateFailureDetail
	scanner := bufio.NewScanner(strings.NewReader(stdout))
	for scanner.Scan() {
		path := strings.TrimSpace(scanner.Text())
		if path == "" {
			continue
		}
		failures = append(failures, NewGateFailureDetail(FailureFormat, fmt.Sprintf("File needs formatting: %s", path)).
			WithFile(path).
			WithSuggestion("Run gofmt -w to fix"))
		if len(failures) >= maxFailuresPerGate {
			break
		}
	}

	if len(failures) == 0 && stderr != "" {
		failures = append(failures, NewGateFailureDetail(FailureFormat, stderr).WithSuggestion("Run gofmt -w to fix"))
	}
	return failures
}

func formatFormatSummary(failures []GateFailureDetail) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d file(s) need formatting:\n", len(failures))
	for i, f := range failures {
		if i >= maxFailuresPerGate {
			break
		}
		if f.File != "" {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, f.File)
		} else {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, f.Message)
		}
	}
	if len(failures) > maxFailuresPerGate {
		fmt.Fprintf(&sb, "... and %d more files\n", len(failures)-maxFailuresPerGate)
	}
	sb.WriteString("\nRun `gofmt -w` to fix formatting issues.")
	return sb.String()
}
