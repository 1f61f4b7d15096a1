package quality

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// testEvent mirrors one line of `go test -json` output.
type testEvent struct {
	Action  string `json:"Action"`
	Package string `json:"Package"`
	Test    string `json:"Test"`
	Output  string `json:"Output"`
}

// CheckTests runs the test suite with no-fail-fast semantics (go test -json
// reports every test regardless of earlier failures) and extracts structured
// failure details from the event stream.
func (c *Checker) CheckTests(ctx context.Context) GateResult {
	if !c.profile.UnitTests {
		return Skipped("tests", "Unit testing not enabled in profile")
	}

	stdout, stderr, runErr := c.runCommand(ctx, c.commands.TestCmd)
	if runErr == nil {
		return Pass("tests", "All tests passed")
	}

	failures := extractTestFailures(stdout, stderr)
	details := formatTestSummary(failures)
	plural := ""
	if len(failures) != 1 {
		plural = "s"
	}
	return Fail("tests", fmt.Sprintf("%d test%s failed", len(failures), plural), details, failures)
}

// extractTestFailures walks the go test -json event stream, collecting one
// failure per distinct "fail" action, with the test's accumulated output as
// the message body. Falls back to scanning stderr for "--- FAIL:" lines when
// the JSON stream is empty or malformed (plain `go test` output).
func extractTestFailures(stdout, stderr string) []GateFailureDetail {
	var failures []GateFailureDetail
	seen := make(map[string]bool)
	outputByTest := make(map[string]string)

	scanner := bufio.NewScanner(strings.NewReader(stdout))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	sawJSON := false
	for scanner.Scan() {
		var ev testEvent
		line := scanner.Text()
		if line == "" {
			continue
		}
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			continue
		}
		sawJSON = true
		if ev.Test == "" {
			continue
		}
		key := ev.Package + "/" + ev.Test
		switch ev.Action {
		case "output":
			outputByTest[key] += ev.Output
		case "fail":
			if seen[key] || len(failures) >= maxFailuresPerGate {
				continue
			}
			seen[key] = true
			failures = append(failures, NewGateFailureDetail(FailureTest,
				fmt.Sprintf("%s: %s", ev.Test, strings.TrimSpace(outputByTest[key]))))
		}
	}

	if !sawJSON {
		return extractTestFailuresText(stderr + stdout)
	}
	return failures
}

// extractTestFailuresText parses the plain-text `go test` failure format
// ("--- FAIL: TestName (0.00s)") when -json output wasn't available.
func extractTestFailuresText(output string) []GateFailureDetail {
	var failures []GateFailureDetail
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		if len(failures) >= maxFailuresPerGate {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "--- FAIL:") {
			continue
		}
		name := strings.TrimSpace(strings.TrimPrefix(line, "--- FAIL:"))
		if idx := strings.Index(name, "("); idx >= 0 {
			name = strings.TrimSpace(name[:idx])
		}
		failures = append(failures, NewGateFailureDetail(FailureTest, name))
	}
	return failures
}

func formatTestSummary(failures []GateFailureDetail) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d test(s) failed:\n", len(failures))
	for i, f := range failures {
		if i >= maxFailuresPerGate {
			break
		}
		fmt.Fprintf(&sb, "%d. %s\n", i+1, f.Message)
	}
	if len(failures) > maxFailuresPerGate {
		fmt.Fprintf(&sb, "... and %d more failures\n", len(failures)-maxFailuresPerGate)
	}
	return sb.String()
}
