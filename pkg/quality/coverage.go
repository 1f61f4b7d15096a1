package quality

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
)

// coveragePercentPattern matches go test -cover's "coverage: NN.N% of
// statements" summary line, the sole coverage format go's own toolchain
// emits.
var coveragePercentPattern = regexp.MustCompile(`coverage:\s+(\d+(?:\.\d+)?)%\s+of statements`)

// CheckCoverage runs the coverage tool and compares the result against the
// profile's threshold. A threshold of 0 disables the gate.
func (c *Checker) CheckCoverage(ctx context.Context) GateResult {
	if c.profile.CoverageThreshold <= 0 {
		return Skipped("coverage", "Coverage threshold not configured")
	}

	stdout, stderr, err := c.runCommand(ctx, c.commands.CoverageCmd)
	if err != nil && stdout == "" {
		return Fail("coverage", "Failed to run coverage tool",
			fmt.Sprintf("Error: %v\nIs the Go toolchain installed?\n%s", err, stderr), nil)
	}

	pct, ok := parseCoveragePercentage(stdout)
	if !ok {
		return Fail("coverage", "Could not parse coverage output",
			"No coverage percentage found in tool output", nil)
	}

	return evaluateCoverage(pct, float64(c.profile.CoverageThreshold))
}

func parseCoveragePercentage(output string) (float64, bool) {
	m := coveragePercentPattern.FindStringSubmatch(output)
	if m == nil {
		return 0, false
	}
	pct, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return pct, true
}

func evaluateCoverage(pct, threshold float64) GateResult {
	if pct >= threshold {
		return Pass("coverage", fmt.Sprintf("Coverage %.2f%% meets threshold %.2f%%", pct, threshold))
	}
	return Fail("coverage",
		fmt.Sprintf("Coverage %.2f%% below threshold %.2f%%", pct, threshold),
		"",
		[]GateFailureDetail{
			NewGateFailureDetail(FailureCoverage, fmt.Sprintf("Coverage %.2f%% below threshold %.2f%%", pct, threshold)),
		})
}
