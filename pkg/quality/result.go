// Package quality runs the five quality gates (coverage, tests, lint,
// format, security audit) against a project checkout and reports structured
// pass/fail results.
package quality

import (
	"fmt"
	"time"
)

// FailureCategory classifies a single structured gate failure.
type FailureCategory string

const (
	FailureLint      FailureCategory = "lint"
	FailureTypeCheck FailureCategory = "type_check"
	FailureTest      FailureCategory = "test"
	FailureFormat    FailureCategory = "format"
	FailureSecurity  FailureCategory = "security"
	FailureCoverage  FailureCategory = "coverage"
)

// GateFailureDetail is one structured diagnostic extracted from a gate's
// tool output (a lint warning, a failing test, an unformatted file, ...).
type GateFailureDetail struct {
	File        string
	Line        uint32
	Column      uint32
	ErrorCode   string
	Category    FailureCategory
	Message     string
	Suggestion  string
	DocURL      string
}

// NewGateFailureDetail constructs a detail with only the required fields set.
func NewGateFailureDetail(category FailureCategory, message string) GateFailureDetail {
	return GateFailureDetail{Category: category, Message: message}
}

func (d GateFailureDetail) WithFile(file string) GateFailureDetail {
	d.File = file
	return d
}

func (d GateFailureDetail) WithLine(line uint32) GateFailureDetail {
	d.Line = line
	return d
}

func (d GateFailureDetail) WithColumn(column uint32) GateFailureDetail {
	d.Column = column
	return d
}

func (d GateFailureDetail) WithLocation(file string, line, column uint32) GateFailureDetail {
	d.File = file
	d.Line = line
	d.Column = column
	return d
}

func (d GateFailureDetail) WithErrorCode(code string) GateFailureDetail {
	d.ErrorCode = code
	return d
}

func (d GateFailureDetail) WithSuggestion(suggestion string) GateFailureDetail {
	d.Suggestion = suggestion
	return d
}

func (d GateFailureDetail) WithDocURL(url string) GateFailureDetail {
	d.DocURL = url
	return d
}

// GateResult is the outcome of running a single quality gate.
type GateResult struct {
	GateName string
	Passed   bool
	Message  string
	Details  string
	Failures []GateFailureDetail
}

// Pass constructs a passing GateResult.
func Pass(gateName, message string) GateResult {
	return GateResult{GateName: gateName, Passed: true, Message: message}
}

// Fail constructs a failing GateResult.
func Fail(gateName, message, details string, failures []GateFailureDetail) GateResult {
	return GateResult{GateName: gateName, Passed: false, Message: message, Details: details, Failures: failures}
}

// Skipped constructs a GateResult for a gate disabled in the profile. Skipped
// gates count as passed.
func Skipped(gateName, reason string) GateResult {
	return GateResult{GateName: gateName, Passed: true, Message: "Skipped: " + reason}
}

// ProgressState is the lifecycle state of a gate reported via a progress
// callback.
type ProgressState int

const (
	ProgressRunning ProgressState = iota
	ProgressPassed
	ProgressFailed
)

// ProgressUpdate is emitted before and after each gate runs.
type ProgressUpdate struct {
	GateName string
	State    ProgressState
	Duration time.Duration // zero for ProgressRunning
}

func runningUpdate(gateName string) ProgressUpdate {
	return ProgressUpdate{GateName: gateName, State: ProgressRunning}
}

func passedUpdate(gateName string, d time.Duration) ProgressUpdate {
	return ProgressUpdate{GateName: gateName, State: ProgressPassed, Duration: d}
}

func failedUpdate(gateName string, d time.Duration) ProgressUpdate {
	return ProgressUpdate{GateName: gateName, State: ProgressFailed, Duration: d}
}

// IsCompleted reports whether the update reflects a terminal state.
func (u ProgressUpdate) IsCompleted() bool {
	return u.State == ProgressPassed || u.State == ProgressFailed
}

// FormatDuration renders Duration the way the CLI progress display does:
// "{m}m{s:.1}s" once a minute has elapsed, else "{s:.1}s".
func (u ProgressUpdate) FormatDuration() string {
	if u.Duration == 0 && u.State == ProgressRunning {
		return ""
	}
	if u.Duration >= time.Minute {
		minutes := int(u.Duration / time.Minute)
		secs := float64(u.Duration%time.Minute) / float64(time.Second)
		return fmt.Sprintf("%dm%.1fs", minutes, secs)
	}
	return fmt.Sprintf("%.1fs", u.Duration.Seconds())
}

// AllPassed reports whether every gate in results passed.
func AllPassed(results []GateResult) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}

// Summary renders a one-line pass/fail summary across results.
func Summary(results []GateResult) string {
	passed := 0
	var failed []string
	for _, r := range results {
		if r.Passed {
			passed++
		} else {
			failed = append(failed, r.GateName)
		}
	}
	total := len(results)
	if len(failed) == 0 {
		return fmt.Sprintf("All %d gates passed", total)
	}
	return fmt.Sprintf("%d/%d gates passed. Failed: %s", passed, total, joinComma(failed))
}

func joinComma(items []string) string {
	out := ""
	for i, item := range items {
		if i > 0 {
			out += ", "
		}
		out += item
	}
	return out
}
