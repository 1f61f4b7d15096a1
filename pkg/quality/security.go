package quality

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// govulncheckFinding mirrors one "finding" entry in govulncheck -json's
// streamed output: {"finding": {"osv": "GO-2023-0001", "trace": [{"module":
// "example.com/mod", "version": "v1.0.0", "package": "..."}]}}.
type govulncheckFinding struct {
	Finding *struct {
		OSV   string `json:"osv"`
		Trace []struct {
			Module  string `json:"module"`
			Version string `json:"version"`
			Package string `json:"package"`
		} `json:"trace"`
	} `json:"finding"`
}

// CheckSecurityAudit runs govulncheck, checking its availability first so a
// missing binary produces install guidance rather than a confusing failure.
func (c *Checker) CheckSecurityAudit(ctx context.Context) GateResult {
	if !c.profile.SecurityAudit {
		return Skipped("security_audit", "Security audit not enabled in profile")
	}

	if _, _, err := c.runCommand(ctx, c.commands.AuditCheckCmd); err != nil {
		return Fail("security_audit", "govulncheck is not installed",
			"Install govulncheck: go install golang.org/x/vuln/cmd/govulncheck@latest\n"+
				"govulncheck checks for known security vulnerabilities in dependencies.", nil)
	}

	return c.runSecurityAudit(ctx)
}

func (c *Checker) runSecurityAudit(ctx context.Context) GateResult {
	stdout, stderr, runErr := c.runCommand(ctx, c.commands.AuditCmd)

	findings := parseVulncheckFindings(stdout)
	if len(findings) == 0 {
		if runErr == nil {
			return Pass("security_audit", "No known vulnerabilities found")
		}
		// Non-zero exit with no parseable findings: fall back to raw text.
		failures := extractAuditVulnerabilitiesText(stdout + stderr)
		if len(failures) == 0 {
			return Fail("security_audit", "Failed to run govulncheck", fmt.Sprintf("Error output: %s", stderr), nil)
		}
		return Fail("security_audit", securityMessage(len(failures)), formatAuditSummary(failures), failures)
	}

	return Fail("security_audit", securityMessage(len(findings)), formatAuditSummary(findings), findings)
}

func securityMessage(count int) string {
	plural := "ies"
	if count == 1 {
		plural = "y"
	}
	return fmt.Sprintf("Found %d known vulnerabilit%s", count, plural)
}

func parseVulncheckFindings(stdout string) []GateFailureDetail {
	var failures []GateFailureDetail
	scanner := bufio.NewScanner(strings.NewReader(stdout))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if len(failures) >= maxFailuresPerGate {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var evt govulncheckFinding
		if err := json.Unmarshal([]byte(line), &evt); err != nil || evt.Finding == nil {
			continue
		}
		detail := NewGateFailureDetail(FailureSecurity, "Known vulnerability in dependency").
			WithErrorCode(evt.Finding.OSV).
			WithDocURL(fmt.Sprintf("https://pkg.go.dev/vuln/%s", evt.Finding.OSV))
		if len(evt.Finding.Trace) > 0 {
			t := evt.Finding.Trace[0]
			detail.Message = fmt.Sprintf("%s@%s is affected by %s", t.Module, t.Version, evt.Finding.OSV)
		}
		failures = append(failures, detail)
	}
	return failures
}

func extractAuditVulnerabilitiesText(output string) []GateFailureDetail {
	var failures []GateFailureDetail
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		if len(failures) >= maxFailuresPerGate {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "Vulnerability #") || strings.Contains(line, "GO-20") {
			failures = append(failures, NewGateFailureDetail(FailureSecurity, line))
		}
	}
	return failures
}

func formatAuditSummary(failures []GateFailureDetail) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d vulnerabilit(y/ies) found:\n", len(failures))
	for i, f := range failures {
		if i >= maxFailuresPerGate {
			break
		}
		if f.ErrorCode != "" {
			fmt.Fprintf(&sb, "%d. [%s] %s\n", i+1, f.ErrorCode, f.Message)
		} else {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, f.Message)
		}
	}
	if len(failures) > maxFailuresPerGate {
		fmt.Fprintf(&sb, "... and %d more vulnerabilities\n", len(failures)-maxFailuresPerGate)
	}
	return sb.String()
}
