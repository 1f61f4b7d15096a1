package quality

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	"orchestrator/pkg/config"
)

const maxFailuresPerGate = 20

// Checker runs the configured quality gates against a project checkout.
// Tool invocations default to the Go toolchain (go test, golangci-lint,
// gofmt, govulncheck) but each command is overridable, since the driven
// agent's target repo need not be the orchestrator's own.
type Checker struct {
	profile     config.GateProfile
	projectRoot string
	commands    ToolCommands
}

// ToolCommands names the external binaries/args each gate shells out to.
type ToolCommands struct {
	CoverageCmd []string // e.g. ["go", "test", "-coverprofile=...", "./..."]
	LintCmd     []string // e.g. ["golangci-lint", "run", "--out-format", "json"]
	TestCmd     []string // e.g. ["go", "test", "-json", "./..."]
	FormatCmd   []string // e.g. ["gofmt", "-l", "."]
	AuditCmd    []string // e.g. ["govulncheck", "-json", "./..."]
	AuditCheckCmd []string // e.g. ["govulncheck", "-version"]
}

// DefaultToolCommands targets the standard Go toolchain plus golangci-lint
// and govulncheck, the two external binaries the other gates assume are on
// PATH.
func DefaultToolCommands() ToolCommands {
	return ToolCommands{
		CoverageCmd:   []string{"go", "test", "-cover", "./..."},
		LintCmd:       []string{"golangci-lint", "run", "--out-format", "json"},
		TestCmd:       []string{"go", "test", "-json", "./..."},
		FormatCmd:     []string{"gofmt", "-l", "."},
		AuditCmd:      []string{"govulncheck", "-json", "./..."},
		AuditCheckCmd: []string{"govulncheck", "-version"},
	}
}

// NewChecker constructs a Checker for projectRoot using the default Go
// toolchain commands.
func NewChecker(profile config.GateProfile, projectRoot string) *Checker {
	return &Checker{profile: profile, projectRoot: projectRoot, commands: DefaultToolCommands()}
}

// WithCommands returns a copy of c using the given tool commands instead of
// the defaults.
func (c *Checker) WithCommands(cmds ToolCommands) *Checker {
	clone := *c
	clone.commands = cmds
	return &clone
}

// Profile returns the gate profile this checker is configured with.
func (c *Checker) Profile() config.GateProfile { return c.profile }

// ProjectRoot returns the directory gates run their commands in.
func (c *Checker) ProjectRoot() string { return c.projectRoot }

func (c *Checker) runCommand(ctx context.Context, args []string) (stdout, stderr string, err error) {
	if len(args) == 0 {
		return "", "", exec.ErrNotFound
	}
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = c.projectRoot

	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	runErr := cmd.Run()
	return outBuf.String(), errBuf.String(), runErr
}

// RunAll runs every gate in spec order: coverage, tests, lint, format,
// security audit.
func (c *Checker) RunAll(ctx context.Context) []GateResult {
	return []GateResult{
		c.CheckCoverage(ctx),
		c.CheckTests(ctx),
		c.CheckLint(ctx),
		c.CheckFormat(ctx),
		c.CheckSecurityAudit(ctx),
	}
}

// ProgressFunc receives one update per gate transition.
type ProgressFunc func(ProgressUpdate)

// RunAllWithProgress runs every gate, invoking progress before and after
// each one with its elapsed duration.
func (c *Checker) RunAllWithProgress(ctx context.Context, progress ProgressFunc) []GateResult {
	gates := []struct {
		name string
		run  func(context.Context) GateResult
	}{
		{"coverage", c.CheckCoverage},
		{"tests", c.CheckTests},
		{"lint", c.CheckLint},
		{"format", c.CheckFormat},
		{"security_audit", c.CheckSecurityAudit},
	}

	results := make([]GateResult, 0, len(gates))
	for _, g := range gates {
		progress(runningUpdate(g.name))
		start := time.Now()
		result := g.run(ctx)
		elapsed := time.Since(start)
		if result.Passed {
			progress(passedUpdate(g.name, elapsed))
		} else {
			progress(failedUpdate(g.name, elapsed))
		}
		results = append(results, result)
	}
	return results
}
