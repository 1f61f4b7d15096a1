package reconcile

import (
	"bufio"
	"context"
	"os/exec"
	"strings"
)

// gitConflictPrefixes are the `git status --porcelain` status codes that
// mark an unresolved merge conflict (unmerged paths).
var gitConflictPrefixes = []string{"UU ", "AA ", "DD ", "AU ", "UA ", "DU ", "UD "}

// Engine examines a working copy for cross-story corruption after a batch
// of stories has run in parallel.
type Engine struct {
	workingDir string
	buildCmd   []string
}

// NewEngine builds a reconciliation engine rooted at workingDir, using the
// Go toolchain's own build step to surface type errors.
func NewEngine(workingDir string) *Engine {
	return &Engine{workingDir: workingDir, buildCmd: []string{"go", "build", "./..."}}
}

// WithBuildCommand overrides the command used to detect type mismatches.
func (e *Engine) WithBuildCommand(cmd []string) *Engine {
	clone := *e
	clone.buildCmd = cmd
	return &clone
}

// Reconcile runs one inspection pass: git conflict markers, then (if none)
// a build to catch type errors from combining stories, then a duplicate
// import scan. Running Reconcile twice on an already-clean workspace
// yields Clean both times.
func (e *Engine) Reconcile(ctx context.Context) (Result, error) {
	var issues []Issue

	conflictFiles, err := e.gitConflicts(ctx)
	if err != nil {
		return Result{}, err
	}
	if len(conflictFiles) > 0 {
		issues = append(issues, GitConflictIssue(conflictFiles))
	}

	typeIssues, err := e.typeMismatches(ctx)
	if err != nil {
		return Result{}, err
	}
	issues = append(issues, typeIssues...)

	if e.hasDuplicateImports(ctx) {
		issues = append(issues, ImportDuplicateIssue())
	}

	return Result{Issues: issues}, nil
}

func (e *Engine) gitConflicts(ctx context.Context) ([]string, error) {
	out, err := e.run(ctx, "git", "status", "--porcelain")
	if err != nil {
		return nil, err
	}

	var files []string
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) < 3 {
			continue
		}
		status := line[:3]
		for _, prefix := range gitConflictPrefixes {
			if status == prefix {
				files = append(files, strings.TrimSpace(line[3:]))
				break
			}
		}
	}
	return files, nil
}

// typeMismatches runs the build command and parses compiler diagnostics of
// the form "path/to/file.go:12:5: undefined: foo" into one issue per file.
func (e *Engine) typeMismatches(ctx context.Context) ([]Issue, error) {
	out, runErr := e.run(ctx, e.buildCmd[0], e.buildCmd[1:]...)
	if runErr == nil {
		return nil, nil
	}

	seen := make(map[string]struct{})
	var issues []Issue
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		file, message, ok := parseBuildDiagnostic(line)
		if !ok {
			continue
		}
		if _, dup := seen[file]; dup {
			continue
		}
		seen[file] = struct{}{}
		issues = append(issues, TypeMismatchIssue(file, message))
	}
	if len(issues) == 0 {
		issues = append(issues, TypeMismatchIssue("unknown", strings.TrimSpace(out)))
	}
	return issues, nil
}

// parseBuildDiagnostic splits a "file.go:line:col: message" line into its
// file and message parts.
func parseBuildDiagnostic(line string) (file, message string, ok bool) {
	if !strings.Contains(line, ".go:") {
		return "", "", false
	}
	parts := strings.SplitN(line, ":", 4)
	if len(parts) < 4 {
		return "", "", false
	}
	if !strings.HasSuffix(parts[0], ".go") {
		return "", "", false
	}
	return parts[0], strings.TrimSpace(parts[3]), true
}

// hasDuplicateImports lists the Go files changed against HEAD with
// `git diff --name-only` and scans each one's import block for a repeated
// import path. It is a line-based scan, not an AST parse; a git failure or
// an empty diff reports false.
func (e *Engine) hasDuplicateImports(ctx context.Context) bool {
	out, err := e.run(ctx, "git", "diff", "--name-only", "--diff-filter=ACMR", "HEAD")
	if err != nil || strings.TrimSpace(out) == "" {
		return false
	}

	for _, file := range strings.Split(strings.TrimSpace(out), "\n") {
		file = strings.TrimSpace(file)
		if !strings.HasSuffix(file, ".go") {
			continue
		}
		if fileHasDuplicateImport(e.workingDir, file) {
			return true
		}
	}
	return false
}

func (e *Engine) run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = e.workingDir
	out, err := cmd.CombinedOutput()
	return string(out), err
}
