package scheduler

import (
	"context"
	"fmt"
	"os/exec"
)

// AgentBinary names a supported external agent CLI. The scheduler itself
// never shells out; this is plumbing used by a concrete StoryExecutor (see
// cmd/ralph) to build the process invocation.
type AgentBinary string

const (
	AgentClaude AgentBinary = "claude"
	AgentCodex  AgentBinary = "codex"
	AgentOllama AgentBinary = "ollama"
)

// AgentCommand pairs a detected binary with the model it should drive.
type AgentCommand struct {
	Binary AgentBinary
	Path   string
	Model  string
}

// DetectAgentBinary looks for a supported agent CLI on PATH, preferring
// claude, then codex, then ollama. Returns an error listing every name
// tried when none are found, matching the "no agent" fatal-configuration
// case the scheduler's caller must abort on before dispatch.
func DetectAgentBinary() (AgentBinary, string, error) {
	candidates := []AgentBinary{AgentClaude, AgentCodex, AgentOllama}
	for _, name := range candidates {
		if path, err := exec.LookPath(string(name)); err == nil {
			return name, path, nil
		}
	}
	return "", "", fmt.Errorf("no agent binary found on PATH (tried %v)", candidates)
}

// Args builds the process arguments to drive one story's prompt through the
// detected binary in non-interactive, single-shot mode.
func (c AgentCommand) Args(prompt string) []string {
	switch c.Binary {
	case AgentCodex:
		args := []string{"exec", "--skip-git-repo-check"}
		if c.Model != "" {
			args = append(args, "--model", c.Model)
		}
		return append(args, prompt)
	case AgentOllama:
		model := c.Model
		if model == "" {
			model = "llama3"
		}
		return []string{"run", model, prompt}
	case AgentClaude:
		fallthrough
	default:
		args := []string{"-p", prompt, "--output-format", "json"}
		if c.Model != "" {
			args = append(args, "--model", c.Model)
		}
		return args
	}
}

// Command returns an *exec.Cmd ready to run in workDir, with ctx bounding
// its lifetime (callers apply the agent_timeout via ctx).
func (c AgentCommand) Command(ctx context.Context, workDir, prompt string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, c.Path, c.Args(prompt)...)
	cmd.Dir = workDir
	return cmd
}
