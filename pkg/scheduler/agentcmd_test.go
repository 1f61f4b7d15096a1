package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAgentCommand_Args_Claude(t *testing.T) {
	cmd := AgentCommand{Binary: AgentClaude, Model: "claude-sonnet"}
	args := cmd.Args("do the thing")
	assert.Contains(t, args, "-p")
	assert.Contains(t, args, "do the thing")
	assert.Contains(t, args, "--model")
	assert.Contains(t, args, "claude-sonnet")
}

func TestAgentCommand_Args_Codex(t *testing.T) {
	cmd := AgentCommand{Binary: AgentCodex}
	args := cmd.Args("do the thing")
	assert.Equal(t, []string{"exec", "--skip-git-repo-check", "do the thing"}, args)
}

func TestAgentCommand_Args_Ollama_DefaultsModel(t *testing.T) {
	cmd := AgentCommand{Binary: AgentOllama}
	args := cmd.Args("do the thing")
	assert.Equal(t, []string{"run", "llama3", "do the thing"}, args)
}

func TestDetectAgentBinary_NoneOnPath(t *testing.T) {
	t.Setenv("PATH", "")
	_, _, err := DetectAgentBinary()
	assert.Error(t, err)
}
