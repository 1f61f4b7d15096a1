package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"orchestrator/pkg/scheduler"
)

func TestExitCodeFor_Success(t *testing.T) {
	result := scheduler.RunResult{AllPassed: true}
	assert.Equal(t, exitSuccess, exitCodeFor(result))
}

func TestExitCodeFor_CircuitBreaker(t *testing.T) {
	result := scheduler.RunResult{
		Error: errors.New("Circuit breaker triggered: 2 failures across batches (threshold: 2). Checkpoint saved. Resume with: ralph --resume"),
	}
	assert.Equal(t, exitCircuitBreaker, exitCodeFor(result))
}

func TestExitCodeFor_ReconciliationFailure(t *testing.T) {
	result := scheduler.RunResult{Error: errors.New("reconciliation failed after sequential retry")}
	assert.Equal(t, exitReconciliationFail, exitCodeFor(result))
}

func TestExitCodeFor_GenericFailure(t *testing.T) {
	result := scheduler.RunResult{Error: errors.New("some stories failed")}
	assert.Equal(t, exitFatal, exitCodeFor(result))
}

func TestExitCodeFor_NilErrorNotPassed(t *testing.T) {
	result := scheduler.RunResult{AllPassed: false, Error: nil}
	assert.Equal(t, exitFatal, exitCodeFor(result))
}
