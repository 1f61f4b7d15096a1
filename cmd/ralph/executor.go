package main

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"orchestrator/pkg/budget"
	"orchestrator/pkg/config"
	"orchestrator/pkg/evidence"
	"orchestrator/pkg/heartbeat"
	"orchestrator/pkg/logx"
	"orchestrator/pkg/quality"
	"orchestrator/pkg/runmetrics"
	"orchestrator/pkg/scheduler"
)

var execLog = logx.NewLogger("executor")

// ProcessExecutor drives one story's iteration loop: it shells out to a
// detected agent binary, records the iteration's token usage against the
// budget tracker, gates acceptance on the quality checker, pulses a
// heartbeat monitor so a wedged agent invocation is visible as a stall
// rather than a silent hang, and feeds both the metrics collector and the
// evidence writer so the run's durable trail matches what actually
// happened. It is the default scheduler.StoryExecutor `cmd/ralph` wires
// up; nothing in pkg/scheduler depends on it.
type ProcessExecutor struct {
	agent          scheduler.AgentCommand
	workDir        string
	tracker        *budget.Tracker
	estimator      *budget.TokenEstimator
	checker        *quality.Checker
	timeouts       config.TimeoutConfig
	defaultMaxIter int
	collector      *runmetrics.Collector
	builder        *runmetrics.Builder
	evidenceW      *evidence.Writer
}

// NewProcessExecutor wires a ProcessExecutor from its collaborators.
// collector, builder, and evidenceW are optional (nil disables that
// concern) so executor.go can be unit tested without a filesystem.
func NewProcessExecutor(agent scheduler.AgentCommand, workDir string, tracker *budget.Tracker, checker *quality.Checker, timeouts config.TimeoutConfig, defaultMaxIter int, collector *runmetrics.Collector, builder *runmetrics.Builder, evidenceW *evidence.Writer) *ProcessExecutor {
	estimator := budget.NewTokenEstimator()
	if enc := newTiktokenEncoder(agent.Model); enc != nil {
		estimator = estimator.WithMethod(budget.EstimationTiktoken).WithTiktokenEncoder(enc)
	}

	return &ProcessExecutor{
		agent:          agent,
		workDir:        workDir,
		tracker:        tracker,
		estimator:      estimator,
		checker:        checker,
		timeouts:       timeouts,
		defaultMaxIter: defaultMaxIter,
		collector:      collector,
		builder:        builder,
		evidenceW:      evidenceW,
	}
}

// ExecuteStory implements scheduler.StoryExecutor.
func (p *ProcessExecutor) ExecuteStory(ctx context.Context, storyID string, onIteration scheduler.IterationFunc) (scheduler.ExecResult, error) {
	monitor := heartbeat.NewMonitor(p.timeouts)
	monitor.Start(ctx)
	defer monitor.Stop()
	go p.drainHeartbeat(ctx, storyID, monitor)

	start := time.Now()
	if p.collector != nil {
		p.collector.StartStep(storyID)
	}
	story := runmetrics.NewStoryMetrics(storyID, uint32(p.defaultMaxIter))

	var history []budget.ErrorEntry
	iterations := 0

	for {
		strategy := budget.FromBudget(p.tracker, storyID)
		maxIter := strategy.EffectiveMaxIterations(p.defaultMaxIter)
		if iterations >= maxIter || !p.tracker.CanContinueStory(storyID) {
			msg := fmt.Sprintf("token budget exhausted after %d iterations", iterations)
			p.finish(story, false, iterations, start, msg)
			return scheduler.ExecResult{Success: false, IterationsUsed: iterations, Error: msg},
				&scheduler.ExecError{Class: scheduler.ClassUsageLimit, Message: msg}
		}

		onIteration(iterations+1, maxIter)

		prompt := p.buildPrompt(storyID, strategy, history)

		iterCtx := ctx
		var cancel context.CancelFunc
		if p.timeouts.AgentTimeout > 0 {
			iterCtx, cancel = context.WithTimeout(ctx, p.timeouts.AgentTimeout)
		}
		cmd := p.agent.Command(iterCtx, p.workDir, prompt)
		var out bytes.Buffer
		cmd.Stdout = &out
		cmd.Stderr = &out
		runErr := cmd.Run()
		if cancel != nil {
			cancel()
		}
		monitor.Pulse()
		iterations++
		story.IterationsUsed = uint32(iterations)

		usage := budget.ExtractOrEstimate(out.String(), prompt, p.estimator)
		count := usage.ToTokenCount()
		p.tracker.RecordIteration(storyID, count.InputTokens, count.OutputTokens)

		if runErr != nil {
			if iterCtx.Err() != nil {
				msg := fmt.Sprintf("agent invocation timed out: %v", runErr)
				p.finish(story, false, iterations, start, msg)
				return scheduler.ExecResult{Success: false, IterationsUsed: iterations, Error: msg},
					&scheduler.ExecError{Class: scheduler.ClassTimeout, Message: msg}
			}
			history = append(history, budget.ErrorEntry{Iteration: iterations, Message: runErr.Error()})
			story.ErrorCategories = append(story.ErrorCategories, "agent_invocation")
			continue
		}

		results := p.checker.RunAllWithProgress(ctx, func(u quality.ProgressUpdate) {
			if u.State != quality.ProgressRunning {
				story.GateDurations[u.GateName] = u.Duration
			}
		})
		if quality.AllPassed(results) {
			p.finish(story, true, iterations, start, "")
			return scheduler.ExecResult{Success: true, IterationsUsed: iterations}, nil
		}
		history = append(history, budget.ErrorEntry{Iteration: iterations, Message: quality.Summary(results)})
	}
}

// finish records a terminal outcome for story against the metrics
// collector, the shared aggregate builder, and the evidence writer,
// tolerating nil collaborators so tests can exercise ExecuteStory without
// wiring any of them. story is owned by this call alone (never shared
// across concurrent ExecuteStory invocations), so it is merged into the
// shared Builder only once, at the end, via Builder.AddStory.
func (p *ProcessExecutor) finish(story *runmetrics.StoryMetrics, success bool, iterations int, start time.Time, errMsg string) {
	duration := time.Since(start)
	story.Complete(success, duration)
	story.FinalError = errMsg

	if p.collector != nil {
		p.collector.CompleteStep(story.StoryID, success, uint32(iterations), duration, errMsg)
		if success {
			p.collector.RecordEvidenceStep(story.StoryID)
		}
	}
	if p.builder != nil {
		p.builder.AddStory(*story)
	}
	if p.evidenceW != nil {
		status := "completed"
		if !success {
			status = "failed"
		}
		p.evidenceW.EmitStep(story.StoryID, status, "", errMsg)
	}
}

func (p *ProcessExecutor) drainHeartbeat(ctx context.Context, storyID string, monitor *heartbeat.Monitor) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-monitor.Events:
			switch e.Kind {
			case heartbeat.EventWarning:
				execLog.Warn("story %s: %d missed heartbeats, %s until stall", storyID, e.Missed, e.RemainingTime)
			case heartbeat.EventStallDetected:
				execLog.Error("story %s: stalled after %s with no heartbeat", storyID, e.Elapsed)
			}
		}
	}
}

// buildPrompt renders the budget-aware prompt for the next iteration. The
// literal task/spec text handed to the agent is a narrow external contract
// this scheduler does not own; buildPrompt only attaches the detail the
// token-budget strategy permits.
func (p *ProcessExecutor) buildPrompt(storyID string, strategy budget.PromptStrategy, history []budget.ErrorEntry) string {
	builder := budget.NewPromptBuilder(strategy)
	var sb bytes.Buffer
	fmt.Fprintf(&sb, "Work on story %s.\n", storyID)
	if errHistory := builder.BuildErrorHistory(history); errHistory != "" {
		sb.WriteString(errHistory)
	}
	return sb.String()
}
