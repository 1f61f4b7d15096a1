package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"orchestrator/pkg/config"
	"orchestrator/pkg/depgraph"
	"orchestrator/pkg/evidence"
	"orchestrator/pkg/logx"
	"orchestrator/pkg/reconcile"
	"orchestrator/pkg/runmetrics"
)

var schedLog = logx.NewLogger("scheduler")

// Scheduler dispatches a story set across a bounded worker pool, honoring
// file-lock exclusivity, a circuit breaker, and post-batch reconciliation.
type Scheduler struct {
	cfg        config.ParallelRunnerConfig
	workingDir string
	executor   StoryExecutor
	reconciler *reconcile.Engine
	checkpoint CheckpointSaver

	queueWait    time.Duration
	batchTimeout time.Duration
}

// NewScheduler builds a Scheduler for workingDir. executor must be non-nil:
// a scheduler with no way to drive a story is a configuration error, not a
// runtime one.
func NewScheduler(cfg config.ParallelRunnerConfig, workingDir string, executor StoryExecutor) (*Scheduler, error) {
	if executor == nil {
		return nil, errors.New("scheduler: no story executor configured")
	}
	return &Scheduler{
		cfg:          cfg,
		workingDir:   workingDir,
		executor:     executor,
		reconciler:   reconcile.NewEngine(workingDir),
		queueWait:    time.Duration(cfg.QueueWaitMillis) * time.Millisecond,
		batchTimeout: time.Duration(cfg.BatchTimeoutSeconds) * time.Second,
	}, nil
}

// WithCheckpointSaver attaches a checkpoint saver invoked when the circuit
// breaker trips. Returns s for chaining.
func (s *Scheduler) WithCheckpointSaver(c CheckpointSaver) *Scheduler {
	s.checkpoint = c
	return s
}

// WithReconciler overrides the default post-batch reconciliation engine,
// primarily for tests.
func (s *Scheduler) WithReconciler(r *reconcile.Engine) *Scheduler {
	s.reconciler = r
	return s
}

type storyOutcome struct {
	ID         string
	Success    bool
	Iterations int
	Class      FailureClass
	ErrMsg     string
}

type outcomeStore struct {
	mu sync.Mutex
	m  map[string]storyOutcome
}

func newOutcomeStore() *outcomeStore {
	return &outcomeStore{m: make(map[string]storyOutcome)}
}

// trySet records oc for id if not already settled, returning whether this
// call was the one that settled it. Guards against the timeout handler and
// a straggling goroutine both trying to finalize the same story.
func (o *outcomeStore) trySet(id string, oc storyOutcome) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, exists := o.m[id]; exists {
		return false
	}
	o.m[id] = oc
	return true
}

func (o *outcomeStore) get(id string) (storyOutcome, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	oc, ok := o.m[id]
	return oc, ok
}

func (o *outcomeStore) all() []storyOutcome {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]storyOutcome, 0, len(o.m))
	for _, oc := range o.m {
		out = append(out, oc)
	}
	return out
}

// Run drives stories to completion. It returns a non-nil error only when the
// evidence writer or metrics store cannot be opened; an invalid dependency
// graph, like story and batch failures, is reported through RunResult so the
// caller always gets a coherent summary.
func (s *Scheduler) Run(ctx context.Context, stories []depgraph.Story) (RunResult, error) {
	runID := evidence.GenerateRunID()

	writer, err := evidence.NewWriter(s.workingDir, runID)
	if err != nil {
		return RunResult{}, fmt.Errorf("scheduler: open evidence writer: %w", err)
	}
	metricsStore, err := runmetrics.NewStore(s.workingDir)
	if err != nil {
		return RunResult{}, fmt.Errorf("scheduler: open metrics store: %w", err)
	}
	pendingStories := 0
	for _, story := range stories {
		if !story.Passes {
			pendingStories++
		}
	}
	metrics := runmetrics.NewCollector(runID, pendingStories)

	writer.EmitRunStart()

	graph := depgraph.FromStories(stories)
	if s.cfg.InferDependencies {
		graph.InferDependencies()
	}
	if err := graph.Validate(); err != nil {
		writer.EmitRunComplete("failed", "fatal", err.Error())
		return RunResult{TotalStories: graph.Len(), Error: err}, nil
	}

	state := NewRunState()
	for _, story := range graph.Stories() {
		if story.Passes {
			state.MarkCompleted(story.ID)
		}
	}
	queue := NewPendingQueue(s.cfg.QueueCapacity)
	breaker := NewCircuitBreaker(s.cfg.CircuitBreakerThreshold)
	totalStories := graph.Len()
	storyFiles := buildStoryFiles(graph)
	lastQueueDepth := queue.Len()

	if alreadyDone, _ := state.Counts(); alreadyDone == totalStories {
		return s.finalizeRun(writer, metricsStore, metrics, runID, state, totalStories, 0, nil), nil
	}

	var runErr error
	var totalIterations int

turnLoop:
	for {
		if ctx.Err() != nil {
			runErr = ctx.Err()
			break
		}

		completed := state.CompletedSnapshot()
		ready := graph.GetReadyStories(completed)
		ready = filterFailed(ready, state.FailedSnapshot())
		ready = filterQueued(ready, queue)
		sortByPriorityThenID(ready)

		filtered := ready
		if s.cfg.ConflictStrategy == config.ConflictFileBased {
			var conflicts []depgraph.Conflict
			filtered, conflicts = depgraph.FilterConflicting(ready)
			for _, c := range conflicts {
				writer.EmitConflictDeferred(c.Deferred, c.Blocking, c.Files)
			}
		}

		blockedOnQueue := s.enqueueWithBackpressure(filtered, queue, state, metrics, writer)
		s.emitQueueStatusIfChanged(queue, writer, &lastQueueDepth)
		if blockedOnQueue {
			if !sleepOrDone(ctx, s.queueWait) {
				runErr = ctx.Err()
				break
			}
			continue
		}

		inFlight := state.InFlightIDs()
		if queue.Len() == 0 && len(inFlight) == 0 && len(filtered) == 0 {
			break
		}
		if queue.Len() == 0 {
			if !sleepOrDone(ctx, s.queueWait) {
				runErr = ctx.Err()
				break
			}
			continue
		}

		batchIDs := s.dispatchBatch(queue, state, graph)
		s.emitQueueStatusIfChanged(queue, writer, &lastQueueDepth)
		if len(batchIDs) == 0 {
			if !sleepOrDone(ctx, s.queueWait) {
				runErr = ctx.Err()
				break
			}
			continue
		}

		outcomes, timedOut := s.runBatch(ctx, batchIDs, graph, state, metrics, writer)
		for _, oc := range outcomes {
			totalIterations += oc.Iterations
		}

		nonTransient := 0
		for _, oc := range outcomes {
			if !oc.Success && oc.Class != ClassTransient {
				nonTransient++
			}
		}
		breaker.Add(nonTransient)
		if breaker.Tripped() {
			lastFailed := ""
			for _, oc := range outcomes {
				if !oc.Success {
					lastFailed = oc.ID
				}
			}
			if s.checkpoint != nil {
				if err := s.checkpoint.SaveCircuitBreakerCheckpoint(lastFailed, breaker.Cumulative(), s.cfg.CircuitBreakerThreshold); err != nil {
					schedLog.Error("failed to save circuit breaker checkpoint: %v", err)
				}
			}
			msg := breaker.TripMessage()
			writer.EmitRunComplete("failed", "circuit_breaker", msg)
			runErr = errors.New(msg)
			break
		}

		if timedOut {
			// Stragglers from this batch may still be mutating state in the
			// background; their outcomes, if any, settle via trySet before
			// the next turn reads state.CompletedSnapshot(). Reconciliation
			// is skipped this turn, matching a freshly timed-out batch never
			// having a stable tree to reconcile against.
			continue turnLoop
		}

		if err := s.reconcileBatch(ctx, batchIDs, storyFiles, state, graph, metrics, writer); err != nil {
			runErr = err
			break
		}
	}

	return s.finalizeRun(writer, metricsStore, metrics, runID, state, totalStories, totalIterations, runErr), nil
}

// finalizeRun persists the run's metrics, emits the terminal evidence event,
// and assembles the RunResult the caller sees. Shared by the already-passing
// fast path (no turn ever ran) and the normal end of the turn loop so both
// exits report status identically.
func (s *Scheduler) finalizeRun(writer *evidence.Writer, metricsStore *runmetrics.Store, metrics *runmetrics.Collector, runID string, state *RunState, totalStories, totalIterations int, runErr error) RunResult {
	completedCount, failedCount := state.Counts()
	finalMetrics := metrics.Finish()
	if _, err := metricsStore.Save(finalMetrics); err != nil {
		schedLog.Error("failed to persist run metrics for %s: %v", runID, err)
	}

	if runErr == nil {
		status := "success"
		if failedCount > 0 {
			status = "failed"
			runErr = errors.New("some stories failed")
			writer.EmitRunComplete(status, "story_failure", runErr.Error())
		} else {
			writer.EmitRunComplete(status, "", "")
		}
	}

	return RunResult{
		AllPassed:       failedCount == 0 && runErr == nil,
		StoriesPassed:   completedCount,
		TotalStories:    totalStories,
		TotalIterations: totalIterations,
		Error:           runErr,
	}
}

// emitQueueStatusIfChanged publishes a queue-status observation only when the
// pending queue's depth actually moved since the last check, so a quiet turn
// doesn't spam duplicate events.
func (s *Scheduler) emitQueueStatusIfChanged(queue *PendingQueue, writer *evidence.Writer, lastDepth *int) {
	depth := queue.Len()
	if depth == *lastDepth {
		return
	}
	writer.EmitQueueStatus(depth, s.cfg.QueueCapacity)
	*lastDepth = depth
}

func buildStoryFiles(graph *depgraph.Graph) map[string]reconcile.StoryFiles {
	out := make(map[string]reconcile.StoryFiles, graph.Len())
	for _, story := range graph.Stories() {
		out[story.ID] = reconcile.StoryFiles{ID: story.ID, TargetFiles: story.TargetFiles}
	}
	return out
}

func filterFailed(ready []depgraph.Story, failed map[string]struct{}) []depgraph.Story {
	out := make([]depgraph.Story, 0, len(ready))
	for _, s := range ready {
		if _, done := failed[s.ID]; done {
			continue
		}
		out = append(out, s)
	}
	return out
}

func filterQueued(ready []depgraph.Story, queue *PendingQueue) []depgraph.Story {
	out := make([]depgraph.Story, 0, len(ready))
	for _, s := range ready {
		if queue.Contains(s.ID) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func sortByPriorityThenID(stories []depgraph.Story) {
	sort.SliceStable(stories, func(i, j int) bool {
		if stories[i].Priority != stories[j].Priority {
			return stories[i].Priority < stories[j].Priority
		}
		return stories[i].ID < stories[j].ID
	})
}

// enqueueWithBackpressure pushes every ready story onto queue, applying the
// configured backpressure policy once the queue is full. It returns true
// when the Block policy stopped the whole batch short, meaning the caller
// should wait before recomputing the ready set.
func (s *Scheduler) enqueueWithBackpressure(ready []depgraph.Story, queue *PendingQueue, state *RunState, metrics *runmetrics.Collector, writer *evidence.Writer) bool {
	for _, story := range ready {
		if !queue.Full() {
			queue.PushBack(story.ID)
			continue
		}

		switch s.cfg.QueuePolicy {
		case config.QueueBlock:
			return true
		case config.QueueReject:
			recordQueueDrop(story.ID, "Queue full - rejected by backpressure policy", state, metrics, writer)
		case config.QueueDropOldest:
			if droppedID, ok := queue.PopFront(); ok {
				recordQueueDrop(droppedID, "Queue full - dropped oldest", state, metrics, writer)
			}
			queue.PushBack(story.ID)
		default:
			return true
		}
	}
	return false
}

func recordQueueDrop(storyID, message string, state *RunState, metrics *runmetrics.Collector, writer *evidence.Writer) {
	state.MarkFailed(storyID)
	metrics.StartStep(storyID)
	metrics.CompleteStep(storyID, false, 0, 0, message)
	writer.EmitStep(storyID, "failed", "queue_full", message)
}

// dispatchBatch pops up to MaxConcurrency stories from queue, acquiring file
// locks for each. A story that loses a lock race is pushed back to the tail
// of the queue for a later turn. The pop/requeue pass is bounded to the
// queue's starting length so a persistently conflicted story cannot spin the
// loop forever within one turn.
func (s *Scheduler) dispatchBatch(queue *PendingQueue, state *RunState, graph *depgraph.Graph) []string {
	var batch []string
	attempts := queue.Len()
	for len(batch) < s.cfg.MaxConcurrency && attempts > 0 {
		id, ok := queue.PopFront()
		if !ok {
			break
		}
		attempts--

		story := graph.GetStory(id)
		if story == nil {
			continue
		}
		if state.AcquireLocks(id, story.TargetFiles) {
			batch = append(batch, id)
		} else {
			queue.PushBack(id)
		}
	}
	return batch
}

// runBatch executes batchIDs concurrently, bounded to MaxConcurrency, and
// waits up to the configured batch timeout for all of them to finish.
func (s *Scheduler) runBatch(ctx context.Context, batchIDs []string, graph *depgraph.Graph, state *RunState, metrics *runmetrics.Collector, writer *evidence.Writer) ([]storyOutcome, bool) {
	outcomes := newOutcomeStore()
	batchCtx, cancel := context.WithTimeout(ctx, s.batchTimeout)
	defer cancel()

	var g errgroup.Group
	g.SetLimit(s.cfg.MaxConcurrency)
	for _, id := range batchIDs {
		id := id
		story := graph.GetStory(id)
		g.Go(func() error {
			s.executeAndRecord(batchCtx, id, story.TargetFiles, state, metrics, writer, outcomes)
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	timedOut := false
	select {
	case <-done:
	case <-batchCtx.Done():
		timedOut = true
		s.settleTimedOutStories(batchIDs, graph, state, metrics, writer, outcomes)
	}

	return outcomes.all(), timedOut
}

func (s *Scheduler) settleTimedOutStories(batchIDs []string, graph *depgraph.Graph, state *RunState, metrics *runmetrics.Collector, writer *evidence.Writer, outcomes *outcomeStore) {
	msg := fmt.Sprintf("Batch timed out after %s", s.batchTimeout)
	for _, id := range batchIDs {
		if _, done := outcomes.get(id); done {
			continue
		}
		if !outcomes.trySet(id, storyOutcome{ID: id, Success: false, Class: ClassTimeout, ErrMsg: msg}) {
			continue
		}
		if story := graph.GetStory(id); story != nil {
			state.ReleaseLocks(id, story.TargetFiles)
		}
		state.MarkFailed(id)
		metrics.CompleteStep(id, false, 0, s.batchTimeout, msg)
		writer.EmitStep(id, "failed", "batch_timeout", msg)
	}
}

// executeAndRecord drives one story through the executor and folds its
// outcome into state, metrics, and evidence. Shared by the parallel batch
// dispatcher and the sequential reconciliation retry path.
func (s *Scheduler) executeAndRecord(ctx context.Context, id string, targetFiles []string, state *RunState, metrics *runmetrics.Collector, writer *evidence.Writer, outcomes *outcomeStore) {
	start := time.Now()
	metrics.StartStep(id)

	result, err := func() (res ExecResult, execErr error) {
		defer func() {
			if r := recover(); r != nil {
				execErr = &ExecError{Class: ClassFatal, Message: fmt.Sprintf("story executor panicked: %v", r)}
			}
		}()
		return s.executor.ExecuteStory(ctx, id, func(int, int) {})
	}()
	duration := time.Since(start)

	oc := storyOutcome{ID: id}
	switch {
	case err != nil:
		oc.Class = classify(err)
		oc.ErrMsg = err.Error()
	case !result.Success:
		oc.Class = ClassFatal
		oc.ErrMsg = result.Error
		oc.Iterations = result.IterationsUsed
	default:
		oc.Success = true
		oc.Iterations = result.IterationsUsed
	}

	if !outcomes.trySet(id, oc) {
		return
	}

	state.ReleaseLocks(id, targetFiles)
	if oc.Success {
		state.MarkCompleted(id)
		metrics.CompleteStep(id, true, uint32(oc.Iterations), duration, "")
		metrics.RecordEvidenceStep(id)
		writer.EmitStep(id, "completed", "", "")
		return
	}

	state.MarkFailed(id)
	errType := "quality_gates_failed"
	if err != nil {
		errType = oc.Class.Label()
	}
	metrics.CompleteStep(id, false, uint32(oc.Iterations), duration, oc.ErrMsg)
	metrics.RecordEvidenceStep(id)
	writer.EmitStep(id, "failed", errType, oc.ErrMsg)
}

// reconcileBatch runs the reconciliation engine against the just-completed
// batch. On unresolved issues it retries the affected stories sequentially
// (if configured to) and reconciles once more before giving up.
func (s *Scheduler) reconcileBatch(ctx context.Context, batchIDs []string, storyFiles map[string]reconcile.StoryFiles, state *RunState, graph *depgraph.Graph, metrics *runmetrics.Collector, writer *evidence.Writer) error {
	if s.reconciler == nil {
		return nil
	}

	result, err := s.reconciler.Reconcile(ctx)
	if err != nil {
		writer.EmitRunComplete("failed", "reconciliation_failed", err.Error())
		return fmt.Errorf("reconciliation: %w", err)
	}
	if result.Clean() {
		return nil
	}

	if !s.cfg.FallbackToSequential {
		msg := "reconciliation detected unresolved issues"
		writer.EmitRunComplete("failed", "reconciliation_failed", msg)
		return errors.New(msg)
	}

	affected := reconcile.AffectedStories(result.Issues, batchIDs, storyFiles)
	outcomes := newOutcomeStore()
	for _, id := range affected {
		story := graph.GetStory(id)
		if story == nil {
			continue
		}
		state.RemoveFromOutcomes(id)
		state.AcquireLocks(id, story.TargetFiles)
		s.executeAndRecord(ctx, id, story.TargetFiles, state, metrics, writer, outcomes)
	}

	retryResult, err := s.reconciler.Reconcile(ctx)
	if err != nil || !retryResult.Clean() {
		msg := "reconciliation failed after sequential retry"
		writer.EmitRunComplete("failed", "reconciliation_failed", msg)
		if err != nil {
			msg = fmt.Sprintf("%s: %v", msg, err)
		}
		return errors.New(msg)
	}
	return nil
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
