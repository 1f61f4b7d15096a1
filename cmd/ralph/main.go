// Command ralph drives a story set through the parallel scheduler until
// every story's quality gates pass.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"orchestrator/pkg/budget"
	"orchestrator/pkg/checkpoint"
	"orchestrator/pkg/config"
	"orchestrator/pkg/depgraph"
	"orchestrator/pkg/evidence"
	"orchestrator/pkg/logx"
	"orchestrator/pkg/quality"
	"orchestrator/pkg/runmetrics"
	"orchestrator/pkg/scheduler"
	"orchestrator/pkg/version"
)

var mainLog = logx.NewLogger("ralph")

const (
	exitSuccess            = 0
	exitFatal              = 1
	exitCircuitBreaker     = 2
	exitReconciliationFail = 3
)

// checkDependencies verifies git and a supported agent binary are on PATH
// before the run starts; both are fatal-configuration errors per spec.
func checkDependencies() (scheduler.AgentBinary, string, error) {
	if _, err := exec.LookPath("git"); err != nil {
		return "", "", fmt.Errorf("git is not installed or not in PATH")
	}
	name, path, err := scheduler.DetectAgentBinary()
	if err != nil {
		return "", "", err
	}
	return name, path, nil
}

func main() {
	var (
		parallel             bool
		maxConcurrency       int
		circuitBreakerThresh int
		noCheckpoint         bool
		prdPath              string
		configPath           string
		metricsAddr          string
		resume               bool
		workDir              string
		agentModel           string
		showVersion          bool
	)
	flag.BoolVar(&parallel, "parallel", true, "enable parallel dispatch (disable to force max-concurrency=1)")
	flag.IntVar(&maxConcurrency, "max-concurrency", 0, "override max_concurrency from config (0 = use config)")
	flag.IntVar(&circuitBreakerThresh, "circuit-breaker-threshold", 0, "override circuit_breaker_threshold from config (0 = use config)")
	flag.BoolVar(&noCheckpoint, "no-checkpoint", false, "disable checkpoint saving on circuit breaker trip")
	flag.StringVar(&prdPath, "prd", "./prd.json", "path to the story set")
	flag.StringVar(&configPath, "config", "./.ralph/config.yaml", "path to the scheduler config file")
	flag.StringVar(&metricsAddr, "metrics-addr", "", "address to serve Prometheus /metrics on (disabled if empty)")
	flag.BoolVar(&resume, "resume", false, "resume from a saved checkpoint")
	flag.StringVar(&workDir, "workdir", ".", "working directory the scheduler operates in")
	flag.StringVar(&agentModel, "model", "", "model name passed to the agent binary")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("ralph %s (commit %s, built %s)\n", version.Version, version.Commit, version.Date)
		os.Exit(exitSuccess)
	}

	agentBinary, agentPath, err := checkDependencies()
	if err != nil {
		mainLog.Error("dependency check failed: %v", err)
		os.Exit(exitFatal)
	}

	cfg, err := config.LoadSchedulerConfig(configPath)
	if err != nil {
		mainLog.Error("failed to load config: %v", err)
		os.Exit(exitFatal)
	}

	if !parallel {
		cfg.Parallel.MaxConcurrency = 1
	}
	if maxConcurrency > 0 {
		cfg.Parallel.MaxConcurrency = maxConcurrency
	}
	if circuitBreakerThresh > 0 {
		cfg.Parallel.CircuitBreakerThreshold = circuitBreakerThresh
	}
	cfg.Parallel.NoCheckpoint = cfg.Parallel.NoCheckpoint || noCheckpoint
	cfg.PRDPath = prdPath
	cfg.WorkDir = workDir

	ckptMgr := checkpoint.NewManager(workDir)
	if resume {
		prior, loadErr := ckptMgr.Load()
		if loadErr != nil {
			mainLog.Error("failed to load checkpoint: %v", loadErr)
			os.Exit(exitFatal)
		}
		if prior == nil {
			mainLog.Info("--resume given but no checkpoint found at %s; starting fresh", workDir)
		} else {
			mainLog.Info("resuming after pause: %s (story=%s)", prior.PauseReason.Kind, prior.PauseReason.RepresentativeStory)
		}
	}

	stories, err := depgraph.LoadStories(cfg.PRDPath)
	if err != nil {
		mainLog.Error("failed to load story set: %v", err)
		os.Exit(exitFatal)
	}

	runID := uuid.New().String()
	pendingStories := 0
	for _, story := range stories {
		if !story.Passes {
			pendingStories++
		}
	}
	collector := runmetrics.NewCollector(runID, pendingStories)
	builder := runmetrics.NewBuilder()
	evidenceW, err := evidence.NewWriter(workDir, runID)
	if err != nil {
		mainLog.Error("failed to open evidence store: %v", err)
		os.Exit(exitFatal)
	}
	evidenceW.EmitRunStart()

	tracker := budget.NewTracker(cfg.Budget)
	checker := quality.NewChecker(cfg.Gates, workDir)
	agentCmd := scheduler.AgentCommand{Binary: agentBinary, Path: agentPath, Model: agentModel}
	executor := NewProcessExecutor(agentCmd, workDir, tracker, checker, cfg.Timeouts, defaultMaxIterations(), collector, builder, evidenceW)

	sched, err := scheduler.NewScheduler(cfg.Parallel, workDir, executor)
	if err != nil {
		mainLog.Error("failed to construct scheduler: %v", err)
		os.Exit(exitFatal)
	}
	if !cfg.Parallel.NoCheckpoint {
		sched.WithCheckpointSaver(checkpoint.NewSaver(ckptMgr))
	}

	var recorder *runmetrics.PrometheusRecorder
	if metricsAddr != "" {
		recorder = runmetrics.NewPrometheusRecorder()
		startMetricsServer(metricsAddr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		mainLog.Info("received signal %v, cancelling run", sig)
		cancel()
	}()

	builder.StartParallel()
	result, err := sched.Run(ctx, stories)
	builder.EndParallel()
	cancel()

	if err != nil {
		mainLog.Error("scheduler run failed: %v", err)
		evidenceW.EmitRunComplete("failed", "scheduler_error", err.Error())
		os.Exit(exitFatal)
	}

	mainLog.Info("run complete: %d/%d stories passed, %d iterations total",
		result.StoriesPassed, result.TotalStories, result.TotalIterations)

	runStatus := "success"
	runErrMsg := ""
	if !result.AllPassed {
		runStatus = "failed"
		if result.Error != nil {
			runErrMsg = result.Error.Error()
		}
	}
	evidenceW.EmitRunComplete(runStatus, "", runErrMsg)

	snapshot := collector.Finish()
	if metricsStore, storeErr := runmetrics.NewStore(workDir); storeErr != nil {
		mainLog.Error("failed to open metrics store: %v", storeErr)
	} else if _, saveErr := metricsStore.Save(snapshot); saveErr != nil {
		mainLog.Error("failed to save run metrics: %v", saveErr)
	}
	execSummary := builder.Build()
	mainLog.Info("execution summary: success_rate=%.2f avg_iterations=%.1f parallelism_efficiency=%.2f",
		execSummary.SuccessRate(), execSummary.AvgIterationsPerStory, execSummary.ParallelismEfficiency)

	if recorder != nil {
		if result.Error != nil && strings.Contains(result.Error.Error(), "Circuit breaker triggered") {
			recorder.IncCircuitBreakerTrip()
		}
		recorder.SetCompleteness(runID, snapshot.CompletenessPercent)
	}

	if result.AllPassed {
		if clearErr := ckptMgr.Clear(); clearErr != nil {
			mainLog.Error("failed to clear checkpoint: %v", clearErr)
		}
	}
	os.Exit(exitCodeFor(result))
}

// exitCodeFor maps a scheduler.RunResult to the CLI's documented exit
// status: 0 on full success, 2 on a circuit breaker trip, 3 on an
// unresolved reconciliation failure, 1 for any other non-zero outcome.
func exitCodeFor(result scheduler.RunResult) int {
	if result.AllPassed {
		return exitSuccess
	}
	if result.Error == nil {
		return exitFatal
	}
	msg := result.Error.Error()
	switch {
	case strings.Contains(msg, "Circuit breaker triggered"):
		return exitCircuitBreaker
	case strings.Contains(msg, "reconciliation"):
		return exitReconciliationFail
	default:
		return exitFatal
	}
}

// defaultMaxIterations bounds per-story retries absent a budget-driven cut.
func defaultMaxIterations() int {
	return 10
}

func startMetricsServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			mainLog.Error("metrics server stopped: %v", err)
		}
	}()
	mainLog.Info("metrics server listening on %s", addr)
}
