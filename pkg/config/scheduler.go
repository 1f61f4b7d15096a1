package config

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"orchestrator/pkg/logx"
)

// SchedulerSchemaVersion guards breaking changes to SchedulerConfig's on-disk shape.
const SchedulerSchemaVersion = 1

// ConflictStrategy selects how the scheduler detects pre-execution story conflicts.
type ConflictStrategy string

const (
	// ConflictFileBased defers the lower-priority story when target files overlap.
	ConflictFileBased ConflictStrategy = "file_based"
	// ConflictEntityBased is accepted as a config value but not implemented.
	ConflictEntityBased ConflictStrategy = "entity_based"
	// ConflictNone disables pre-execution conflict filtering entirely.
	ConflictNone ConflictStrategy = "none"
)

// QueuePolicy selects backpressure behavior when the pending queue is at capacity.
type QueuePolicy string

const (
	QueueBlock      QueuePolicy = "block"
	QueueReject     QueuePolicy = "reject"
	QueueDropOldest QueuePolicy = "drop_oldest"
)

// ParallelRunnerConfig configures pkg/scheduler.Scheduler. All fields are
// read-only after construction.
type ParallelRunnerConfig struct {
	MaxConcurrency          int              `yaml:"max_concurrency" json:"max_concurrency"`
	QueueCapacity           int              `yaml:"queue_capacity" json:"queue_capacity"`
	QueuePolicy             QueuePolicy      `yaml:"queue_policy" json:"queue_policy"`
	QueueWaitMillis         int              `yaml:"queue_wait_ms" json:"queue_wait_ms"`
	InferDependencies       bool             `yaml:"infer_dependencies" json:"infer_dependencies"`
	FallbackToSequential    bool             `yaml:"fallback_to_sequential" json:"fallback_to_sequential"`
	ConflictStrategy        ConflictStrategy `yaml:"conflict_strategy" json:"conflict_strategy"`
	BatchTimeoutSeconds     int              `yaml:"batch_timeout_seconds" json:"batch_timeout_seconds"`
	CircuitBreakerThreshold int              `yaml:"circuit_breaker_threshold" json:"circuit_breaker_threshold"`
	NoCheckpoint            bool             `yaml:"no_checkpoint" json:"no_checkpoint"`
}

// DefaultParallelRunnerConfig mirrors the source project's defaults.
func DefaultParallelRunnerConfig() ParallelRunnerConfig {
	return ParallelRunnerConfig{
		MaxConcurrency:          3,
		QueueCapacity:           50,
		QueuePolicy:             QueueBlock,
		QueueWaitMillis:         500,
		InferDependencies:       true,
		FallbackToSequential:    true,
		ConflictStrategy:        ConflictFileBased,
		BatchTimeoutSeconds:     30 * 60,
		CircuitBreakerThreshold: 5,
		NoCheckpoint:            false,
	}
}

// SchedulerConfig is the root configuration document for `cmd/ralph`.
//
//nolint:govet // logical field grouping preferred over memory layout
type SchedulerConfig struct {
	SchemaVersion int                   `yaml:"schema_version" json:"schema_version"`
	Parallel      ParallelRunnerConfig  `yaml:"parallel" json:"parallel"`
	Budget        TokenBudgetConfig     `yaml:"budget" json:"budget"`
	Timeouts      TimeoutConfig         `yaml:"timeouts" json:"timeouts"`
	Gates         GateProfile           `yaml:"gates" json:"gates"`
	PRDPath       string                `yaml:"prd_path" json:"prd_path"`
	WorkDir       string                `yaml:"work_dir" json:"work_dir"`
}

// DefaultSchedulerConfig returns a config with every subsystem default populated.
func DefaultSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{
		SchemaVersion: SchedulerSchemaVersion,
		Parallel:      DefaultParallelRunnerConfig(),
		Budget:        DefaultTokenBudgetConfig(),
		Timeouts:      DefaultTimeoutConfig(),
		Gates:         DefaultGateProfile(),
		PRDPath:       "./prd.json",
		WorkDir:       ".",
	}
}

var (
	schedulerMu     sync.RWMutex
	schedulerConfig *SchedulerConfig

	schedulerLog = logx.NewLogger("config")
)

// LoadSchedulerConfig reads and validates a SchedulerConfig from path, falling
// back to defaults (and logging at Info level) when path does not exist.
func LoadSchedulerConfig(path string) (*SchedulerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			schedulerLog.Info("no config at %s, using defaults", path)
			cfg := DefaultSchedulerConfig()
			setGlobalSchedulerConfig(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("read scheduler config: %w", err)
	}

	cfg := DefaultSchedulerConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse scheduler config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scheduler config %s: %w", path, err)
	}

	setGlobalSchedulerConfig(cfg)
	return cfg, nil
}

// Validate rejects configuration combinations the scheduler cannot honor.
func (c *SchedulerConfig) Validate() error {
	if c.Parallel.MaxConcurrency < 1 {
		return fmt.Errorf("max_concurrency must be >= 1, got %d", c.Parallel.MaxConcurrency)
	}
	if c.Parallel.QueueCapacity < 1 {
		return fmt.Errorf("queue_capacity must be >= 1, got %d", c.Parallel.QueueCapacity)
	}
	switch c.Parallel.QueuePolicy {
	case QueueBlock, QueueReject, QueueDropOldest:
	default:
		return fmt.Errorf("unknown queue_policy %q", c.Parallel.QueuePolicy)
	}
	switch c.Parallel.ConflictStrategy {
	case ConflictFileBased, ConflictEntityBased, ConflictNone:
	default:
		return fmt.Errorf("unknown conflict_strategy %q", c.Parallel.ConflictStrategy)
	}
	if c.Parallel.CircuitBreakerThreshold < 1 {
		return fmt.Errorf("circuit_breaker_threshold must be >= 1, got %d", c.Parallel.CircuitBreakerThreshold)
	}
	return nil
}

func setGlobalSchedulerConfig(cfg *SchedulerConfig) {
	schedulerMu.Lock()
	defer schedulerMu.Unlock()
	schedulerConfig = cfg
}

// GetSchedulerConfig returns a copy of the currently loaded scheduler config.
func GetSchedulerConfig() (SchedulerConfig, error) {
	schedulerMu.RLock()
	defer schedulerMu.RUnlock()
	if schedulerConfig == nil {
		return SchedulerConfig{}, fmt.Errorf("scheduler config not loaded")
	}
	return *schedulerConfig, nil
}
