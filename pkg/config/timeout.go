package config

import "time"

// TimeoutConfig bounds the durations of agent, iteration, batch and git
// operations driven by the scheduler and its collaborators.
type TimeoutConfig struct {
	AgentTimeout             time.Duration `yaml:"agent_timeout" json:"agent_timeout"`
	IterationTimeout         time.Duration `yaml:"iteration_timeout" json:"iteration_timeout"`
	HeartbeatInterval        time.Duration `yaml:"heartbeat_interval" json:"heartbeat_interval"`
	MissedHeartbeatsThreshold int          `yaml:"missed_heartbeats_threshold" json:"missed_heartbeats_threshold"`
	StartupGracePeriod       time.Duration `yaml:"startup_grace_period" json:"startup_grace_period"`
	GitTimeout               time.Duration `yaml:"git_timeout" json:"git_timeout"`
}

// DefaultTimeoutConfig mirrors the source project's defaults.
func DefaultTimeoutConfig() TimeoutConfig {
	return TimeoutConfig{
		AgentTimeout:              600 * time.Second,
		IterationTimeout:          900 * time.Second,
		HeartbeatInterval:         45 * time.Second,
		MissedHeartbeatsThreshold: 4,
		StartupGracePeriod:        120 * time.Second,
		GitTimeout:                60 * time.Second,
	}
}

// WithValues returns a copy of the config with every field overridden.
func (c TimeoutConfig) WithValues(agent, iteration, heartbeat time.Duration, missedThreshold int, grace, git time.Duration) TimeoutConfig {
	c.AgentTimeout = agent
	c.IterationTimeout = iteration
	c.HeartbeatInterval = heartbeat
	c.MissedHeartbeatsThreshold = missedThreshold
	c.StartupGracePeriod = grace
	c.GitTimeout = git
	return c
}

// GateProfile configures pkg/quality.Checker.
//
//nolint:govet // logical field grouping preferred over memory layout
type GateProfile struct {
	CoverageThreshold int  `yaml:"coverage_threshold" json:"coverage_threshold"`
	LintCheck         bool `yaml:"lint_check" json:"lint_check"`
	UnitTests         bool `yaml:"unit_tests" json:"unit_tests"`
	FormatCheck       bool `yaml:"format_check" json:"format_check"`
	SecurityAudit     bool `yaml:"security_audit" json:"security_audit"`
}

// DefaultGateProfile enables every gate with a 0 (skipped) coverage threshold.
func DefaultGateProfile() GateProfile {
	return GateProfile{
		CoverageThreshold: 0,
		LintCheck:         true,
		UnitTests:         true,
		FormatCheck:       true,
		SecurityAudit:     true,
	}
}
