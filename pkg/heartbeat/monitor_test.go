package heartbeat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orchestrator/pkg/config"
)

func testTimeoutConfig() config.TimeoutConfig {
	cfg := config.DefaultTimeoutConfig()
	cfg.HeartbeatInterval = 30 * time.Millisecond
	cfg.MissedHeartbeatsThreshold = 3
	cfg.StartupGracePeriod = 0
	return cfg
}

func drain(t *testing.T, m *Monitor, timeout time.Duration) []Event {
	t.Helper()
	var events []Event
	deadline := time.After(timeout)
	for {
		select {
		case e := <-m.Events:
			events = append(events, e)
		case <-deadline:
			return events
		}
	}
}

func TestMonitor_NoEventsWithRegularHeartbeats(t *testing.T) {
	cfg := testTimeoutConfig()
	m := NewMonitor(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)
	defer m.Stop()

	for i := 0; i < 5; i++ {
		time.Sleep(20 * time.Millisecond)
		m.Pulse()
	}

	select {
	case e := <-m.Events:
		t.Fatalf("unexpected event: %+v", e)
	default:
	}
}

func TestMonitor_WarningBeforeStall(t *testing.T) {
	cfg := testTimeoutConfig()
	m := NewMonitor(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	events := drain(t, m, 200*time.Millisecond)
	m.Stop()

	var hasWarning, hasStall bool
	for _, e := range events {
		if e.Kind == EventWarning {
			hasWarning = true
		}
		if e.Kind == EventStallDetected {
			hasStall = true
		}
	}
	assert.True(t, hasWarning, "expected a warning event")
	assert.True(t, hasStall, "expected a stall event")
}

func TestMonitor_PulseResetsMissedCount(t *testing.T) {
	cfg := testTimeoutConfig()
	m := NewMonitor(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)
	defer m.Stop()

	time.Sleep(50 * time.Millisecond)
	m.Pulse()
	time.Sleep(50 * time.Millisecond)
	m.Pulse()

	select {
	case e := <-m.Events:
		t.Fatalf("unexpected event after resetting pulses: %+v", e)
	default:
	}
}

func TestMonitor_GracePeriodDelaysChecks(t *testing.T) {
	cfg := testTimeoutConfig()
	cfg.MissedHeartbeatsThreshold = 2
	cfg.StartupGracePeriod = 100 * time.Millisecond
	m := NewMonitor(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	time.Sleep(80 * time.Millisecond)
	select {
	case e := <-m.Events:
		t.Fatalf("unexpected event during grace period: %+v", e)
	default:
	}

	events := drain(t, m, 150*time.Millisecond)
	m.Stop()

	found := false
	for _, e := range events {
		if e.Kind == EventStallDetected {
			found = true
		}
	}
	assert.True(t, found, "expected stall detection after grace period")
}

func TestMonitor_StartStopRestart(t *testing.T) {
	cfg := testTimeoutConfig()
	m := NewMonitor(cfg)
	ctx := context.Background()

	m.Start(ctx)
	require.True(t, m.IsRunning())
	m.Stop()
	assert.False(t, m.IsRunning())

	m.Start(ctx)
	assert.True(t, m.IsRunning())
	m.Stop()
	assert.False(t, m.IsRunning())
}

func TestMonitor_IsRunningFalseBeforeStart(t *testing.T) {
	m := NewMonitor(testTimeoutConfig())
	assert.False(t, m.IsRunning())
}
