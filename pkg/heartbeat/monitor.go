// Package heartbeat detects stalled story execution by tracking elapsed time
// since the last pulse and emitting Warning/StallDetected events once missed
// pulses cross configured thresholds.
package heartbeat

import (
	"context"
	"sync"
	"time"

	"orchestrator/pkg/config"
)

// EventKind distinguishes the two events a Monitor emits.
type EventKind int

const (
	// EventWarning fires once per missed-count level, starting at
	// threshold-1 missed pulses.
	EventWarning EventKind = iota
	// EventStallDetected fires once the missed-pulse count reaches the
	// configured threshold; it resets the warning dedup memo.
	EventStallDetected
)

// Event is a single heartbeat notification.
type Event struct {
	Kind          EventKind
	Missed        int
	Elapsed       time.Duration
	RemainingTime time.Duration // valid for EventWarning only
	Threshold     time.Duration // valid for EventStallDetected only
}

// Monitor watches a single story's heartbeat pulses against a TimeoutConfig
// and reports stalls on Events. Safe for concurrent Pulse/Start/Stop calls.
type Monitor struct {
	cfg    config.TimeoutConfig
	Events chan Event

	mu            sync.Mutex
	lastHeartbeat time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewMonitor constructs a Monitor bound to cfg. The returned channel is
// buffered so a slow consumer doesn't stall the monitor's check loop.
func NewMonitor(cfg config.TimeoutConfig) *Monitor {
	return &Monitor{
		cfg:           cfg,
		Events:        make(chan Event, 16),
		lastHeartbeat: time.Now(),
	}
}

// Pulse records a heartbeat, resetting the elapsed-time clock.
func (m *Monitor) Pulse() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastHeartbeat = time.Now()
}

// Start begins the background check loop. It waits out the configured
// startup grace period, then polls at HeartbeatInterval until ctx is
// cancelled or Stop is called.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	m.lastHeartbeat = time.Now()
	m.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	go m.run(ctx)
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)

	if m.cfg.StartupGracePeriod > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(m.cfg.StartupGracePeriod):
		}
		m.mu.Lock()
		m.lastHeartbeat = time.Now()
		m.mu.Unlock()
	}

	interval := m.cfg.HeartbeatInterval
	threshold := m.cfg.MissedHeartbeatsThreshold
	thresholdDuration := time.Duration(threshold) * interval

	var lastWarningSent *int

	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}

		m.mu.Lock()
		elapsed := time.Since(m.lastHeartbeat)
		m.mu.Unlock()

		missed := int(elapsed / interval)

		switch {
		case missed >= threshold:
			m.emit(Event{Kind: EventStallDetected, Missed: missed, Elapsed: elapsed, Threshold: thresholdDuration})
			lastWarningSent = nil
		case missed >= threshold-1 && missed > 0:
			if lastWarningSent == nil || *lastWarningSent != missed {
				remaining := thresholdDuration - elapsed
				if remaining < 0 {
					remaining = 0
				}
				m.emit(Event{Kind: EventWarning, Missed: missed, Elapsed: elapsed, RemainingTime: remaining})
				m := missed
				lastWarningSent = &m
			}
		case missed == 0:
			lastWarningSent = nil
		}
	}
}

func (m *Monitor) emit(e Event) {
	select {
	case m.Events <- e:
	default:
		// Consumer is behind; drop rather than block the check loop.
	}
}

// Stop signals the check loop to exit and waits for it to finish. Start may
// be called again afterward to restart monitoring.
func (m *Monitor) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
	m.cancel = nil
}

// IsRunning reports whether the background loop is active.
func (m *Monitor) IsRunning() bool {
	if m.done == nil {
		return false
	}
	select {
	case <-m.done:
		return false
	default:
		return true
	}
}
