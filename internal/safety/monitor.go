// Package safety owns the rider-condition state machine. The one rule that
// must survive any refactor: CrashDetected and Emergency are sticky — the only
// way out is an explicit Resolve call, never telemetry looking healthy again.
package safety

import (
	"errors"
	"sync"
	"time"
)

// Status is the rider's current safety classification.
type Status string

const (
	StatusSafe          Status = "safe"
	StatusWarning       Status = "warning"
	StatusEmergency     Status = "emergency"
	StatusCrashDetected Status = "crash_detected"
)

// ErrInvalidTransition is returned for commands that are illegal in the
// current status, e.g. resolving while Safe.
var ErrInvalidTransition = errors.New("invalid safety transition")

// Transition records one status change and why it happened.
type Transition struct {
	From   Status    `json:"from"`
	To     Status    `json:"to"`
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

// Hysteresis controls the Safe/Warning flip-flop guards.
type Hysteresis struct {
	WarnSpeedMps float64       // speed that starts counting toward Warning
	Sustain      time.Duration // how long speed must stay high before Warning
	Clear        time.Duration // how long speed must stay low before returning to Safe
}

// Monitor combines telemetry observations, crash events, and manual triggers
// into a single Status. Observe is timestamp-driven so replays are
// deterministic.
type Monitor struct {
	mu  sync.Mutex
	cfg Hysteresis

	status     Status
	aboveSince time.Time
	belowSince time.Time
	history    []Transition

	onTransition func(Transition)
}

// NewMonitor starts in Safe. onTransition, if non-nil, is invoked for every
// status change (used to fan out to observers and to trigger escalation).
func NewMonitor(cfg Hysteresis, onTransition func(Transition)) *Monitor {
	return &Monitor{cfg: cfg, status: StatusSafe, onTransition: onTransition}
}

func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// History returns the recorded transitions in order.
func (m *Monitor) History() []Transition {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Transition, len(m.history))
	copy(out, m.history)
	return out
}

// Observe feeds a speed reading taken at the given time. It only ever moves
// between Safe and Warning; the sticky states ignore telemetry entirely.
func (m *Monitor) Observe(speedMps float64, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.status {
	case StatusSafe:
		if speedMps < m.cfg.WarnSpeedMps {
			m.aboveSince = time.Time{}
			return
		}
		if m.aboveSince.IsZero() {
			m.aboveSince = at
			return
		}
		if at.Sub(m.aboveSince) >= m.cfg.Sustain {
			m.transition(StatusWarning, "sustained speed above threshold", at)
			m.belowSince = time.Time{}
		}
	case StatusWarning:
		if speedMps >= m.cfg.WarnSpeedMps {
			m.belowSince = time.Time{}
			return
		}
		if m.belowSince.IsZero() {
			m.belowSince = at
			return
		}
		if at.Sub(m.belowSince) >= m.cfg.Clear {
			m.transition(StatusSafe, "speed back below threshold", at)
			m.aboveSince = time.Time{}
		}
	}
}

// OnCrashConfirmed moves to CrashDetected from any state. Returns true when
// the status actually changed (a crash while already escalated is absorbed).
func (m *Monitor) OnCrashConfirmed(at time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == StatusCrashDetected || m.status == StatusEmergency {
		return false
	}
	m.transition(StatusCrashDetected, "crash event confirmed", at)
	return true
}

// TriggerSOS moves to Emergency from any non-sticky state. An SOS while
// already in CrashDetected or Emergency is absorbed: only Resolve exits the
// sticky states.
func (m *Monitor) TriggerSOS(at time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == StatusCrashDetected || m.status == StatusEmergency {
		return false
	}
	m.transition(StatusEmergency, "manual SOS", at)
	return true
}

// Resolve is the only exit from CrashDetected and Emergency. Any other state
// rejects it.
func (m *Monitor) Resolve(at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != StatusCrashDetected && m.status != StatusEmergency {
		return ErrInvalidTransition
	}
	m.transition(StatusSafe, "resolved by user", at)
	m.aboveSince = time.Time{}
	m.belowSince = time.Time{}
	return nil
}

func (m *Monitor) transition(to Status, reason string, at time.Time) {
	tr := Transition{From: m.status, To: to, Reason: reason, At: at}
	m.status = to
	m.history = append(m.history, tr)
	if m.onTransition != nil {
		m.onTransition(tr)
	}
}
