package escalation

import (
	"context"
	"log"
	"sync"
	"time"

	"backend-motorev/internal/crash"

	"github.com/google/uuid"
)

// Notifier is the external delivery collaborator (call/SMS/push). The manager
// only sees the per-attempt outcome, never delivery mechanics.
type Notifier interface {
	Notify(ctx context.Context, contact Contact, payload Payload) error
}

// RetryPolicy bounds per-contact delivery retries.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

// Manager runs emergency-notification campaigns. Invariants it owns:
//   - at most one active run per session; re-triggering returns the existing
//     run unchanged
//   - exactly one of countdown-expiry or cancellation takes effect
//   - a delivery failure for one contact never blocks the next
type Manager struct {
	mu        sync.Mutex
	notifier  Notifier
	countdown time.Duration
	retry     RetryPolicy
	onChange  func(Run)

	runs   map[string]*runState
	byID   map[string]*runState
}

type runState struct {
	run    *Run
	timer  *time.Timer
	cancel context.CancelFunc
	ctx    context.Context
}

// NewManager wires the delivery collaborator and campaign tuning. onChange, if
// non-nil, receives a snapshot after every run mutation.
func NewManager(notifier Notifier, countdown time.Duration, retry RetryPolicy, onChange func(Run)) *Manager {
	if retry.Attempts < 1 {
		retry.Attempts = 1
	}
	return &Manager{
		notifier:  notifier,
		countdown: countdown,
		retry:     retry,
		onChange:  onChange,
		runs:      map[string]*runState{},
		byID:      map[string]*runState{},
	}
}

// Trigger starts a run for the session, or returns the active one unchanged.
// The bool reports whether a new run was started. Crash triggers get the
// cancellation countdown; manual SOS dispatches immediately.
func (m *Manager) Trigger(payload Payload, contacts []Contact, ev *crash.Event) (Run, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if st, ok := m.runs[payload.SessionID]; ok && st.run.Active() {
		return snapshotRun(st.run), false
	}

	ctx, cancel := context.WithCancel(context.Background())
	st := &runState{
		run: &Run{
			ID:         uuid.NewString(),
			SessionID:  payload.SessionID,
			Reason:     payload.Reason,
			CrashEvent: ev,
			State:      RunCountingDown,
		},
		ctx:    ctx,
		cancel: cancel,
	}
	for _, c := range contacts {
		st.run.Notifications = append(st.run.Notifications, Notification{Contact: c})
	}
	m.runs[payload.SessionID] = st
	m.byID[st.run.ID] = st

	if payload.Reason == ReasonManualSOS || m.countdown <= 0 {
		st.run.State = RunDispatching
		go m.dispatch(st, payload)
	} else {
		st.run.CountdownDeadline = time.Now().Add(m.countdown)
		runID := st.run.ID
		st.timer = time.AfterFunc(m.countdown, func() { m.countdownExpired(runID, payload) })
	}

	snap := snapshotRun(st.run)
	m.notify(snap)
	return snap, true
}

func (m *Manager) countdownExpired(runID string, payload Payload) {
	m.mu.Lock()
	st, ok := m.byID[runID]
	if !ok || st.run.State != RunCountingDown {
		// Cancel won the race.
		m.mu.Unlock()
		return
	}
	st.run.State = RunDispatching
	snap := snapshotRun(st.run)
	m.mu.Unlock()

	m.notify(snap)
	m.dispatch(st, payload)
}

// dispatch notifies contacts in order, retrying each with backoff. It runs off
// the engine timeline so telemetry ingestion is never blocked.
func (m *Manager) dispatch(st *runState, payload Payload) {
	for i := range st.run.Notifications {
		if st.ctx.Err() != nil {
			// Cancelled mid-dispatch: untried contacts are skipped, messages
			// already sent stay sent.
			return
		}

		m.mu.Lock()
		contact := st.run.Notifications[i].Contact
		m.mu.Unlock()

		var lastErr error
		delivered := false
		attempts := 0
		for attempts < m.retry.Attempts {
			attempts++
			if err := m.notifier.Notify(st.ctx, contact, payload); err != nil {
				lastErr = err
				log.Printf("escalation %s: notify %s attempt %d failed: %v", st.run.ID, contact.ID, attempts, err)
				if st.ctx.Err() != nil {
					break
				}
				time.Sleep(time.Duration(attempts) * m.retry.Backoff)
				continue
			}
			delivered = true
			break
		}

		m.mu.Lock()
		n := &st.run.Notifications[i]
		n.Attempts = attempts
		n.Delivered = delivered
		if delivered {
			n.SentAt = time.Now()
			n.LastError = ""
		} else if lastErr != nil {
			n.LastError = lastErr.Error()
		}
		snap := snapshotRun(st.run)
		m.mu.Unlock()
		m.notify(snap)
	}

	m.mu.Lock()
	if st.run.State == RunDispatching {
		st.run.State = RunDispatched
	}
	snap := snapshotRun(st.run)
	m.mu.Unlock()
	m.notify(snap)
}

// Cancel aborts the countdown, or stops untried contacts once dispatch has
// begun. It reports whether anything was cancelled.
func (m *Manager) Cancel(sessionID string) bool {
	m.mu.Lock()
	st, ok := m.runs[sessionID]
	if !ok || !st.run.Active() {
		m.mu.Unlock()
		return false
	}

	switch st.run.State {
	case RunCountingDown:
		if st.timer != nil {
			st.timer.Stop()
		}
		st.run.State = RunCancelled
	case RunDispatching:
		st.run.State = RunCancelled
	default:
		m.mu.Unlock()
		return false
	}
	st.cancel()
	snap := snapshotRun(st.run)
	m.mu.Unlock()

	m.notify(snap)
	return true
}

// Resolve retires the session's run (the ride stopped or the rider confirmed
// they are fine after dispatch). Safe to call with no active run.
func (m *Manager) Resolve(sessionID string) {
	m.mu.Lock()
	st, ok := m.runs[sessionID]
	if !ok {
		m.mu.Unlock()
		return
	}
	if st.timer != nil {
		st.timer.Stop()
	}
	st.cancel()
	if st.run.Active() {
		st.run.State = RunResolved
	}
	delete(m.runs, sessionID)
	snap := snapshotRun(st.run)
	m.mu.Unlock()

	m.notify(snap)
}

// Acknowledge records that a contact responded to their notification.
func (m *Manager) Acknowledge(runID, contactID string) bool {
	m.mu.Lock()
	st, ok := m.byID[runID]
	if !ok {
		m.mu.Unlock()
		return false
	}
	found := false
	for i := range st.run.Notifications {
		if st.run.Notifications[i].Contact.ID == contactID {
			st.run.Notifications[i].Acknowledged = true
			found = true
		}
	}
	snap := snapshotRun(st.run)
	m.mu.Unlock()

	if found {
		m.notify(snap)
	}
	return found
}

// ActiveRun returns the session's current run, if any.
func (m *Manager) ActiveRun(sessionID string) (Run, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.runs[sessionID]
	if !ok || !st.run.Active() {
		return Run{}, false
	}
	return snapshotRun(st.run), true
}

func (m *Manager) notify(snap Run) {
	if m.onChange != nil {
		m.onChange(snap)
	}
}

func snapshotRun(r *Run) Run {
	out := *r
	out.Notifications = make([]Notification, len(r.Notifications))
	copy(out.Notifications, r.Notifications)
	return out
}
