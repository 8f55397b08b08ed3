package ride

import (
	"sync"
	"time"

	"backend-motorev/internal/crash"
	"backend-motorev/internal/escalation"
	"backend-motorev/internal/safety"
	"backend-motorev/internal/telemetry"
)

// EngineConfig bundles the per-session tuning handed down from config.
type EngineConfig struct {
	Guards     telemetry.GuardConfig
	Crash      crash.Thresholds
	Hysteresis safety.Hysteresis
	Score      ScoreThresholds
}

// EmergencyFunc is invoked (off the session timeline) when the safety monitor
// enters CrashDetected or Emergency.
type EmergencyFunc func(reason escalation.TriggerReason, ev *crash.Event, snap Snapshot)

type task struct {
	fn   func()
	done chan struct{}
}

// Session is one ride. All mutation happens on a single worker goroutine fed
// by a mailbox, so samples and commands from independent producers land on one
// logical timeline and never interleave writes.
type Session struct {
	ID      string
	RiderID string

	cfg     EngineConfig
	mailbox chan task
	quit    chan struct{}
	endOnce sync.Once

	onSession   func(Snapshot)
	onSafety    func(safety.Transition)
	onEmergency EmergencyFunc

	// Worker-owned state below: touched only from the mailbox goroutine.
	state       State
	start       time.Time
	pausedTotal time.Duration
	pauseStart  time.Time
	paused      []PausedInterval
	agg         *telemetry.Aggregator
	det         *crash.Detector
	monitor     *safety.Monitor
	route       []telemetry.PositionSample
	flushTimer  *time.Timer
	gapTimer    *time.Timer
	endTime     time.Time
}

// NewSession creates an Active session and starts its worker. The callbacks
// fan state out: onSession after every session mutation, onSafety per safety
// transition, onEmergency when escalation must start.
func NewSession(id, riderID string, cfg EngineConfig, start time.Time,
	onSession func(Snapshot), onSafety func(safety.Transition), onEmergency EmergencyFunc) *Session {

	s := &Session{
		ID:          id,
		RiderID:     riderID,
		cfg:         cfg,
		mailbox:     make(chan task, 256),
		quit:        make(chan struct{}),
		onSession:   onSession,
		onSafety:    onSafety,
		onEmergency: onEmergency,
		state:       StateActive,
		start:       start,
		agg:         telemetry.NewAggregator(cfg.Guards),
		det:         crash.NewDetector(cfg.Crash),
	}
	s.monitor = safety.NewMonitor(cfg.Hysteresis, func(tr safety.Transition) {
		if s.onSafety != nil {
			s.onSafety(tr)
		}
	})

	s.armGapTimer()
	go s.work()
	return s
}

func (s *Session) work() {
	for {
		select {
		case t := <-s.mailbox:
			t.fn()
			if t.done != nil {
				close(t.done)
			}
		case <-s.quit:
			return
		}
	}
}

// exec runs fn on the session timeline and waits for it.
func (s *Session) exec(fn func()) error {
	done := make(chan struct{})
	select {
	case s.mailbox <- task{fn: fn, done: done}:
	case <-s.quit:
		return ErrSessionEnded
	}
	select {
	case <-done:
		return nil
	case <-s.quit:
		// The stop command shut the worker down before this task ran.
		select {
		case <-done:
			return nil
		default:
			return ErrSessionEnded
		}
	}
}

// submit runs fn on the session timeline without waiting (timer callbacks).
func (s *Session) submit(fn func()) {
	select {
	case s.mailbox <- task{fn: fn}:
	case <-s.quit:
	}
}

// Pause freezes distance and duration accrual. Already paused is a no-op;
// motion samples keep flowing to the crash detector.
func (s *Session) Pause(now time.Time) error {
	var err error
	if e := s.exec(func() {
		switch s.state {
		case StatePaused:
			// double-tap
		case StateActive:
			s.state = StatePaused
			s.pauseStart = now
			s.paused = append(s.paused, PausedInterval{Start: now})
			s.stopGapTimer()
			s.broadcast()
		case StateEnded:
			err = ErrSessionEnded
		default:
			err = ErrInvalidTransition
		}
	}); e != nil {
		return e
	}
	return err
}

// Resume reopens accrual. Already active is a no-op.
func (s *Session) Resume(now time.Time) error {
	var err error
	if e := s.exec(func() {
		switch s.state {
		case StateActive:
			// double-tap
		case StatePaused:
			s.pausedTotal += now.Sub(s.pauseStart)
			s.paused[len(s.paused)-1].End = now
			s.pauseStart = time.Time{}
			s.state = StateActive
			s.agg.ResetReference()
			s.armGapTimer()
			s.broadcast()
		case StateEnded:
			err = ErrSessionEnded
		default:
			err = ErrInvalidTransition
		}
	}); e != nil {
		return e
	}
	return err
}

// Stop finalizes the session into a CompletedRide and ends the worker. Any
// later command fails with ErrSessionEnded.
func (s *Session) Stop(now time.Time) (CompletedRide, error) {
	var (
		completed CompletedRide
		err       error
	)
	if e := s.exec(func() {
		switch s.state {
		case StateEnded:
			err = ErrSessionEnded
			return
		case StateActive, StatePaused:
		default:
			err = ErrInvalidTransition
			return
		}

		if s.state == StatePaused {
			s.pausedTotal += now.Sub(s.pauseStart)
			s.paused[len(s.paused)-1].End = now
		}
		if s.flushTimer != nil {
			s.flushTimer.Stop()
		}
		s.stopGapTimer()
		s.state = StateEnded
		s.endTime = now

		active := s.activeDuration(now)
		snap := s.agg.Snapshot(active)
		completed = CompletedRide{
			ID:              s.ID,
			RiderID:         s.RiderID,
			StartTime:       s.start,
			EndTime:         now,
			DistanceM:       snap.DistanceM,
			DurationSec:     active.Seconds(),
			AvgSpeedMps:     snap.AvgSpeedMps,
			MaxSpeedMps:     snap.MaxSpeedMps,
			Degraded:        s.agg.EverDegraded(),
			PausedIntervals: s.paused,
			RoutePoints:     s.route,
		}
		completed.SafetyScore = SafetyScore(completed, s.cfg.Score)

		s.broadcast()
		s.endOnce.Do(func() { close(s.quit) })
	}); e != nil {
		return CompletedRide{}, e
	}
	return completed, err
}

// IngestPosition feeds one GPS fix. Low-confidence and rejected samples are
// reported in the Delta, never as errors.
func (s *Session) IngestPosition(sample telemetry.PositionSample) (telemetry.Delta, error) {
	var delta telemetry.Delta
	var err error
	if e := s.exec(func() {
		switch s.state {
		case StateEnded:
			err = ErrSessionEnded
			return
		case StatePaused:
			// Track position, accrue nothing.
			s.agg.UpdateLastKnown(sample)
			s.route = append(s.route, sample)
			return
		}

		delta = s.agg.Ingest(sample)
		s.route = append(s.route, sample)
		s.armGapTimer()
		if delta.Accepted {
			s.monitor.Observe(delta.SpeedMps, sample.Timestamp)
		}
		s.broadcast()
	}); e != nil {
		return telemetry.Delta{}, e
	}
	return delta, err
}

// IngestMotion feeds one IMU sample. Motion flows to the crash detector even
// while paused: a parked bike can still be hit.
func (s *Session) IngestMotion(sample crash.MotionSample) error {
	var err error
	if e := s.exec(func() {
		if s.state == StateEnded {
			err = ErrSessionEnded
			return
		}
		speed := s.agg.Snapshot(0).CurrentMps
		ev := s.det.Ingest(sample, speed)
		s.syncFlushTimer()
		if ev != nil {
			s.handleCrash(ev)
		}
	}); e != nil {
		return e
	}
	return err
}

// TriggerSOS is the rider's manual emergency action.
func (s *Session) TriggerSOS(now time.Time) error {
	var err error
	if e := s.exec(func() {
		if s.state == StateEnded {
			err = ErrSessionEnded
			return
		}
		if s.monitor.TriggerSOS(now) && s.onEmergency != nil {
			snap := s.snapshotLocked(now)
			go s.onEmergency(escalation.ReasonManualSOS, nil, snap)
		}
	}); e != nil {
		return e
	}
	return err
}

// Resolve is the explicit exit from CrashDetected/Emergency.
func (s *Session) Resolve(now time.Time) error {
	var err error
	if e := s.exec(func() {
		err = s.monitor.Resolve(now)
	}); e != nil {
		return e
	}
	return err
}

// SafetyStatus reads the monitor's current classification.
func (s *Session) SafetyStatus() safety.Status { return s.monitor.Status() }

// Snapshot returns the observable session state.
func (s *Session) Snapshot(now time.Time) (Snapshot, error) {
	var snap Snapshot
	if e := s.exec(func() { snap = s.snapshotLocked(now) }); e != nil {
		return Snapshot{}, e
	}
	return snap, nil
}

// syncFlushTimer keeps a wall-clock fallback armed while a tentative crash
// signal is pending, so stillness with no further samples still confirms.
func (s *Session) syncFlushTimer() {
	if s.det.Pending() {
		if s.flushTimer != nil {
			s.flushTimer.Stop()
		}
		s.flushTimer = time.AfterFunc(s.cfg.Crash.ConfirmWindow, func() {
			s.submit(func() {
				if ev := s.det.Flush(time.Now()); ev != nil {
					s.handleCrash(ev)
				}
			})
		})
	} else if s.flushTimer != nil {
		s.flushTimer.Stop()
		s.flushTimer = nil
	}
}

// armGapTimer starts (or restarts) the wall-clock silence watchdog. Sample
// timestamps catch gaps between samples; only a timer can catch a stream that
// stops entirely.
func (s *Session) armGapTimer() {
	if s.cfg.Guards.GapWindow <= 0 {
		return
	}
	if s.gapTimer != nil {
		s.gapTimer.Stop()
	}
	s.gapTimer = time.AfterFunc(s.cfg.Guards.GapWindow, func() {
		s.submit(func() {
			if s.state != StateActive {
				return
			}
			s.agg.NoteGap()
			s.broadcast()
		})
	})
}

func (s *Session) stopGapTimer() {
	if s.gapTimer != nil {
		s.gapTimer.Stop()
		s.gapTimer = nil
	}
}

func (s *Session) handleCrash(ev *crash.Event) {
	if s.monitor.OnCrashConfirmed(ev.Timestamp) && s.onEmergency != nil {
		snap := s.snapshotLocked(ev.Timestamp)
		go s.onEmergency(escalation.ReasonCrash, ev, snap)
	}
}

func (s *Session) activeDuration(now time.Time) time.Duration {
	end := now
	if s.state == StateEnded {
		end = s.endTime
	}
	active := end.Sub(s.start) - s.pausedTotal
	if s.state == StatePaused {
		active -= end.Sub(s.pauseStart)
	}
	if active < 0 {
		active = 0
	}
	return active
}

func (s *Session) snapshotLocked(now time.Time) Snapshot {
	active := s.activeDuration(now)
	paused := make([]PausedInterval, len(s.paused))
	copy(paused, s.paused)
	return Snapshot{
		ID:        s.ID,
		RiderID:   s.RiderID,
		State:     s.state,
		StartTime: s.start,
		Telemetry: s.agg.Snapshot(active),
		Paused:    paused,
		ActiveSec: active.Seconds(),
	}
}

func (s *Session) broadcast() {
	if s.onSession != nil {
		s.onSession(s.snapshotLocked(time.Now()))
	}
}
