package ride

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"backend-motorev/internal/crash"
	"backend-motorev/internal/escalation"
	"backend-motorev/internal/safety"
	"backend-motorev/internal/stream"
	"backend-motorev/internal/telemetry"

	"github.com/google/uuid"
)

// Service owns the live sessions and wires each one to persistence, the
// stream hub, and the escalation manager. One active session per rider.
type Service struct {
	store       *Store
	hub         *stream.Hub
	contacts    *escalation.ContactService
	escalations *escalation.Manager
	cfg         EngineConfig

	mu      sync.Mutex
	byRider map[string]*Session
	byID    map[string]*Session
}

func NewService(store *Store, hub *stream.Hub, contacts *escalation.ContactService, escalations *escalation.Manager, cfg EngineConfig) *Service {
	return &Service{
		store:       store,
		hub:         hub,
		contacts:    contacts,
		escalations: escalations,
		cfg:         cfg,
		byRider:     map[string]*Session{},
		byID:        map[string]*Session{},
	}
}

// Start begins a ride for the rider. Fails with ErrAlreadyActive while a
// previous session is still live.
func (s *Service) Start(riderID string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byRider[riderID]; ok {
		return Snapshot{}, ErrAlreadyActive
	}

	id := uuid.NewString()
	now := time.Now()
	session := NewSession(id, riderID, s.cfg, now,
		func(snap Snapshot) { s.publishSession(snap) },
		func(tr safety.Transition) { s.publishSafety(id, tr) },
		func(reason escalation.TriggerReason, ev *crash.Event, snap Snapshot) {
			s.escalate(reason, ev, snap)
		},
	)
	s.byRider[riderID] = session
	s.byID[id] = session

	snap, err := session.Snapshot(now)
	if err != nil {
		return Snapshot{}, err
	}
	s.publishSession(snap)
	return snap, nil
}

func (s *Service) session(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.byID[id]
	if !ok {
		return nil, ErrNoActiveSession
	}
	return session, nil
}

func (s *Service) Pause(id string) error {
	session, err := s.session(id)
	if err != nil {
		return err
	}
	return session.Pause(time.Now())
}

func (s *Service) Resume(id string) error {
	session, err := s.session(id)
	if err != nil {
		return err
	}
	return session.Resume(time.Now())
}

// Stop finalizes the session, persists the CompletedRide, and retires any
// pending escalation run.
func (s *Service) Stop(ctx context.Context, id string) (CompletedRide, error) {
	session, err := s.session(id)
	if err != nil {
		return CompletedRide{}, err
	}

	completed, err := session.Stop(time.Now())
	if err != nil {
		return CompletedRide{}, err
	}

	s.mu.Lock()
	delete(s.byRider, session.RiderID)
	delete(s.byID, id)
	s.mu.Unlock()

	s.escalations.Resolve(id)

	if err := s.store.SaveCompleted(ctx, completed); err != nil {
		// The ride still completed; persistence failure is surfaced but the
		// frozen record goes back to the caller regardless.
		log.Printf("ride %s: persist failed: %v", id, err)
		return completed, err
	}
	return completed, nil
}

func (s *Service) IngestPosition(id string, sample telemetry.PositionSample) (telemetry.Delta, error) {
	session, err := s.session(id)
	if err != nil {
		return telemetry.Delta{}, err
	}
	return session.IngestPosition(sample)
}

func (s *Service) IngestMotion(id string, sample crash.MotionSample) error {
	session, err := s.session(id)
	if err != nil {
		return err
	}
	return session.IngestMotion(sample)
}

func (s *Service) TriggerSOS(id string) error {
	session, err := s.session(id)
	if err != nil {
		return err
	}
	return session.TriggerSOS(time.Now())
}

// CancelEscalation aborts a pending countdown (or stops untried contacts).
func (s *Service) CancelEscalation(id string) bool {
	return s.escalations.Cancel(id)
}

// Resolve clears a sticky safety state and retires the escalation run.
func (s *Service) Resolve(id string) error {
	session, err := s.session(id)
	if err != nil {
		return err
	}
	if err := session.Resolve(time.Now()); err != nil {
		return err
	}
	s.escalations.Resolve(id)
	return nil
}

// Live returns the snapshot of an active session.
func (s *Service) Live(id string) (Snapshot, error) {
	session, err := s.session(id)
	if err != nil {
		return Snapshot{}, err
	}
	return session.Snapshot(time.Now())
}

// Completed loads a stored ride.
func (s *Service) Completed(ctx context.Context, id string) (CompletedRide, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) History(ctx context.Context, riderID string) ([]CompletedRide, error) {
	return s.store.ListByRider(ctx, riderID)
}

func (s *Service) SafetyStatus(id string) (safety.Status, error) {
	session, err := s.session(id)
	if err != nil {
		return "", err
	}
	return session.SafetyStatus(), nil
}

// escalate runs off the session timeline: it loads the rider's contact list
// and hands the campaign to the manager.
func (s *Service) escalate(reason escalation.TriggerReason, ev *crash.Event, snap Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	contacts, err := s.contacts.List(ctx, snap.RiderID)
	if err != nil {
		log.Printf("ride %s: loading contacts for escalation: %v", snap.ID, err)
	}

	payload := escalation.Payload{
		RiderID:   snap.RiderID,
		SessionID: snap.ID,
		Reason:    reason,
		Position:  snap.Telemetry.LastKnown,
		Telemetry: snap.Telemetry,
		At:        time.Now(),
	}
	s.escalations.Trigger(payload, contacts, ev)
}

func (s *Service) publishSession(snap Snapshot) {
	if s.hub == nil {
		return
	}
	payload, _ := json.Marshal(snap)
	s.hub.Publish(stream.SessionTopic(snap.ID), payload)
}

func (s *Service) publishSafety(id string, tr safety.Transition) {
	if s.hub == nil {
		return
	}
	payload, _ := json.Marshal(tr)
	s.hub.Publish(stream.SafetyTopic(id), payload)
}
