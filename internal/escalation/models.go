package escalation

import (
	"time"

	"backend-motorev/internal/crash"
	"backend-motorev/internal/telemetry"
)

// Contact is someone notified when an escalation dispatches. At most one
// contact per rider is primary; the primary is always notified first.
type Contact struct {
	ID           string    `json:"id"`
	RiderID      string    `json:"rider_id"`
	Name         string    `json:"name"`
	PhoneNumber  string    `json:"phone_number"`
	Relationship string    `json:"relationship"`
	IsPrimary    bool      `json:"is_primary"`
	Position     int       `json:"position"`
	CreatedAt    time.Time `json:"created_at"`
}

// TriggerReason distinguishes what started a run.
type TriggerReason string

const (
	ReasonCrash     TriggerReason = "crash"
	ReasonManualSOS TriggerReason = "manual_sos"
)

// Payload is what the delivery collaborator receives per contact: where the
// rider is and how the ride has gone so far.
type Payload struct {
	RiderID   string                   `json:"rider_id"`
	SessionID string                   `json:"session_id"`
	Reason    TriggerReason            `json:"reason"`
	Position  telemetry.PositionSample `json:"position"`
	Telemetry telemetry.Snapshot       `json:"telemetry"`
	At        time.Time                `json:"at"`
}

// Notification is the per-contact dispatch record on a run.
type Notification struct {
	Contact      Contact   `json:"contact"`
	SentAt       time.Time `json:"sent_at,omitempty"`
	Delivered    bool      `json:"delivered"`
	Attempts     int       `json:"attempts"`
	Acknowledged bool      `json:"acknowledged"`
	LastError    string    `json:"last_error,omitempty"`
}

// RunState tracks where a run is in its lifecycle.
type RunState string

const (
	RunCountingDown RunState = "counting_down"
	RunDispatching  RunState = "dispatching"
	RunDispatched   RunState = "dispatched"
	RunCancelled    RunState = "cancelled"
	RunResolved     RunState = "resolved"
)

// Run is one emergency-notification campaign. Snapshot copies are handed to
// observers; the manager owns the live struct.
type Run struct {
	ID                string         `json:"id"`
	SessionID         string         `json:"session_id"`
	Reason            TriggerReason  `json:"reason"`
	CrashEvent        *crash.Event   `json:"crash_event,omitempty"`
	State             RunState       `json:"state"`
	CountdownDeadline time.Time      `json:"countdown_deadline"`
	Notifications     []Notification `json:"notifications"`
}

// Active reports whether the run still blocks new triggers for its session.
func (r Run) Active() bool {
	return r.State != RunCancelled && r.State != RunResolved
}
