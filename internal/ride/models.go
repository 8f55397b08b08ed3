package ride

import (
	"errors"
	"time"

	"backend-motorev/internal/telemetry"
)

// State is the session lifecycle position. Ended is terminal.
type State string

const (
	StateIdle   State = "idle"
	StateActive State = "active"
	StatePaused State = "paused"
	StateEnded  State = "ended"
)

var (
	ErrAlreadyActive     = errors.New("a ride session is already active")
	ErrSessionEnded      = errors.New("ride session has ended")
	ErrInvalidTransition = errors.New("command not valid in current session state")
	ErrNoActiveSession   = errors.New("no active ride session")
	ErrRideNotFound      = errors.New("ride not found")
)

// PausedInterval is one pause span. End is zero while the pause is open.
type PausedInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end,omitempty"`
}

// Snapshot is the observable session state broadcast on every change.
type Snapshot struct {
	ID        string             `json:"id"`
	RiderID   string             `json:"rider_id"`
	State     State              `json:"state"`
	StartTime time.Time          `json:"start_time"`
	Telemetry telemetry.Snapshot `json:"telemetry"`
	Paused    []PausedInterval   `json:"paused_intervals,omitempty"`
	ActiveSec float64            `json:"active_sec"`
}

// CompletedRide is the frozen record handed off when a session stops. The
// safety score is derivable from this value alone.
type CompletedRide struct {
	ID              string                     `json:"id"`
	RiderID         string                     `json:"rider_id"`
	StartTime       time.Time                  `json:"start_time"`
	EndTime         time.Time                  `json:"end_time"`
	DistanceM       float64                    `json:"distance_m"`
	DurationSec     float64                    `json:"duration_sec"` // paused time excluded
	AvgSpeedMps     float64                    `json:"avg_speed_mps"`
	MaxSpeedMps     float64                    `json:"max_speed_mps"`
	SafetyScore     int                        `json:"safety_score"`
	Degraded        bool                       `json:"degraded"`
	PausedIntervals []PausedInterval           `json:"paused_intervals,omitempty"`
	RoutePoints     []telemetry.PositionSample `json:"route_points,omitempty"`
}
