package telemetry

import "time"

// PositionSample is one GPS fix from the phone's location provider.
// Timestamps are non-decreasing within a stream; SpeedMps is negative when the
// provider did not report speed for the fix.
type PositionSample struct {
	Timestamp time.Time `json:"timestamp"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	AccuracyM float64   `json:"accuracy_m"`
	SpeedMps  float64   `json:"speed_mps"`
	CourseDeg float64   `json:"course_deg"`
}

// HasSpeed reports whether the provider supplied a speed for this fix.
func (p PositionSample) HasSpeed() bool { return p.SpeedMps >= 0 }

// Delta describes what a single ingested sample contributed.
type Delta struct {
	Accepted      bool    `json:"accepted"`
	Reason        string  `json:"reason,omitempty"`
	DistanceM     float64 `json:"distance_m"`
	SpeedMps      float64 `json:"speed_mps"`
	LowConfidence bool    `json:"low_confidence"`
}

// Rejection reasons carried on Delta. Low-confidence samples are not errors:
// they still update the last known position.
const (
	ReasonAccuracy  = "accuracy_above_ceiling"
	ReasonStaleTime = "timestamp_not_advancing"
	ReasonGPSJump   = "implausible_step_speed"
)

// Snapshot is the aggregate state exposed to the safety monitor and observers.
type Snapshot struct {
	DistanceM     float64        `json:"distance_m"`
	MaxSpeedMps   float64        `json:"max_speed_mps"`
	AvgSpeedMps   float64        `json:"avg_speed_mps"`
	CurrentMps    float64        `json:"current_mps"`
	LastKnown     PositionSample `json:"last_known"`
	SampleCount   int            `json:"sample_count"`
	AcceptedCount int            `json:"accepted_count"`
	Degraded      bool           `json:"degraded"`
}
