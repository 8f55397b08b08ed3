// Package crash turns raw motion samples into confirmed crash events using a
// two-stage detection scheme: a tentative signal opens a confirmation window,
// and only sustained stillness through that window confirms the crash. Hard
// braking and potholes retract themselves when the rider keeps moving.
package crash

import (
	"math"
	"time"
)

// MotionSample is one IMU reading, produced at a fixed rate independent of
// GPS fixes.
type MotionSample struct {
	Timestamp           time.Time `json:"timestamp"`
	AccelMagnitude      float64   `json:"accel_magnitude"`
	OrientationDeltaDeg float64   `json:"orientation_delta_deg"`
}

// Event is an immutable confirmed crash.
type Event struct {
	Timestamp           time.Time      `json:"timestamp"`
	ConfidenceScore     float64        `json:"confidence_score"`
	Confirmed           bool           `json:"confirmed"`
	ContributingSamples []MotionSample `json:"contributing_samples"`
}

// Thresholds controls when a tentative signal fires and when it resolves.
type Thresholds struct {
	AccelMps2      float64       // impact magnitude that opens a tentative signal
	SpeedDropMps   float64       // speed loss within the drop window counting as a sharp stop
	RolloverDeg    float64       // orientation change counting as a rollover
	ConfirmWindow  time.Duration // stillness required before a tentative signal confirms
	RecoverySpeed  float64       // moving faster than this retracts the signal
	maxContributed int
}

const defaultMaxContributed = 16

// Detector is a single-stream state machine: at most one tentative signal is
// pending at any time, and new raw triggers refresh the open window instead of
// stacking a second one. It is driven entirely by sample timestamps so replays
// are deterministic; Flush covers the wall-clock case where samples stop.
type Detector struct {
	th Thresholds

	pending      bool
	pendingSince time.Time
	deadline     time.Time
	peakAccel    float64
	peakOrient   float64
	window       []MotionSample

	prevSpeed   float64
	prevSpeedAt time.Time
	haveSpeed   bool
}

func NewDetector(th Thresholds) *Detector {
	if th.maxContributed == 0 {
		th.maxContributed = defaultMaxContributed
	}
	return &Detector{th: th}
}

// Pending reports whether a tentative signal is awaiting confirmation.
func (d *Detector) Pending() bool { return d.pending }

// Ingest feeds one motion sample plus the rider's current speed. It returns a
// confirmed Event at most once per incident, and nil otherwise.
func (d *Detector) Ingest(sample MotionSample, currentSpeed float64) *Event {
	defer func() {
		d.prevSpeed = currentSpeed
		d.prevSpeedAt = sample.Timestamp
		d.haveSpeed = true
	}()

	if d.pending {
		d.window = append(d.window, sample)
		if len(d.window) > d.th.maxContributed {
			d.window = d.window[1:]
		}
		if sample.AccelMagnitude > d.peakAccel {
			d.peakAccel = sample.AccelMagnitude
		}
		if sample.OrientationDeltaDeg > d.peakOrient {
			d.peakOrient = sample.OrientationDeltaDeg
		}

		if currentSpeed >= d.th.RecoverySpeed {
			// Rider is moving again: hard braking or a pothole, not a crash.
			d.reset()
			return nil
		}
		if d.isTrigger(sample, currentSpeed) {
			// A fresh impact inside the open window extends it.
			d.deadline = sample.Timestamp.Add(d.th.ConfirmWindow)
			return nil
		}
		if !sample.Timestamp.Before(d.deadline) {
			return d.confirm()
		}
		return nil
	}

	if d.isTrigger(sample, currentSpeed) {
		d.pending = true
		d.pendingSince = sample.Timestamp
		d.deadline = sample.Timestamp.Add(d.th.ConfirmWindow)
		d.peakAccel = sample.AccelMagnitude
		d.peakOrient = sample.OrientationDeltaDeg
		d.window = []MotionSample{sample}
	}
	return nil
}

// Flush confirms a pending signal whose window elapsed on the wall clock even
// though no further samples arrived (the phone may stop reporting after an
// impact). It returns nil when nothing is pending or the window is still open.
func (d *Detector) Flush(now time.Time) *Event {
	if !d.pending || now.Before(d.deadline) {
		return nil
	}
	return d.confirm()
}

func (d *Detector) isTrigger(sample MotionSample, currentSpeed float64) bool {
	if sample.AccelMagnitude < d.th.AccelMps2 {
		return false
	}
	if sample.OrientationDeltaDeg >= d.th.RolloverDeg {
		return true
	}
	return d.haveSpeed && d.prevSpeed-currentSpeed >= d.th.SpeedDropMps
}

func (d *Detector) confirm() *Event {
	ev := &Event{
		Timestamp:           d.pendingSince,
		ConfidenceScore:     d.confidence(),
		Confirmed:           true,
		ContributingSamples: d.window,
	}
	d.reset()
	return ev
}

// confidence blends how far the impact and orientation change overshot their
// thresholds, normalized to [0,1].
func (d *Detector) confidence() float64 {
	accel := 0.0
	if d.th.AccelMps2 > 0 {
		accel = (d.peakAccel - d.th.AccelMps2) / d.th.AccelMps2
	}
	orient := 0.0
	if d.th.RolloverDeg > 0 {
		orient = d.peakOrient / d.th.RolloverDeg
	}
	score := 0.5 + 0.3*accel + 0.2*orient
	return math.Min(1, math.Max(0, score))
}

func (d *Detector) reset() {
	d.pending = false
	d.pendingSince = time.Time{}
	d.deadline = time.Time{}
	d.peakAccel = 0
	d.peakOrient = 0
	d.window = nil
}
