package telemetry

import (
	"time"

	"github.com/golang/geo/s2"
)

const earthRadiusM = 6371008.8

// GuardConfig bundles the sanity limits applied to incoming fixes.
type GuardConfig struct {
	// AccuracyCeilingM marks fixes with worse horizontal accuracy as
	// low-confidence: they update the last known position but contribute
	// nothing to distance or speed.
	AccuracyCeilingM float64

	// MaxStepSpeedMps discards distance deltas that imply an average speed
	// above this value between two fixes, unless both fixes self-report speed
	// (a sustained high reading from the provider is trusted over our own
	// delta math).
	MaxStepSpeedMps float64

	// MaxPlausibleMps clips instantaneous speeds: readings above it never
	// raise the max-speed aggregate.
	MaxPlausibleMps float64

	// GapWindow flags the snapshot as degraded when consecutive samples are
	// further apart than this.
	GapWindow time.Duration
}

// Aggregator folds position samples into ride telemetry. It carries no wall
// clock: replaying the same ordered sample sequence always produces the same
// aggregates.
type Aggregator struct {
	cfg GuardConfig

	distanceM    float64
	maxSpeed     float64
	currentMps   float64
	lastKnown    PositionSample
	lastAccept   PositionSample
	hasAccepted  bool
	sampleCount  int
	accepted     int
	degraded     bool
	everDegraded bool
}

func NewAggregator(cfg GuardConfig) *Aggregator {
	return &Aggregator{cfg: cfg}
}

// Ingest folds one sample into the aggregate and reports its contribution.
func (a *Aggregator) Ingest(sample PositionSample) Delta {
	a.sampleCount++

	if a.lastKnown.Timestamp.IsZero() || !sample.Timestamp.Before(a.lastKnown.Timestamp) {
		if !a.lastKnown.Timestamp.IsZero() && a.cfg.GapWindow > 0 {
			a.degraded = sample.Timestamp.Sub(a.lastKnown.Timestamp) > a.cfg.GapWindow
			if a.degraded {
				a.everDegraded = true
			}
		}
		a.lastKnown = sample
	} else {
		return Delta{Reason: ReasonStaleTime}
	}

	if sample.AccuracyM > a.cfg.AccuracyCeilingM {
		return Delta{Reason: ReasonAccuracy, LowConfidence: true}
	}

	if !a.hasAccepted {
		a.hasAccepted = true
		a.lastAccept = sample
		a.accepted++
		if sample.HasSpeed() {
			a.recordSpeed(sample.SpeedMps)
		}
		return Delta{Accepted: true, SpeedMps: a.currentMps}
	}

	dt := sample.Timestamp.Sub(a.lastAccept.Timestamp).Seconds()
	stepM := greatCircleM(a.lastAccept.Lat, a.lastAccept.Lng, sample.Lat, sample.Lng)

	stepSpeed := 0.0
	if dt > 0 {
		stepSpeed = stepM / dt
	}
	if stepSpeed > a.cfg.MaxStepSpeedMps && !(sample.HasSpeed() && a.lastAccept.HasSpeed()) {
		// GPS jump: keep the fix as reference so a single outlier does not
		// poison every following delta, but accrue nothing.
		a.lastAccept = sample
		return Delta{Reason: ReasonGPSJump}
	}

	a.distanceM += stepM
	a.accepted++

	speed := stepSpeed
	if sample.HasSpeed() {
		speed = sample.SpeedMps
	}
	a.recordSpeed(speed)
	a.lastAccept = sample

	return Delta{Accepted: true, DistanceM: stepM, SpeedMps: speed}
}

func (a *Aggregator) recordSpeed(speed float64) {
	a.currentMps = speed
	if speed > a.maxSpeed && speed <= a.cfg.MaxPlausibleMps {
		a.maxSpeed = speed
	}
}

// NoteGap lets the owner flag a wall-clock silence (provider stopped
// delivering) that sample timestamps alone cannot reveal. The live degraded
// flag clears again once normally spaced samples resume.
func (a *Aggregator) NoteGap() {
	a.degraded = true
	a.everDegraded = true
}

// EverDegraded reports whether any gap was flagged during the ride, even if
// the stream later recovered. The finalized ride record carries this rather
// than the recoverable live flag.
func (a *Aggregator) EverDegraded() bool { return a.everDegraded }

// UpdateLastKnown records a fix for position tracking only, with no distance
// or speed contribution. Used while the session is paused.
func (a *Aggregator) UpdateLastKnown(sample PositionSample) {
	a.sampleCount++
	if a.lastKnown.Timestamp.IsZero() || !sample.Timestamp.Before(a.lastKnown.Timestamp) {
		a.lastKnown = sample
	}
}

// ResetReference makes the next accepted sample open a fresh distance
// segment instead of bridging from the previous one. Called on resume so
// movement during a pause never counts toward ride distance.
func (a *Aggregator) ResetReference() { a.hasAccepted = false }

// Snapshot returns the aggregate state. Average speed is computed over the
// active (unpaused) duration supplied by the session that owns the aggregator.
func (a *Aggregator) Snapshot(active time.Duration) Snapshot {
	avg := 0.0
	if s := active.Seconds(); s > 0 {
		avg = a.distanceM / s
	}
	return Snapshot{
		DistanceM:     a.distanceM,
		MaxSpeedMps:   a.maxSpeed,
		AvgSpeedMps:   avg,
		CurrentMps:    a.currentMps,
		LastKnown:     a.lastKnown,
		SampleCount:   a.sampleCount,
		AcceptedCount: a.accepted,
		Degraded:      a.degraded,
	}
}

func greatCircleM(lat1, lng1, lat2, lng2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lng1)
	p2 := s2.LatLngFromDegrees(lat2, lng2)
	return p1.Distance(p2).Radians() * earthRadiusM
}
