package telemetry

import (
	"math"
	"testing"
	"time"
)

func testGuards() GuardConfig {
	return GuardConfig{
		AccuracyCeilingM: 50,
		MaxStepSpeedMps:  60,
		MaxPlausibleMps:  89.4,
		GapWindow:        30 * time.Second,
	}
}

func sampleAt(t0 time.Time, offset time.Duration, lat, lng float64) PositionSample {
	return PositionSample{
		Timestamp: t0.Add(offset),
		Lat:       lat,
		Lng:       lng,
		AccuracyM: 5,
		SpeedMps:  -1,
	}
}

func TestDistanceAndMaxSpeed(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	agg := NewAggregator(testGuards())

	agg.Ingest(sampleAt(t0, 0, 0, 0))
	agg.Ingest(sampleAt(t0, 10*time.Second, 0, 0.0001))
	agg.Ingest(sampleAt(t0, 20*time.Second, 0, 0.0002))

	snap := agg.Snapshot(20 * time.Second)
	if math.Abs(snap.DistanceM-22.2) > 0.2 {
		t.Fatalf("distance = %v, want ~22.2", snap.DistanceM)
	}
	if math.Abs(snap.MaxSpeedMps-1.11) > 0.02 {
		t.Fatalf("max speed = %v, want ~1.11", snap.MaxSpeedMps)
	}
	if math.Abs(snap.AvgSpeedMps-1.11) > 0.02 {
		t.Fatalf("avg speed = %v, want ~1.11", snap.AvgSpeedMps)
	}
}

func TestReplayIsDeterministic(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	samples := []PositionSample{
		sampleAt(t0, 0, 47.6, -122.3),
		sampleAt(t0, 5*time.Second, 47.6005, -122.3),
		sampleAt(t0, 10*time.Second, 47.601, -122.301),
		sampleAt(t0, 15*time.Second, 47.6015, -122.3015),
	}

	run := func() Snapshot {
		agg := NewAggregator(testGuards())
		for _, s := range samples {
			agg.Ingest(s)
		}
		return agg.Snapshot(15 * time.Second)
	}

	a, b := run(), run()
	if a != b {
		t.Fatalf("replay diverged: %+v vs %+v", a, b)
	}
}

func TestLowAccuracySampleExcludedFromDistance(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	agg := NewAggregator(testGuards())

	agg.Ingest(sampleAt(t0, 0, 0, 0))
	before := agg.Snapshot(0).DistanceM

	bad := sampleAt(t0, 10*time.Second, 0, 0.01)
	bad.AccuracyM = 120
	delta := agg.Ingest(bad)

	if delta.Accepted || !delta.LowConfidence || delta.Reason != ReasonAccuracy {
		t.Fatalf("unexpected delta: %+v", delta)
	}
	snap := agg.Snapshot(10 * time.Second)
	if snap.DistanceM != before {
		t.Fatalf("low-confidence sample changed distance: %v", snap.DistanceM)
	}
	if snap.LastKnown.Lng != 0.01 {
		t.Fatalf("last known position not updated")
	}
}

func TestGPSJumpDiscarded(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	agg := NewAggregator(testGuards())

	agg.Ingest(sampleAt(t0, 0, 0, 0))
	// ~1.1 km in one second: far above the 60 m/s step cap.
	jump := agg.Ingest(sampleAt(t0, time.Second, 0.01, 0))
	if jump.Accepted || jump.Reason != ReasonGPSJump {
		t.Fatalf("jump not rejected: %+v", jump)
	}
	if d := agg.Snapshot(time.Second).DistanceM; d != 0 {
		t.Fatalf("jump contributed distance: %v", d)
	}
}

func TestStepCapTrustsProviderSpeed(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	agg := NewAggregator(testGuards())

	a := sampleAt(t0, 0, 0, 0)
	a.SpeedMps = 70
	b := sampleAt(t0, 10*time.Second, 0.0063, 0) // ~700 m, 70 m/s average
	b.SpeedMps = 70

	agg.Ingest(a)
	delta := agg.Ingest(b)
	if !delta.Accepted {
		t.Fatalf("provider-backed high speed rejected: %+v", delta)
	}
	if max := agg.Snapshot(10 * time.Second).MaxSpeedMps; max != 70 {
		t.Fatalf("max speed = %v, want 70", max)
	}
}

func TestImplausibleSpeedNeverRaisesMax(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	agg := NewAggregator(testGuards())

	a := sampleAt(t0, 0, 0, 0)
	a.SpeedMps = 150 // above the 89.4 m/s ceiling
	agg.Ingest(a)

	if max := agg.Snapshot(0).MaxSpeedMps; max != 0 {
		t.Fatalf("spurious spike raised max speed: %v", max)
	}
}

func TestSensorGapFlagsDegraded(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	agg := NewAggregator(testGuards())

	agg.Ingest(sampleAt(t0, 0, 0, 0))
	agg.Ingest(sampleAt(t0, 2*time.Minute, 0, 0.0001))

	if !agg.Snapshot(2 * time.Minute).Degraded {
		t.Fatalf("expected degraded flag after 2m silence")
	}

	agg.Ingest(sampleAt(t0, 2*time.Minute+5*time.Second, 0, 0.0002))
	if agg.Snapshot(0).Degraded {
		t.Fatalf("degraded flag should clear once samples resume")
	}
	if !agg.EverDegraded() {
		t.Fatalf("recovery must not erase the gap from the ride record")
	}
}

func TestNoteGapSticksForRideRecord(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	agg := NewAggregator(testGuards())

	agg.Ingest(sampleAt(t0, 0, 0, 0))
	agg.NoteGap()

	if !agg.Snapshot(0).Degraded {
		t.Fatalf("expected degraded flag after wall-clock silence")
	}

	agg.Ingest(sampleAt(t0, 5*time.Second, 0, 0.0001))
	if agg.Snapshot(0).Degraded {
		t.Fatalf("live flag should clear when the stream resumes")
	}
	if !agg.EverDegraded() {
		t.Fatalf("EverDegraded lost the outage")
	}
}

func TestOutOfOrderSampleIgnored(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	agg := NewAggregator(testGuards())

	agg.Ingest(sampleAt(t0, 10*time.Second, 0, 0.0001))
	stale := agg.Ingest(sampleAt(t0, 0, 0, 0))
	if stale.Accepted || stale.Reason != ReasonStaleTime {
		t.Fatalf("stale sample not ignored: %+v", stale)
	}
}
