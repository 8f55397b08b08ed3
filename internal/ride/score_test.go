package ride

import "testing"

func testScoreThresholds() ScoreThresholds {
	return ScoreThresholds{MaxSpeedCap: 85, AvgSpeedCap: 65, CalmAvg: 50}
}

func TestSafetyScorePenalties(t *testing.T) {
	cases := []struct {
		name string
		ride CompletedRide
		want int
	}{
		{
			name: "fast max and fast average",
			ride: CompletedRide{MaxSpeedMps: 90, AvgSpeedMps: 70, DurationSec: 1800},
			want: 85,
		},
		{
			name: "clean ride",
			ride: CompletedRide{MaxSpeedMps: 40, AvgSpeedMps: 30, DurationSec: 1800},
			want: 100,
		},
		{
			name: "long controlled ride earns bonus but clamps at 100",
			ride: CompletedRide{MaxSpeedMps: 40, AvgSpeedMps: 30, DurationSec: 7200},
			want: 100,
		},
		{
			name: "long fast ride gets no bonus",
			ride: CompletedRide{MaxSpeedMps: 90, AvgSpeedMps: 70, DurationSec: 7200},
			want: 85,
		},
		{
			name: "only max speed over",
			ride: CompletedRide{MaxSpeedMps: 90, AvgSpeedMps: 40, DurationSec: 600},
			want: 90,
		},
	}

	th := testScoreThresholds()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SafetyScore(tc.ride, th); got != tc.want {
				t.Fatalf("score = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestSafetyScoreReproducible(t *testing.T) {
	r := CompletedRide{MaxSpeedMps: 90, AvgSpeedMps: 70, DurationSec: 3700}
	th := testScoreThresholds()
	if SafetyScore(r, th) != SafetyScore(r, th) {
		t.Fatalf("score not reproducible")
	}
}
