package ride

// ScoreThresholds are the speed caps used by the post-ride safety score.
type ScoreThresholds struct {
	MaxSpeedCap float64 // exceeding this max speed costs 10 points
	AvgSpeedCap float64 // exceeding this average costs 5 points
	CalmAvg     float64 // staying under this average on a long ride earns 10
}

const calmRideSeconds = 3600

// SafetyScore derives the ride's score from the finalized record alone. It is
// pure: the same CompletedRide always scores the same.
func SafetyScore(r CompletedRide, th ScoreThresholds) int {
	score := 100
	if r.MaxSpeedMps > th.MaxSpeedCap {
		score -= 10
	}
	if r.AvgSpeedMps > th.AvgSpeedCap {
		score -= 5
	}
	if r.DurationSec > calmRideSeconds && r.AvgSpeedMps < th.CalmAvg {
		score += 10
	}
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
