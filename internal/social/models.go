package social

import "time"

// RidePost is a shared ride: a frozen stats snapshot plus a caption,
// anchored at the ride's start point.
type RidePost struct {
	ID          string    `json:"id"`
	RiderID     string    `json:"rider_id"`
	RideID      string    `json:"ride_id"`
	Caption     string    `json:"caption"`
	DistanceM   float64   `json:"distance_m"`
	DurationSec float64   `json:"duration_sec"`
	AvgSpeedMps float64   `json:"avg_speed_mps"`
	MaxSpeedMps float64   `json:"max_speed_mps"`
	SafetyScore int       `json:"safety_score"`
	StartLat    float64   `json:"start_lat"`
	StartLng    float64   `json:"start_lng"`
	Visibility  string    `json:"visibility"`
	CreatedAt   time.Time `json:"created_at"`
}

type Follow struct {
	FollowerID  string `json:"follower_id"`
	FollowingID string `json:"following_id"`
}

type ShareRequest struct {
	RideID     string `json:"ride_id"`
	Caption    string `json:"caption"`
	Visibility string `json:"visibility"`
}
