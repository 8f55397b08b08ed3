package social

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"backend-motorev/internal/db"
	"backend-motorev/internal/ride"
)

var ErrNotRideOwner = errors.New("ride belongs to another rider")

type Service struct {
	db    db.Querier
	rides *ride.Store
}

func NewService(q db.Querier, rides *ride.Store) *Service {
	return &Service{db: q, rides: rides}
}

// Share publishes a completed ride. The stats are copied out of the ride
// record at share time so later reprocessing never rewrites a feed.
func (s *Service) Share(ctx context.Context, riderID string, req ShareRequest) (RidePost, error) {
	r, err := s.rides.Get(ctx, req.RideID)
	if err != nil {
		return RidePost{}, err
	}
	if r.RiderID != riderID {
		return RidePost{}, ErrNotRideOwner
	}

	post := RidePost{
		ID:          uuid.NewString(),
		RiderID:     riderID,
		RideID:      r.ID,
		Caption:     req.Caption,
		DistanceM:   r.DistanceM,
		DurationSec: r.DurationSec,
		AvgSpeedMps: r.AvgSpeedMps,
		MaxSpeedMps: r.MaxSpeedMps,
		SafetyScore: r.SafetyScore,
		Visibility:  req.Visibility,
	}
	if post.Visibility == "" {
		post.Visibility = "public"
	}
	if len(r.RoutePoints) > 0 {
		post.StartLat = r.RoutePoints[0].Lat
		post.StartLng = r.RoutePoints[0].Lng
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO ride_posts (id, rider_id, ride_id, caption, distance_m, duration_sec, avg_speed_mps, max_speed_mps, safety_score, start_lat, start_lng, visibility)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING created_at
	`, post.ID, post.RiderID, post.RideID, post.Caption, post.DistanceM, post.DurationSec,
		post.AvgSpeedMps, post.MaxSpeedMps, post.SafetyScore, post.StartLat, post.StartLng, post.Visibility)
	if err := row.Scan(&post.CreatedAt); err != nil {
		return RidePost{}, err
	}
	return post, nil
}

func (s *Service) Follow(ctx context.Context, followerID, followingID string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO rider_follows (follower_id, following_id)
		VALUES ($1,$2)
		ON CONFLICT DO NOTHING
	`, followerID, followingID)
	return err
}

func (s *Service) Unfollow(ctx context.Context, followerID, followingID string) error {
	_, err := s.db.Exec(ctx, `
		DELETE FROM rider_follows
		WHERE follower_id=$1 AND following_id=$2
	`, followerID, followingID)
	return err
}

// Feed returns the rider's own posts plus public posts from followed riders,
// newest first.
func (s *Service) Feed(ctx context.Context, riderID string) ([]RidePost, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, rider_id, ride_id, caption, distance_m, duration_sec, avg_speed_mps, max_speed_mps, safety_score, start_lat, start_lng, visibility, created_at
		FROM ride_posts
		WHERE rider_id=$1
		   OR (visibility='public' AND rider_id IN (SELECT following_id FROM rider_follows WHERE follower_id=$1))
		ORDER BY created_at DESC
	`, riderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []RidePost
	for rows.Next() {
		var p RidePost
		if err := rows.Scan(&p.ID, &p.RiderID, &p.RideID, &p.Caption, &p.DistanceM, &p.DurationSec,
			&p.AvgSpeedMps, &p.MaxSpeedMps, &p.SafetyScore, &p.StartLat, &p.StartLng, &p.Visibility, &p.CreatedAt); err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}
