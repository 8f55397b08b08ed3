package ride

import (
	"context"

	"backend-motorev/internal/db"
	"backend-motorev/internal/telemetry"
)

// Store persists finalized rides. Active sessions live only in memory; the
// completed record is the unit of durability.
type Store struct {
	db db.Querier
}

func NewStore(db db.Querier) *Store {
	return &Store{db: db}
}

func (s *Store) SaveCompleted(ctx context.Context, r CompletedRide) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO rides (id, rider_id, start_time, end_time, distance_m, duration_sec,
		                   avg_speed_mps, max_speed_mps, safety_score, degraded)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, r.ID, r.RiderID, r.StartTime, r.EndTime, r.DistanceM, r.DurationSec,
		r.AvgSpeedMps, r.MaxSpeedMps, r.SafetyScore, r.Degraded)
	if err != nil {
		return err
	}

	for i, p := range r.RoutePoints {
		_, err := s.db.Exec(ctx, `
			INSERT INTO ride_points (ride_id, seq, recorded_at, lat, lng, accuracy_m, speed_mps, course_deg)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, r.ID, i, p.Timestamp, p.Lat, p.Lng, p.AccuracyM, p.SpeedMps, p.CourseDeg)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (CompletedRide, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, rider_id, start_time, end_time, distance_m, duration_sec,
		       avg_speed_mps, max_speed_mps, safety_score, degraded
		FROM rides WHERE id=$1
	`, id)
	var r CompletedRide
	if err := row.Scan(&r.ID, &r.RiderID, &r.StartTime, &r.EndTime, &r.DistanceM, &r.DurationSec,
		&r.AvgSpeedMps, &r.MaxSpeedMps, &r.SafetyScore, &r.Degraded); err != nil {
		return CompletedRide{}, ErrRideNotFound
	}

	rows, err := s.db.Query(ctx, `
		SELECT recorded_at, lat, lng, accuracy_m, speed_mps, course_deg
		FROM ride_points WHERE ride_id=$1
		ORDER BY seq
	`, id)
	if err != nil {
		return CompletedRide{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var p telemetry.PositionSample
		if err := rows.Scan(&p.Timestamp, &p.Lat, &p.Lng, &p.AccuracyM, &p.SpeedMps, &p.CourseDeg); err != nil {
			return CompletedRide{}, err
		}
		r.RoutePoints = append(r.RoutePoints, p)
	}
	return r, nil
}

func (s *Store) ListByRider(ctx context.Context, riderID string) ([]CompletedRide, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, rider_id, start_time, end_time, distance_m, duration_sec,
		       avg_speed_mps, max_speed_mps, safety_score, degraded
		FROM rides WHERE rider_id=$1
		ORDER BY end_time DESC
	`, riderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CompletedRide
	for rows.Next() {
		var r CompletedRide
		if err := rows.Scan(&r.ID, &r.RiderID, &r.StartTime, &r.EndTime, &r.DistanceM, &r.DurationSec,
			&r.AvgSpeedMps, &r.MaxSpeedMps, &r.SafetyScore, &r.Degraded); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
