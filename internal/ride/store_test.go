package ride

import (
	"context"
	"testing"
	"time"

	"backend-motorev/internal/telemetry"

	"github.com/pashagolub/pgxmock/v3"
)

func TestSaveCompletedWritesRideAndPoints(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	t0 := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	r := CompletedRide{
		ID:          "ride-1",
		RiderID:     "rider-1",
		StartTime:   t0,
		EndTime:     t0.Add(time.Hour),
		DistanceM:   42000,
		DurationSec: 3600,
		AvgSpeedMps: 11.7,
		MaxSpeedMps: 33.1,
		SafetyScore: 100,
		RoutePoints: []telemetry.PositionSample{
			{Timestamp: t0, Lat: 47.6, Lng: -122.3, AccuracyM: 5, SpeedMps: 10},
			{Timestamp: t0.Add(time.Minute), Lat: 47.61, Lng: -122.3, AccuracyM: 5, SpeedMps: 12},
		},
	}

	mock.ExpectExec(`INSERT INTO rides`).
		WithArgs("ride-1", "rider-1", r.StartTime, r.EndTime, 42000.0, 3600.0, 11.7, 33.1, 100, false).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO ride_points`).
		WithArgs("ride-1", 0, t0, 47.6, -122.3, 5.0, 10.0, 0.0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO ride_points`).
		WithArgs("ride-1", 1, t0.Add(time.Minute), 47.61, -122.3, 5.0, 12.0, 0.0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	store := NewStore(mock)
	if err := store.SaveCompleted(context.Background(), r); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetReturnsNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, rider_id, start_time`).
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	store := NewStore(mock)
	if _, err := store.Get(context.Background(), "missing"); err != ErrRideNotFound {
		t.Fatalf("expected ErrRideNotFound, got %v", err)
	}
}

func TestGetLoadsPointsInOrder(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	t0 := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT id, rider_id, start_time`).
		WithArgs("ride-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "rider_id", "start_time", "end_time", "distance_m", "duration_sec", "avg_speed_mps", "max_speed_mps", "safety_score", "degraded"}).
			AddRow("ride-1", "rider-1", t0, t0.Add(time.Hour), 42000.0, 3600.0, 11.7, 33.1, 95, false))
	mock.ExpectQuery(`SELECT recorded_at, lat, lng`).
		WithArgs("ride-1").
		WillReturnRows(pgxmock.NewRows([]string{"recorded_at", "lat", "lng", "accuracy_m", "speed_mps", "course_deg"}).
			AddRow(t0, 47.6, -122.3, 5.0, 10.0, 0.0).
			AddRow(t0.Add(time.Minute), 47.61, -122.3, 5.0, 12.0, 0.0))

	store := NewStore(mock)
	r, err := store.Get(context.Background(), "ride-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if r.SafetyScore != 95 || len(r.RoutePoints) != 2 {
		t.Fatalf("unexpected ride: %+v", r)
	}
	if !r.RoutePoints[0].Timestamp.Equal(t0) {
		t.Fatalf("points out of order")
	}
}

func TestListByRider(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	t0 := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT id, rider_id, start_time`).
		WithArgs("rider-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "rider_id", "start_time", "end_time", "distance_m", "duration_sec", "avg_speed_mps", "max_speed_mps", "safety_score", "degraded"}).
			AddRow("ride-2", "rider-1", t0, t0.Add(time.Hour), 1000.0, 900.0, 1.1, 3.0, 100, false).
			AddRow("ride-1", "rider-1", t0.Add(-time.Hour), t0, 2000.0, 1800.0, 1.1, 4.0, 90, true))

	store := NewStore(mock)
	rides, err := store.ListByRider(context.Background(), "rider-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rides) != 2 || rides[0].ID != "ride-2" {
		t.Fatalf("unexpected rides: %+v", rides)
	}
}
