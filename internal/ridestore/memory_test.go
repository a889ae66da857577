package ridestore

import (
	"context"
	"testing"
	"time"

	"github.com/example/ride-dispatch/internal/models"
)

func TestCreateRideStartsPending(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	id, err := m.CreateRide(ctx, "rider1", models.Coordinate{Lat: 30, Lon: 76}, models.Coordinate{Lat: 30.1, Lon: 76.1}, 5, 12, 80, "sedan")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	r, err := m.GetRide(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if r.Status != models.StatusPending || r.DriverID != "" || r.CreatedAt.IsZero() {
		t.Fatalf("unexpected ride: %+v", r)
	}
}

func TestGetRideNotFound(t *testing.T) {
	m := NewMemory()
	if _, err := m.GetRide(context.Background(), "nope"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListByRiderNewestFirst(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	first, _ := m.CreateRide(ctx, "rider1", models.Coordinate{}, models.Coordinate{}, 1, 1, 10, "mini")
	second, _ := m.CreateRide(ctx, "rider1", models.Coordinate{}, models.Coordinate{}, 2, 2, 20, "suv")
	_, _ = m.CreateRide(ctx, "rider2", models.Coordinate{}, models.Coordinate{}, 3, 3, 30, "sedan")

	rides, err := m.ListByRider(ctx, "rider1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rides) != 2 {
		t.Fatalf("expected 2 rides, got %d", len(rides))
	}
	if rides[0].ID != second || rides[1].ID != first {
		t.Fatalf("expected newest first, got %s then %s", rides[0].ID, rides[1].ID)
	}
}

func TestUpdateStatusAppendsAudit(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	id, _ := m.CreateRide(ctx, "rider1", models.Coordinate{}, models.Coordinate{}, 5, 12, 80, "sedan")

	for _, s := range []models.Status{models.StatusDriverAssigned, models.StatusArriving, models.StatusOnTrip} {
		if err := m.UpdateStatus(ctx, id, s); err != nil {
			t.Fatalf("update %s: %v", s, err)
		}
	}
	ups, err := m.ListUpdates(ctx, id)
	if err != nil {
		t.Fatalf("list updates: %v", err)
	}
	if len(ups) != 3 {
		t.Fatalf("expected 3 updates, got %d", len(ups))
	}
	var prev time.Time
	for i, u := range ups {
		if u.UpdatedAt.Before(prev) {
			t.Fatalf("update %d timestamp went backwards", i)
		}
		prev = u.UpdatedAt
	}
	r, _ := m.GetRide(ctx, id)
	if r.Status != models.StatusOnTrip {
		t.Fatalf("expected on_trip, got %s", r.Status)
	}
}

func TestUpdateStatusNotFound(t *testing.T) {
	m := NewMemory()
	if err := m.UpdateStatus(context.Background(), "nope", models.StatusCancelled); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAssignDriverSnapshotsFields(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	id, _ := m.CreateRide(ctx, "rider1", models.Coordinate{}, models.Coordinate{}, 5, 12, 80, "sedan")

	d := models.Driver{ID: "d1", Name: "Asha", Rating: 4.8, VehicleType: "sedan"}
	if err := m.AssignDriver(ctx, id, d); err != nil {
		t.Fatalf("assign: %v", err)
	}
	r, _ := m.GetRide(ctx, id)
	if r.Status != models.StatusDriverAssigned || r.DriverID != "d1" || r.DriverName != "Asha" || r.DriverRating != 4.8 || r.DriverVehicle != "sedan" {
		t.Fatalf("unexpected ride after assign: %+v", r)
	}
	ups, _ := m.ListUpdates(ctx, id)
	if len(ups) != 1 || ups[0].Status != string(models.StatusDriverAssigned) {
		t.Fatalf("expected one driver_assigned update, got %+v", ups)
	}
}

func TestLatestUpdatePrefersLaterInsertionOnTies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	id, _ := m.CreateRide(ctx, "rider1", models.Coordinate{}, models.Coordinate{}, 5, 12, 80, "sedan")

	ts := time.Now()
	lat1, lon1 := 30.0, 76.0
	lat2, lon2 := 30.5, 76.5
	_ = m.AppendUpdate(ctx, models.RideUpdate{RideID: id, DriverLat: &lat1, DriverLon: &lon1, Status: "on_trip", UpdatedAt: ts})
	_ = m.AppendUpdate(ctx, models.RideUpdate{RideID: id, DriverLat: &lat2, DriverLon: &lon2, Status: "on_trip", UpdatedAt: ts})

	u, err := m.LatestUpdate(ctx, id)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if *u.DriverLat != lat2 {
		t.Fatalf("expected later insertion to win tie, got lat=%f", *u.DriverLat)
	}
}

func TestLatestUpdateIdempotentRead(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	id, _ := m.CreateRide(ctx, "rider1", models.Coordinate{}, models.Coordinate{}, 5, 12, 80, "sedan")
	lat, lon := 30.0, 76.0
	_ = m.AppendUpdate(ctx, models.RideUpdate{RideID: id, DriverLat: &lat, DriverLon: &lon, Status: "on_trip"})

	a, err := m.LatestUpdate(ctx, id)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	b, err := m.LatestUpdate(ctx, id)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if a.UpdatedAt != b.UpdatedAt || *a.DriverLat != *b.DriverLat {
		t.Fatalf("reads differ: %+v vs %+v", a, b)
	}
}

func TestLatestUpdateEmpty(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	id, _ := m.CreateRide(ctx, "rider1", models.Coordinate{}, models.Coordinate{}, 5, 12, 80, "sedan")
	if _, err := m.LatestUpdate(ctx, id); err != ErrNoUpdates {
		t.Fatalf("expected ErrNoUpdates, got %v", err)
	}
}

func TestAppendUpdateUnknownRide(t *testing.T) {
	m := NewMemory()
	lat, lon := 1.0, 2.0
	err := m.AppendUpdate(context.Background(), models.RideUpdate{RideID: "nope", DriverLat: &lat, DriverLon: &lon, Status: "on_trip"})
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAssignDriverOnlyFromPending(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	id, _ := m.CreateRide(ctx, "rider1", models.Coordinate{}, models.Coordinate{}, 5, 12, 80, "sedan")

	if err := m.AssignDriver(ctx, id, models.Driver{ID: "d1", Name: "Asha"}); err != nil {
		t.Fatalf("first assign: %v", err)
	}
	if err := m.AssignDriver(ctx, id, models.Driver{ID: "d2", Name: "Vikram"}); err != ErrConflict {
		t.Fatalf("second assign: expected ErrConflict, got %v", err)
	}

	r, _ := m.GetRide(ctx, id)
	if r.DriverID != "d1" {
		t.Fatalf("snapshot overwritten by losing assign: %s", r.DriverID)
	}

	cancelled, _ := m.CreateRide(ctx, "rider1", models.Coordinate{}, models.Coordinate{}, 5, 12, 80, "sedan")
	_ = m.UpdateStatus(ctx, cancelled, models.StatusCancelled)
	if err := m.AssignDriver(ctx, cancelled, models.Driver{ID: "d1"}); err != ErrConflict {
		t.Fatalf("assign on cancelled: expected ErrConflict, got %v", err)
	}
}
