package track

import (
	"context"
	"sync"
	"testing"

	"github.com/example/ride-dispatch/internal/models"
	"github.com/example/ride-dispatch/internal/registry"
	"github.com/example/ride-dispatch/internal/ridestore"
)

type captureBroadcaster struct {
	mu      sync.Mutex
	updates []models.RideUpdate
}

func (c *captureBroadcaster) Broadcast(_ string, u models.RideUpdate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updates = append(c.updates, u)
}

func (c *captureBroadcaster) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.updates)
}

type capturePublisher struct {
	mu     sync.Mutex
	events []models.PositionEvent
}

func (c *capturePublisher) PublishPosition(ev models.PositionEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func setupPipeline(t *testing.T) (*Pipeline, *registry.Memory, *ridestore.Memory, string, string) {
	t.Helper()
	ctx := context.Background()
	reg := registry.NewMemory()
	rides := ridestore.NewMemory()
	driverID, _ := reg.AddDriver(ctx, "Asha", 30.0, 76.0, "sedan", 4.8)
	rideID, _ := rides.CreateRide(ctx, "rider1",
		models.Coordinate{Lat: 30, Lon: 76}, models.Coordinate{Lat: 30.1, Lon: 76.1}, 5, 12, 80, "sedan")
	return &Pipeline{Rides: rides, Registry: reg}, reg, rides, rideID, driverID
}

func TestRecordDriverUpdateAppendsAndMirrors(t *testing.T) {
	ctx := context.Background()
	p, reg, rides, rideID, driverID := setupPipeline(t)

	if err := p.RecordDriverUpdate(ctx, rideID, driverID, 30.05, 76.05); err != nil {
		t.Fatalf("record: %v", err)
	}

	ups, _ := rides.ListUpdates(ctx, rideID)
	if len(ups) != 1 {
		t.Fatalf("expected 1 update, got %d", len(ups))
	}
	u := ups[0]
	if u.Status != string(models.StatusOnTrip) || u.DriverLat == nil || *u.DriverLat != 30.05 {
		t.Fatalf("unexpected update: %+v", u)
	}

	all, _ := reg.ListAll(ctx)
	if all[0].Loc.Lat != 30.05 || all[0].Loc.Lon != 76.05 {
		t.Fatalf("position not mirrored: %+v", all[0].Loc)
	}
	// the mirror must not touch availability
	if !all[0].Available {
		t.Fatal("availability flipped by position mirror")
	}
}

func TestRecordDriverUpdateFansOut(t *testing.T) {
	ctx := context.Background()
	p, _, _, rideID, driverID := setupPipeline(t)
	bc := &captureBroadcaster{}
	pub := &capturePublisher{}
	p.Watchers = bc
	p.Publisher = pub

	if err := p.RecordDriverUpdate(ctx, rideID, driverID, 30.01, 76.01); err != nil {
		t.Fatalf("record: %v", err)
	}
	if bc.count() != 1 {
		t.Fatalf("expected 1 broadcast, got %d", bc.count())
	}
	if len(pub.events) != 1 || pub.events[0].DriverID != driverID {
		t.Fatalf("unexpected published events: %+v", pub.events)
	}
}

func TestRecordDriverUpdateUnknownRide(t *testing.T) {
	p, _, _, _, driverID := setupPipeline(t)
	err := p.RecordDriverUpdate(context.Background(), "nope", driverID, 1, 2)
	if err != ridestore.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLatestUpdateReadPath(t *testing.T) {
	ctx := context.Background()
	p, _, _, rideID, driverID := setupPipeline(t)

	if _, err := p.LatestUpdate(ctx, rideID); err != ridestore.ErrNoUpdates {
		t.Fatalf("expected ErrNoUpdates, got %v", err)
	}
	_ = p.RecordDriverUpdate(ctx, rideID, driverID, 30.01, 76.01)
	_ = p.RecordDriverUpdate(ctx, rideID, driverID, 30.02, 76.02)

	u, err := p.LatestUpdate(ctx, rideID)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if *u.DriverLat != 30.02 {
		t.Fatalf("expected latest position, got %f", *u.DriverLat)
	}
}

func TestRecordDriverUpdateUnknownDriverLeavesLogUntouched(t *testing.T) {
	ctx := context.Background()
	p, _, rides, rideID, _ := setupPipeline(t)

	err := p.RecordDriverUpdate(ctx, rideID, "ghost", 30.05, 76.05)
	if err != registry.ErrNotFound {
		t.Fatalf("expected registry.ErrNotFound, got %v", err)
	}
	if ups, _ := rides.ListUpdates(ctx, rideID); len(ups) != 0 {
		t.Fatalf("rejected update reached the log: %+v", ups)
	}
}
