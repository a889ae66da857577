package track

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/ride-dispatch/internal/models"
	"github.com/example/ride-dispatch/internal/observability"
	"github.com/example/ride-dispatch/internal/registry"
	"github.com/example/ride-dispatch/internal/ridestore"
)

// Publisher forwards position events to the location topic. Optional and
// best-effort.
type Publisher interface {
	PublishPosition(ev models.PositionEvent) error
}

// Broadcaster fans a recorded update out to live watchers.
type Broadcaster interface {
	Broadcast(rideID string, u models.RideUpdate)
}

// Pipeline is the single write path for "driver moved": it appends the
// RideUpdate, mirrors the position into the driver registry, and fans the
// update out to watchers and the location topic.
type Pipeline struct {
	Rides     ridestore.Store
	Registry  registry.Registry
	Watchers  Broadcaster // optional
	Publisher Publisher   // optional
	Logger    *slog.Logger
}

func (p *Pipeline) RecordDriverUpdate(ctx context.Context, rideID, driverID string, lat, lon float64) error {
	u := models.RideUpdate{
		RideID:    rideID,
		DriverLat: &lat,
		DriverLon: &lon,
		Status:    string(models.StatusOnTrip),
		UpdatedAt: time.Now(),
	}
	// Mirror first: an unknown driver must fail before anything lands in
	// the ride's log, and a re-sent position mirror is harmless.
	if err := p.Registry.UpdateLocation(ctx, driverID, lat, lon, nil); err != nil {
		return err
	}
	if err := p.Rides.AppendUpdate(ctx, u); err != nil {
		return err
	}
	observability.UpdatesRecordedTotal.Inc()

	if p.Watchers != nil {
		p.Watchers.Broadcast(rideID, u)
	}
	if p.Publisher != nil {
		ev := models.PositionEvent{DriverID: driverID, RideID: rideID, Lat: lat, Lon: lon, RecordedAt: u.UpdatedAt}
		if err := p.Publisher.PublishPosition(ev); err != nil && p.Logger != nil {
			p.Logger.Debug("position publish failed", "driver_id", driverID, "error", err)
		}
	}
	return nil
}

// LatestUpdate is the live-tracking read path.
func (p *Pipeline) LatestUpdate(ctx context.Context, rideID string) (models.RideUpdate, error) {
	return p.Rides.LatestUpdate(ctx, rideID)
}
