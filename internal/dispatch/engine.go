package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/example/ride-dispatch/internal/geo"
	"github.com/example/ride-dispatch/internal/models"
	"github.com/example/ride-dispatch/internal/observability"
	"github.com/example/ride-dispatch/internal/registry"
	"github.com/example/ride-dispatch/internal/ridestore"
)

// ErrRideClosed is returned when assignment is attempted on a ride whose
// status does not allow a driver_assigned transition (already assigned,
// completed or cancelled).
var ErrRideClosed = errors.New("ride not open for assignment")

// Notifier pushes the assignment to the winning driver. Best-effort: a
// failed notification never fails the dispatch.
type Notifier interface {
	Assigned(rideID string, d models.Driver) error
}

// Engine matches a pending ride to the nearest available driver and
// reserves that driver atomically against concurrent dispatch calls.
type Engine struct {
	Registry    registry.Registry
	Rides       ridestore.Store
	Notifier    Notifier // optional
	MaxAttempts int      // re-list attempts after the pool is exhausted by races
	Logger      *slog.Logger
}

// Assign picks the available driver nearest to pickup, reserves it, and
// patches the ride with the driver snapshot and driver_assigned status.
// (nil, nil) means no drivers were available; the ride stays pending.
func (e *Engine) Assign(ctx context.Context, rideID string, pickup models.Coordinate) (*models.Driver, error) {
	start := time.Now()
	defer func() { observability.AssignLatency.Observe(time.Since(start).Seconds()) }()

	ride, err := e.Rides.GetRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(ride.Status, models.StatusDriverAssigned) {
		return nil, ErrRideClosed
	}

	attempts := e.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}

	for attempt := 0; attempt < attempts; attempt++ {
		candidates, err := e.Registry.ListAvailable(ctx)
		if err != nil {
			return nil, err
		}
		if len(candidates) == 0 {
			observability.NoDriversTotal.Inc()
			return nil, nil
		}

		// Try candidates nearest-first; a lost reservation race just
		// moves on to the next one. Strictly-less comparison keeps the
		// first-encountered winner on exact ties.
		remaining := candidates
		for len(remaining) > 0 {
			best := 0
			bestDist := geo.DistanceKm(pickup, remaining[0].Loc)
			for i := 1; i < len(remaining); i++ {
				if d := geo.DistanceKm(pickup, remaining[i].Loc); d < bestDist {
					best, bestDist = i, d
				}
			}
			winner := remaining[best]

			ok, err := e.Registry.Reserve(ctx, winner.ID)
			if err != nil && !errors.Is(err, registry.ErrNotFound) {
				return nil, err
			}
			if !ok || err != nil {
				observability.ReservationConflictsTotal.Inc()
				if e.Logger != nil {
					e.Logger.Debug("reservation conflict", "ride_id", rideID, "driver_id", winner.ID)
				}
				remaining = append(remaining[:best], remaining[best+1:]...)
				continue
			}

			if err := e.Rides.AssignDriver(ctx, rideID, winner); err != nil {
				// give the driver back before surfacing the failure
				_ = e.Registry.Release(ctx, winner.ID, winner.Loc.Lat, winner.Loc.Lon)
				if errors.Is(err, ridestore.ErrConflict) {
					// another dispatcher won the ride between the status
					// gate and the write
					return nil, ErrRideClosed
				}
				return nil, err
			}

			observability.AssignmentsTotal.Inc()
			if e.Notifier != nil {
				if err := e.Notifier.Assigned(rideID, winner); err != nil && e.Logger != nil {
					e.Logger.Debug("driver notify failed", "driver_id", winner.ID, "error", err)
				}
			}
			if e.Logger != nil {
				e.Logger.Info("driver assigned",
					"ride_id", rideID, "driver_id", winner.ID, "distance_km", bestDist)
			}
			snapshot := winner
			return &snapshot, nil
		}
		// whole listing lost to races; re-list and retry
	}

	observability.NoDriversTotal.Inc()
	return nil, nil
}
