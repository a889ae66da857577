package ridestore

import (
	"context"
	"errors"

	"github.com/example/ride-dispatch/internal/models"
)

var (
	// ErrNotFound is returned when a ride id does not exist.
	ErrNotFound = errors.New("ride not found")
	// ErrNoUpdates is returned by LatestUpdate when a ride has no
	// tracking entries yet. Callers treat it as "nothing to show", not
	// a failure.
	ErrNoUpdates = errors.New("no updates for ride")
	// ErrConflict is returned by AssignDriver when the ride is no longer
	// pending, closing the race between two dispatchers that both passed
	// the status gate.
	ErrConflict = errors.New("ride not pending")
)

// Store owns ride records and their append-only update log. Status
// transition legality is the caller's contract (dispatch engine,
// simulator, API layer); the store records what it is told.
type Store interface {
	// CreateRide inserts a ride with status pending and returns its id.
	CreateRide(ctx context.Context, riderID string, pickup, drop models.Coordinate, distanceKm, durationMin, fare float64, vehicleType string) (string, error)

	GetRide(ctx context.Context, rideID string) (models.Ride, error)

	// ListByRider returns the rider's rides ordered most recent first.
	ListByRider(ctx context.Context, riderID string) ([]models.Ride, error)

	// UpdateStatus sets the ride status and appends one RideUpdate
	// carrying the new status.
	UpdateStatus(ctx context.Context, rideID string, status models.Status) error

	// AssignDriver patches the ride with the driver's id and a
	// denormalized snapshot of name/rating/vehicle, and moves it to
	// driver_assigned (appending the RideUpdate per the UpdateStatus
	// contract). The write is conditional on the ride still being
	// pending; ErrConflict otherwise.
	AssignDriver(ctx context.Context, rideID string, d models.Driver) error

	// AppendUpdate adds a position entry to the ride's update log.
	AppendUpdate(ctx context.Context, u models.RideUpdate) error

	// LatestUpdate returns the most recent update by UpdatedAt, ties
	// broken by insertion order.
	LatestUpdate(ctx context.Context, rideID string) (models.RideUpdate, error)

	// ListUpdates returns the full audit trail in insertion order.
	ListUpdates(ctx context.Context, rideID string) ([]models.RideUpdate, error)
}
