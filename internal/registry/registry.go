package registry

import (
	"context"
	"errors"

	"github.com/example/ride-dispatch/internal/models"
)

// ErrNotFound is returned when a driver id does not exist.
var ErrNotFound = errors.New("driver not found")

// Registry owns all driver records: positions, metadata and the
// availability flag. All mutation goes through these operations; nothing
// else touches driver state.
type Registry interface {
	// AddDriver inserts a driver with Available=true and returns its id.
	// No duplicate detection.
	AddDriver(ctx context.Context, name string, lat, lon float64, vehicleType string, rating float64) (string, error)

	// ListAvailable returns every driver with Available=true in storage
	// order. Callers must not rely on any particular ordering.
	ListAvailable(ctx context.Context) ([]models.Driver, error)

	// ListAll returns every driver regardless of availability.
	ListAll(ctx context.Context) ([]models.Driver, error)

	// UpdateLocation overwrites the driver's position. A non-nil
	// available also overwrites the availability flag; nil leaves it
	// unchanged.
	UpdateLocation(ctx context.Context, driverID string, lat, lon float64, available *bool) error

	// Reserve atomically flips Available true->false. It returns false
	// when the driver was already reserved; concurrent callers see
	// exactly one true result per available driver.
	Reserve(ctx context.Context, driverID string) (bool, error)

	// Release marks the driver available again at the given coordinate,
	// used on trip completion or cancellation.
	Release(ctx context.Context, driverID string, lat, lon float64) error
}
