package ridestore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sort"
	"sync"
	"time"

	"github.com/example/ride-dispatch/internal/models"
)

// Memory is the in-process Store for local runs and tests.
type Memory struct {
	mu      sync.RWMutex
	rides   map[string]*models.Ride
	byRider map[string][]string
	updates map[string][]models.RideUpdate
}

func NewMemory() *Memory {
	return &Memory{
		rides:   make(map[string]*models.Ride),
		byRider: make(map[string][]string),
		updates: make(map[string][]models.RideUpdate),
	}
}

func (m *Memory) CreateRide(_ context.Context, riderID string, pickup, drop models.Coordinate, distanceKm, durationMin, fare float64, vehicleType string) (string, error) {
	id := newID()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rides[id] = &models.Ride{
		ID:          id,
		RiderID:     riderID,
		Pickup:      pickup,
		Drop:        drop,
		DistanceKm:  distanceKm,
		DurationMin: durationMin,
		Fare:        fare,
		VehicleType: vehicleType,
		Status:      models.StatusPending,
		CreatedAt:   time.Now(),
	}
	m.byRider[riderID] = append(m.byRider[riderID], id)
	return id, nil
}

func (m *Memory) GetRide(_ context.Context, rideID string) (models.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rides[rideID]
	if !ok {
		return models.Ride{}, ErrNotFound
	}
	return *r, nil
}

func (m *Memory) ListByRider(_ context.Context, riderID string) ([]models.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.byRider[riderID]
	out := make([]models.Ride, 0, len(ids))
	// walk newest insertion first, then stable-sort by CreatedAt desc so
	// equal timestamps keep most-recent-insertion order
	for i := len(ids) - 1; i >= 0; i-- {
		out = append(out, *m.rides[ids[i]])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) UpdateStatus(_ context.Context, rideID string, status models.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[rideID]
	if !ok {
		return ErrNotFound
	}
	r.Status = status
	m.updates[rideID] = append(m.updates[rideID], models.RideUpdate{
		RideID:    rideID,
		Status:    string(status),
		UpdatedAt: time.Now(),
	})
	return nil
}

func (m *Memory) AssignDriver(_ context.Context, rideID string, d models.Driver) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[rideID]
	if !ok {
		return ErrNotFound
	}
	if r.Status != models.StatusPending {
		return ErrConflict
	}
	r.DriverID = d.ID
	r.DriverName = d.Name
	r.DriverRating = d.Rating
	r.DriverVehicle = d.VehicleType
	r.Status = models.StatusDriverAssigned
	m.updates[rideID] = append(m.updates[rideID], models.RideUpdate{
		RideID:    rideID,
		Status:    string(models.StatusDriverAssigned),
		UpdatedAt: time.Now(),
	})
	return nil
}

func (m *Memory) AppendUpdate(_ context.Context, u models.RideUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rides[u.RideID]; !ok {
		return ErrNotFound
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = time.Now()
	}
	m.updates[u.RideID] = append(m.updates[u.RideID], u)
	return nil
}

func (m *Memory) LatestUpdate(_ context.Context, rideID string) (models.RideUpdate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.rides[rideID]; !ok {
		return models.RideUpdate{}, ErrNotFound
	}
	ups := m.updates[rideID]
	if len(ups) == 0 {
		return models.RideUpdate{}, ErrNoUpdates
	}
	best := ups[0]
	for _, u := range ups[1:] {
		// >= prefers later insertion on equal timestamps
		if !u.UpdatedAt.Before(best.UpdatedAt) {
			best = u
		}
	}
	return best, nil
}

func (m *Memory) ListUpdates(_ context.Context, rideID string) ([]models.RideUpdate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.rides[rideID]; !ok {
		return nil, ErrNotFound
	}
	out := make([]models.RideUpdate, len(m.updates[rideID]))
	copy(out, m.updates[rideID])
	return out, nil
}

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }
