package registry

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/example/ride-dispatch/internal/models"
)

// Memory is the in-process Registry used for local runs and tests.
// Insertion order is preserved so list results are deterministic.
type Memory struct {
	mu      sync.RWMutex
	drivers map[string]*models.Driver
	order   []string
}

func NewMemory() *Memory {
	return &Memory{drivers: make(map[string]*models.Driver)}
}

func (m *Memory) AddDriver(_ context.Context, name string, lat, lon float64, vehicleType string, rating float64) (string, error) {
	id := newID()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[id] = &models.Driver{
		ID:          id,
		Name:        name,
		Loc:         models.Coordinate{Lat: lat, Lon: lon},
		VehicleType: vehicleType,
		Rating:      rating,
		Available:   true,
		Updated:     time.Now(),
	}
	m.order = append(m.order, id)
	return id, nil
}

func (m *Memory) ListAvailable(_ context.Context) ([]models.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Driver, 0, len(m.order))
	for _, id := range m.order {
		if d := m.drivers[id]; d.Available {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (m *Memory) ListAll(_ context.Context) ([]models.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Driver, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *m.drivers[id])
	}
	return out, nil
}

func (m *Memory) UpdateLocation(_ context.Context, driverID string, lat, lon float64, available *bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[driverID]
	if !ok {
		return ErrNotFound
	}
	d.Loc = models.Coordinate{Lat: lat, Lon: lon}
	if available != nil {
		d.Available = *available
	}
	d.Updated = time.Now()
	return nil
}

func (m *Memory) Reserve(_ context.Context, driverID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[driverID]
	if !ok {
		return false, ErrNotFound
	}
	if !d.Available {
		return false, nil
	}
	d.Available = false
	d.Updated = time.Now()
	return true, nil
}

func (m *Memory) Release(_ context.Context, driverID string, lat, lon float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[driverID]
	if !ok {
		return ErrNotFound
	}
	d.Loc = models.Coordinate{Lat: lat, Lon: lon}
	d.Available = true
	d.Updated = time.Now()
	return nil
}

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }
