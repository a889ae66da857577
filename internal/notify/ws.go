package notify

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/example/ride-dispatch/internal/models"
)

// ErrNoSession is returned when the driver has no live websocket session.
var ErrNoSession = errors.New("no driver session")

// Assignment is the payload pushed to a driver when a ride is assigned.
type Assignment struct {
	RideID        string            `json:"ride_id"`
	DriverID      string            `json:"driver_id"`
	Pickup        models.Coordinate `json:"pickup"`
	DistanceKm    float64           `json:"distance_km"`
	DriverSummary string            `json:"driver_summary,omitempty"`
}

// WSSession is one connected driver app. Writes are serialized per
// connection.
type WSSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *WSSession) send(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

// WSRegistry holds live driver sessions keyed by driver id.
type WSRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*WSSession
}

func NewWSRegistry() *WSRegistry {
	return &WSRegistry{sessions: make(map[string]*WSSession)}
}

func (r *WSRegistry) Add(driverID string, conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[driverID] = &WSSession{conn: conn}
}

func (r *WSRegistry) Remove(driverID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, driverID)
}

// Assigned pushes the assignment to the driver's session, if any.
func (r *WSRegistry) Assigned(rideID string, d models.Driver) error {
	r.mu.RLock()
	s, ok := r.sessions[d.ID]
	r.mu.RUnlock()
	if !ok {
		return ErrNoSession
	}
	return s.send(Assignment{RideID: rideID, DriverID: d.ID, Pickup: d.Loc})
}
