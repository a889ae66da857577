package track

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/example/ride-dispatch/internal/models"
	"github.com/example/ride-dispatch/internal/observability"
	"github.com/example/ride-dispatch/internal/registry"
	"github.com/example/ride-dispatch/internal/ridestore"
)

// ErrEmptyPath is returned when a simulation is started without geometry.
var ErrEmptyPath = errors.New("empty route geometry")

// Simulator steps a driver along a precomputed route at a fixed cadence,
// recording a driver update per point, and finalizes the ride on arrival.
//
// Each ride has at most one live session. Sessions carry a monotonic
// generation id; every write checks that its generation still owns the
// ride, so a replaced or stopped session can never interleave writes with
// its successor.
type Simulator struct {
	Pipeline *Pipeline
	Rides    ridestore.Store
	Registry registry.Registry
	Interval time.Duration
	Logger   *slog.Logger

	// OnComplete, if set, runs after a session transitions its ride to
	// completed. The server hooks fare settlement here so simulator-driven
	// completions settle the same way endpoint-driven ones do.
	OnComplete func(rideID, driverID string)

	mu       sync.Mutex
	nextGen  uint64
	sessions map[string]*session
}

type session struct {
	gen    uint64
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSimulator(p *Pipeline, rides ridestore.Store, reg registry.Registry, interval time.Duration, logger *slog.Logger) *Simulator {
	if interval <= 0 {
		interval = time.Second
	}
	return &Simulator{
		Pipeline: p,
		Rides:    rides,
		Registry: reg,
		Interval: interval,
		Logger:   logger,
		sessions: make(map[string]*session),
	}
}

// Start begins (or replaces) the movement session for a ride. Any prior
// session for the same ride is invalidated before the first write of the
// new one. The returned channel closes when the session ends, whether by
// arrival, replacement or Stop.
func (s *Simulator) Start(ctx context.Context, rideID, driverID string, path []models.Coordinate) (<-chan struct{}, error) {
	if len(path) == 0 {
		return nil, ErrEmptyPath
	}
	ride, err := s.Rides.GetRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.Status.Terminal() {
		return nil, errors.New("ride already " + string(ride.Status))
	}

	s.mu.Lock()
	if prev, ok := s.sessions[rideID]; ok {
		prev.cancel()
	}
	s.nextGen++
	runCtx, cancel := context.WithCancel(context.Background())
	sess := &session{gen: s.nextGen, cancel: cancel, done: make(chan struct{})}
	s.sessions[rideID] = sess
	s.mu.Unlock()

	go s.run(runCtx, sess, rideID, driverID, ride.Status, path)
	return sess.done, nil
}

// Stop cancels the ride's session if one is running. Writes already
// issued stand; no further writes occur.
func (s *Simulator) Stop(rideID string) {
	s.mu.Lock()
	sess, ok := s.sessions[rideID]
	if ok {
		delete(s.sessions, rideID)
	}
	s.mu.Unlock()
	if ok {
		sess.cancel()
	}
}

// owns reports whether the generation still controls the ride's session.
func (s *Simulator) owns(rideID string, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[rideID]
	return ok && sess.gen == gen
}

func (s *Simulator) release(rideID string, sess *session) {
	s.mu.Lock()
	if cur, ok := s.sessions[rideID]; ok && cur == sess {
		delete(s.sessions, rideID)
	}
	s.mu.Unlock()
}

func (s *Simulator) run(ctx context.Context, sess *session, rideID, driverID string, status models.Status, path []models.Coordinate) {
	observability.ActiveSimulations.Inc()
	defer observability.ActiveSimulations.Dec()
	defer close(sess.done)
	defer s.release(rideID, sess)

	// A replacement session picks up wherever the ride already is:
	// transitions the ride has passed are not re-issued.
	if s.owns(rideID, sess.gen) && models.CanTransition(status, models.StatusArriving) {
		if err := s.Rides.UpdateStatus(ctx, rideID, models.StatusArriving); err != nil {
			s.logErr(rideID, "arriving transition failed", err)
			return
		}
		status = models.StatusArriving
	}

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for i, pt := range path {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if !s.owns(rideID, sess.gen) {
			return
		}
		if i == 0 && status != models.StatusOnTrip && models.CanTransition(status, models.StatusOnTrip) {
			if err := s.Rides.UpdateStatus(ctx, rideID, models.StatusOnTrip); err != nil {
				s.logErr(rideID, "on_trip transition failed", err)
				return
			}
			status = models.StatusOnTrip
		}
		if err := s.Pipeline.RecordDriverUpdate(ctx, rideID, driverID, pt.Lat, pt.Lon); err != nil {
			s.logErr(rideID, "record update failed", err)
			return
		}
	}

	if !s.owns(rideID, sess.gen) {
		return
	}
	last := path[len(path)-1]
	if err := s.Registry.Release(ctx, driverID, last.Lat, last.Lon); err != nil {
		s.logErr(rideID, "driver release failed", err)
	}
	if err := s.Rides.UpdateStatus(ctx, rideID, models.StatusCompleted); err != nil {
		s.logErr(rideID, "completed transition failed", err)
		return
	}
	if s.OnComplete != nil {
		s.OnComplete(rideID, driverID)
	}
	if s.Pipeline.Watchers != nil {
		s.Pipeline.Watchers.Broadcast(rideID, models.RideUpdate{
			RideID:    rideID,
			Status:    string(models.StatusCompleted),
			UpdatedAt: time.Now(),
		})
	}
	if s.Logger != nil {
		s.Logger.Info("trip completed", "ride_id", rideID, "driver_id", driverID, "points", len(path))
	}
}

func (s *Simulator) logErr(rideID, msg string, err error) {
	if s.Logger != nil {
		s.Logger.Error(msg, "ride_id", rideID, "error", err)
	}
}
