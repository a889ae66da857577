package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/ride-dispatch/internal/dispatch"
	"github.com/example/ride-dispatch/internal/models"
	"github.com/example/ride-dispatch/internal/observability"
	"github.com/example/ride-dispatch/internal/registry"
	"github.com/example/ride-dispatch/internal/ridestore"
)

func (s *Server) routes() {
	s.mux.HandleFunc("/api/v1/rides", s.handleCreateRide).Methods(http.MethodPost)
	s.mux.HandleFunc("/api/v1/rides", s.handleListRides).Methods(http.MethodGet)
	s.mux.HandleFunc("/api/v1/rides/{ride_id}", s.handleGetRide).Methods(http.MethodGet)
	s.mux.HandleFunc("/api/v1/rides/{ride_id}/assign", s.handleAssign).Methods(http.MethodPost)
	s.mux.HandleFunc("/api/v1/rides/{ride_id}/status", s.handleUpdateStatus).Methods(http.MethodPost)
	s.mux.HandleFunc("/api/v1/rides/{ride_id}/track", s.handleRecordUpdate).Methods(http.MethodPost)
	s.mux.HandleFunc("/api/v1/rides/{ride_id}/track", s.handleLatestUpdate).Methods(http.MethodGet)
	s.mux.HandleFunc("/api/v1/rides/{ride_id}/updates", s.handleListUpdates).Methods(http.MethodGet)
	s.mux.HandleFunc("/api/v1/rides/{ride_id}/simulate", s.handleStartSimulation).Methods(http.MethodPost)
	s.mux.HandleFunc("/api/v1/rides/{ride_id}/simulate", s.handleStopSimulation).Methods(http.MethodDelete)
	s.mux.HandleFunc("/api/v1/drivers", s.handleAddDriver).Methods(http.MethodPost)
	s.mux.HandleFunc("/api/v1/drivers", s.handleListDrivers).Methods(http.MethodGet)
	s.mux.HandleFunc("/internal/driver/locations", s.handleDriverLocation).Methods(http.MethodPost)
	s.mux.HandleFunc("/ws/track/{ride_id}", s.handleWatchWS)
	s.mux.HandleFunc("/ws/drivers/{driver_id}", s.handleDriverWS)
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

type createRideRequest struct {
	RiderID     string            `json:"rider_id"`
	Pickup      models.Coordinate `json:"pickup"`
	Drop        models.Coordinate `json:"drop"`
	DistanceKm  float64           `json:"distance_km"`
	DurationMin float64           `json:"duration_min"`
	Fare        float64           `json:"fare"`
	VehicleType string            `json:"vehicle_type"`
}

func (s *Server) handleCreateRide(w http.ResponseWriter, r *http.Request) {
	var req createRideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.RiderID == "" {
		httpError(w, http.StatusBadRequest, "rider_id is required")
		return
	}
	if !models.ValidVehicleType(req.VehicleType) {
		httpError(w, http.StatusBadRequest, "unknown vehicle_type")
		return
	}
	if req.Fare == 0 {
		req.Fare = models.EstimateFare(req.VehicleType, req.DistanceKm)
	}

	rideID, err := s.rides.CreateRide(r.Context(), req.RiderID, req.Pickup, req.Drop,
		req.DistanceKm, req.DurationMin, req.Fare, req.VehicleType)
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	observability.RidesCreatedTotal.Inc()

	if s.payments != nil && s.payments.Enabled() {
		if intentID, err := s.payments.HoldFare(r.Context(), req.Fare, "inr"); err == nil {
			s.setHold(rideID, intentID)
		} else {
			s.logger.Warn("fare hold failed", "ride_id", rideID, "error", err)
		}
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"ride_id": rideID,
		"status":  models.StatusPending,
		"fare":    req.Fare,
	})
}

func (s *Server) handleGetRide(w http.ResponseWriter, r *http.Request) {
	ride, err := s.rides.GetRide(r.Context(), mux.Vars(r)["ride_id"])
	if errors.Is(err, ridestore.ErrNotFound) {
		httpError(w, http.StatusNotFound, "ride not found")
		return
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ride)
}

func (s *Server) handleListRides(w http.ResponseWriter, r *http.Request) {
	riderID := r.URL.Query().Get("rider_id")
	if riderID == "" {
		httpError(w, http.StatusBadRequest, "rider_id is required")
		return
	}
	rides, err := s.rides.ListByRider(r.Context(), riderID)
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rides": rides})
}

type assignRequest struct {
	Pickup *models.Coordinate `json:"pickup,omitempty"`
}

func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	rideID := mux.Vars(r)["ride_id"]

	var req assignRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	pickup := models.Coordinate{}
	if req.Pickup != nil {
		pickup = *req.Pickup
	} else {
		ride, err := s.rides.GetRide(r.Context(), rideID)
		if errors.Is(err, ridestore.ErrNotFound) {
			httpError(w, http.StatusNotFound, "ride not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, err.Error())
			return
		}
		pickup = ride.Pickup
	}

	d, err := s.engine.Assign(r.Context(), rideID, pickup)
	switch {
	case errors.Is(err, ridestore.ErrNotFound):
		httpError(w, http.StatusNotFound, "ride not found")
		return
	case errors.Is(err, dispatch.ErrRideClosed):
		httpError(w, http.StatusConflict, "ride not open for assignment")
		return
	case err != nil:
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if d == nil {
		httpError(w, http.StatusServiceUnavailable, "no drivers available")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ride_id": rideID, "driver": d})
}

type statusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	rideID := mux.Vars(r)["ride_id"]
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	next := models.Status(req.Status)

	ride, err := s.rides.GetRide(r.Context(), rideID)
	if errors.Is(err, ridestore.ErrNotFound) {
		httpError(w, http.StatusNotFound, "ride not found")
		return
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !models.CanTransition(ride.Status, next) {
		httpError(w, http.StatusConflict, "illegal transition "+string(ride.Status)+" -> "+string(next))
		return
	}

	if err := s.rides.UpdateStatus(r.Context(), rideID, next); err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if next.Terminal() {
		s.finalizeRide(r, ride, next)
	}
	writeJSON(w, http.StatusOK, map[string]any{"ride_id": rideID, "status": next})
}

// finalizeRide settles the fare hold and frees the driver once a ride
// reaches a terminal status through the status endpoint.
func (s *Server) finalizeRide(r *http.Request, ride models.Ride, next models.Status) {
	s.sim.Stop(ride.ID)
	s.settleHold(r.Context(), ride.ID, next == models.StatusCompleted)

	if ride.DriverID == "" {
		return
	}
	// release at the last tracked position when there is one; status-only
	// entries carry no coordinates, so walk the trail backwards
	at := ride.Pickup
	if ups, err := s.rides.ListUpdates(r.Context(), ride.ID); err == nil {
		for i := len(ups) - 1; i >= 0; i-- {
			if ups[i].DriverLat != nil && ups[i].DriverLon != nil {
				at = models.Coordinate{Lat: *ups[i].DriverLat, Lon: *ups[i].DriverLon}
				break
			}
		}
	}
	if err := s.registry.Release(r.Context(), ride.DriverID, at.Lat, at.Lon); err != nil {
		s.logger.Warn("driver release failed", "ride_id", ride.ID, "driver_id", ride.DriverID, "error", err)
	}
}

type recordUpdateRequest struct {
	DriverID string  `json:"driver_id"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
}

func (s *Server) handleRecordUpdate(w http.ResponseWriter, r *http.Request) {
	rideID := mux.Vars(r)["ride_id"]
	var req recordUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	err := s.pipeline.RecordDriverUpdate(r.Context(), rideID, req.DriverID, req.Lat, req.Lon)
	switch {
	case errors.Is(err, ridestore.ErrNotFound):
		httpError(w, http.StatusNotFound, "ride not found")
	case errors.Is(err, registry.ErrNotFound):
		httpError(w, http.StatusNotFound, "driver not found")
	case err != nil:
		httpError(w, http.StatusInternalServerError, err.Error())
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleLatestUpdate(w http.ResponseWriter, r *http.Request) {
	u, err := s.pipeline.LatestUpdate(r.Context(), mux.Vars(r)["ride_id"])
	switch {
	case errors.Is(err, ridestore.ErrNotFound):
		httpError(w, http.StatusNotFound, "ride not found")
	case errors.Is(err, ridestore.ErrNoUpdates):
		writeJSON(w, http.StatusOK, map[string]any{"update": nil})
	case err != nil:
		httpError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, map[string]any{"update": u})
	}
}

func (s *Server) handleListUpdates(w http.ResponseWriter, r *http.Request) {
	ups, err := s.rides.ListUpdates(r.Context(), mux.Vars(r)["ride_id"])
	if errors.Is(err, ridestore.ErrNotFound) {
		httpError(w, http.StatusNotFound, "ride not found")
		return
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"updates": ups})
}

type simulateRequest struct {
	DriverID string              `json:"driver_id,omitempty"`
	Geometry []models.Coordinate `json:"geometry,omitempty"`
}

func (s *Server) handleStartSimulation(w http.ResponseWriter, r *http.Request) {
	rideID := mux.Vars(r)["ride_id"]
	var req simulateRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	ride, err := s.rides.GetRide(r.Context(), rideID)
	if errors.Is(err, ridestore.ErrNotFound) {
		httpError(w, http.StatusNotFound, "ride not found")
		return
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}

	driverID := req.DriverID
	if driverID == "" {
		driverID = ride.DriverID
	}
	if driverID == "" {
		httpError(w, http.StatusConflict, "ride has no assigned driver")
		return
	}

	path := req.Geometry
	if len(path) == 0 && s.router != nil {
		route, err := s.router.Route(r.Context(), ride.Pickup, ride.Drop)
		if err != nil {
			httpError(w, http.StatusBadGateway, "route fetch failed: "+err.Error())
			return
		}
		path = route.Geometry
	}
	if len(path) == 0 {
		httpError(w, http.StatusBadRequest, "geometry is required")
		return
	}

	if _, err := s.sim.Start(r.Context(), rideID, driverID, path); err != nil {
		httpError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"ride_id": rideID, "points": len(path)})
}

func (s *Server) handleStopSimulation(w http.ResponseWriter, r *http.Request) {
	s.sim.Stop(mux.Vars(r)["ride_id"])
	w.WriteHeader(http.StatusNoContent)
}

type addDriverRequest struct {
	Name        string  `json:"name"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	VehicleType string  `json:"vehicle_type"`
	Rating      float64 `json:"rating"`
}

func (s *Server) handleAddDriver(w http.ResponseWriter, r *http.Request) {
	var req addDriverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" {
		httpError(w, http.StatusBadRequest, "name is required")
		return
	}
	if !models.ValidVehicleType(req.VehicleType) {
		httpError(w, http.StatusBadRequest, "unknown vehicle_type")
		return
	}
	id, err := s.registry.AddDriver(r.Context(), req.Name, req.Lat, req.Lon, req.VehicleType, req.Rating)
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"driver_id": id})
}

func (s *Server) handleListDrivers(w http.ResponseWriter, r *http.Request) {
	var (
		drivers []models.Driver
		err     error
	)
	if r.URL.Query().Get("available") == "true" {
		drivers, err = s.registry.ListAvailable(r.Context())
	} else {
		drivers, err = s.registry.ListAll(r.Context())
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"drivers": drivers})
}

type driverLocationRequest struct {
	DriverID  string  `json:"driver_id"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Available *bool   `json:"available,omitempty"`
}

func (s *Server) handleDriverLocation(w http.ResponseWriter, r *http.Request) {
	var req driverLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	err := s.registry.UpdateLocation(r.Context(), req.DriverID, req.Lat, req.Lon, req.Available)
	if errors.Is(err, registry.ErrNotFound) {
		httpError(w, http.StatusNotFound, "driver not found")
		return
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if s.producer != nil {
		ev := models.PositionEvent{DriverID: req.DriverID, Lat: req.Lat, Lon: req.Lon, RecordedAt: time.Now().UTC()}
		if err := s.producer.PublishPosition(ev); err != nil {
			s.logger.Debug("position publish failed", "driver_id", req.DriverID, "error", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

var upgrader = websocket.Upgrader{}

func (s *Server) handleWatchWS(w http.ResponseWriter, r *http.Request) {
	rideID := mux.Vars(r)["ride_id"]
	if _, err := s.rides.GetRide(r.Context(), rideID); errors.Is(err, ridestore.ErrNotFound) {
		httpError(w, http.StatusNotFound, "ride not found")
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.watchers.Add(rideID, conn)
	// catch the new watcher up with the current trip snapshot
	if u, err := s.rides.LatestUpdate(r.Context(), rideID); err == nil {
		_ = conn.WriteJSON(u)
	}
}

func (s *Server) handleDriverWS(w http.ResponseWriter, r *http.Request) {
	driverID := mux.Vars(r)["driver_id"]
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.drivers.Add(driverID, conn)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
