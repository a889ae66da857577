package models

import "time"

// Coordinate is a WGS84 point in decimal degrees. Values are not range
// checked here; the routing provider owns validation.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Vehicle categories riders can book. The set is closed; anything else
// is rejected at the API boundary.
const (
	VehicleMini  = "mini"
	VehicleSedan = "sedan"
	VehicleSUV   = "suv"
)

func ValidVehicleType(v string) bool {
	switch v {
	case VehicleMini, VehicleSedan, VehicleSUV:
		return true
	}
	return false
}

type Driver struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Loc         Coordinate `json:"loc"`
	VehicleType string     `json:"vehicle_type"`
	Rating      float64    `json:"rating"` // 0..5
	Available   bool       `json:"available"`
	Updated     time.Time  `json:"updated"`
}

// Status is the ride lifecycle state.
type Status string

const (
	StatusPending        Status = "pending"
	StatusDriverAssigned Status = "driver_assigned"
	StatusArriving       Status = "arriving"
	StatusOnTrip         Status = "on_trip"
	StatusCompleted      Status = "completed"
	StatusCancelled      Status = "cancelled"
)

// allowedTransitions encodes the lifecycle flow. Completed and cancelled
// are terminal; cancel is reachable from any non-terminal state.
var allowedTransitions = map[Status][]Status{
	StatusPending:        {StatusDriverAssigned, StatusCancelled},
	StatusDriverAssigned: {StatusArriving, StatusOnTrip, StatusCompleted, StatusCancelled},
	StatusArriving:       {StatusOnTrip, StatusCompleted, StatusCancelled},
	StatusOnTrip:         {StatusOnTrip, StatusCompleted, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type Ride struct {
	ID          string     `json:"id"`
	RiderID     string     `json:"rider_id"`
	Pickup      Coordinate `json:"pickup"`
	Drop        Coordinate `json:"drop"`
	DistanceKm  float64    `json:"distance_km"`
	DurationMin float64    `json:"duration_min"`
	Fare        float64    `json:"fare"`
	VehicleType string     `json:"vehicle_type"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`

	// Snapshot of the assigned driver copied at assignment time. The
	// driver record stays the source of truth for live position.
	DriverID      string  `json:"driver_id,omitempty"`
	DriverName    string  `json:"driver_name,omitempty"`
	DriverRating  float64 `json:"driver_rating,omitempty"`
	DriverVehicle string  `json:"driver_vehicle,omitempty"`
}

// RideUpdate is one append-only entry in a ride's tracking log. Position
// is optional: pure status transitions carry no coordinates.
type RideUpdate struct {
	RideID    string    `json:"ride_id"`
	DriverLat *float64  `json:"driver_lat,omitempty"`
	DriverLon *float64  `json:"driver_lon,omitempty"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PositionEvent is the wire shape for driver movement published to the
// location topic and consumed by the mirror consumer.
type PositionEvent struct {
	DriverID   string    `json:"driver_id"`
	RideID     string    `json:"ride_id,omitempty"`
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	RecordedAt time.Time `json:"recorded_at"`
}

// fareTable mirrors the mock pricing flow: flat base plus per-km rate.
var fareTable = map[string]struct{ base, perKm float64 }{
	VehicleMini:  {40, 8},
	VehicleSedan: {60, 10},
	VehicleSUV:   {90, 14},
}

// EstimateFare returns the mock fare for a vehicle category over a
// distance. Unknown categories price as sedan.
func EstimateFare(vehicleType string, distanceKm float64) float64 {
	t, ok := fareTable[vehicleType]
	if !ok {
		t = fareTable[VehicleSedan]
	}
	return t.base + t.perKm*distanceKm
}
