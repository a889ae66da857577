package routes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/example/ride-dispatch/internal/models"
)

// Route is what the external routing provider hands back: an opaque
// distance/duration pair plus the ordered geometry the movement
// simulator steps through. The core never computes geometry itself.
type Route struct {
	DistanceKm  float64             `json:"distance_km"`
	DurationMin float64             `json:"duration_min"`
	Geometry    []models.Coordinate `json:"geometry"`
}

// Provider fetches a route between two points.
type Provider interface {
	Route(ctx context.Context, from, to models.Coordinate) (Route, error)
}

// OSRMClient talks to an OSRM HTTP server.
type OSRMClient struct {
	Endpoint string
	Client   *http.Client
}

func NewOSRMClient(endpoint string) *OSRMClient {
	return &OSRMClient{Endpoint: endpoint, Client: &http.Client{Timeout: 2 * time.Second}}
}

// Route queries /route/v1/driving with full geojson geometry.
func (o *OSRMClient) Route(ctx context.Context, from, to models.Coordinate) (Route, error) {
	url := fmt.Sprintf("%s/route/v1/driving/%.6f,%.6f;%.6f,%.6f?overview=full&geometries=geojson",
		o.Endpoint, from.Lon, from.Lat, to.Lon, to.Lat)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Route{}, err
	}
	resp, err := o.Client.Do(req)
	if err != nil {
		return Route{}, err
	}
	defer resp.Body.Close()

	var out struct {
		Routes []struct {
			Distance float64 `json:"distance"` // meters
			Duration float64 `json:"duration"` // seconds
			Geometry struct {
				Coordinates [][]float64 `json:"coordinates"` // [lon, lat]
			} `json:"geometry"`
		} `json:"routes"`
		Code string `json:"code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Route{}, err
	}
	if out.Code != "Ok" || len(out.Routes) == 0 {
		return Route{}, fmt.Errorf("osrm no route: %v", out.Code)
	}

	r := out.Routes[0]
	route := Route{
		DistanceKm:  r.Distance / 1000.0,
		DurationMin: r.Duration / 60.0,
		Geometry:    make([]models.Coordinate, 0, len(r.Geometry.Coordinates)),
	}
	for _, pair := range r.Geometry.Coordinates {
		if len(pair) < 2 {
			continue
		}
		route.Geometry = append(route.Geometry, models.Coordinate{Lon: pair[0], Lat: pair[1]})
	}
	return route, nil
}
