package geo

import (
	"math"
	"testing"

	"github.com/example/ride-dispatch/internal/models"
)

func TestDistanceKmZero(t *testing.T) {
	d := DistanceKm(models.Coordinate{}, models.Coordinate{})
	if d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
}

func TestDistanceKmOneDegreeAtEquator(t *testing.T) {
	d := DistanceKm(models.Coordinate{Lat: 0, Lon: 0}, models.Coordinate{Lat: 0, Lon: 1})
	// one degree of longitude at the equator is ~111.19 km
	if d < 111 || d > 111.4 {
		t.Fatalf("expected ~111.19, got %f", d)
	}
}

func TestDistanceKmSymmetric(t *testing.T) {
	a := models.Coordinate{Lat: 30.0, Lon: 76.0}
	b := models.Coordinate{Lat: 31.0, Lon: 77.0}
	if DistanceKm(a, b) != DistanceKm(b, a) {
		t.Fatal("distance not symmetric")
	}
}

func TestDistanceKmOrdering(t *testing.T) {
	pickup := models.Coordinate{Lat: 30.0, Lon: 76.0}
	near := models.Coordinate{Lat: 30.001, Lon: 76.001}
	far := models.Coordinate{Lat: 31.0, Lon: 77.0}
	if DistanceKm(pickup, near) >= DistanceKm(pickup, far) {
		t.Fatal("expected near < far")
	}
}

func TestDistanceKmNaNPropagates(t *testing.T) {
	d := DistanceKm(models.Coordinate{Lat: math.NaN(), Lon: 0}, models.Coordinate{Lat: 0, Lon: 0})
	if !math.IsNaN(d) {
		t.Fatalf("expected NaN, got %f", d)
	}
}
