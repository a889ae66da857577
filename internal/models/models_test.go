package models

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusDriverAssigned, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusOnTrip, false},
		{StatusPending, StatusCompleted, false},
		{StatusDriverAssigned, StatusArriving, true},
		{StatusDriverAssigned, StatusOnTrip, true},
		{StatusArriving, StatusOnTrip, true},
		{StatusArriving, StatusDriverAssigned, false},
		{StatusOnTrip, StatusOnTrip, true},
		{StatusOnTrip, StatusCompleted, true},
		{StatusOnTrip, StatusCancelled, true},
		{StatusCompleted, StatusCancelled, false},
		{StatusCompleted, StatusOnTrip, false},
		{StatusCancelled, StatusPending, false},
		{Status("bogus"), StatusPending, false},
	}
	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestTerminal(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusDriverAssigned, StatusArriving, StatusOnTrip} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
	for _, s := range []Status{StatusCompleted, StatusCancelled} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
}

func TestEstimateFare(t *testing.T) {
	if got := EstimateFare(VehicleMini, 10); got != 120 {
		t.Fatalf("mini 10km = %v, want 120", got)
	}
	if got := EstimateFare(VehicleSedan, 10); got != 160 {
		t.Fatalf("sedan 10km = %v, want 160", got)
	}
	if got := EstimateFare(VehicleSUV, 10); got != 230 {
		t.Fatalf("suv 10km = %v, want 230", got)
	}
	// unknown category falls back to sedan pricing
	if got := EstimateFare("rickshaw", 10); got != 160 {
		t.Fatalf("fallback 10km = %v, want 160", got)
	}
}

func TestValidVehicleType(t *testing.T) {
	for _, v := range []string{VehicleMini, VehicleSedan, VehicleSUV} {
		if !ValidVehicleType(v) {
			t.Errorf("%s should be valid", v)
		}
	}
	if ValidVehicleType("bike") || ValidVehicleType("") {
		t.Errorf("unexpected vehicle types accepted")
	}
}
