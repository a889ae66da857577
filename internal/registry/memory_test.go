package registry

import (
	"context"
	"sync"
	"testing"
)

func TestAddDriverStartsAvailable(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	id, err := m.AddDriver(ctx, "Asha", 30.0, 76.0, "sedan", 4.8)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	avail, err := m.ListAvailable(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(avail) != 1 || avail[0].ID != id || !avail[0].Available {
		t.Fatalf("unexpected available list: %+v", avail)
	}
}

func TestUpdateLocationOptionalAvailability(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	id, _ := m.AddDriver(ctx, "Asha", 30.0, 76.0, "sedan", 4.8)

	// position-only update leaves availability alone
	if err := m.UpdateLocation(ctx, id, 30.5, 76.5, nil); err != nil {
		t.Fatalf("update: %v", err)
	}
	all, _ := m.ListAll(ctx)
	if !all[0].Available || all[0].Loc.Lat != 30.5 {
		t.Fatalf("unexpected driver: %+v", all[0])
	}

	off := false
	if err := m.UpdateLocation(ctx, id, 30.6, 76.6, &off); err != nil {
		t.Fatalf("update: %v", err)
	}
	all, _ = m.ListAll(ctx)
	if all[0].Available {
		t.Fatal("expected unavailable after explicit flag")
	}
}

func TestUpdateLocationUnknownDriver(t *testing.T) {
	m := NewMemory()
	if err := m.UpdateLocation(context.Background(), "nope", 1, 2, nil); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReserveExactlyOnce(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	id, _ := m.AddDriver(ctx, "Asha", 30.0, 76.0, "sedan", 4.8)

	const racers = 16
	var wg sync.WaitGroup
	wins := make(chan bool, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := m.Reserve(ctx, id)
			if err != nil {
				t.Errorf("reserve: %v", err)
				return
			}
			wins <- ok
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for ok := range wins {
		if ok {
			won++
		}
	}
	if won != 1 {
		t.Fatalf("expected exactly 1 winner, got %d", won)
	}
}

func TestReleaseMakesAvailableAtCoordinate(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	id, _ := m.AddDriver(ctx, "Asha", 30.0, 76.0, "sedan", 4.8)
	if ok, _ := m.Reserve(ctx, id); !ok {
		t.Fatal("reserve failed")
	}
	if err := m.Release(ctx, id, 30.1, 76.1); err != nil {
		t.Fatalf("release: %v", err)
	}
	avail, _ := m.ListAvailable(ctx)
	if len(avail) != 1 || avail[0].Loc.Lat != 30.1 || avail[0].Loc.Lon != 76.1 {
		t.Fatalf("unexpected driver after release: %+v", avail)
	}
}
