package events

import (
	"sync"
	"testing"
	"time"
)

func TestSubscribeReceivesMatchingType(t *testing.T) {
	bus := NewEventBus()

	var wg sync.WaitGroup
	wg.Add(1)
	var got Event
	bus.Subscribe(EventPositionOpened, func(e Event) {
		got = e
		wg.Done()
	})

	bus.PublishPositionOpened("user-1", "BTCUSDT", "long", 42350.5, 47.9)
	waitOrFail(t, &wg)

	if got.Type != EventPositionOpened {
		t.Errorf("type = %s, want %s", got.Type, EventPositionOpened)
	}
	if got.UserID != "user-1" {
		t.Errorf("userID = %q, want user-1", got.UserID)
	}
	if got.Data["symbol"] != "BTCUSDT" {
		t.Errorf("symbol = %v", got.Data["symbol"])
	}
}

func TestSubscribeIgnoresOtherTypes(t *testing.T) {
	bus := NewEventBus()

	delivered := make(chan Event, 1)
	bus.Subscribe(EventPositionClosed, func(e Event) {
		delivered <- e
	})

	bus.PublishBalanceUpdate("user-1", 10000)

	select {
	case e := <-delivered:
		t.Fatalf("unexpected delivery: %v", e.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeAllReceivesEverything(t *testing.T) {
	bus := NewEventBus()

	var wg sync.WaitGroup
	wg.Add(2)
	var mu sync.Mutex
	var types []EventType
	bus.SubscribeAll(func(e Event) {
		mu.Lock()
		types = append(types, e.Type)
		mu.Unlock()
		wg.Done()
	})

	bus.PublishBalanceUpdate("user-1", 10000)
	bus.PublishDecision("user-1", "BTCUSDT", false, "combined score below threshold", 76)
	waitOrFail(t, &wg)

	mu.Lock()
	defer mu.Unlock()
	if len(types) != 2 {
		t.Fatalf("deliveries = %d, want 2", len(types))
	}
}

func waitOrFail(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}
