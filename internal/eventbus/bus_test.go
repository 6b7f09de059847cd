package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	bus := NewWithConfig(2, 16)
	defer bus.Close(context.Background())

	var mu sync.Mutex
	var got []Event
	done := make(chan struct{})
	bus.Subscribe(EventTypeDeviceCommand, func(e Event) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
		close(done)
	})

	bus.Publish(Event{
		Type: EventTypeDeviceCommand,
		Data: map[string]any{"entity_id": "light.kitchen"},
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler never invoked")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Fatalf("events = %d", len(got))
	}
	if got[0].Data["entity_id"] != "light.kitchen" {
		t.Errorf("data = %v", got[0].Data)
	}
}

func TestPublishIgnoresOtherTypes(t *testing.T) {
	bus := NewWithConfig(1, 4)
	defer bus.Close(context.Background())

	called := make(chan struct{}, 1)
	bus.Subscribe(EventTypeEntertainment, func(Event) {
		called <- struct{}{}
	})

	bus.Publish(Event{Type: EventTypeDeviceState})
	select {
	case <-called:
		t.Fatal("handler invoked for an unsubscribed type")
	case <-time.After(50 * time.Millisecond):
	}
}
