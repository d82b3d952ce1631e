package eventbus

import "testing"

type snapshotEvent struct {
	Session string
	Step    int
}

func TestTypedBusPublishSubscribe(t *testing.T) {
	bus := NewTyped[snapshotEvent]()
	a := bus.Subscribe()
	b := bus.Subscribe()
	bus.Publish(snapshotEvent{Session: "s1", Step: 3})
	for _, ch := range []<-chan snapshotEvent{a, b} {
		if v := <-ch; v.Step != 3 || v.Session != "s1" {
			t.Fatalf("unexpected event %+v", v)
		}
	}
	bus.Unsubscribe(a)
	if bus.Subscribers() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", bus.Subscribers())
	}
}

func TestTypedBusDropsOnFullBuffer(t *testing.T) {
	bus := NewTyped[int]()
	ch := bus.SubscribeN(2)
	for i := 0; i < 5; i++ {
		bus.Publish(i)
	}
	if got := bus.Dropped(); got != 3 {
		t.Fatalf("expected 3 dropped, got %d", got)
	}
	if v := <-ch; v != 0 {
		t.Fatalf("expected oldest event first, got %d", v)
	}
}

func TestTypedBusClose(t *testing.T) {
	bus := NewTyped[int]()
	ch1 := bus.Subscribe()
	ch2 := bus.Subscribe()
	bus.Close()
	if _, ok := <-ch1; ok {
		t.Fatalf("expected ch1 closed")
	}
	if _, ok := <-ch2; ok {
		t.Fatalf("expected ch2 closed")
	}
	if _, ok := <-bus.Subscribe(); ok {
		t.Fatalf("subscribe after close should return a closed channel")
	}
	bus.Publish(1)
}

func TestTypedBusUnsubscribeAfterClose(t *testing.T) {
	bus := NewTyped[float64]()
	ch := bus.Subscribe()
	bus.Close()
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("panic on Unsubscribe after Close: %v", r)
		}
	}()
	bus.Unsubscribe(ch)
}
