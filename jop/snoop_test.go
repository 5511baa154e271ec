package jop

import "testing"

func TestSnoopBusPublishReachesAllSubscribers(t *testing.T) {
	var bus SnoopBus
	var got1, got2 SnoopPulse
	bus.Subscribe(func(p SnoopPulse) { got1 = p })
	bus.Subscribe(func(p SnoopPulse) { got2 = p })

	bus.Publish(SnoopPulse{Addr: 42})

	if !got1.Valid || got1.Addr != 42 {
		t.Errorf("subscriber 1 got %+v, want Valid=true Addr=42", got1)
	}
	if !got2.Valid || got2.Addr != 42 {
		t.Errorf("subscriber 2 got %+v, want Valid=true Addr=42", got2)
	}
}

func TestSnoopBusSubscribeReturnsIndex(t *testing.T) {
	var bus SnoopBus
	if idx := bus.Subscribe(func(SnoopPulse) {}); idx != 0 {
		t.Errorf("got index %d for the first subscriber, want 0", idx)
	}
	if idx := bus.Subscribe(func(SnoopPulse) {}); idx != 1 {
		t.Errorf("got index %d for the second subscriber, want 1", idx)
	}
}

func TestSnoopBusNoSubscribersIsNoop(t *testing.T) {
	var bus SnoopBus
	bus.Publish(SnoopPulse{Addr: 1}) // must not panic with zero subscribers
}
