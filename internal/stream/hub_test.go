package stream

import (
	"testing"
)

func TestAddRejectsDuplicateSession(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	if _, err := hub.Add("session-1", "user-1"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := hub.Add("session-1", "user-1"); err == nil {
		t.Error("expected duplicate session to be rejected")
	}
	if _, err := hub.Add("", "user-1"); err == nil {
		t.Error("expected empty session id to be rejected")
	}
}

func TestBroadcastFiltersBySubscription(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	allCh, err := hub.Add("session-all", "user-1")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	hub.SubscribeAll("session-all")

	aaplCh, err := hub.Add("session-aapl", "user-2")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	hub.SubscribeSymbol("session-aapl", "AAPL")

	idleCh, err := hub.Add("session-idle", "user-3")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	ticks := []PriceTick{
		{Symbol: "AAPL", Price: 150, ChangePercent: 1.5},
		{Symbol: "MSFT", Price: 300, ChangePercent: -0.5},
	}
	hub.Broadcast(ticks)

	select {
	case got := <-allCh:
		if len(got) != 2 {
			t.Errorf("all subscriber got %d ticks, want 2", len(got))
		}
	default:
		t.Error("all subscriber received nothing")
	}

	select {
	case got := <-aaplCh:
		if len(got) != 1 || got[0].Symbol != "AAPL" {
			t.Errorf("symbol subscriber got %+v, want AAPL only", got)
		}
	default:
		t.Error("symbol subscriber received nothing")
	}

	select {
	case got := <-idleCh:
		t.Errorf("unsubscribed session received %+v", got)
	default:
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	ch, err := hub.Add("session-1", "user-1")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	hub.SubscribeSymbol("session-1", "AAPL")
	hub.UnsubscribeSymbol("session-1", "AAPL")

	hub.Broadcast([]PriceTick{{Symbol: "AAPL", Price: 150}})
	select {
	case got := <-ch:
		t.Errorf("received %+v after unsubscribe", got)
	default:
	}
}

func TestBroadcastDropsWhenSubscriberIsFull(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	ch, err := hub.Add("session-1", "user-1")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	hub.SubscribeAll("session-1")

	// Nothing reads from ch; the buffer fills and later broadcasts drop.
	for i := 0; i < 32; i++ {
		hub.Broadcast([]PriceTick{{Symbol: "AAPL", Price: float64(100 + i)}})
	}
	if got := len(ch); got != cap(ch) {
		t.Errorf("buffered ticks = %d, want full buffer %d", got, cap(ch))
	}
}

func TestRemoveSession(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	ch, err := hub.Add("session-1", "user-1")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	hub.SubscribeAll("session-1")
	hub.Remove("session-1")

	hub.Broadcast([]PriceTick{{Symbol: "AAPL", Price: 150}})
	select {
	case got := <-ch:
		t.Errorf("removed session received %+v", got)
	default:
	}

	// The session id is free for reuse after removal.
	if _, err := hub.Add("session-1", "user-1"); err != nil {
		t.Errorf("re-Add after Remove: %v", err)
	}
}
