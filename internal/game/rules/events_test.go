package rules

import (
	"testing"
)

func TestEventBusSubscribeTyped(t *testing.T) {
	bus := NewEventBus()

	challengeCount := 0
	coinCount := 0

	handle1 := bus.SubscribeTyped(EventChallengeIssued, func(e Event) {
		challengeCount++
	})

	handle2 := bus.SubscribeTyped(EventCoinsChanged, func(e Event) {
		coinCount += e.Amount
	})

	bus.Publish(NewEvent(EventChallengeIssued, "bob", "alice", "tax"))
	if challengeCount != 1 {
		t.Fatalf("expected challenge count 1, got %d", challengeCount)
	}
	if coinCount != 0 {
		t.Fatalf("expected coin total 0, got %d", coinCount)
	}

	bus.Publish(NewEventWithAmount(EventCoinsChanged, "alice", "", "tax", 3))
	if coinCount != 3 {
		t.Fatalf("expected coin total 3, got %d", coinCount)
	}

	bus.Unsubscribe(handle1)
	bus.Publish(NewEvent(EventChallengeIssued, "carol", "alice", "steal"))
	if challengeCount != 1 {
		t.Fatalf("expected challenge count still 1 after unsubscribe, got %d", challengeCount)
	}

	bus.Unsubscribe(handle2)
	bus.Publish(NewEventWithAmount(EventCoinsChanged, "alice", "", "income", 1))
	if coinCount != 3 {
		t.Fatalf("expected coin total still 3 after unsubscribe, got %d", coinCount)
	}
}

func TestEventBusSubscribeAll(t *testing.T) {
	bus := NewEventBus()

	var seen []EventType
	handle := bus.Subscribe(func(e Event) {
		seen = append(seen, e.Type)
	})

	bus.Publish(NewEvent(EventActionDeclared, "alice", "", "income"))
	bus.Publish(NewEvent(EventTurnChanged, "bob", "", ""))

	if len(seen) != 2 || seen[0] != EventActionDeclared || seen[1] != EventTurnChanged {
		t.Fatalf("unexpected events: %v", seen)
	}

	bus.Unsubscribe(handle)
	bus.Publish(NewEvent(EventGameWon, "bob", "", ""))
	if len(seen) != 2 {
		t.Fatalf("expected no delivery after unsubscribe, got %v", seen)
	}
}

func TestEventBusNilListener(t *testing.T) {
	bus := NewEventBus()
	if h := bus.Subscribe(nil); h != -1 {
		t.Fatalf("expected -1 handle for nil listener, got %d", h)
	}
	if h := bus.SubscribeTyped(EventGameWon, nil); h != -1 {
		t.Fatalf("expected -1 handle for nil typed listener, got %d", h)
	}
}

func TestPublishStampsTimestamp(t *testing.T) {
	bus := NewEventBus()
	var got Event
	bus.Subscribe(func(e Event) { got = e })

	bus.Publish(Event{Type: EventInfluenceLost, PlayerID: "alice"})
	if got.Timestamp.IsZero() {
		t.Fatalf("expected publish to stamp a timestamp")
	}
}

func TestPublishKeepsSubscriptionOrder(t *testing.T) {
	bus := NewEventBus()
	var order []string
	bus.Subscribe(func(Event) { order = append(order, "first") })
	bus.SubscribeTyped(EventGameWon, func(Event) { order = append(order, "typed") })
	bus.Subscribe(func(Event) { order = append(order, "last") })

	bus.Publish(NewEvent(EventGameWon, "alice", "", ""))
	if len(order) != 3 || order[0] != "first" || order[1] != "typed" || order[2] != "last" {
		t.Fatalf("unexpected delivery order: %v", order)
	}
}
