package rules

import (
	"slices"
	"sync"
	"time"
)

// EventType indicates the category of a rules event.
type EventType string

const (
	// Game lifecycle events
	EventGameStarted EventType = "GAME_STARTED"
	EventGameWon     EventType = "GAME_WON"
	EventTurnChanged EventType = "TURN_CHANGED"

	// Action events
	EventActionDeclared  EventType = "ACTION_DECLARED"
	EventActionResolved  EventType = "ACTION_RESOLVED"
	EventActionCancelled EventType = "ACTION_CANCELLED"
	EventCoinsChanged    EventType = "COINS_CHANGED"

	// Negotiation events
	EventPhaseOpened       EventType = "PHASE_OPENED"
	EventResponseRecorded  EventType = "RESPONSE_RECORDED"
	EventChallengeIssued   EventType = "CHALLENGE_ISSUED"
	EventChallengeWon      EventType = "CHALLENGE_WON"
	EventChallengeLost     EventType = "CHALLENGE_LOST"
	EventBlockDeclared     EventType = "BLOCK_DECLARED"
	EventBlockHeld         EventType = "BLOCK_HELD"
	EventBlockFailed       EventType = "BLOCK_FAILED"
	EventDefaultsApplied   EventType = "DEFAULTS_APPLIED"
	EventExchangeCompleted EventType = "EXCHANGE_COMPLETED"

	// Influence events
	EventInfluenceLost    EventType = "INFLUENCE_LOST"
	EventPlayerEliminated EventType = "PLAYER_ELIMINATED"
)

// Event represents a state change that other subsystems may react to.
type Event struct {
	Type        EventType
	PlayerID    string // Player the event is about (actor, voter, loser)
	TargetID    string // Other player involved, if any
	Action      string // Action type the event relates to
	Data        string // Additional string data (role, phase id, reason)
	Amount      int    // Numeric value (coins moved, cards returned)
	Timestamp   time.Time
	Description string
}

// Listener defines a callback that reacts to incoming events.
type Listener func(Event)

type subscription struct {
	handle int
	only   EventType // empty for every event
	fn     Listener
}

// EventBus delivers events synchronously, in subscription order.
type EventBus struct {
	mu         sync.RWMutex
	subs       []subscription
	nextHandle int
}

// NewEventBus constructs a fresh event bus instance.
func NewEventBus() *EventBus {
	return &EventBus{}
}

func (bus *EventBus) add(only EventType, fn Listener) int {
	if fn == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.subs = append(bus.subs, subscription{handle: handle, only: only, fn: fn})
	return handle
}

// Subscribe registers a listener for all events and returns a handle.
func (bus *EventBus) Subscribe(listener Listener) int {
	return bus.add("", listener)
}

// SubscribeTyped registers a listener for one event type.
func (bus *EventBus) SubscribeTyped(eventType EventType, callback func(Event)) int {
	return bus.add(eventType, callback)
}

// Unsubscribe removes the listener identified by handle.
func (bus *EventBus) Unsubscribe(handle int) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.subs = slices.DeleteFunc(bus.subs, func(sub subscription) bool {
		return sub.handle == handle
	})
}

// Publish stamps the event if needed and hands it to every matching listener.
func (bus *EventBus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	bus.mu.RLock()
	subs := slices.Clone(bus.subs)
	bus.mu.RUnlock()

	for _, sub := range subs {
		if sub.only == "" || sub.only == event.Type {
			sub.fn(event)
		}
	}
}

// NewEvent creates a new event with common fields populated.
func NewEvent(eventType EventType, playerID, targetID, action string) Event {
	return Event{
		Type:      eventType,
		PlayerID:  playerID,
		TargetID:  targetID,
		Action:    action,
		Timestamp: time.Now(),
	}
}

// NewEventWithAmount creates a new event with an amount value.
func NewEventWithAmount(eventType EventType, playerID, targetID, action string, amount int) Event {
	evt := NewEvent(eventType, playerID, targetID, action)
	evt.Amount = amount
	return evt
}
