// Package events is the in-process pub/sub bus feeding the websocket
// hub. The trading core publishes; the dashboard layer subscribes.
package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventDecision           EventType = "DECISION"
	EventSignalGenerated    EventType = "SIGNAL_GENERATED"
	EventPositionOpened     EventType = "POSITION_OPENED"
	EventPositionUpdate     EventType = "POSITION_UPDATE"
	EventPositionClosed     EventType = "POSITION_CLOSED"
	EventBalanceUpdate      EventType = "BALANCE_UPDATE"
	EventBotStateChanged    EventType = "BOT_STATE_CHANGED"
	EventTradingModeChanged EventType = "TRADING_MODE_CHANGED"
	EventAutoTradingToggled EventType = "AUTO_TRADING_TOGGLED"
	EventReconcileRequired  EventType = "RECONCILE_REQUIRED"
	EventInvariantViolation EventType = "INVARIANT_VIOLATION"
	EventError              EventType = "ERROR"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	UserID    string                 `json:"userId,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// EventBus manages event publishing and subscriptions
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
	}
}

// Subscribe registers a subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish sends an event to all subscribers. Subscribers run in their
// own goroutines so a slow consumer cannot block the trading pipeline.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event)
		}
	}
	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishDecision publishes the outcome of a decision cycle.
func (eb *EventBus) PublishDecision(userID, symbol string, execute bool, reason string, combinedScore float64) {
	eb.Publish(Event{
		Type:   EventDecision,
		UserID: userID,
		Data: map[string]interface{}{
			"symbol":         symbol,
			"execute":        execute,
			"reason":         reason,
			"combined_score": combinedScore,
		},
	})
}

// PublishSignal publishes a new sweep entry candidate.
func (eb *EventBus) PublishSignal(userID, symbol, direction string, entry, stop float64, confidence float64) {
	eb.Publish(Event{
		Type:   EventSignalGenerated,
		UserID: userID,
		Data: map[string]interface{}{
			"symbol":     symbol,
			"direction":  direction,
			"entry":      entry,
			"stop":       stop,
			"confidence": confidence,
		},
	})
}

// PublishPositionOpened publishes a successful execution.
func (eb *EventBus) PublishPositionOpened(userID, symbol, direction string, entryPrice, quantity float64) {
	eb.Publish(Event{
		Type:   EventPositionOpened,
		UserID: userID,
		Data: map[string]interface{}{
			"symbol":      symbol,
			"direction":   direction,
			"entry_price": entryPrice,
			"quantity":    quantity,
		},
	})
}

// PublishPositionUpdate publishes a non-terminal price/PnL refresh.
func (eb *EventBus) PublishPositionUpdate(userID, symbol string, currentPrice, pnl float64) {
	eb.Publish(Event{
		Type:   EventPositionUpdate,
		UserID: userID,
		Data: map[string]interface{}{
			"symbol":        symbol,
			"current_price": currentPrice,
			"pnl":           pnl,
		},
	})
}

// PublishPositionClosed publishes a settlement.
func (eb *EventBus) PublishPositionClosed(userID, symbol, result string, exitPrice, pnl, newBalance float64) {
	eb.Publish(Event{
		Type:   EventPositionClosed,
		UserID: userID,
		Data: map[string]interface{}{
			"symbol":      symbol,
			"result":      result,
			"exit_price":  exitPrice,
			"pnl":         pnl,
			"new_balance": newBalance,
		},
	})
}

// PublishBalanceUpdate publishes the post-settlement balance.
func (eb *EventBus) PublishBalanceUpdate(userID string, balance float64) {
	eb.Publish(Event{
		Type:   EventBalanceUpdate,
		UserID: userID,
		Data: map[string]interface{}{
			"balance": balance,
		},
	})
}

// PublishReconcileRequired flags an order with an unknown outcome for
// manual reconciliation.
func (eb *EventBus) PublishReconcileRequired(userID, symbol, signalID string, err error) {
	data := map[string]interface{}{
		"symbol":    symbol,
		"signal_id": signalID,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	eb.Publish(Event{
		Type:   EventReconcileRequired,
		UserID: userID,
		Data:   data,
	})
}

// PublishInvariantViolation flags inconsistent internal state.
func (eb *EventBus) PublishInvariantViolation(userID, detail string) {
	eb.Publish(Event{
		Type:   EventInvariantViolation,
		UserID: userID,
		Data: map[string]interface{}{
			"detail": detail,
		},
	})
}

// PublishError publishes an error event
func (eb *EventBus) PublishError(userID, source, message string, err error) {
	data := map[string]interface{}{
		"source":  source,
		"message": message,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	eb.Publish(Event{
		Type:   EventError,
		UserID: userID,
		Data:   data,
	})
}
