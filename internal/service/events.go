package service

import (
	"sync"
	"time"

	"clustercfg/internal/domain"
)

// EventType defines the type of event
type EventType string

const (
	EventRunStarted      EventType = "run_started"
	EventStepStarted     EventType = "step_started"
	EventStepCompleted   EventType = "step_completed"
	EventQuorumWarning   EventType = "quorum_warning"
	EventTrustOutcome    EventType = "trust_outcome"
	EventNodeVerified    EventType = "node_verified"
	EventArtifactWritten EventType = "artifact_written"
	EventRunCompleted    EventType = "run_completed"
)

// Event represents something that happened during a run
type Event struct {
	Type    EventType   `json:"type"`
	Time    time.Time   `json:"time"`
	Payload interface{} `json:"payload,omitempty"`
}

// EventBus allows publishing and subscribing to events.
// Publish may be called from several goroutines.
type EventBus struct {
	mu          sync.RWMutex
	subscribers []chan<- Event
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make([]chan<- Event, 0),
	}
}

// Subscribe adds a subscriber to receive events
func (eb *EventBus) Subscribe(ch chan<- Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.subscribers = append(eb.subscribers, ch)
}

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(event Event) {
	if event.Time.IsZero() {
		event.Time = time.Now()
	}

	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for _, ch := range eb.subscribers {
		select {
		case ch <- event:
		default:
			// Subscriber is slow, skip
		}
	}
}

// PublishTrustOutcome reports one finished trust target
func (eb *EventBus) PublishTrustOutcome(nt domain.NodeTrust) {
	eb.Publish(Event{
		Type:    EventTrustOutcome,
		Payload: nt,
	})
}

// PublishCheck reports one finished key-login check
func (eb *EventBus) PublishCheck(c domain.NodeCheck) {
	eb.Publish(Event{
		Type:    EventNodeVerified,
		Payload: c,
	})
}
