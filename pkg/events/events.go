package events

import (
	"sync"
	"time"

	"github.com/cuemby/swarmroll/pkg/metrics"
	"github.com/google/uuid"
)

// EventType represents the type of event
type EventType string

const (
	EventRolloutStarted            EventType = "rollout.started"
	EventRolloutSucceeded          EventType = "rollout.succeeded"
	EventRolloutRolledBack         EventType = "rollout.rolled_back"
	EventRolloutRollbackFailed     EventType = "rollout.rollback_failed"
	EventRolloutRollbackImpossible EventType = "rollout.rollback_impossible"
	EventServiceSkipped            EventType = "service.skipped"
	EventBackupFailed              EventType = "backup.failed"
	EventPullFailed                EventType = "pull.failed"
	EventServiceUpdated            EventType = "service.updated"
	EventServiceUpdateFailed       EventType = "service.update_failed"
	EventServiceReverted           EventType = "service.reverted"
	EventServiceRevertFailed       EventType = "service.revert_failed"
	EventServiceRegistered         EventType = "registry.service_registered"
	EventServiceUnregistered       EventType = "registry.service_unregistered"
)

// Event represents a rollout or registry event
type Event struct {
	ID        string            `json:"id"`
	Type      EventType         `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	RolloutID string            `json:"rollout_id,omitempty"`
	Service   string            `json:"service,omitempty"`
	Message   string            `json:"message"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Subscriber is a channel that receives events
type Subscriber chan *Event

// Publisher accepts events for distribution
type Publisher interface {
	Publish(event *Event)
}

// Broker manages event subscriptions and distribution
type Broker struct {
	subscribers map[Subscriber]bool
	mu          sync.RWMutex
	eventCh     chan *Event
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewBroker creates a new event broker
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]bool),
		eventCh:     make(chan *Event, 100), // Buffer up to 100 events
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's event distribution loop
func (b *Broker) Start() {
	go b.run()
}

// Stop stops the broker. It is safe to call more than once.
func (b *Broker) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
}

// Subscribe creates a new subscription and returns a channel
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 50) // Buffer per subscriber
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes a subscription
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[sub]; !ok {
		return
	}
	delete(b.subscribers, sub)
	close(sub)
}

// Publish queues an event for all subscribers. It never blocks: when the
// broker queue is full or the broker is stopped the event is dropped.
func (b *Broker) Publish(event *Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	metrics.EventsPublishedTotal.WithLabelValues(string(event.Type)).Inc()

	select {
	case <-b.stopCh:
		metrics.EventsDroppedTotal.Inc()
		return
	default:
	}

	select {
	case b.eventCh <- event:
	default:
		metrics.EventsDroppedTotal.Inc()
	}
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber buffer full, skip
			metrics.EventsDroppedTotal.Inc()
		}
	}
}

// SubscriberCount returns the number of active subscribers
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Discard is a Publisher that drops every event
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(*Event) {}
