// Package realtime provides an in-process publish/subscribe broker for
// row-change events, used to push feed and saved-list updates to open
// websocket views without refetching.
package realtime

import (
	"sync"
)

// Event types pushed to subscribers.
const (
	EventInsert = "INSERT"
	EventDelete = "DELETE"
	EventUpdate = "UPDATE"
)

// Event is a single change notification on a topic.
type Event struct {
	Topic   string         `json:"topic"`
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

// Subscription is a cancellable stream of events for one topic.
// Receive from C until it is closed; call Cancel to detach so an
// unmounted view stops receiving updates.
type Subscription struct {
	C      <-chan Event
	ch     chan Event
	topic  string
	broker *Broker
	once   sync.Once
}

// Cancel detaches the subscription from its topic and closes C.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.broker.unsubscribe(s)
		close(s.ch)
	})
}

// Broker fans events out to topic subscribers. Publish never blocks;
// a subscriber whose buffer is full misses that event.
type Broker struct {
	mu     sync.RWMutex
	topics map[string]map[*Subscription]struct{}
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{
		topics: make(map[string]map[*Subscription]struct{}),
	}
}

const subscriberBuffer = 16

// Subscribe registers a new subscription on a topic.
func (b *Broker) Subscribe(topic string) *Subscription {
	ch := make(chan Event, subscriberBuffer)
	sub := &Subscription{
		C:      ch,
		ch:     ch,
		topic:  topic,
		broker: b,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.topics[topic] == nil {
		b.topics[topic] = make(map[*Subscription]struct{})
	}
	b.topics[topic][sub] = struct{}{}
	return sub
}

func (b *Broker) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.topics[sub.topic]
	if !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(b.topics, sub.topic)
	}
}

// Publish delivers an event to every subscriber of its topic.
func (b *Broker) Publish(topic, eventType string, payload map[string]any) {
	event := Event{
		Topic:   topic,
		Type:    eventType,
		Payload: payload,
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.topics[topic] {
		select {
		case sub.ch <- event:
		default:
			// Slow subscriber: drop rather than block the publisher.
		}
	}
}

// SubscriberCount reports the number of active subscriptions on a topic.
func (b *Broker) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}
