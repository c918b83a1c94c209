// Package events allows for the registering and receiving of events.
package events

import (
	"fmt"
	"slices"
	"sync"
)

// Event is a message published under a topic.
type Event struct {
	Topic   string `json:"topic"`
	Message string `json:"message"`
}

// subscriber is a registered channel and the topics it wants. No topics
// means every topic.
type subscriber struct {
	ch     chan Event
	topics []string
}

func (s subscriber) wants(topic string) bool {
	return len(s.topics) == 0 || slices.Contains(s.topics, topic)
}

// Events maintains a mapping of unique id and channels so goroutines
// can register and receive events.
type Events struct {
	m  map[string]subscriber
	mu sync.RWMutex
}

// New constructs an events for registering and receiving events.
func New() *Events {
	return &Events{
		m: make(map[string]subscriber),
	}
}

// Shutdown closes and removes all channels that were provided by
// the call to Acquire.
func (evt *Events) Shutdown() {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	for id, sub := range evt.m {
		delete(evt.m, id)
		close(sub.ch)
	}
}

// Acquire takes a unique id and the topics of interest and returns a
// channel that can be used to receive events.
func (evt *Events) Acquire(id string, topics ...string) chan Event {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	if sub, exists := evt.m[id]; exists {
		return sub.ch
	}

	// Since a message will be dropped if the websocket receiver is
	// not ready to receive, this arbitrary buffer should give the receiver
	// enough time to not lose a message. Websocket send could take long.
	const messageBuffer = 100

	sub := subscriber{ch: make(chan Event, messageBuffer), topics: topics}
	evt.m[id] = sub

	return sub.ch
}

// Release closes and removes the channel that was provided by
// the call to Acquire.
func (evt *Events) Release(id string) error {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	sub, exists := evt.m[id]
	if !exists {
		return fmt.Errorf("id %q does not exist", id)
	}

	delete(evt.m, id)
	close(sub.ch)
	return nil
}

// Send signals a message to every channel registered for the topic. Send
// will not block waiting for a receiver on any given channel.
func (evt *Events) Send(topic string, format string, args ...any) {
	e := Event{Topic: topic, Message: fmt.Sprintf(format, args...)}

	evt.mu.RLock()
	defer evt.mu.RUnlock()

	for _, sub := range evt.m {
		if !sub.wants(topic) {
			continue
		}
		select {
		case sub.ch <- e:
		default:
		}
	}
}

// Handler returns an event handler that publishes under the topic. It
// fits the event handlers the spend builders accept.
func (evt *Events) Handler(topic string) func(v string, args ...any) {
	return func(v string, args ...any) {
		evt.Send(topic, v, args...)
	}
}
