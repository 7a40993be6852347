// Package memory implements an in-process Transport test double: a topic
// is a named broadcast channel with full history replay for late
// subscribers, and nothing crosses a process boundary.
//
// Semantics are grounded directly on the upstream in-memory transport: a
// publish is appended to the topic's history and then best-effort
// delivered to every live subscriber; a subscribe first replays the
// topic's full history into the new channel, then registers it for future
// publishes; an unsubscribe drops every subscriber on a topic.
package memory

import (
	"context"
	"sync"

	"waku-a2a/agent/internal/transport"
)

const subscriberBuffer = 64

type subscriber struct {
	ch chan []byte
}

// Transport is an in-memory Transport. The zero value is not usable; use
// New.
type Transport struct {
	mu          sync.Mutex
	history     map[string][][]byte
	subscribers map[string][]*subscriber
}

// New builds an empty in-memory Transport.
func New() *Transport {
	return &Transport{
		history:     make(map[string][][]byte),
		subscribers: make(map[string][]*subscriber),
	}
}

// Publish appends payload to topic's history and best-effort delivers it to
// every live subscriber. A subscriber whose buffer is full is dropped
// rather than allowed to stall the publisher.
func (t *Transport) Publish(_ context.Context, topic string, payload []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.history[topic] = append(t.history[topic], payload)

	subs := t.subscribers[topic]
	live := subs[:0]
	for _, sub := range subs {
		select {
		case sub.ch <- payload:
			live = append(live, sub)
		default:
		}
	}
	t.subscribers[topic] = live
	return nil
}

// Subscribe replays topic's full history into the returned stream, then
// registers it to receive future publishes. Both steps happen under the
// same lock hold so a publish can never land in the subscriber's channel
// ahead of (or in place of) the backlog it replays.
func (t *Transport) Subscribe(_ context.Context, topic string) (*transport.Subscription, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	backlog := t.history[topic]
	// Size the channel to hold the full backlog plus room for future
	// publishes, so replaying it here can never block while t.mu is held.
	sub := &subscriber{ch: make(chan []byte, len(backlog)+subscriberBuffer)}
	for _, payload := range backlog {
		sub.ch <- payload
	}
	t.subscribers[topic] = append(t.subscribers[topic], sub)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			t.removeSubscriber(topic, sub)
			close(sub.ch)
		})
	}
	return transport.NewSubscription(sub.ch, cancel), nil
}

func (t *Transport) removeSubscriber(topic string, target *subscriber) {
	t.mu.Lock()
	defer t.mu.Unlock()
	subs := t.subscribers[topic]
	for i, sub := range subs {
		if sub == target {
			t.subscribers[topic] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// Unsubscribe drops every subscriber currently registered on topic.
func (t *Transport) Unsubscribe(_ context.Context, topic string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.subscribers, topic)
	return nil
}
