// Package transport defines the substitution point for every pub/sub
// backend this module can run over: an in-memory test double, an HTTP
// REST-bridge, and (behind a build tag) a real go-waku relay node.
package transport

import "context"

// Subscription is a live stream of raw payloads published on one topic.
// Callers receive from C until it is closed, then should stop.
type Subscription struct {
	C      <-chan []byte
	cancel func()
}

// Close stops the subscription and releases any resources backing it. It
// is safe to call more than once.
func (s *Subscription) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

// NewSubscription builds a Subscription around a channel and a cancel
// function; transport implementations use this to hand a uniform handle
// back to callers.
func NewSubscription(c <-chan []byte, cancel func()) *Subscription {
	return &Subscription{C: c, cancel: cancel}
}

// Transport is the substitution point for the pub/sub substrate: publish a
// payload to a topic, subscribe to a topic as a stream, and unsubscribe.
// Every concrete backend (memory, REST-bridge, go-waku relay) implements
// this identically so the reliability layer and the agent node are
// oblivious to which one is wired in.
type Transport interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, topic string) (*Subscription, error)
	Unsubscribe(ctx context.Context, topic string) error
}
