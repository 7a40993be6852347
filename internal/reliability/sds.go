// Package reliability wraps a transport.Transport with SDS-style
// at-least-once delivery: per-message ACKs with bounded retransmit, and
// id-based deduplication of incoming payloads.
//
// Grounded directly on the upstream SDS transport: the same retry count,
// ack timeout, ack-topic naming, and JSON "id"-field dedup.
package reliability

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"waku-a2a/agent/internal/transport"
	"waku-a2a/agent/pkg/envelope"
)

// MaxRetries is the number of retransmit attempts after the first publish
// before giving up.
const MaxRetries = 3

// AckTimeout is how long PublishReliable waits for an ack after each
// publish attempt.
const AckTimeout = 10 * time.Second

// Reliable wraps a Transport with retransmit/ack/dedup semantics.
type Reliable struct {
	transport transport.Transport
	dedup     *dedupSet
	metrics   *Metrics
}

// New wraps t with the reliability layer. A nil metrics disables metrics
// collection.
func New(t transport.Transport, metrics *Metrics) *Reliable {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Reliable{
		transport: t,
		dedup:     newDedupSet(defaultDedupCap),
		metrics:   metrics,
	}
}

// PublishReliable publishes payload to topic and retries, subscribing to
// the corresponding ack topic, until an ack for messageID arrives or
// MaxRetries is exhausted. It reports whether the message was acked.
func (r *Reliable) PublishReliable(ctx context.Context, topic, messageID string, payload []byte) (bool, error) {
	return r.PublishReliableWithTimeout(ctx, topic, messageID, payload, AckTimeout)
}

// PublishReliableWithTimeout is PublishReliable with an overridable ack
// timeout, split out so tests need not wait the full 10s default.
func (r *Reliable) PublishReliableWithTimeout(ctx context.Context, topic, messageID string, payload []byte, ackTimeout time.Duration) (bool, error) {
	ackTopic := envelope.AckTopic(messageID)
	sub, err := r.transport.Subscribe(ctx, ackTopic)
	if err != nil {
		return false, fmt.Errorf("reliability: subscribe ack topic: %w", err)
	}
	defer sub.Close()
	defer r.transport.Unsubscribe(ctx, ackTopic)

	for attempt := 0; attempt <= MaxRetries; attempt++ {
		r.metrics.PublishAttempts.Inc()
		if err := r.transport.Publish(ctx, topic, payload); err != nil {
			return false, fmt.Errorf("reliability: publish: %w", err)
		}

		acked, err := waitForAck(ctx, sub.C, messageID, ackTimeout)
		if err != nil {
			return false, err
		}
		if acked {
			r.metrics.Acks.Inc()
			return true, nil
		}
	}
	r.metrics.Unacked.Inc()
	return false, nil
}

func waitForAck(ctx context.Context, acks <-chan []byte, messageID string, timeout time.Duration) (bool, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-deadline.C:
			return false, nil
		case raw, ok := <-acks:
			if !ok {
				return false, nil
			}
			var env envelope.A2AEnvelope
			if err := json.Unmarshal(raw, &env); err != nil {
				continue
			}
			if env.IsAck() && env.AckMessageID == messageID {
				return true, nil
			}
		}
	}
}

// SendAck publishes a fire-and-forget ack for messageID. It is never
// retried. A receiver that dedups before acking (as Node.PollTasks does)
// drops a retransmitted copy without acking it again, so a lost ack leaves
// the sender unacked; receiver-side dedup absorbs the extra copies.
func (r *Reliable) SendAck(ctx context.Context, messageID string) error {
	data, err := json.Marshal(envelope.WrapAck(messageID))
	if err != nil {
		return fmt.Errorf("reliability: encode ack: %w", err)
	}
	if err := r.transport.Publish(ctx, envelope.AckTopic(messageID), data); err != nil {
		return fmt.Errorf("reliability: publish ack: %w", err)
	}
	return nil
}

// Publish is a pass-through to the wrapped transport, for callers that
// intentionally bypass reliable delivery (e.g. task responses, per
// spec.md's reliability asymmetry).
func (r *Reliable) Publish(ctx context.Context, topic string, payload []byte) error {
	return r.transport.Publish(ctx, topic, payload)
}

// Subscribe is a pass-through to the wrapped transport.
func (r *Reliable) Subscribe(ctx context.Context, topic string) (*transport.Subscription, error) {
	return r.transport.Subscribe(ctx, topic)
}

// Unsubscribe is a pass-through to the wrapped transport.
func (r *Reliable) Unsubscribe(ctx context.Context, topic string) error {
	return r.transport.Unsubscribe(ctx, topic)
}

// messageID extracts the top-level "id" field from a raw JSON payload, the
// same dedup key the upstream filter_dedup inspects.
func messageID(raw []byte) (string, bool) {
	var probe struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil || probe.ID == "" {
		return "", false
	}
	return probe.ID, true
}

// FilterDedup reports whether raw carries an "id" field already seen, and
// marks it seen if not (i.e. it returns true the first time an id is
// observed, false on every subsequent observation).
func (r *Reliable) FilterDedup(raw []byte) bool {
	id, ok := messageID(raw)
	if !ok {
		// No id field at all (e.g. an ack envelope): never deduplicated.
		return true
	}
	if r.dedup.seen(id) {
		r.metrics.DedupDrops.Inc()
		return false
	}
	return true
}
