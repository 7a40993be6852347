package reliability

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"waku-a2a/agent/internal/transport"
	"waku-a2a/agent/internal/transport/memory"
	"waku-a2a/agent/pkg/envelope"
)

// dropFirstPublish wraps a Transport and silently swallows the first
// Publish call on a given topic, delivering every call after that. It
// exists to drive spec.md §8's S4 scenario (a transport that drops the
// first publish but delivers thereafter).
type dropFirstPublish struct {
	transport.Transport
	topic string

	mu      sync.Mutex
	dropped bool
	count   int
}

func (d *dropFirstPublish) Publish(ctx context.Context, topic string, payload []byte) error {
	d.mu.Lock()
	if topic == d.topic {
		d.count++
	}
	drop := topic == d.topic && !d.dropped
	if drop {
		d.dropped = true
	}
	d.mu.Unlock()
	if drop {
		return nil
	}
	return d.Transport.Publish(ctx, topic, payload)
}

func (d *dropFirstPublish) attempts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.count
}

func TestFilterDedupDropsRepeatedID(t *testing.T) {
	r := New(memory.New(), nil)

	task := envelope.NewTask("alice", "bob", "hi")
	raw, err := json.Marshal(envelope.WrapTask(task))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	if !r.FilterDedup(raw) {
		t.Fatalf("first sighting of id should pass the filter")
	}
	if r.FilterDedup(raw) {
		t.Fatalf("repeated id should be dropped")
	}
}

func TestFilterDedupPassesMessagesWithoutID(t *testing.T) {
	r := New(memory.New(), nil)
	ack, _ := json.Marshal(envelope.WrapAck(""))
	if !r.FilterDedup(ack) {
		t.Fatalf("payload without id should never be deduplicated")
	}
	if !r.FilterDedup(ack) {
		t.Fatalf("payload without id should never be deduplicated, second call")
	}
}

func TestSendAckIsFireAndForget(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	r := New(mem, nil)

	if err := r.SendAck(ctx, "msg-1"); err != nil {
		t.Fatalf("send ack: %v", err)
	}

	sub, err := mem.Subscribe(ctx, envelope.AckTopic("msg-1"))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	select {
	case raw := <-sub.C:
		var env envelope.A2AEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if !env.IsAck() || env.AckMessageID != "msg-1" {
			t.Fatalf("unexpected ack payload: %+v", env)
		}
	case <-time.After(time.Second):
		t.Fatalf("ack was not replayed to late subscriber")
	}
}

func TestPublishReliableSucceedsWhenAckArrives(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	r := New(mem, nil)

	task := envelope.NewTask("alice", "bob", "ping")
	raw, _ := json.Marshal(envelope.WrapTask(task))

	done := make(chan struct{})
	go func() {
		defer close(done)
		sub, err := mem.Subscribe(ctx, "task-topic")
		if err != nil {
			return
		}
		defer sub.Close()
		<-sub.C
		r.SendAck(ctx, task.ID)
	}()

	acked, err := r.PublishReliable(ctx, "task-topic", task.ID, raw)
	if err != nil {
		t.Fatalf("publish reliable: %v", err)
	}
	if !acked {
		t.Fatalf("expected message to be acked")
	}
	<-done
}

// S4 — ACK retransmit: a transport that drops the first publish on the
// task topic but delivers thereafter still yields acked=true, after
// exactly one retransmit.
func TestPublishReliableRetransmitsAfterDroppedFirstPublish(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	dropper := &dropFirstPublish{Transport: mem, topic: "task-topic"}
	r := New(dropper, nil)

	task := envelope.NewTask("alice", "bob", "ping")
	raw, _ := json.Marshal(envelope.WrapTask(task))

	done := make(chan struct{})
	go func() {
		defer close(done)
		sub, err := mem.Subscribe(ctx, "task-topic")
		if err != nil {
			return
		}
		defer sub.Close()
		<-sub.C
		r.SendAck(ctx, task.ID)
	}()

	acked, err := r.PublishReliableWithTimeout(ctx, "task-topic", task.ID, raw, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("publish reliable: %v", err)
	}
	if !acked {
		t.Fatalf("expected ack after retransmit")
	}
	<-done

	if got := dropper.attempts(); got != 2 {
		t.Fatalf("expected exactly one retransmit (2 publish attempts), got %d", got)
	}
}

func TestPublishReliableGivesUpWithoutAck(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	r := New(mem, nil)

	start := time.Now()
	acked, err := r.PublishReliableWithTimeout(ctx, "task-topic", "no-ack-id", []byte(`{"id":"no-ack-id"}`), 20*time.Millisecond)
	if err != nil {
		t.Fatalf("publish reliable: %v", err)
	}
	if acked {
		t.Fatalf("expected publish to remain unacked")
	}
	if elapsed := time.Since(start); elapsed < (MaxRetries+1)*20*time.Millisecond {
		t.Fatalf("expected at least %d attempts worth of waiting, took %s", MaxRetries+1, elapsed)
	}
}
