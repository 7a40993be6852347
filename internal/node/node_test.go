package node

import (
	"context"
	"testing"
	"time"

	"waku-a2a/agent/internal/agentcrypto"
	"waku-a2a/agent/internal/transport/memory"
	"waku-a2a/agent/pkg/envelope"
)

func newTestNode(t *testing.T, tr *memory.Transport, name string) *Node {
	t.Helper()
	id, err := agentcrypto.NewIdentity()
	if err != nil {
		t.Fatalf("identity: %v", err)
	}
	return New(Config{
		Identity:  id,
		Card:      envelope.AgentCard{Name: name, Capabilities: []string{"text"}},
		Transport: tr,
	})
}

// S3 — discovery self-exclusion: A announces; A.Discover() sees nothing of
// its own; B.Discover() sees exactly A's card.
func TestDiscoverExcludesSelfAndReturnsPeerCard(t *testing.T) {
	ctx := context.Background()
	tr := memory.New()
	alice := newTestNode(t, tr, "alice")
	bob := newTestNode(t, tr, "bob")

	if err := alice.Announce(ctx); err != nil {
		t.Fatalf("alice announce: %v", err)
	}

	aliceCards, err := alice.Discover(ctx)
	if err != nil {
		t.Fatalf("alice discover: %v", err)
	}
	if len(aliceCards) != 0 {
		t.Fatalf("alice discovered = %+v, want empty (self-exclusion)", aliceCards)
	}

	bobCards, err := bob.Discover(ctx)
	if err != nil {
		t.Fatalf("bob discover: %v", err)
	}
	if len(bobCards) != 1 || bobCards[0].PublicKey != alice.PublicKey() {
		t.Fatalf("bob discovered = %+v, want just alice", bobCards)
	}
}

// S1: plaintext task round trip with acked delivery and response.
func TestSendTaskAndRespondRoundTrip(t *testing.T) {
	ctx := context.Background()
	tr := memory.New()
	alice := newTestNode(t, tr, "alice")
	bob := newTestNode(t, tr, "bob")

	task := envelope.NewTask(alice.PublicKey(), bob.PublicKey(), "ping")

	sendDone := make(chan struct{})
	var acked bool
	var sendErr error
	go func() {
		defer close(sendDone)
		acked, sendErr = alice.SendTask(ctx, task, nil)
	}()

	deadline := time.After(2 * time.Second)
	var received []envelope.Task
	for len(received) == 0 {
		select {
		case <-deadline:
			t.Fatalf("bob never observed the task")
		default:
		}
		tasks, err := bob.PollTasks(ctx)
		if err != nil {
			t.Fatalf("poll: %v", err)
		}
		received = append(received, tasks...)
		if len(received) == 0 {
			time.Sleep(5 * time.Millisecond)
		}
	}

	<-sendDone
	if sendErr != nil {
		t.Fatalf("send task: %v", sendErr)
	}
	if !acked {
		t.Fatalf("expected task to be acked")
	}
	if received[0].Text() != "ping" {
		t.Fatalf("bob received text = %q", received[0].Text())
	}

	if err := bob.Respond(ctx, received[0], "pong"); err != nil {
		t.Fatalf("respond: %v", err)
	}

	selfSub, err := alice.selfSubscription(ctx)
	if err != nil {
		t.Fatalf("alice self subscription: %v", err)
	}
	select {
	case raw := <-selfSub.C:
		env, task := decodeEnvelope(t, raw)
		if !env.IsTask() || task.State != envelope.TaskCompleted || task.ResultText() != "pong" {
			t.Fatalf("unexpected response envelope: %+v", task)
		}
	case <-time.After(time.Second):
		t.Fatalf("alice never observed the response")
	}
}

// S2: encrypted task round trip via opportunistic E2E when the recipient
// advertises an intro bundle.
func TestEncryptedTaskRoundTrip(t *testing.T) {
	ctx := context.Background()
	tr := memory.New()
	alice := newTestNode(t, tr, "alice")
	bob := newTestNode(t, tr, "bob")
	bob.EnableEncryption()

	task := envelope.NewTask(alice.PublicKey(), bob.PublicKey(), "secret ping")
	intro := bob.Card().IntroBundle
	if intro == nil {
		t.Fatalf("bob's card missing intro bundle after EnableEncryption")
	}

	go alice.SendTask(ctx, task, intro)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatalf("bob never decrypted the task")
		default:
		}
		tasks, err := bob.PollTasks(ctx)
		if err != nil {
			t.Fatalf("poll: %v", err)
		}
		if len(tasks) > 0 {
			if tasks[0].Text() != "secret ping" {
				t.Fatalf("decrypted text = %q", tasks[0].Text())
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// S5 — dedup on receive: the same task JSON injected twice on R's task
// topic is only surfaced once.
func TestDuplicateTaskDeliverySuppressed(t *testing.T) {
	ctx := context.Background()
	tr := memory.New()
	bob := newTestNode(t, tr, "bob")

	task := envelope.NewTask("alice-pubkey", bob.PublicKey(), "dup")
	env := envelope.WrapTask(task)
	data := mustMarshal(t, env)

	topic := envelope.TaskTopic(bob.PublicKey())
	if err := tr.Publish(ctx, topic, data); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := tr.Publish(ctx, topic, data); err != nil {
		t.Fatalf("publish duplicate: %v", err)
	}

	tasks, err := bob.PollTasks(ctx)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("got %d tasks, want exactly 1 after dedup", len(tasks))
	}
}

// S6 — malformed skip: a truncated envelope on the discovery topic is
// silently skipped; a valid card published afterward is still returned.
func TestDiscoverSkipsMalformedEntries(t *testing.T) {
	ctx := context.Background()
	tr := memory.New()
	alice := newTestNode(t, tr, "alice")
	bob := newTestNode(t, tr, "bob")

	if err := tr.Publish(ctx, envelope.DiscoveryTopic, []byte(`{"type":"agent_card"`)); err != nil {
		t.Fatalf("publish malformed: %v", err)
	}
	if err := bob.Announce(ctx); err != nil {
		t.Fatalf("bob announce: %v", err)
	}

	cards, err := alice.Discover(ctx)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(cards) != 1 || cards[0].PublicKey != bob.PublicKey() {
		t.Fatalf("alice discovered = %+v, want only bob's valid card", cards)
	}
}

// Not one of spec.md's numbered scenarios: a send with no listener on the
// other end should give up unacked rather than hang.
func TestSendTaskWithoutListenerIsUnacked(t *testing.T) {
	ctx := context.Background()
	tr := memory.New()
	alice := newTestNode(t, tr, "alice")

	task := envelope.NewTask(alice.PublicKey(), "nobody-home", "hello?")
	acked, err := alice.rel.PublishReliableWithTimeout(ctx, envelope.TaskTopic("nobody-home"), task.ID, mustMarshal(t, envelope.WrapTask(task)), 20*time.Millisecond)
	if err != nil {
		t.Fatalf("send task: %v", err)
	}
	if acked {
		t.Fatalf("expected unacked delivery with no listener")
	}
}

// Not one of spec.md's numbered scenarios: Close releases the cached
// self-task subscription without error.
func TestCloseReleasesSelfSubscription(t *testing.T) {
	ctx := context.Background()
	tr := memory.New()
	alice := newTestNode(t, tr, "alice")

	if _, err := alice.PollTasks(ctx); err != nil {
		t.Fatalf("poll: %v", err)
	}
	alice.Close(ctx)

	if alice.selfSub != nil {
		t.Fatalf("expected cached self-task subscription cleared after Close")
	}
}

func decodeEnvelope(t *testing.T, raw []byte) (envelope.A2AEnvelope, envelope.Task) {
	t.Helper()
	var env envelope.A2AEnvelope
	if err := jsonUnmarshal(raw, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if env.Task == nil {
		return env, envelope.Task{}
	}
	return env, *env.Task
}
