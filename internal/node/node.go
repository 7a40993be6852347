// Package node implements the waku-a2a agent node: announce/discover over
// the discovery topic, reliable task send/receive, and opportunistic E2E
// encryption keyed off a peer's advertised intro bundle.
package node

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"waku-a2a/agent/internal/agentcrypto"
	"waku-a2a/agent/internal/reliability"
	"waku-a2a/agent/internal/transport"
	"waku-a2a/agent/pkg/envelope"
)

// Node is a single agent's view of the network: its identity, its
// advertised card, and a reliable transport it sends and receives through.
type Node struct {
	identity *agentcrypto.Identity
	card     envelope.AgentCard
	rel      *reliability.Reliable
	log      *slog.Logger

	mu      sync.Mutex
	selfSub *transport.Subscription
}

// Config describes how to build a Node.
type Config struct {
	Identity *agentcrypto.Identity
	Card     envelope.AgentCard
	Transport transport.Transport
	Metrics   *reliability.Metrics
	Logger    *slog.Logger
}

// New builds a Node. Card.PublicKey is overwritten with Identity's
// canonical public key hex, since the two must always agree.
func New(cfg Config) *Node {
	card := cfg.Card
	card.PublicKey = cfg.Identity.PublicKeyHex()

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Node{
		identity: cfg.Identity,
		card:     card,
		rel:      reliability.New(cfg.Transport, cfg.Metrics),
		log:      logger,
	}
}

// Card returns the node's current advertised AgentCard.
func (n *Node) Card() envelope.AgentCard { return n.card }

// EnableEncryption adds an IntroBundle to the node's card, opting in to
// opportunistic E2E encryption: the intro bundle's presence is the sole
// signal a peer needs to start encrypting tasks addressed to this node.
func (n *Node) EnableEncryption() {
	n.card.IntroBundle = &envelope.IntroBundle{
		AgentPublicKey: n.identity.ECDHPublicHex(),
		Version:        1,
	}
}

// PublicKey is this node's canonical wire identifier.
func (n *Node) PublicKey() string { return n.identity.PublicKeyHex() }

// Announce publishes this node's AgentCard to the discovery topic once. No
// ack is expected; the announcement is best-effort.
func (n *Node) Announce(ctx context.Context) error {
	data, err := json.Marshal(envelope.WrapAgentCard(n.card))
	if err != nil {
		return fmt.Errorf("node: encode card: %w", err)
	}
	if err := n.rel.Publish(ctx, envelope.DiscoveryTopic, data); err != nil {
		return fmt.Errorf("node: announce: %w", err)
	}
	return nil
}

// Discover subscribes to the discovery topic, drains every card published
// so far (replayed history plus anything already in flight), unsubscribes,
// and returns every card seen, excluding this node's own. Cards are
// returned as-is, duplicates included: deduping by public key, if wanted,
// is the caller's job.
func (n *Node) Discover(ctx context.Context) ([]envelope.AgentCard, error) {
	sub, err := n.rel.Subscribe(ctx, envelope.DiscoveryTopic)
	if err != nil {
		return nil, fmt.Errorf("node: subscribe discovery: %w", err)
	}
	defer func() {
		sub.Close()
		if err := n.rel.Unsubscribe(ctx, envelope.DiscoveryTopic); err != nil {
			n.log.Warn("node: unsubscribe discovery failed", "error", err)
		}
	}()

	var cards []envelope.AgentCard
	for {
		select {
		case raw, ok := <-sub.C:
			if !ok {
				return cards, nil
			}
			var env envelope.A2AEnvelope
			if err := json.Unmarshal(raw, &env); err != nil {
				continue
			}
			if !env.IsAgentCard() {
				continue
			}
			card := *env.AgentCard
			if card.PublicKey == n.PublicKey() {
				continue
			}
			cards = append(cards, card)
		default:
			return cards, nil
		}
	}
}

// SendText is a convenience wrapper that builds a plaintext Task from text
// and sends it via SendTask.
func (n *Node) SendText(ctx context.Context, to, text string) (bool, error) {
	task := envelope.NewTask(n.PublicKey(), to, text)
	return n.SendTask(ctx, task, nil)
}

// SendTask reliably delivers task to its recipient. If recipientIntro is
// non-nil, the task is sealed as an EncryptedTask instead of sent
// plaintext; the decision to encrypt is made entirely by whether the
// caller has a peer intro bundle in hand, never negotiated over the wire.
func (n *Node) SendTask(ctx context.Context, task envelope.Task, recipientIntro *envelope.IntroBundle) (bool, error) {
	env, err := n.buildTaskEnvelope(task, recipientIntro)
	if err != nil {
		return false, err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return false, fmt.Errorf("node: encode task: %w", err)
	}
	topic := envelope.TaskTopic(task.To)
	return n.rel.PublishReliable(ctx, topic, task.ID, data)
}

func (n *Node) buildTaskEnvelope(task envelope.Task, recipientIntro *envelope.IntroBundle) (envelope.A2AEnvelope, error) {
	if recipientIntro == nil {
		return envelope.WrapTask(task), nil
	}

	peerPub, err := agentcrypto.ParseECDHPublicKey(recipientIntro.AgentPublicKey)
	if err != nil {
		return envelope.A2AEnvelope{}, fmt.Errorf("node: recipient intro bundle: %w", err)
	}
	key, err := n.identity.SharedSecret(peerPub)
	if err != nil {
		return envelope.A2AEnvelope{}, fmt.Errorf("node: shared secret: %w", err)
	}
	plaintext, err := json.Marshal(task)
	if err != nil {
		return envelope.A2AEnvelope{}, fmt.Errorf("node: encode task for encryption: %w", err)
	}
	payload, err := key.Encrypt(plaintext)
	if err != nil {
		return envelope.A2AEnvelope{}, fmt.Errorf("node: encrypt task: %w", err)
	}
	return envelope.WrapEncryptedTask(payload, n.identity.ECDHPublicHex()), nil
}

// PollTasks subscribes to this node's own task topic (caching the
// subscription across calls), acks and dedups every plaintext or
// decryptable task it sees, and returns the newly-seen tasks.
func (n *Node) PollTasks(ctx context.Context) ([]envelope.Task, error) {
	sub, err := n.selfSubscription(ctx)
	if err != nil {
		return nil, err
	}

	var tasks []envelope.Task
	for {
		select {
		case raw, ok := <-sub.C:
			if !ok {
				return tasks, nil
			}
			task, err := n.decodeIncoming(raw)
			if err != nil {
				n.log.Warn("node: dropping undecodable task", "error", err)
				continue
			}
			if task == nil {
				continue
			}
			// Dedup on the decoded task's id: an encrypted_task envelope
			// carries no top-level "id", so the raw payload cannot be used.
			idProbe, err := json.Marshal(struct {
				ID string `json:"id"`
			}{task.ID})
			if err == nil && !n.rel.FilterDedup(idProbe) {
				continue
			}
			if err := n.rel.SendAck(ctx, task.ID); err != nil {
				n.log.Warn("node: send ack failed", "error", err)
			}
			tasks = append(tasks, *task)
		default:
			return tasks, nil
		}
	}
}

func (n *Node) decodeIncoming(raw []byte) (*envelope.Task, error) {
	var env envelope.A2AEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	switch {
	case env.IsTask():
		return env.Task, nil
	case env.IsEncryptedTask():
		return n.decryptTask(env)
	default:
		return nil, nil
	}
}

func (n *Node) decryptTask(env envelope.A2AEnvelope) (*envelope.Task, error) {
	peerPub, err := agentcrypto.ParseECDHPublicKey(env.SenderPubkey)
	if err != nil {
		return nil, fmt.Errorf("sender pubkey: %w", err)
	}
	key, err := n.identity.SharedSecret(peerPub)
	if err != nil {
		return nil, fmt.Errorf("shared secret: %w", err)
	}
	plaintext, err := key.Decrypt(*env.Encrypted)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	var task envelope.Task
	if err := json.Unmarshal(plaintext, &task); err != nil {
		return nil, fmt.Errorf("decode decrypted task: %w", err)
	}
	return &task, nil
}

func (n *Node) selfSubscription(ctx context.Context) (*transport.Subscription, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.selfSub != nil {
		return n.selfSub, nil
	}
	sub, err := n.rel.Subscribe(ctx, envelope.TaskTopic(n.PublicKey()))
	if err != nil {
		return nil, fmt.Errorf("node: subscribe own task topic: %w", err)
	}
	n.selfSub = sub
	return sub, nil
}

// Respond builds and bare-publishes (not reliably) task's completed
// response, matching the request/response reliability asymmetry: the
// original request retransmits until acked, but a response is sent once
// and relies on the requester's own subsequent poll, exactly as the
// upstream node behaves.
func (n *Node) Respond(ctx context.Context, task envelope.Task, resultText string) error {
	resp := task.Respond(resultText)
	data, err := json.Marshal(envelope.WrapTask(resp))
	if err != nil {
		return fmt.Errorf("node: encode response: %w", err)
	}
	if err := n.rel.Publish(ctx, envelope.TaskTopic(resp.To), data); err != nil {
		return fmt.Errorf("node: respond: %w", err)
	}
	return nil
}

// Close releases this node's cached self-task subscription. Best-effort:
// errors from the underlying transport are logged, not returned, matching
// spec.md's guidance that a dropped subscription is cleaned up best-effort.
// Discover has no subscription to release here: it subscribes and
// unsubscribes within each call.
func (n *Node) Close(ctx context.Context) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.selfSub != nil {
		n.selfSub.Close()
		if err := n.rel.Unsubscribe(ctx, envelope.TaskTopic(n.PublicKey())); err != nil {
			n.log.Warn("node: unsubscribe own task topic failed", "error", err)
		}
		n.selfSub = nil
	}
}
