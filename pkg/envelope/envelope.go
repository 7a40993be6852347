// Package envelope defines the wire data model for the waku-a2a protocol:
// agent cards, tasks, and the tagged-union envelope carried on every topic.
package envelope

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// TaskState is the lifecycle state of a Task.
type TaskState string

const (
	TaskSubmitted     TaskState = "submitted"
	TaskWorking       TaskState = "working"
	TaskInputRequired TaskState = "input_required"
	TaskCompleted     TaskState = "completed"
	TaskFailed        TaskState = "failed"
	TaskCancelled     TaskState = "cancelled"
)

// IntroBundle is published inside an AgentCard to opt in to E2E encryption.
// Its mere presence is the opt-in signal; there is no separate negotiation.
type IntroBundle struct {
	AgentPublicKey string `json:"agent_pubkey"`
	Version        int    `json:"version"`
}

// AgentCard announces an agent's identity and capabilities on the discovery
// topic.
type AgentCard struct {
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	Version      string       `json:"version"`
	Capabilities []string     `json:"capabilities"`
	PublicKey    string       `json:"public_key"`
	IntroBundle  *IntroBundle `json:"intro_bundle,omitempty"`
}

// Part is a tagged union over message content. Today only Text exists; the
// shape leaves room for future variants without breaking the wire format.
type Part struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// TextPart builds a text-only Part.
func TextPart(text string) Part {
	return Part{Type: "text", Text: text}
}

// Message carries one or more Parts authored by a role ("user" or "agent").
type Message struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

func textMessage(role, text string) Message {
	return Message{Role: role, Parts: []Part{TextPart(text)}}
}

// Task is a unit of work exchanged between two agents, identified by a
// stable id that is preserved across the request/response round trip.
type Task struct {
	ID      string    `json:"id"`
	From    string    `json:"from"`
	To      string    `json:"to"`
	State   TaskState `json:"state"`
	Message Message   `json:"message"`
	Result  *Message  `json:"result,omitempty"`
}

// NewTask builds a fresh Submitted task with a random id.
func NewTask(from, to, text string) Task {
	return Task{
		ID:      uuid.NewString(),
		From:    from,
		To:      to,
		State:   TaskSubmitted,
		Message: textMessage("user", text),
	}
}

// Text returns the concatenated text of the task's request message.
func (t Task) Text() string {
	return partsText(t.Message.Parts)
}

// ResultText returns the concatenated text of the task's result message, if
// any.
func (t Task) ResultText() string {
	if t.Result == nil {
		return ""
	}
	return partsText(t.Result.Parts)
}

func partsText(parts []Part) string {
	out := ""
	for _, p := range parts {
		out += p.Text
	}
	return out
}

// Respond builds the completed response task for t: same id, from/to
// swapped, state set to completed, result carrying text.
func (t Task) Respond(text string) Task {
	resp := t
	resp.From, resp.To = t.To, t.From
	resp.State = TaskCompleted
	result := textMessage("agent", text)
	resp.Result = &result
	return resp
}

// EncryptedPayload is a ChaCha20-Poly1305-sealed blob. Nonce and ciphertext
// are standard base64.
type EncryptedPayload struct {
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// envelopeType is the snake_case discriminator carried in every envelope's
// "type" field.
type envelopeType string

const (
	envAgentCard     envelopeType = "agent_card"
	envTask          envelopeType = "task"
	envAck           envelopeType = "ack"
	envEncryptedTask envelopeType = "encrypted_task"
)

// A2AEnvelope is the tagged union carried on every topic. Exactly one of
// AgentCard, Task, Ack, EncryptedTask is populated, selected by Type.
type A2AEnvelope struct {
	Type envelopeType

	AgentCard *AgentCard
	Task      *Task

	AckMessageID string

	Encrypted     *EncryptedPayload
	SenderPubkey  string
}

// WrapAgentCard builds an envelope carrying an AgentCard.
func WrapAgentCard(c AgentCard) A2AEnvelope {
	return A2AEnvelope{Type: envAgentCard, AgentCard: &c}
}

// WrapTask builds an envelope carrying a Task.
func WrapTask(t Task) A2AEnvelope {
	return A2AEnvelope{Type: envTask, Task: &t}
}

// WrapAck builds an envelope acknowledging message id.
func WrapAck(messageID string) A2AEnvelope {
	return A2AEnvelope{Type: envAck, AckMessageID: messageID}
}

// WrapEncryptedTask builds an envelope carrying an encrypted task payload
// plus the sender's ECDH public key (so the recipient can derive the
// shared secret without a prior handshake).
func WrapEncryptedTask(payload EncryptedPayload, senderPubkey string) A2AEnvelope {
	return A2AEnvelope{Type: envEncryptedTask, Encrypted: &payload, SenderPubkey: senderPubkey}
}

// IsAgentCard reports whether the envelope carries an AgentCard.
func (e A2AEnvelope) IsAgentCard() bool { return e.Type == envAgentCard }

// IsTask reports whether the envelope carries a plaintext Task.
func (e A2AEnvelope) IsTask() bool { return e.Type == envTask }

// IsAck reports whether the envelope carries an Ack.
func (e A2AEnvelope) IsAck() bool { return e.Type == envAck }

// IsEncryptedTask reports whether the envelope carries an EncryptedTask.
func (e A2AEnvelope) IsEncryptedTask() bool { return e.Type == envEncryptedTask }

type wireEnvelope struct {
	Type envelopeType `json:"type"`

	*AgentCard

	*Task

	MessageID string `json:"message_id,omitempty"`

	Encrypted    *EncryptedPayload `json:"encrypted,omitempty"`
	SenderPubkey string            `json:"sender_pubkey,omitempty"`
}

// MarshalJSON renders the envelope as a flat, tagged JSON object matching
// the upstream Rust serde(tag = "type") representation.
func (e A2AEnvelope) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case envAgentCard:
		if e.AgentCard == nil {
			return nil, fmt.Errorf("envelope: agent_card envelope missing card")
		}
		return json.Marshal(wireEnvelope{Type: envAgentCard, AgentCard: e.AgentCard})
	case envTask:
		if e.Task == nil {
			return nil, fmt.Errorf("envelope: task envelope missing task")
		}
		return json.Marshal(wireEnvelope{Type: envTask, Task: e.Task})
	case envAck:
		return json.Marshal(wireEnvelope{Type: envAck, MessageID: e.AckMessageID})
	case envEncryptedTask:
		if e.Encrypted == nil {
			return nil, fmt.Errorf("envelope: encrypted_task envelope missing payload")
		}
		return json.Marshal(wireEnvelope{Type: envEncryptedTask, Encrypted: e.Encrypted, SenderPubkey: e.SenderPubkey})
	default:
		return nil, fmt.Errorf("envelope: unknown type %q", e.Type)
	}
}

// UnmarshalJSON parses a flat tagged envelope into the appropriate variant.
func (e *A2AEnvelope) UnmarshalJSON(data []byte) error {
	var w wireEnvelope
	w.AgentCard = &AgentCard{}
	w.Task = &Task{}
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("envelope: decode: %w", err)
	}
	switch w.Type {
	case envAgentCard:
		*e = A2AEnvelope{Type: envAgentCard, AgentCard: w.AgentCard}
	case envTask:
		*e = A2AEnvelope{Type: envTask, Task: w.Task}
	case envAck:
		*e = A2AEnvelope{Type: envAck, AckMessageID: w.MessageID}
	case envEncryptedTask:
		if w.Encrypted == nil {
			return fmt.Errorf("envelope: encrypted_task missing encrypted payload")
		}
		*e = A2AEnvelope{Type: envEncryptedTask, Encrypted: w.Encrypted, SenderPubkey: w.SenderPubkey}
	default:
		return fmt.Errorf("envelope: unknown type %q", w.Type)
	}
	return nil
}
