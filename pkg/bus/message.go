// Package bus implements the agent-to-agent (A2A) message bus: typed
// messages, filters, subscriptions, and request/response correlation,
// for delivery.
package bus

import (
	"time"

	"github.com/google/uuid"

	"github.com/evoagent/core/pkg/registry"
)

// Type identifies the kind of message on the bus.
type Type string

const (
	TypeRequest      Type = "request"
	TypeResponse     Type = "response"
	TypeNotification Type = "notification"
	TypeBroadcast    Type = "broadcast"
	TypeError        Type = "error"
	TypeHeartbeat    Type = "heartbeat"
)

// Priority orders delivery and retry aggressiveness.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Status tracks a message's delivery lifecycle.
type Status string

const (
	StatusPending   Status = "pending"
	StatusDelivered Status = "delivered"
	StatusRejected  Status = "rejected"
	StatusExpired   Status = "expired"
)

// Address re-exports the registry's address shape: {agent-id, agent-kind,
// optional session-id, optional lane}.
type Address = registry.Address

// PayloadKind discriminates the Payload sum type. Per the design notes in
// Payloads are a tagged variant, not an untyped map, so handlers can
// switch on Kind without type-asserting a bare interface{}.
type PayloadKind string

const (
	PayloadString  PayloadKind = "string"
	PayloadData    PayloadKind = "data"
	PayloadCommand PayloadKind = "command"
	PayloadEvent   PayloadKind = "event"
	PayloadError   PayloadKind = "error"
)

// Payload is the tagged union carried by a Message.
type Payload struct {
	Kind    PayloadKind
	Content string         // PayloadString
	Data    map[string]any // PayloadData
	Command string         // PayloadCommand
	Args    map[string]any // PayloadCommand args
	Event   string         // PayloadEvent
	ErrMsg  string         // PayloadError
}

func StringPayload(s string) Payload { return Payload{Kind: PayloadString, Content: s} }
func DataPayload(d map[string]any) Payload { return Payload{Kind: PayloadData, Data: d} }
func CommandPayload(cmd string, args map[string]any) Payload {
	return Payload{Kind: PayloadCommand, Command: cmd, Args: args}
}
func EventPayload(event string, data map[string]any) Payload {
	return Payload{Kind: PayloadEvent, Event: event, Data: data}
}
func ErrorPayload(msg string) Payload { return Payload{Kind: PayloadError, ErrMsg: msg} }

// Message is the envelope exchanged over the bus.
type Message struct {
	ID            string
	Type          Type
	Priority      Priority
	Status        Status
	From          Address
	To            []Address
	Payload       Payload
	Timestamp     time.Time
	ExpiresAt     *time.Time
	ReplyTo       string
	CorrelationID string
	RetryCount    int
	MaxRetries    int
}

// NewMessage builds a message with a generated id and timestamp, for
// callers that don't need to control those fields directly.
func NewMessage(typ Type, priority Priority, from Address, to []Address, payload Payload) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      typ,
		Priority:  priority,
		Status:    StatusPending,
		From:      from,
		To:        to,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// Validate checks structural requirements before a message is sent.
func (m *Message) Validate() error {
	if m.ID == "" {
		return errMissingField("id")
	}
	if m.Type == "" {
		return errMissingField("type")
	}
	if m.From.AgentID == "" {
		return errMissingField("from")
	}
	if len(m.To) == 0 {
		return errMissingField("to")
	}
	if m.Payload.Kind == "" {
		return errMissingField("payload")
	}
	if m.Timestamp.IsZero() {
		return errMissingField("timestamp")
	}
	return nil
}

// Expired reports whether the message's ExpiresAt has passed relative to now.
func (m *Message) Expired(now time.Time) bool {
	return m.ExpiresAt != nil && m.ExpiresAt.Before(now)
}
