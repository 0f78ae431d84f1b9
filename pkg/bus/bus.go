package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/evoagent/core/pkg/errs"
)

// Handler processes a delivered message. For a request message, a non-nil
// returned payload causes the bus to auto-enqueue a response; a returned
// error causes the bus to auto-enqueue an error message. Handlers run on a
// per-subscription goroutine and must not block indefinitely; panics and
// errors are isolated from the bus so one bad listener cannot stall delivery
// to the others.
type Handler func(ctx context.Context, msg *Message) (*Payload, error)

// SendOptions overrides per-send delivery parameters.
type SendOptions struct {
	Priority   *Priority
	MaxRetries *int
	ExpiresAt  *time.Time
}

type subscription struct {
	id      string
	agentID string
	filter  Filter
	handler Handler
	queue   chan *Message
	stopCh  chan struct{}
	bus     *MessageBus
}

// Stats exposes listener-error counters instead of swallowing them silently.
type Stats struct {
	Delivered     int64
	HandlerErrors int64
	Rejected      int64
	Expired       int64
}

// MessageBus is the in-process agent-to-agent message bus.
type MessageBus struct {
	mu           sync.RWMutex
	subsByAgent  map[string][]*subscription
	maxQueueSize int
	pending      int64 // total messages enqueued but not yet processed
	logger       *slog.Logger
	stats        Stats
}

// NewMessageBus creates a bus with the given global pending-message cap.
func NewMessageBus(maxQueueSize int, logger *slog.Logger) *MessageBus {
	if logger == nil {
		logger = slog.Default()
	}
	if maxQueueSize <= 0 {
		maxQueueSize = 1000
	}
	return &MessageBus{
		subsByAgent:  make(map[string][]*subscription),
		maxQueueSize: maxQueueSize,
		logger:       logger,
	}
}

// Stats returns a snapshot of delivery counters.
func (b *MessageBus) Stats() Stats {
	return Stats{
		Delivered:     atomic.LoadInt64(&b.stats.Delivered),
		HandlerErrors: atomic.LoadInt64(&b.stats.HandlerErrors),
		Rejected:      atomic.LoadInt64(&b.stats.Rejected),
		Expired:       atomic.LoadInt64(&b.stats.Expired),
	}
}

// Subscribe registers a handler for agentID, invoked for messages whose
// filter (if any) accepts. Returns a subscription id for Unsubscribe.
func (b *MessageBus) Subscribe(agentID string, filter Filter, handler Handler) string {
	sub := &subscription{
		id:      uuid.New().String(),
		agentID: agentID,
		filter:  filter,
		handler: handler,
		queue:   make(chan *Message, 64),
		stopCh:  make(chan struct{}),
		bus:     b,
	}
	b.mu.Lock()
	b.subsByAgent[agentID] = append(b.subsByAgent[agentID], sub)
	b.mu.Unlock()

	go sub.run()
	return sub.id
}

// Unsubscribe removes a subscription by id.
func (b *MessageBus) Unsubscribe(agentID, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subsByAgent[agentID]
	for i, s := range subs {
		if s.id == subID {
			close(s.stopCh)
			b.subsByAgent[agentID] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// run drains the subscription's queue strictly in arrival order, so that
// within one subscription, delivery order matches send order.
func (s *subscription) run() {
	for {
		select {
		case <-s.stopCh:
			return
		case msg := <-s.queue:
			s.deliver(msg)
		}
	}
}

func (s *subscription) deliver(msg *Message) {
	defer atomic.AddInt64(&s.bus.pending, -1)
	defer func() {
		if r := recover(); r != nil {
			atomic.AddInt64(&s.bus.stats.HandlerErrors, 1)
			s.bus.logger.Error("bus handler panicked", "agent_id", s.agentID, "message_id", msg.ID, "recover", r)
		}
	}()

	resp, err := s.handler(context.Background(), msg)
	atomic.AddInt64(&s.bus.stats.Delivered, 1)

	if msg.Type != TypeRequest {
		return
	}
	if err != nil {
		atomic.AddInt64(&s.bus.stats.HandlerErrors, 1)
		errMsg := NewMessage(TypeError, msg.Priority, msg.To0(), []Address{msg.From}, ErrorPayload(err.Error()))
		errMsg.ReplyTo = msg.ID
		errMsg.CorrelationID = correlationOf(msg)
		s.bus.deliverAsync(errMsg)
		return
	}
	if resp != nil {
		respMsg := NewMessage(TypeResponse, msg.Priority, msg.To0(), []Address{msg.From}, *resp)
		respMsg.ReplyTo = msg.ID
		respMsg.CorrelationID = correlationOf(msg)
		s.bus.deliverAsync(respMsg)
	}
}

// To0 returns the recipient address that this subscription answers as,
// i.e. the original message's first (and, for request/response, only)
// recipient — used as the "from" of an auto-generated reply.
func (m *Message) To0() Address {
	if len(m.To) == 0 {
		return Address{}
	}
	return m.To[0]
}

func correlationOf(m *Message) string {
	if m.CorrelationID != "" {
		return m.CorrelationID
	}
	return m.ID
}

// Send delivers msg: validation, expiry, option overrides, subscription
// matching per recipient, then dispatch.
func (b *MessageBus) Send(msg *Message, opts *SendOptions) error {
	if err := msg.Validate(); err != nil {
		atomic.AddInt64(&b.stats.Rejected, 1)
		return err
	}
	now := time.Now()
	if msg.Expired(now) {
		atomic.AddInt64(&b.stats.Expired, 1)
		return errs.NewTimeout("message %s expired", msg.ID)
	}
	if opts != nil {
		if opts.Priority != nil {
			msg.Priority = *opts.Priority
		}
		if opts.MaxRetries != nil {
			msg.MaxRetries = *opts.MaxRetries
		}
		if opts.ExpiresAt != nil {
			msg.ExpiresAt = opts.ExpiresAt
		}
	}

	if atomic.LoadInt64(&b.pending) >= int64(b.maxQueueSize) {
		atomic.AddInt64(&b.stats.Rejected, 1)
		return errs.NewRateLimited("message bus queue full (max %d)", b.maxQueueSize)
	}

	if !b.hasMatchingSubscription(msg) {
		b.logger.Debug("message had no matching subscription", "message_id", msg.ID, "to", msg.To)
		return nil
	}
	b.deliverAsync(msg)
	return nil
}

func (b *MessageBus) hasMatchingSubscription(msg *Message) bool {
	for _, to := range msg.To {
		b.mu.RLock()
		subs := b.subsByAgent[to.AgentID]
		b.mu.RUnlock()
		for _, s := range subs {
			if s.filter == nil || s.filter(msg) {
				return true
			}
		}
	}
	return false
}

func (b *MessageBus) deliverAsync(msg *Message) {
	for _, to := range msg.To {
		b.mu.RLock()
		subs := b.subsByAgent[to.AgentID]
		b.mu.RUnlock()
		for _, s := range subs {
			if s.filter != nil && !s.filter(msg) {
				continue
			}
			atomic.AddInt64(&b.pending, 1)
			select {
			case s.queue <- msg:
			default:
				atomic.AddInt64(&b.pending, -1)
				atomic.AddInt64(&b.stats.Rejected, 1)
				b.logger.Warn("subscription queue full, dropping message", "agent_id", s.agentID, "message_id", msg.ID)
			}
		}
	}
}

// SendAndWait issues a request and blocks until a correlated response or
// error arrives, the context is cancelled, or timeout elapses. The
// temporary subscription is always released (I9 cancellation-safety note).
func (b *MessageBus) SendAndWait(ctx context.Context, from, to Address, payload Payload, timeout time.Duration) (*Message, error) {
	req := NewMessage(TypeRequest, PriorityNormal, from, []Address{to}, payload)

	resultCh := make(chan *Message, 1)
	subID := b.Subscribe(from.AgentID, WithReplyTo(req.ID), func(_ context.Context, msg *Message) (*Payload, error) {
		select {
		case resultCh <- msg:
		default:
		}
		return nil, nil
	})
	defer b.Unsubscribe(from.AgentID, subID)

	if err := b.Send(req, nil); err != nil {
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-resultCh:
		if resp.Type == TypeError {
			return resp, fmt.Errorf("remote error: %s", resp.Payload.ErrMsg)
		}
		return resp, nil
	case <-timer.C:
		return nil, errs.NewTimeout("sendAndWait timed out after %s", timeout)
	case <-ctx.Done():
		return nil, errs.Wrap(errs.Transient, "sendAndWait cancelled", ctx.Err())
	}
}
