package bus

// Filter decides whether a subscription accepts a message.
type Filter func(*Message) bool

// ByType accepts messages whose Type is one of the given types.
func ByType(types ...Type) Filter {
	set := make(map[Type]struct{}, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	return func(m *Message) bool {
		_, ok := set[m.Type]
		return ok
	}
}

// FromAgent accepts messages sent by the given agent id.
func FromAgent(agentID string) Filter {
	return func(m *Message) bool { return m.From.AgentID == agentID }
}

// WithPriority accepts messages at or above the given priority.
func WithPriority(min Priority) Filter {
	rank := map[Priority]int{PriorityLow: 0, PriorityNormal: 1, PriorityHigh: 2, PriorityUrgent: 3}
	minRank := rank[min]
	return func(m *Message) bool { return rank[m.Priority] >= minRank }
}

// FromSession accepts messages whose sender address carries the given session id.
func FromSession(sessionID string) Filter {
	return func(m *Message) bool { return m.From.SessionID == sessionID }
}

// WithReplyTo accepts messages replying to a specific request id; used
// internally by SendAndWait's temporary subscription.
func WithReplyTo(requestID string) Filter {
	return func(m *Message) bool { return m.ReplyTo == requestID }
}

// And composes filters conjunctively.
func And(filters ...Filter) Filter {
	return func(m *Message) bool {
		for _, f := range filters {
			if f != nil && !f(m) {
				return false
			}
		}
		return true
	}
}

// Or composes filters disjunctively. An empty filter list accepts everything.
func Or(filters ...Filter) Filter {
	return func(m *Message) bool {
		for _, f := range filters {
			if f != nil && f(m) {
				return true
			}
		}
		return len(filters) == 0
	}
}

// Not negates a filter.
func Not(f Filter) Filter {
	return func(m *Message) bool { return !f(m) }
}
