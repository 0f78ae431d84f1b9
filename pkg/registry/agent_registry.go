package registry

import (
	"log/slog"
	"math/rand"
	"sync"
	"time"
)

// Status is the presence status of a registered agent.
type Status string

const (
	StatusOnline  Status = "online"
	StatusBusy    Status = "busy"
	StatusError   Status = "error"
	StatusOffline Status = "offline"
)

// Address identifies where an agent can be reached within the bus.
type Address struct {
	AgentID   string
	AgentKind string
	SessionID string
	Lane      string
}

// Registration is the persisted record of a registered agent.
type Registration struct {
	AgentID       string
	AgentKind     string
	Address       Address
	Capabilities  []string
	Status        Status
	Metadata      map[string]any
	RegisteredAt  time.Time
	LastHeartbeat time.Time
}

// Criteria selects a subset of registrations for discovery.
type Criteria struct {
	Kind                string
	RequiredCapabilities []string
	Statuses            []Status
	MinHeartbeat        time.Time
	MetadataEquals      map[string]any
}

func (c Criteria) matches(r *Registration) bool {
	if c.Kind != "" && r.AgentKind != c.Kind {
		return false
	}
	for _, want := range c.RequiredCapabilities {
		found := false
		for _, have := range r.Capabilities {
			if have == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(c.Statuses) > 0 {
		ok := false
		for _, s := range c.Statuses {
			if r.Status == s {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if !c.MinHeartbeat.IsZero() && r.LastHeartbeat.Before(c.MinHeartbeat) {
		return false
	}
	for k, v := range c.MetadataEquals {
		if r.Metadata[k] != v {
			return false
		}
	}
	return true
}

// AgentRegistry provides discovery, heartbeats and presence tracking for
// agents participating on the MessageBus.
//
// Presence is defined as: status == online && now - lastHeartbeat < heartbeatTimeout.
// A background sweep runs every heartbeatInterval and marks stale entries offline.
type AgentRegistry struct {
	// mu serializes compound store operations (replace-on-register) and
	// in-place mutation of a *Registration's fields; BaseRegistry's own lock
	// only protects the map, not the pointed-to struct.
	mu               sync.Mutex
	store            *BaseRegistry[*Registration]
	heartbeatTimeout time.Duration
	heartbeatEvery   time.Duration
	logger           *slog.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}

	rng *rand.Rand
}

// NewAgentRegistry creates a registry. If heartbeatEvery is zero, the
// background sweep is not started; callers may drive Sweep manually (tests).
func NewAgentRegistry(heartbeatTimeout, heartbeatEvery time.Duration, logger *slog.Logger) *AgentRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &AgentRegistry{
		store:            NewBaseRegistry[*Registration](),
		heartbeatTimeout: heartbeatTimeout,
		heartbeatEvery:   heartbeatEvery,
		logger:           logger,
		stopCh:           make(chan struct{}),
		doneCh:           make(chan struct{}),
		rng:              rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if heartbeatEvery > 0 {
		go r.sweepLoop()
	} else {
		close(r.doneCh)
	}
	return r
}

// Register adds or replaces an agent's registration.
func (r *AgentRegistry) Register(agentID, kind string, addr Address, capabilities []string, metadata map[string]any) *Registration {
	now := time.Now()
	reg := &Registration{
		AgentID:       agentID,
		AgentKind:     kind,
		Address:       addr,
		Capabilities:  append([]string(nil), capabilities...),
		Status:        StatusOnline,
		Metadata:      metadata,
		RegisteredAt:  now,
		LastHeartbeat: now,
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	// re-registration replaces the prior entry; BaseRegistry.Register errors
	// on a duplicate name, so clear it first.
	_ = r.store.Remove(agentID)
	_ = r.store.Register(agentID, reg)
	return reg
}

// Heartbeat refreshes LastHeartbeat and, if the agent was offline, marks it
// online again.
func (r *AgentRegistry) Heartbeat(agentID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.store.Get(agentID)
	if !ok {
		return false
	}
	reg.LastHeartbeat = time.Now()
	if reg.Status == StatusOffline {
		reg.Status = StatusOnline
	}
	return true
}

// SetStatus updates an agent's status explicitly (e.g. busy/error).
func (r *AgentRegistry) SetStatus(agentID string, status Status) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.store.Get(agentID)
	if !ok {
		return false
	}
	reg.Status = status
	return true
}

// Get returns a copy of the registration for agentID.
func (r *AgentRegistry) Get(agentID string) (Registration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.store.Get(agentID)
	if !ok {
		return Registration{}, false
	}
	return *reg, true
}

// Deregister removes an agent.
func (r *AgentRegistry) Deregister(agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_ = r.store.Remove(agentID)
}

// Presence reports whether agentID is online and within the heartbeat
// timeout window.
func (r *AgentRegistry) Presence(agentID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.store.Get(agentID)
	if !ok {
		return false
	}
	return reg.Status == StatusOnline && time.Since(reg.LastHeartbeat) < r.heartbeatTimeout
}

// Discover returns all registrations matching criteria, predicate-ANDed.
func (r *AgentRegistry) Discover(criteria Criteria) []Registration {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Registration
	for _, reg := range r.store.List() {
		if criteria.matches(reg) {
			out = append(out, *reg)
		}
	}
	return out
}

// SelectOne picks uniformly among matches, preferring online entries when
// any exist.
func (r *AgentRegistry) SelectOne(criteria Criteria) (Registration, bool) {
	matches := r.Discover(criteria)
	if len(matches) == 0 {
		return Registration{}, false
	}
	var online []Registration
	for _, m := range matches {
		if m.Status == StatusOnline {
			online = append(online, m)
		}
	}
	pool := matches
	if len(online) > 0 {
		pool = online
	}
	r.mu.Lock()
	idx := r.rng.Intn(len(pool))
	r.mu.Unlock()
	return pool[idx], true
}

// Sweep marks entries offline whose heartbeat has lapsed. Exposed so tests
// can drive it deterministically; also called by the background loop.
func (r *AgentRegistry) Sweep() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for _, reg := range r.store.List() {
		if reg.Status != StatusOffline && now.Sub(reg.LastHeartbeat) > r.heartbeatTimeout {
			reg.Status = StatusOffline
			r.logger.Debug("agent marked offline", "agent_id", reg.AgentID)
		}
	}
}

func (r *AgentRegistry) sweepLoop() {
	defer close(r.doneCh)
	ticker := time.NewTicker(r.heartbeatEvery)
	defer ticker.Stop()
	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Stop terminates the background sweep loop, if running.
func (r *AgentRegistry) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	<-r.doneCh
}
